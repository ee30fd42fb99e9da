// Package external implements a transmitter for transports owned by the
// embedding application, such as packet capture or a custom relay.
//
// Outgoing packets are handed to an application supplied Sender. Incoming
// packets are pushed in through the Injector returned by TransmissionInfo;
// injection wakes a goroutine blocked in WaitForData.
package external
