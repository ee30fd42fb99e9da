// Package udpv4 implements the UDP over IPv4 transmitter.
//
// A transmitter owns one socket, when data and control traffic are
// multiplexed, or a data and control socket pair on consecutive ports with
// the data port even. Received datagrams are filtered by source, classified
// and queued; sends go to every registered destination, and a failing
// destination never prevents delivery to the others.
//
// Example:
//
//	tr := udpv4.New()
//	if err := tr.Init(true); err != nil {
//		log.Fatal(err)
//	}
//	params := udpv4.DefaultParams()
//	params.PortBase = 0 // pick a free even/odd pair
//	if err := tr.Create(limits.DefaultMaxPacketSize, params); err != nil {
//		log.Fatal(err)
//	}
//	defer tr.Destroy()
package udpv4
