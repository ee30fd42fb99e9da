// Package transmitter defines the contract shared by every packet delivery
// backend together with the values that cross it.
//
// # Architecture
//
// A session layer drives exactly one Transmitter. Incoming traffic is read by
// the backend, wrapped in RawPacket values and appended to an inbound FIFO;
// outgoing traffic is handed to SendData or SendControl and delivered to
// every destination. Three backends implement the contract:
//
//   - udpv4: connectionless datagrams over one or two UDP sockets
//   - tcp: 2-byte length-prefixed frames over externally established streams
//   - external: an embedding application moves the bytes itself
//
// The typical receive loop looks like this:
//
//	for {
//	    available, err := t.WaitForData(time.Second)
//	    if err != nil {
//	        return err
//	    }
//	    if !available {
//	        continue
//	    }
//	    if err := t.Poll(); err != nil {
//	        return err
//	    }
//	    for p := t.GetNextPacket(); p != nil; p = t.GetNextPacket() {
//	        handle(p.Data(), p.Source(), p.IsData())
//	    }
//	}
//
// Any other goroutine may call AbortWait to release the waiter early.
//
// # Addresses
//
// Address is implemented by UDPv4Address (host, data port and derived control
// port), StreamAddress (an established net.Conn) and ExternalAddress (an
// opaque identifier chosen by the embedding application).
//
// # Errors
//
// All failures are sentinel errors usable with errors.Is. KindOf maps an
// error onto the taxonomy used for propagation decisions: lifecycle,
// configuration, membership and resource errors are returned to the caller,
// transient I/O on a single peer is logged and never stops delivery to the
// other peers.
//
// # Multiplexed Traffic
//
// When data and control packets share one channel, IsControlPacket classifies
// a packet by its second byte, which lies in [200, 204] for control packets.
package transmitter
