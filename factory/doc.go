// Package factory selects a transmitter backend at configuration time.
//
// New returns an uninitialized transmitter for the requested protocol. The
// caller still runs Init and Create with the matching parameters:
//
//	tr, err := factory.New(transmitter.ProtocolUDPv4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tr.Init(true); err != nil {
//	    log.Fatal(err)
//	}
//	if err := tr.Create(limits.DefaultMaxPacketSize, factory.DefaultUDPParams()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// DefaultUDPParams starts from udpv4.DefaultParams and applies these
// environment variables when they are set:
//   - RTPTRANS_PORTBASE: data port, 0 for automatic selection
//   - RTPTRANS_MULTICAST_TTL: multicast time-to-live, 1 to 255
//   - RTPTRANS_RECV_BUFFER: receive buffer size in bytes for both sockets
//   - RTPTRANS_SEND_BUFFER: send buffer size in bytes for both sockets
//   - RTPTRANS_RTCP_MUX: "true" or "false" to carry control on the data port
//
// An unparsable or out-of-range value is logged as a warning and the
// default is kept.
package factory
