package external

import "github.com/opd-ai/rtptransport/transmitter"

// Sender delivers outgoing packets on behalf of the transmitter.
type Sender interface {
	// SendData delivers a data packet.
	SendData(b []byte) error

	// SendControl delivers a control packet.
	SendControl(b []byte) error

	// ComesFromThisSender reports whether addr identifies the sender itself.
	ComesFromThisSender(addr transmitter.Address) bool
}

// Injector hands received packets to the transmitter. The bytes are copied,
// so the caller keeps ownership of b.
type Injector interface {
	// InjectData queues b as a data packet from addr.
	InjectData(b []byte, addr transmitter.Address) error

	// InjectControl queues b as a control packet from addr.
	InjectControl(b []byte, addr transmitter.Address) error

	// InjectAuto queues b from addr, classifying it by its packet type byte.
	InjectAuto(b []byte, addr transmitter.Address) error
}

// Params configures an external transmitter.
type Params struct {
	// Sender delivers outgoing packets. SendData and SendControl fail
	// without one.
	Sender Sender

	// HeaderOverhead is the per-packet overhead of the application's
	// transport, reported by HeaderOverhead.
	HeaderOverhead int

	// TimeProvider stamps injected packets. Nil uses the package default.
	TimeProvider transmitter.TimeProvider
}

// Protocol implements transmitter.Params.
func (*Params) Protocol() transmitter.Protocol { return transmitter.ProtocolExternal }

// Info exposes the injector of a created external transmitter.
type Info struct {
	Injector Injector
}

// Protocol implements transmitter.Info.
func (*Info) Protocol() transmitter.Protocol { return transmitter.ProtocolExternal }
