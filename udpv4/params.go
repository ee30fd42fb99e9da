package udpv4

import (
	"net"
	"net/netip"

	"github.com/opd-ai/rtptransport/abort"
	"github.com/opd-ai/rtptransport/transmitter"
)

const (
	// DefaultPortBase is the data port used when none is configured.
	DefaultPortBase = 5000

	// DefaultBufferSize is the kernel buffer size requested for each socket.
	DefaultBufferSize = 32768

	// DefaultMulticastTTL limits multicast traffic to the local network.
	DefaultMulticastTTL = 1

	// maxPortAttempts bounds automatic port pair selection.
	maxPortAttempts = 1024
)

// Params configures a UDP/IPv4 transmitter. It is read once by Create.
type Params struct {
	// BindIP is the local address to bind. The zero value binds all interfaces.
	BindIP netip.Addr

	// MulticastInterfaceIP selects the interface for multicast traffic.
	MulticastInterfaceIP netip.Addr

	// PortBase is the data port. Zero selects a free pair automatically.
	PortBase uint16

	// ForcedControlPort overrides the PortBase+1 control port when non-zero.
	ForcedControlPort uint16

	// AllowOddPortBase permits an odd data port.
	AllowOddPortBase bool

	// ControlMultiplexing carries data and control over a single socket.
	ControlMultiplexing bool

	// ReuseAddress sets SO_REUSEADDR on sockets opened by the transmitter.
	ReuseAddress bool

	DataSendBuffer    int
	DataRecvBuffer    int
	ControlSendBuffer int
	ControlRecvBuffer int

	// MulticastTTL is the time-to-live of outgoing multicast datagrams.
	MulticastTTL uint8

	// LocalIPs overrides local address discovery.
	LocalIPs []netip.Addr

	// DataConn and ControlConn are existing sockets to use instead of opening
	// new ones. They are not closed by Destroy. A nil ControlConn reuses
	// DataConn for control traffic.
	DataConn    *net.UDPConn
	ControlConn *net.UDPConn

	// AbortDescriptors is a shared, initialized abort channel. When nil the
	// transmitter creates and owns its own.
	AbortDescriptors *abort.Descriptors

	// TimeProvider stamps received packets. Nil uses the package default.
	TimeProvider transmitter.TimeProvider
}

// DefaultParams returns the parameters used when Create receives nil.
func DefaultParams() *Params {
	return &Params{
		PortBase:          DefaultPortBase,
		DataSendBuffer:    DefaultBufferSize,
		DataRecvBuffer:    DefaultBufferSize,
		ControlSendBuffer: DefaultBufferSize,
		ControlRecvBuffer: DefaultBufferSize,
		MulticastTTL:      DefaultMulticastTTL,
	}
}

// Protocol implements transmitter.Params.
func (*Params) Protocol() transmitter.Protocol { return transmitter.ProtocolUDPv4 }

// Info describes a created UDP/IPv4 transmitter.
type Info struct {
	LocalIPs    []netip.Addr
	DataConn    *net.UDPConn
	ControlConn *net.UDPConn
	DataPort    uint16
	ControlPort uint16
}

// Protocol implements transmitter.Info.
func (*Info) Protocol() transmitter.Protocol { return transmitter.ProtocolUDPv4 }
