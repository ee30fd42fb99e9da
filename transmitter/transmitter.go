package transmitter

import (
	"time"
)

// Protocol identifies a transmitter backend.
type Protocol int

const (
	// ProtocolUDPv4 selects the UDP over IPv4 backend.
	ProtocolUDPv4 Protocol = iota
	// ProtocolTCP selects the framed-stream backend.
	ProtocolTCP
	// ProtocolExternal selects the external-injection backend.
	ProtocolExternal
)

// String returns a human-readable protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolUDPv4:
		return "udpv4"
	case ProtocolTCP:
		return "tcp"
	case ProtocolExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ReceiveMode selects how the accept/ignore table filters incoming packets.
type ReceiveMode int

const (
	// AcceptAll accepts packets from every source.
	AcceptAll ReceiveMode = iota
	// AcceptListed accepts only sources present in the accept list.
	AcceptListed
	// IgnoreListed accepts every source except those in the ignore list.
	IgnoreListed
)

// String returns a human-readable receive mode name.
func (m ReceiveMode) String() string {
	switch m {
	case AcceptAll:
		return "accept-all"
	case AcceptListed:
		return "accept-listed"
	case IgnoreListed:
		return "ignore-listed"
	default:
		return "unknown"
	}
}

// Params is a backend specific configuration snapshot passed to Create.
type Params interface {
	// Protocol returns the backend the parameters are meant for.
	Protocol() Protocol
}

// Info describes a created transmitter, as returned by TransmissionInfo.
type Info interface {
	// Protocol returns the backend that produced the information.
	Protocol() Protocol
}

// Transmitter defines the interface every packet delivery backend satisfies.
// The session layer creates one Transmitter, configures it, and then loops on
// WaitForData followed by Poll and GetNextPacket, while other goroutines send
// packets and adjust destinations concurrently.
//
// A transmitter moves through Uninitialized, Initialized, Created and
// Destroyed. Every method except Init and Destroy requires the Created state.
type Transmitter interface {
	// Init prepares the transmitter. When threadSafe is false no locking is
	// performed and the caller must serialize all calls.
	Init(threadSafe bool) error

	// Create opens the transport using the backend specific params.
	// maxPacketSize bounds outgoing packets and may not exceed the backend limit.
	Create(maxPacketSize int, params Params) error

	// Destroy releases all resources. It unblocks an outstanding WaitForData
	// and returns only after the waiter has observed the abort. Calling
	// Destroy more than once is allowed.
	Destroy()

	// TransmissionInfo returns backend specific information about the
	// created transport.
	TransmissionInfo() (Info, error)

	// LocalHostName returns a best-effort name for the local host.
	LocalHostName() (string, error)

	// ComesFromThisTransmitter reports whether addr is one of the transmitter's own endpoints.
	ComesFromThisTransmitter(addr Address) bool

	// HeaderOverhead returns the transport bytes added to every packet.
	HeaderOverhead() int

	// Poll reads everything that is currently available without blocking
	// and appends it to the inbound queue.
	Poll() error

	// WaitForData blocks until incoming data is available, the timeout
	// elapses or AbortWait is called. A negative timeout waits indefinitely.
	WaitForData(timeout time.Duration) (bool, error)

	// AbortWait interrupts an outstanding WaitForData.
	AbortWait() error

	// SendData sends a data-channel packet to every destination.
	SendData(data []byte) error

	// SendControl sends a control-channel packet to every destination.
	SendControl(data []byte) error

	// AddDestination adds addr to the destination set.
	AddDestination(addr Address) error

	// DeleteDestination removes addr from the destination set.
	DeleteDestination(addr Address) error

	// ClearDestinations empties the destination set.
	ClearDestinations()

	// SupportsMulticasting reports whether multicast operations can succeed.
	SupportsMulticasting() bool

	// JoinMulticastGroup joins the multicast group addr.
	JoinMulticastGroup(addr Address) error

	// LeaveMulticastGroup leaves the multicast group addr.
	LeaveMulticastGroup(addr Address) error

	// LeaveAllMulticastGroups leaves every joined group.
	LeaveAllMulticastGroups()

	// SetReceiveMode changes the receive mode, clearing the filter lists
	// when the mode actually changes.
	SetReceiveMode(mode ReceiveMode) error

	// AddToIgnoreList adds addr to the ignore list (IgnoreListed mode).
	AddToIgnoreList(addr Address) error

	// DeleteFromIgnoreList removes addr from the ignore list.
	DeleteFromIgnoreList(addr Address) error

	// ClearIgnoreList empties the ignore list.
	ClearIgnoreList()

	// AddToAcceptList adds addr to the accept list (AcceptListed mode).
	AddToAcceptList(addr Address) error

	// DeleteFromAcceptList removes addr from the accept list.
	DeleteFromAcceptList(addr Address) error

	// ClearAcceptList empties the accept list.
	ClearAcceptList()

	// SetMaximumPacketSize changes the maximum outgoing packet size.
	SetMaximumPacketSize(size int) error

	// NewDataAvailable reports whether the inbound queue is non-empty.
	NewDataAvailable() bool

	// GetNextPacket pops the oldest queued packet, or returns nil.
	GetNextPacket() *RawPacket
}
