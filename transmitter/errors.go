package transmitter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/rtptransport/abort"
	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/wait"
)

// Sentinel errors for transmitter operations.
// These errors enable reliable error classification using errors.Is().

// Lifecycle errors.
var (
	// ErrNotInitialized indicates Init has not been called.
	ErrNotInitialized = errors.New("transmitter not initialized")

	// ErrAlreadyInitialized indicates Init was called twice.
	ErrAlreadyInitialized = errors.New("transmitter already initialized")

	// ErrNotCreated indicates the operation needs a created transmitter.
	ErrNotCreated = errors.New("transmitter not created")

	// ErrAlreadyCreated indicates Create was called on a created transmitter.
	ErrAlreadyCreated = errors.New("transmitter already created")
)

// Configuration errors.
var (
	// ErrInvalidParams indicates Create received parameters for another backend.
	ErrInvalidParams = errors.New("invalid transmission parameters")

	// ErrUnknownProtocol indicates a Protocol value without a backend.
	ErrUnknownProtocol = errors.New("unknown transmission protocol")

	// ErrInvalidAddressType indicates an address variant the backend cannot use.
	ErrInvalidAddressType = errors.New("invalid address type")

	// ErrInvalidAddress indicates a malformed address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrPortBaseNotEven indicates an odd data port when odd ports are not allowed.
	ErrPortBaseNotEven = errors.New("port base is not even")

	// ErrPacketTooLarge indicates an outgoing packet exceeds the maximum packet size.
	ErrPacketTooLarge = limits.ErrPacketTooLarge

	// ErrPacketSizeTooBig indicates a maximum packet size above the backend limit.
	ErrPacketSizeTooBig = limits.ErrPacketSizeTooBig

	// ErrNotMulticastAddress indicates a multicast operation on a unicast address.
	ErrNotMulticastAddress = errors.New("not a multicast address")

	// ErrInvalidReceiveMode indicates an unknown receive mode.
	ErrInvalidReceiveMode = errors.New("invalid receive mode")

	// ErrDifferentReceiveMode indicates a list operation that does not match the current receive mode.
	ErrDifferentReceiveMode = errors.New("list does not belong to current receive mode")

	// ErrAbortDescriptorsNotInitialized indicates shared abort descriptors were not initialized.
	ErrAbortDescriptorsNotInitialized = errors.New("shared abort descriptors not initialized")

	// ErrNoSender indicates the external backend has no sender configured.
	ErrNoSender = errors.New("no external sender configured")

	// ErrNoLocalIPs indicates the local IP list is empty.
	ErrNoLocalIPs = errors.New("no local IP addresses")
)

// Membership errors for destination, multicast and filter sets.
var (
	// ErrAlreadyExists indicates the entry is already in the set.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrNoSuchEntry indicates the entry is not in the set.
	ErrNoSuchEntry = errors.New("no such entry")
)

// Resource errors.
var (
	// ErrSocketCreation indicates a socket could not be opened, bound or configured.
	ErrSocketCreation = errors.New("socket creation failed")

	// ErrTooManyPortAttempts indicates automatic port selection gave up.
	ErrTooManyPortAttempts = errors.New("too many attempts to find a free port pair")

	// ErrAbortDescriptors indicates the abort descriptors could not be set up.
	ErrAbortDescriptors = errors.New("abort descriptors unavailable")
)

// Capability errors.
var (
	// ErrNotSupported indicates the backend does not offer the operation.
	ErrNotSupported = errors.New("operation not supported by this transmitter")

	// ErrNoMulticastSupport indicates the sockets do not support multicast.
	ErrNoMulticastSupport = errors.New("multicast not supported")
)

// Transient I/O errors. These are reported for a single peer and never stop
// delivery to the remaining peers.
var (
	// ErrSendFailed indicates a send to one destination failed.
	ErrSendFailed = errors.New("send failed")

	// ErrReceiveFailed indicates a receive from one socket failed.
	ErrReceiveFailed = errors.New("receive failed")

	// ErrConnectionClosed indicates the peer closed a stream connection.
	ErrConnectionClosed = errors.New("connection closed by peer")
)

// Wait state errors.
var (
	// ErrAlreadyWaiting indicates a second concurrent WaitForData.
	ErrAlreadyWaiting = errors.New("already waiting for data")

	// ErrNotWaiting indicates AbortWait without an outstanding WaitForData.
	ErrNotWaiting = errors.New("not waiting for data")
)

// Kind is the taxonomy class of an error.
type Kind int

const (
	// KindUnknown is returned for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindLifecycle marks operations called in the wrong state.
	KindLifecycle
	// KindConfiguration marks invalid parameters, addresses or sizes.
	KindConfiguration
	// KindMembership marks duplicate or missing set entries.
	KindMembership
	// KindResourceExhaustion marks socket or descriptor allocation failures.
	KindResourceExhaustion
	// KindNotSupported marks capabilities absent from a backend.
	KindNotSupported
	// KindTransientIO marks single-peer send or receive failures.
	KindTransientIO
	// KindWaitState marks misuse of WaitForData and AbortWait.
	KindWaitState
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindLifecycle:
		return "lifecycle-violation"
	case KindConfiguration:
		return "configuration-invalid"
	case KindMembership:
		return "membership"
	case KindResourceExhaustion:
		return "resource-exhaustion"
	case KindNotSupported:
		return "not-supported"
	case KindTransientIO:
		return "transient-io"
	case KindWaitState:
		return "wait-state"
	default:
		return "unknown"
	}
}

type kindEntry struct {
	err  error
	kind Kind
}

// kindTable is built on first use and never modified afterwards.
var kindTable = sync.OnceValue(func() []kindEntry {
	return []kindEntry{
		{ErrNotInitialized, KindLifecycle},
		{ErrAlreadyInitialized, KindLifecycle},
		{ErrNotCreated, KindLifecycle},
		{ErrAlreadyCreated, KindLifecycle},
		{abort.ErrAlreadyInitialized, KindLifecycle},
		{abort.ErrNotInitialized, KindLifecycle},

		{ErrInvalidParams, KindConfiguration},
		{ErrUnknownProtocol, KindConfiguration},
		{ErrInvalidAddressType, KindConfiguration},
		{ErrInvalidAddress, KindConfiguration},
		{ErrPortBaseNotEven, KindConfiguration},
		{ErrPacketTooLarge, KindConfiguration},
		{ErrPacketSizeTooBig, KindConfiguration},
		{ErrNotMulticastAddress, KindConfiguration},
		{ErrInvalidReceiveMode, KindConfiguration},
		{ErrDifferentReceiveMode, KindConfiguration},
		{ErrAbortDescriptorsNotInitialized, KindConfiguration},
		{ErrNoSender, KindConfiguration},
		{ErrNoLocalIPs, KindConfiguration},

		{ErrAlreadyExists, KindMembership},
		{ErrNoSuchEntry, KindMembership},

		{ErrSocketCreation, KindResourceExhaustion},
		{ErrTooManyPortAttempts, KindResourceExhaustion},
		{ErrAbortDescriptors, KindResourceExhaustion},

		{ErrNotSupported, KindNotSupported},
		{ErrNoMulticastSupport, KindNotSupported},
		{abort.ErrUnsupportedPlatform, KindNotSupported},
		{wait.ErrUnsupportedPlatform, KindNotSupported},

		{ErrSendFailed, KindTransientIO},
		{ErrReceiveFailed, KindTransientIO},
		{ErrConnectionClosed, KindTransientIO},

		{ErrAlreadyWaiting, KindWaitState},
		{ErrNotWaiting, KindWaitState},
	}
})

// KindOf classifies err. The first matching sentinel in the error chain wins.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, e := range kindTable() {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindUnknown
}

// OpError records a failed socket operation together with the endpoint involved.
type OpError struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("rtptransport %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("rtptransport %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError creates a new OpError
func NewOpError(op, addr string, err error) *OpError {
	return &OpError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
