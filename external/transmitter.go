package external

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/rtptransport/abort"
	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/transmitter"
	"github.com/opd-ai/rtptransport/wait"
)

// Transmitter forwards outgoing packets to a Sender and queues packets
// injected by the application. It satisfies the transmitter.Transmitter
// interface.
type Transmitter struct {
	id     uuid.UUID
	mu     sync.Locker
	waitMu sync.Locker
	state  transmitter.State

	epoch      uint64
	waiting    bool
	destroying bool

	abort *abort.Descriptors
	// abortCount is the number of signals written since the last wake-up.
	abortCount int

	sender         Sender
	headerOverhead int
	clock          transmitter.TimeProvider
	maxPacketSize  int
	queue          *transmitter.PacketQueue
	localHostName  string
}

var _ transmitter.Transmitter = (*Transmitter)(nil)

// New returns an uninitialized transmitter.
func New() *Transmitter {
	return &Transmitter{id: uuid.New()}
}

func (t *Transmitter) logger(function string) *transmitter.LoggerHelper {
	return transmitter.NewLogger("external", function).WithField("transmitter", t.id.String())
}

// lockCreated acquires the state lock if the transmitter is created. On
// success the caller must release t.mu.
func (t *Transmitter) lockCreated() error {
	if t.mu == nil {
		return transmitter.ErrNotInitialized
	}
	t.mu.Lock()
	if err := t.state.RequireCreated(); err != nil {
		t.mu.Unlock()
		return err
	}
	return nil
}

// Init prepares the transmitter for Create.
func (t *Transmitter) Init(threadSafe bool) error {
	if t.mu != nil {
		return transmitter.ErrAlreadyInitialized
	}
	t.mu = transmitter.NewLocker(threadSafe)
	t.waitMu = transmitter.NewLocker(threadSafe)
	t.state = transmitter.StateInitialized
	return nil
}

// Create readies the transmitter. A nil params creates a receive-only
// transmitter without a Sender.
func (t *Transmitter) Create(maxPacketSize int, params transmitter.Params) error {
	if t.mu == nil {
		return transmitter.ErrNotInitialized
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.state.CanCreate(); err != nil {
		return err
	}
	if t.destroying {
		return transmitter.ErrAlreadyCreated
	}
	if err := limits.ValidateMaxPacketSize(maxPacketSize, limits.MaxExternalPacketSize); err != nil {
		return err
	}

	p, err := paramsFrom(params)
	if err != nil {
		return err
	}

	ab := abort.New()
	if err := ab.Init(); err != nil {
		return fmt.Errorf("%w: %w", transmitter.ErrAbortDescriptors, err)
	}

	t.abort = ab
	t.abortCount = 0
	t.sender = p.Sender
	t.headerOverhead = p.HeaderOverhead
	t.clock = transmitter.GetTimeProvider(p.TimeProvider)
	t.maxPacketSize = maxPacketSize
	t.queue = transmitter.NewPacketQueue()
	t.localHostName = ""
	t.waiting = false
	t.state = transmitter.StateCreated

	t.logger("Create").WithField("has_sender", p.Sender != nil).Info("External transmitter created")
	return nil
}

// paramsFrom accepts a nil interface or a nil *Params as the defaults.
func paramsFrom(params transmitter.Params) (*Params, error) {
	if params == nil {
		return &Params{}, nil
	}
	p, ok := params.(*Params)
	if !ok {
		return nil, fmt.Errorf("%w: expected external parameters, got %s", transmitter.ErrInvalidParams, params.Protocol())
	}
	if p == nil {
		return &Params{}, nil
	}
	return p, nil
}

// Destroy drops queued packets and releases the abort descriptors. A
// goroutine blocked in WaitForData is woken first.
func (t *Transmitter) Destroy() {
	if t.mu == nil {
		return
	}
	t.mu.Lock()
	if t.state != transmitter.StateCreated {
		t.mu.Unlock()
		return
	}

	t.state = transmitter.StateDestroyed
	t.epoch++
	if t.waiting {
		if err := t.abort.SendAbortSignal(); err != nil {
			t.logger("Destroy").WithError(err, "abort").Warn("Failed to wake waiter")
		}
		t.destroying = true
		t.mu.Unlock()
		t.waitMu.Lock()
		t.waitMu.Unlock()
		t.mu.Lock()
		t.destroying = false
	}
	defer t.mu.Unlock()

	t.queue.Clear()
	t.abort.Destroy()
	t.abort = nil
	t.sender = nil

	t.logger("Destroy").Info("External transmitter destroyed")
}

// TransmissionInfo returns an *Info carrying the Injector.
func (t *Transmitter) TransmissionInfo() (transmitter.Info, error) {
	if err := t.lockCreated(); err != nil {
		return nil, err
	}
	defer t.mu.Unlock()
	return &Info{Injector: injector{t}}, nil
}

// LocalHostName returns the operating system host name.
func (t *Transmitter) LocalHostName() (string, error) {
	if err := t.lockCreated(); err != nil {
		return "", err
	}
	defer t.mu.Unlock()

	if t.localHostName == "" {
		name, err := os.Hostname()
		if err != nil {
			return "", fmt.Errorf("hostname: %w", err)
		}
		t.localHostName = name
	}
	return t.localHostName, nil
}

// ComesFromThisTransmitter asks the Sender whether addr is its own.
func (t *Transmitter) ComesFromThisTransmitter(addr transmitter.Address) bool {
	if t.lockCreated() != nil {
		return false
	}
	sender := t.sender
	t.mu.Unlock()

	if sender == nil {
		return false
	}
	return sender.ComesFromThisSender(addr)
}

// HeaderOverhead returns the overhead configured in Params.
func (t *Transmitter) HeaderOverhead() int {
	if t.lockCreated() != nil {
		return 0
	}
	defer t.mu.Unlock()
	return t.headerOverhead
}

// Poll does nothing: packets arrive through the Injector.
func (t *Transmitter) Poll() error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	t.mu.Unlock()
	return nil
}

// WaitForData returns at once when packets are queued, otherwise it blocks
// until a packet is injected, AbortWait is called or the timeout elapses.
func (t *Transmitter) WaitForData(timeout time.Duration) (bool, error) {
	if err := t.lockCreated(); err != nil {
		return false, err
	}
	if t.waiting {
		t.mu.Unlock()
		return false, transmitter.ErrAlreadyWaiting
	}
	if t.queue.Len() > 0 {
		t.mu.Unlock()
		return true, nil
	}
	// Signals left by injections that were already consumed.
	if t.abortCount > 0 {
		if err := t.abort.ClearAbortSignal(); err != nil {
			t.mu.Unlock()
			return false, err
		}
		t.abortCount = 0
	}

	handles := []int{t.abort.Handle()}
	ready := make([]bool, 1)
	epoch := t.epoch
	ab := t.abort

	t.waiting = true
	t.waitMu.Lock()
	t.mu.Unlock()

	_, err := wait.Select(handles, ready, timeout)

	t.mu.Lock()
	t.waiting = false
	if t.epoch != epoch {
		t.mu.Unlock()
		t.waitMu.Unlock()
		return false, nil
	}
	defer t.waitMu.Unlock()
	defer t.mu.Unlock()

	if err != nil {
		return false, err
	}
	if ready[0] {
		if err := ab.ClearAbortSignal(); err != nil {
			return false, err
		}
		t.abortCount = 0
	}
	return t.queue.Len() > 0, nil
}

// AbortWait wakes a goroutine blocked in WaitForData.
func (t *Transmitter) AbortWait() error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if !t.waiting {
		return transmitter.ErrNotWaiting
	}
	if err := t.abort.SendAbortSignal(); err != nil {
		return err
	}
	t.abortCount++
	return nil
}

// SendData passes b to the Sender.
func (t *Transmitter) SendData(b []byte) error {
	return t.send(b, true)
}

// SendControl passes b to the Sender.
func (t *Transmitter) SendControl(b []byte) error {
	return t.send(b, false)
}

// send validates b under the lock and calls the Sender without it, so a
// Sender may inject packets back into this transmitter.
func (t *Transmitter) send(b []byte, data bool) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	sender := t.sender
	maxSize := t.maxPacketSize
	t.mu.Unlock()

	if err := limits.ValidatePacketSize(b, maxSize); err != nil {
		return err
	}
	if sender == nil {
		return transmitter.ErrNoSender
	}

	var err error
	if data {
		err = sender.SendData(b)
	} else {
		err = sender.SendControl(b)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", transmitter.ErrSendFailed, err)
	}
	return nil
}

// inject copies b into a packet, queues it and wakes the waiter. At most one
// signal is outstanding until the waiter clears it.
func (t *Transmitter) inject(b []byte, addr transmitter.Address, isData bool) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if err := limits.ValidatePacketSize(b, limits.MaxExternalPacketSize); err != nil {
		return err
	}
	data := append(make([]byte, 0, len(b)), b...)
	t.queue.Push(transmitter.NewRawPacket(data, addr, t.clock.Now(), isData))

	if t.abortCount == 0 {
		if err := t.abort.SendAbortSignal(); err != nil {
			t.logger("inject").WithError(err, "abort").Warn("Failed to wake waiter")
			return nil
		}
		t.abortCount++
	}
	return nil
}

// injector is the Injector view of a Transmitter.
type injector struct {
	t *Transmitter
}

func (i injector) InjectData(b []byte, addr transmitter.Address) error {
	return i.t.inject(b, addr, true)
}

func (i injector) InjectControl(b []byte, addr transmitter.Address) error {
	return i.t.inject(b, addr, false)
}

func (i injector) InjectAuto(b []byte, addr transmitter.Address) error {
	return i.t.inject(b, addr, !transmitter.IsControlPacket(b))
}

// AddDestination is not supported; the Sender decides where packets go.
func (t *Transmitter) AddDestination(transmitter.Address) error { return transmitter.ErrNotSupported }

// DeleteDestination is not supported.
func (t *Transmitter) DeleteDestination(transmitter.Address) error {
	return transmitter.ErrNotSupported
}

// ClearDestinations does nothing.
func (t *Transmitter) ClearDestinations() {}

// SupportsMulticasting reports false.
func (t *Transmitter) SupportsMulticasting() bool { return false }

// JoinMulticastGroup is not supported.
func (t *Transmitter) JoinMulticastGroup(transmitter.Address) error {
	return transmitter.ErrNotSupported
}

// LeaveMulticastGroup is not supported.
func (t *Transmitter) LeaveMulticastGroup(transmitter.Address) error {
	return transmitter.ErrNotSupported
}

// LeaveAllMulticastGroups does nothing.
func (t *Transmitter) LeaveAllMulticastGroups() {}

// SetReceiveMode accepts only transmitter.AcceptAll.
func (t *Transmitter) SetReceiveMode(mode transmitter.ReceiveMode) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	switch mode {
	case transmitter.AcceptAll:
		return nil
	case transmitter.AcceptListed, transmitter.IgnoreListed:
		return transmitter.ErrNotSupported
	default:
		return transmitter.ErrInvalidReceiveMode
	}
}

// AddToIgnoreList is not supported.
func (t *Transmitter) AddToIgnoreList(transmitter.Address) error { return transmitter.ErrNotSupported }

// DeleteFromIgnoreList is not supported.
func (t *Transmitter) DeleteFromIgnoreList(transmitter.Address) error {
	return transmitter.ErrNotSupported
}

// ClearIgnoreList does nothing.
func (t *Transmitter) ClearIgnoreList() {}

// AddToAcceptList is not supported.
func (t *Transmitter) AddToAcceptList(transmitter.Address) error { return transmitter.ErrNotSupported }

// DeleteFromAcceptList is not supported.
func (t *Transmitter) DeleteFromAcceptList(transmitter.Address) error {
	return transmitter.ErrNotSupported
}

// ClearAcceptList does nothing.
func (t *Transmitter) ClearAcceptList() {}

// SetMaximumPacketSize changes the send size limit.
func (t *Transmitter) SetMaximumPacketSize(n int) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if err := limits.ValidateMaxPacketSize(n, limits.MaxExternalPacketSize); err != nil {
		return err
	}
	t.maxPacketSize = n
	return nil
}

// NewDataAvailable reports whether GetNextPacket would return a packet.
func (t *Transmitter) NewDataAvailable() bool {
	if t.lockCreated() != nil {
		return false
	}
	defer t.mu.Unlock()
	return t.queue.Len() > 0
}

// GetNextPacket pops the oldest injected packet, or returns nil.
func (t *Transmitter) GetNextPacket() *transmitter.RawPacket {
	if t.lockCreated() != nil {
		return nil
	}
	defer t.mu.Unlock()
	return t.queue.Pop()
}
