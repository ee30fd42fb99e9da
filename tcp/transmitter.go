package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/opd-ai/rtptransport/abort"
	"github.com/opd-ai/rtptransport/internal/sockopt"
	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/transmitter"
	"github.com/opd-ai/rtptransport/wait"
)

// destination is one connection together with its reassembly state.
type destination struct {
	conn   net.Conn
	raw    syscall.Conn
	fd     int
	reader *FrameReader
}

// connReader reads what is already queued on a connection without blocking.
type connReader struct {
	conn syscall.Conn
}

func (r connReader) Read(b []byte) (int, error) {
	n, ok, err := sockopt.Read(r.conn, b)
	if err != nil {
		return n, err
	}
	if ok && n == 0 && len(b) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// connError pairs a connection with the failure observed on it.
type connError struct {
	conn net.Conn
	err  error
}

// Transmitter exchanges length-prefixed frames over application supplied
// stream connections. It satisfies the transmitter.Transmitter interface.
type Transmitter struct {
	id     uuid.UUID
	mu     sync.Locker
	waitMu sync.Locker
	state  transmitter.State

	epoch      uint64
	waiting    bool
	destroying bool

	abort    *abort.Descriptors
	ownAbort bool

	handler     ErrorHandler
	sendTimeout time.Duration
	clock       transmitter.TimeProvider

	maxPacketSize int
	destinations  []*destination
	queue         *transmitter.PacketQueue
	localHostName string
}

var _ transmitter.Transmitter = (*Transmitter)(nil)

// New returns an uninitialized transmitter.
func New() *Transmitter {
	return &Transmitter{id: uuid.New()}
}

func (t *Transmitter) logger(function string) *transmitter.LoggerHelper {
	return transmitter.NewLogger("tcp", function).WithField("transmitter", t.id.String())
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

// Create readies the transmitter. A nil params uses DefaultParams.
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
	if err := limits.ValidateMaxPacketSize(maxPacketSize, limits.MaxFramePayload); err != nil {
		return err
	}

	p, err := paramsFrom(params)
	if err != nil {
		return err
	}

	if p.AbortDescriptors != nil {
		if !p.AbortDescriptors.IsInitialized() {
			return transmitter.ErrAbortDescriptorsNotInitialized
		}
		t.abort, t.ownAbort = p.AbortDescriptors, false
	} else {
		ab := abort.New()
		if err := ab.Init(); err != nil {
			return fmt.Errorf("%w: %w", transmitter.ErrAbortDescriptors, err)
		}
		t.abort, t.ownAbort = ab, true
	}

	t.handler = p.ErrorHandler
	if t.handler == nil {
		t.handler = LogErrorHandler{}
	}
	t.sendTimeout = p.SendTimeout
	t.clock = transmitter.GetTimeProvider(p.TimeProvider)
	t.maxPacketSize = maxPacketSize
	t.destinations = nil
	t.queue = transmitter.NewPacketQueue()
	t.localHostName = ""
	t.waiting = false
	t.state = transmitter.StateCreated

	t.logger("Create").WithField("max_packet_size", maxPacketSize).Info("TCP transmitter created")
	return nil
}

// paramsFrom accepts a nil interface or a nil *Params as DefaultParams.
func paramsFrom(params transmitter.Params) (*Params, error) {
	if params == nil {
		return DefaultParams(), nil
	}
	p, ok := params.(*Params)
	if !ok {
		return nil, fmt.Errorf("%w: expected TCP parameters, got %s", transmitter.ErrInvalidParams, params.Protocol())
	}
	if p == nil {
		return DefaultParams(), nil
	}
	return p, nil
}

// Destroy releases reassembly buffers and descriptors. Connections are left
// open. A goroutine blocked in WaitForData is woken first.
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
	wasWaiting := t.waiting
	if wasWaiting {
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

	for _, d := range t.destinations {
		d.reader.Reset()
	}
	t.destinations = nil
	t.queue.Clear()

	if t.ownAbort {
		t.abort.Destroy()
	} else if wasWaiting {
		_ = t.abort.ClearAbortSignal()
	}
	t.abort = nil

	t.logger("Destroy").Info("TCP transmitter destroyed")
}

// TransmissionInfo returns an empty *Info.
func (t *Transmitter) TransmissionInfo() (transmitter.Info, error) {
	if err := t.lockCreated(); err != nil {
		return nil, err
	}
	defer t.mu.Unlock()
	return &Info{}, nil
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

// ComesFromThisTransmitter always reports false: a stream peer never echoes
// our own frames back on the same connection.
func (t *Transmitter) ComesFromThisTransmitter(transmitter.Address) bool {
	return false
}

// HeaderOverhead returns the IPv4, TCP and length prefix overhead.
func (t *Transmitter) HeaderOverhead() int {
	return limits.TCPHeaderOverhead
}

// WaitForData blocks until a connection is readable, AbortWait is called or
// the timeout elapses. A negative timeout waits indefinitely.
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
	// An AbortWait that raced with the end of the previous wait leaves a
	// byte behind. Shared descriptors may belong to another waiter.
	if t.ownAbort {
		if err := t.abort.ClearAbortSignal(); err != nil {
			t.mu.Unlock()
			return false, err
		}
	}

	handles := make([]int, 0, len(t.destinations)+1)
	handles = append(handles, t.abort.Handle())
	for _, d := range t.destinations {
		handles = append(handles, d.fd)
	}
	ready := make([]bool, len(handles))
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
		if err := ab.ReadSignallingByte(); err != nil {
			return false, err
		}
	}
	for _, r := range ready[1:] {
		if r {
			return true, nil
		}
	}
	return false, nil
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
	return t.abort.SendAbortSignal()
}

// SendData writes b as one frame to every connection.
func (t *Transmitter) SendData(b []byte) error {
	return t.send(b)
}

// SendControl writes b as one frame to every connection. Data and control
// share the stream.
func (t *Transmitter) SendControl(b []byte) error {
	return t.send(b)
}

func (t *Transmitter) send(b []byte) error {
	if err := t.lockCreated(); err != nil {
		return err
	}

	if err := limits.ValidatePacketSize(b, t.maxPacketSize); err != nil {
		t.mu.Unlock()
		return err
	}
	frame, err := AppendFrame(make([]byte, 0, limits.FrameLengthPrefixSize+len(b)), b)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	var failed []connError
	for _, d := range t.destinations {
		if err := t.writeFrame(d.conn, frame); err != nil {
			failed = append(failed, connError{d.conn, err})
		}
	}
	notify := t.handler.OnSendError
	t.mu.Unlock()

	t.report(failed, notify)
	return nil
}

func (t *Transmitter) writeFrame(conn net.Conn, frame []byte) error {
	if t.sendTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(t.sendTimeout)); err != nil {
			return transmitter.NewOpError("set deadline", transmitter.NewStreamAddress(conn).String(), err)
		}
	}
	if _, err := conn.Write(frame); err != nil {
		return transmitter.NewOpError("write", transmitter.NewStreamAddress(conn).String(), fmt.Errorf("%w: %w", transmitter.ErrSendFailed, err))
	}
	return nil
}

// report hands collected failures to notify, one call per connection.
func (t *Transmitter) report(failed []connError, notify func(net.Conn, error)) {
	if len(failed) == 0 {
		return
	}
	var all *multierror.Error
	for _, f := range failed {
		all = multierror.Append(all, f.err)
	}
	t.logger("report").WithError(all.ErrorOrNil(), "per-connection").WithField("failures", len(failed)).Debug("Connection failures")
	for _, f := range failed {
		notify(f.conn, f.err)
	}
}

func toStream(addr transmitter.Address) (transmitter.StreamAddress, syscall.Conn, error) {
	a, ok := addr.(transmitter.StreamAddress)
	if !ok {
		return transmitter.StreamAddress{}, nil, transmitter.ErrInvalidAddressType
	}
	if a.Conn == nil {
		return transmitter.StreamAddress{}, nil, fmt.Errorf("%w: nil connection", transmitter.ErrInvalidAddress)
	}
	raw, ok := a.Conn.(syscall.Conn)
	if !ok {
		return transmitter.StreamAddress{}, nil, fmt.Errorf("%w: %T has no OS handle", transmitter.ErrInvalidAddressType, a.Conn)
	}
	return a, raw, nil
}

func (t *Transmitter) indexOf(conn net.Conn) int {
	for i, d := range t.destinations {
		if d.conn == conn {
			return i
		}
	}
	return -1
}

// AddDestination starts sending to and reading from the connection in addr,
// which must be a transmitter.StreamAddress whose Conn implements
// syscall.Conn. A wait in progress is woken so it picks up the new
// connection.
func (t *Transmitter) AddDestination(addr transmitter.Address) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	a, raw, err := toStream(addr)
	if err != nil {
		return err
	}
	if t.indexOf(a.Conn) >= 0 {
		return ErrSocketAlreadyInDestinations
	}
	fd, err := sockopt.Handle(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", transmitter.ErrInvalidAddress, err)
	}
	t.destinations = append(t.destinations, &destination{
		conn:   a.Conn,
		raw:    raw,
		fd:     fd,
		reader: NewFrameReader(),
	})

	if t.waiting {
		if err := t.abort.SendAbortSignal(); err != nil {
			t.logger("AddDestination").WithError(err, "abort").Warn("Failed to wake waiter")
		}
	}
	return nil
}

// DeleteDestination stops using the connection in addr and drops any
// partially received frame. The connection is not closed.
func (t *Transmitter) DeleteDestination(addr transmitter.Address) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	a, _, err := toStream(addr)
	if err != nil {
		return err
	}
	i := t.indexOf(a.Conn)
	if i < 0 {
		return ErrSocketNotInDestinations
	}
	t.destinations[i].reader.Reset()
	t.destinations = append(t.destinations[:i], t.destinations[i+1:]...)
	return nil
}

// ClearDestinations forgets every connection.
func (t *Transmitter) ClearDestinations() {
	if t.lockCreated() != nil {
		return
	}
	defer t.mu.Unlock()
	for _, d := range t.destinations {
		d.reader.Reset()
	}
	t.destinations = nil
}

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

	if err := limits.ValidateMaxPacketSize(n, limits.MaxFramePayload); err != nil {
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

// GetNextPacket pops the oldest reassembled frame, or returns nil.
func (t *Transmitter) GetNextPacket() *transmitter.RawPacket {
	if t.lockCreated() != nil {
		return nil
	}
	defer t.mu.Unlock()
	return t.queue.Pop()
}

// Poll reads every queued byte from every connection, queueing completed
// frames. A failing connection is reported to the ErrorHandler and does not
// stop polling of the others.
func (t *Transmitter) Poll() error {
	if err := t.lockCreated(); err != nil {
		return err
	}

	var failed []connError
	for _, d := range t.destinations {
		if err := t.pollConn(d); err != nil {
			failed = append(failed, connError{d.conn, err})
		}
	}
	notify := t.handler.OnReceiveError
	t.mu.Unlock()

	t.report(failed, notify)
	return nil
}

// pollConn drains d. A readable connection with nothing pending has been
// closed or reset by the peer.
func (t *Transmitter) pollConn(d *destination) error {
	addr := transmitter.NewStreamAddress(d.conn)
	handles := []int{d.fd}
	ready := make([]bool, 1)

	for {
		pending, err := sockopt.PendingBytes(d.raw)
		if err != nil {
			return transmitter.NewOpError("pending bytes", addr.String(), fmt.Errorf("%w: %w", transmitter.ErrReceiveFailed, err))
		}
		if pending == 0 {
			n, err := wait.Select(handles, ready, 0)
			if err != nil {
				return err
			}
			if n == 0 || !ready[0] {
				return nil
			}
			if pending, err = sockopt.PendingBytes(d.raw); err == nil && pending == 0 {
				return transmitter.NewOpError("read", addr.String(), transmitter.ErrConnectionClosed)
			}
			continue
		}

		frames, consumed, err := d.reader.Consume(connReader{d.raw}, pending)
		now := t.clock.Now()
		for _, f := range frames {
			isData := !transmitter.IsControlPacket(f)
			t.queue.Push(transmitter.NewRawPacket(f, addr, now, isData))
		}
		switch {
		case errors.Is(err, io.EOF):
			return transmitter.NewOpError("read", addr.String(), transmitter.ErrConnectionClosed)
		case err != nil:
			return transmitter.NewOpError("read", addr.String(), fmt.Errorf("%w: %w", transmitter.ErrReceiveFailed, err))
		case consumed == 0:
			return nil
		}
	}
}
