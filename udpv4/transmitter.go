package udpv4

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtptransport/abort"
	"github.com/opd-ai/rtptransport/internal/sockopt"
	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/transmitter"
	"github.com/opd-ai/rtptransport/wait"
)

// Transmitter sends and receives packets over UDP/IPv4.
// It satisfies the transmitter.Transmitter interface.
type Transmitter struct {
	id     uuid.UUID
	mu     sync.Locker
	waitMu sync.Locker
	state  transmitter.State

	// epoch changes on every Destroy so a waiter can tell that the
	// resources it waited on are gone.
	epoch      uint64
	waiting    bool
	destroying bool

	dataConn    *net.UDPConn
	controlConn *net.UDPConn
	dataFD      int
	controlFD   int
	dataPort    uint16
	controlPort uint16
	mux         bool
	ownSockets  bool

	abort    *abort.Descriptors
	ownAbort bool

	localIPs      []netip.Addr
	localHostName string
	resolver      resolver
	clock         transmitter.TimeProvider

	maxPacketSize int
	recvBuf       []byte

	destinations []transmitter.UDPv4Address

	members           *groupMember
	groups            map[netip.Addr]struct{}
	supportsMulticast bool

	receiveMode transmitter.ReceiveMode
	filter      *transmitter.AcceptIgnoreTable
	queue       *transmitter.PacketQueue
}

var _ transmitter.Transmitter = (*Transmitter)(nil)

// New returns an uninitialized transmitter.
func New() *Transmitter {
	return &Transmitter{
		id:        uuid.New(),
		dataFD:    -1,
		controlFD: -1,
		resolver:  defaultResolver,
	}
}

func (t *Transmitter) logger(function string) *transmitter.LoggerHelper {
	return transmitter.NewLogger("udpv4", function).WithField("transmitter", t.id.String())
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

// Create opens and binds the sockets described by params. A nil params uses
// DefaultParams. On failure every socket opened so far is closed.
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
	if err := limits.ValidateMaxPacketSize(maxPacketSize, limits.MaxDatagramSize); err != nil {
		return err
	}

	p, err := paramsFrom(params)
	if err != nil {
		return err
	}

	ab, ownAbort, err := setupAbort(p.AbortDescriptors)
	if err != nil {
		return err
	}

	if err := t.setupSockets(p); err != nil {
		if ownAbort {
			ab.Destroy()
		}
		return err
	}

	if err := t.setupMulticast(p); err != nil {
		t.closeSockets()
		if ownAbort {
			ab.Destroy()
		}
		return err
	}

	t.localIPs = t.resolver.localIPs(p.LocalIPs, p.BindIP)
	if len(t.localIPs) == 0 {
		t.closeSockets()
		if ownAbort {
			ab.Destroy()
		}
		return transmitter.ErrNoLocalIPs
	}

	t.abort = ab
	t.ownAbort = ownAbort
	t.clock = transmitter.GetTimeProvider(p.TimeProvider)
	t.maxPacketSize = maxPacketSize
	t.recvBuf = make([]byte, limits.MaxDatagramSize)
	t.localHostName = ""
	t.destinations = nil
	t.groups = make(map[netip.Addr]struct{})
	t.receiveMode = transmitter.AcceptAll
	t.filter = transmitter.NewAcceptIgnoreTable()
	t.queue = transmitter.NewPacketQueue()
	t.waiting = false
	t.state = transmitter.StateCreated

	t.logger("Create").WithFields(logrus.Fields{
		"data_port":    t.dataPort,
		"control_port": t.controlPort,
		"multiplexed":  t.mux,
		"local_ips":    len(t.localIPs),
	}).Info("UDP transmitter created")
	return nil
}

func paramsFrom(params transmitter.Params) (*Params, error) {
	if params == nil {
		return DefaultParams(), nil
	}
	p, ok := params.(*Params)
	if !ok {
		return nil, fmt.Errorf("%w: expected UDPv4 parameters, got %s", transmitter.ErrInvalidParams, params.Protocol())
	}
	if p == nil {
		return DefaultParams(), nil
	}
	return p, nil
}

// setupAbort returns the shared descriptors or a freshly initialized owned set.
func setupAbort(shared *abort.Descriptors) (*abort.Descriptors, bool, error) {
	if shared != nil {
		if !shared.IsInitialized() {
			return nil, false, transmitter.ErrAbortDescriptorsNotInitialized
		}
		return shared, false, nil
	}
	ab := abort.New()
	if err := ab.Init(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", transmitter.ErrAbortDescriptors, err)
	}
	return ab, true, nil
}

func (t *Transmitter) setupSockets(p *Params) error {
	log := t.logger("setupSockets")

	switch {
	case p.DataConn != nil:
		t.dataConn = p.DataConn
		t.controlConn = p.ControlConn
		if t.controlConn == nil || p.ControlMultiplexing {
			t.controlConn = t.dataConn
		}
		t.ownSockets = false

	case p.PortBase == 0:
		bind := udpBinder(p.BindIP, p.ReuseAddress)
		var data, control boundSocket
		var attempts int
		var err error
		if p.ForcedControlPort != 0 && !p.ControlMultiplexing {
			data, attempts, err = selectDataPort(bind, p.AllowOddPortBase)
			if err == nil {
				control, err = bind(p.ForcedControlPort)
				if err != nil {
					data.Close()
					err = fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err)
				}
			}
		} else {
			data, control, attempts, err = selectPorts(bind, p.ControlMultiplexing, p.AllowOddPortBase)
		}
		if err != nil {
			log.WithError(err, "auto port selection").WithField("attempts", attempts).Error("Failed to select ports")
			return err
		}
		log.WithField("attempts", attempts).Debug("Selected port pair")
		t.dataConn = data.(udpSocket).UDPConn
		t.controlConn = control.(udpSocket).UDPConn
		t.ownSockets = true

	default:
		data, control, err := bindPorts(udpBinder(p.BindIP, p.ReuseAddress), p.PortBase, p.ForcedControlPort, p.ControlMultiplexing, p.AllowOddPortBase)
		if err != nil {
			log.WithError(err, "bind").WithField("port_base", p.PortBase).Error("Failed to bind ports")
			return err
		}
		t.dataConn = data.(udpSocket).UDPConn
		t.controlConn = control.(udpSocket).UDPConn
		t.ownSockets = true
	}

	t.mux = t.controlConn == t.dataConn
	t.dataPort = t.dataConn.LocalAddr().(*net.UDPAddr).AddrPort().Port()
	t.controlPort = t.controlConn.LocalAddr().(*net.UDPAddr).AddrPort().Port()

	if err := t.setBuffers(p); err != nil {
		t.closeSockets()
		return err
	}

	var err error
	if t.dataFD, err = sockopt.Handle(t.dataConn); err != nil {
		t.closeSockets()
		return fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err)
	}
	t.controlFD = t.dataFD
	if !t.mux {
		if t.controlFD, err = sockopt.Handle(t.controlConn); err != nil {
			t.closeSockets()
			return fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err)
		}
	}
	return nil
}

func (t *Transmitter) setBuffers(p *Params) error {
	set := func(conn *net.UDPConn, recv, send int) error {
		if recv > 0 {
			if err := conn.SetReadBuffer(recv); err != nil {
				return transmitter.NewOpError("set receive buffer", conn.LocalAddr().String(), fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err))
			}
		}
		if send > 0 {
			if err := conn.SetWriteBuffer(send); err != nil {
				return transmitter.NewOpError("set send buffer", conn.LocalAddr().String(), fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err))
			}
		}
		return nil
	}
	if err := set(t.dataConn, p.DataRecvBuffer, p.DataSendBuffer); err != nil {
		return err
	}
	if t.controlConn != t.dataConn {
		return set(t.controlConn, p.ControlRecvBuffer, p.ControlSendBuffer)
	}
	return nil
}

func (t *Transmitter) setupMulticast(p *Params) error {
	var ifi *net.Interface
	if p.MulticastInterfaceIP.IsValid() && !p.MulticastInterfaceIP.IsUnspecified() {
		var err error
		if ifi, err = interfaceByIP(p.MulticastInterfaceIP.Unmap()); err != nil {
			return err
		}
	}
	t.members = newGroupMember(t.dataConn, t.controlConn, ifi)
	t.supportsMulticast = true
	if err := t.members.configure(p.MulticastTTL); err != nil {
		t.logger("setupMulticast").WithError(err, "configure").Warn("Multicast disabled")
		t.supportsMulticast = false
	}
	return nil
}

// closeSockets closes sockets opened by the transmitter. Caller supplied
// sockets are left open.
func (t *Transmitter) closeSockets() {
	if t.ownSockets {
		if t.dataConn != nil {
			t.dataConn.Close()
		}
		if t.controlConn != nil && t.controlConn != t.dataConn {
			t.controlConn.Close()
		}
	}
	t.dataConn, t.controlConn = nil, nil
	t.dataFD, t.controlFD = -1, -1
	t.ownSockets = false
}

// Destroy releases sockets and descriptors. A goroutine blocked in
// WaitForData is woken and Destroy returns only after it has left the wait.
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

	if err := t.members.leaveAll(t.groups); err != nil {
		t.logger("Destroy").WithError(err, "leave groups").Debug("Some multicast groups could not be left")
	}
	t.closeSockets()

	if t.ownAbort {
		t.abort.Destroy()
	} else if wasWaiting {
		_ = t.abort.ClearAbortSignal()
	}
	t.abort = nil

	t.queue.Clear()
	t.destinations = nil
	t.groups = nil
	t.filter.Clear()
	t.members = nil

	t.logger("Destroy").Info("UDP transmitter destroyed")
}

// TransmissionInfo returns the sockets, ports and local addresses in use.
func (t *Transmitter) TransmissionInfo() (transmitter.Info, error) {
	if err := t.lockCreated(); err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	return &Info{
		LocalIPs:    append([]netip.Addr(nil), t.localIPs...),
		DataConn:    t.dataConn,
		ControlConn: t.controlConn,
		DataPort:    t.dataPort,
		ControlPort: t.controlPort,
	}, nil
}

// LocalHostName returns a name for this host derived from the local
// addresses. The result is computed once per Create.
func (t *Transmitter) LocalHostName() (string, error) {
	if err := t.lockCreated(); err != nil {
		return "", err
	}
	defer t.mu.Unlock()

	if t.localHostName == "" {
		t.localHostName = t.resolver.hostName(t.localIPs)
		if t.localHostName == "" {
			return "", transmitter.ErrNoLocalIPs
		}
	}
	return t.localHostName, nil
}

// ComesFromThisTransmitter reports whether addr is one of this transmitter's
// own sockets.
func (t *Transmitter) ComesFromThisTransmitter(addr transmitter.Address) bool {
	if t.lockCreated() != nil {
		return false
	}
	defer t.mu.Unlock()

	a, ok := addr.(transmitter.UDPv4Address)
	if !ok {
		return false
	}
	if a.Port != t.dataPort && a.Port != t.controlPort {
		return false
	}
	for _, ip := range t.localIPs {
		if ip == a.IP {
			return true
		}
	}
	return false
}

// HeaderOverhead returns the IPv4 plus UDP header size.
func (t *Transmitter) HeaderOverhead() int {
	return limits.UDPv4HeaderOverhead
}

// WaitForData blocks until a socket is readable, AbortWait is called or the
// timeout elapses. A negative timeout waits indefinitely.
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

	handles := []int{t.dataFD, t.abort.Handle()}
	if !t.mux {
		handles = append(handles, t.controlFD)
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
	if ready[1] {
		if err := ab.ReadSignallingByte(); err != nil {
			return false, err
		}
	}
	available := ready[0]
	if !t.mux && ready[2] {
		available = true
	}
	return available, nil
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

// SendData sends b from the data socket to every destination.
func (t *Transmitter) SendData(b []byte) error {
	return t.send(b, true)
}

// SendControl sends b from the control socket to every destination.
func (t *Transmitter) SendControl(b []byte) error {
	return t.send(b, false)
}

// send delivers b to every destination. A failure for one destination is
// logged and does not affect the others.
func (t *Transmitter) send(b []byte, data bool) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if err := limits.ValidatePacketSize(b, t.maxPacketSize); err != nil {
		return err
	}

	conn := t.controlConn
	if data {
		conn = t.dataConn
	}
	for _, d := range t.destinations {
		target := d.ControlAddrPort()
		if data {
			target = d.DataAddrPort()
		}
		if _, err := conn.WriteToUDPAddrPort(b, target); err != nil {
			t.logger("send").
				WithError(fmt.Errorf("%w: %w", transmitter.ErrSendFailed, err), "write").
				WithAddress("destination", d).
				Debug("Send to destination failed")
		}
	}
	return nil
}

func toUDPv4(addr transmitter.Address) (transmitter.UDPv4Address, error) {
	a, ok := addr.(transmitter.UDPv4Address)
	if !ok {
		return transmitter.UDPv4Address{}, transmitter.ErrInvalidAddressType
	}
	if !a.IsValid() {
		return transmitter.UDPv4Address{}, fmt.Errorf("%w: %s", transmitter.ErrInvalidAddress, a)
	}
	return a, nil
}

func sameDestination(a, b transmitter.UDPv4Address) bool {
	return a.DataAddrPort() == b.DataAddrPort() && a.ControlAddrPort() == b.ControlAddrPort()
}

// AddDestination adds addr to the destination list.
func (t *Transmitter) AddDestination(addr transmitter.Address) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	a, err := toUDPv4(addr)
	if err != nil {
		return err
	}
	for _, d := range t.destinations {
		if sameDestination(d, a) {
			return transmitter.ErrAlreadyExists
		}
	}
	t.destinations = append(t.destinations, a)
	return nil
}

// DeleteDestination removes addr from the destination list.
func (t *Transmitter) DeleteDestination(addr transmitter.Address) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	a, err := toUDPv4(addr)
	if err != nil {
		return err
	}
	for i, d := range t.destinations {
		if sameDestination(d, a) {
			t.destinations = append(t.destinations[:i], t.destinations[i+1:]...)
			return nil
		}
	}
	return transmitter.ErrNoSuchEntry
}

// ClearDestinations removes every destination.
func (t *Transmitter) ClearDestinations() {
	if t.lockCreated() != nil {
		return
	}
	defer t.mu.Unlock()
	t.destinations = nil
}

// SupportsMulticasting reports whether the sockets accepted multicast options.
func (t *Transmitter) SupportsMulticasting() bool {
	if t.lockCreated() != nil {
		return false
	}
	defer t.mu.Unlock()
	return t.supportsMulticast
}

func (t *Transmitter) multicastGroup(addr transmitter.Address) (netip.Addr, error) {
	if !t.supportsMulticast {
		return netip.Addr{}, transmitter.ErrNoMulticastSupport
	}
	a, err := toUDPv4(addr)
	if err != nil {
		return netip.Addr{}, err
	}
	if !a.IP.IsMulticast() {
		return netip.Addr{}, fmt.Errorf("%w: %s", transmitter.ErrNotMulticastAddress, a.IP)
	}
	return a.IP, nil
}

// JoinMulticastGroup joins the group of addr on every socket.
func (t *Transmitter) JoinMulticastGroup(addr transmitter.Address) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	group, err := t.multicastGroup(addr)
	if err != nil {
		return err
	}
	if _, ok := t.groups[group]; ok {
		return transmitter.ErrAlreadyExists
	}
	if err := t.members.join(group); err != nil {
		t.logger("JoinMulticastGroup").WithError(err, "join").WithAddress("group", addr).Warn("Failed to join multicast group")
		return err
	}
	t.groups[group] = struct{}{}
	t.logger("JoinMulticastGroup").WithAddress("group", addr).Debug("Joined multicast group")
	return nil
}

// LeaveMulticastGroup leaves the group of addr.
func (t *Transmitter) LeaveMulticastGroup(addr transmitter.Address) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	group, err := t.multicastGroup(addr)
	if err != nil {
		return err
	}
	if _, ok := t.groups[group]; !ok {
		return transmitter.ErrNoSuchEntry
	}
	delete(t.groups, group)
	if err := t.members.leave(group); err != nil {
		return err
	}
	t.logger("LeaveMulticastGroup").WithAddress("group", addr).Debug("Left multicast group")
	return nil
}

// LeaveAllMulticastGroups leaves every joined group, ignoring failures.
func (t *Transmitter) LeaveAllMulticastGroups() {
	if t.lockCreated() != nil {
		return
	}
	defer t.mu.Unlock()

	if err := t.members.leaveAll(t.groups); err != nil {
		t.logger("LeaveAllMulticastGroups").WithError(err, "leave").Debug("Some multicast groups could not be left")
	}
	t.groups = make(map[netip.Addr]struct{})
}

// SetReceiveMode switches the source filter policy. Changing the mode
// clears the accept and ignore lists.
func (t *Transmitter) SetReceiveMode(mode transmitter.ReceiveMode) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	switch mode {
	case transmitter.AcceptAll, transmitter.AcceptListed, transmitter.IgnoreListed:
	default:
		return transmitter.ErrInvalidReceiveMode
	}
	if mode != t.receiveMode {
		t.filter.Clear()
		t.receiveMode = mode
	}
	return nil
}

// modifyList applies fn to the filter table when the receive mode is want.
func (t *Transmitter) modifyList(want transmitter.ReceiveMode, addr transmitter.Address, fn func(ip netip.Addr, port uint16) error) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if t.receiveMode != want {
		return transmitter.ErrDifferentReceiveMode
	}
	// Filter entries match sources, so only the host has to be IPv4.
	a, ok := addr.(transmitter.UDPv4Address)
	if !ok {
		return transmitter.ErrInvalidAddressType
	}
	if !a.IP.Is4() {
		return fmt.Errorf("%w: %s", transmitter.ErrInvalidAddress, a)
	}
	return fn(a.IP, a.Port)
}

func (t *Transmitter) clearList(want transmitter.ReceiveMode) {
	if t.lockCreated() != nil {
		return
	}
	defer t.mu.Unlock()
	if t.receiveMode == want {
		t.filter.Clear()
	}
}

// AddToIgnoreList ignores traffic from addr. A zero port ignores every port.
func (t *Transmitter) AddToIgnoreList(addr transmitter.Address) error {
	return t.modifyList(transmitter.IgnoreListed, addr, func(ip netip.Addr, port uint16) error {
		return t.filter.Add(ip, port)
	})
}

// DeleteFromIgnoreList stops ignoring addr.
func (t *Transmitter) DeleteFromIgnoreList(addr transmitter.Address) error {
	return t.modifyList(transmitter.IgnoreListed, addr, func(ip netip.Addr, port uint16) error {
		return t.filter.Delete(ip, port)
	})
}

// ClearIgnoreList empties the ignore list.
func (t *Transmitter) ClearIgnoreList() {
	t.clearList(transmitter.IgnoreListed)
}

// AddToAcceptList accepts traffic from addr. A zero port accepts every port.
func (t *Transmitter) AddToAcceptList(addr transmitter.Address) error {
	return t.modifyList(transmitter.AcceptListed, addr, func(ip netip.Addr, port uint16) error {
		return t.filter.Add(ip, port)
	})
}

// DeleteFromAcceptList stops accepting addr.
func (t *Transmitter) DeleteFromAcceptList(addr transmitter.Address) error {
	return t.modifyList(transmitter.AcceptListed, addr, func(ip netip.Addr, port uint16) error {
		return t.filter.Delete(ip, port)
	})
}

// ClearAcceptList empties the accept list.
func (t *Transmitter) ClearAcceptList() {
	t.clearList(transmitter.AcceptListed)
}

// SetMaximumPacketSize changes the send size limit.
func (t *Transmitter) SetMaximumPacketSize(n int) error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if err := limits.ValidateMaxPacketSize(n, limits.MaxDatagramSize); err != nil {
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

// GetNextPacket pops the oldest received packet, or returns nil.
func (t *Transmitter) GetNextPacket() *transmitter.RawPacket {
	if t.lockCreated() != nil {
		return nil
	}
	defer t.mu.Unlock()
	return t.queue.Pop()
}

// Poll reads every queued datagram from the sockets into the packet queue.
// A failing socket does not keep the other one from being drained; the
// failures are returned together.
func (t *Transmitter) Poll() error {
	if err := t.lockCreated(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	var result *multierror.Error
	if err := t.pollSocket(t.dataConn, t.dataFD, true); err != nil {
		result = multierror.Append(result, err)
	}
	if !t.mux {
		if err := t.pollSocket(t.controlConn, t.controlFD, false); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		t.logger("Poll").WithError(err, "receive").Debug("Socket poll failed")
		return err
	}
	return nil
}

// pollSocket drains conn. A zero pending count is confirmed with a zero
// timeout wait so an empty datagram is still consumed.
func (t *Transmitter) pollSocket(conn *net.UDPConn, fd int, dataSocket bool) error {
	handles := []int{fd}
	ready := make([]bool, 1)

	for {
		pending, err := sockopt.PendingBytes(conn)
		if err != nil {
			return transmitter.NewOpError("pending bytes", conn.LocalAddr().String(), fmt.Errorf("%w: %w", transmitter.ErrReceiveFailed, err))
		}
		if pending == 0 {
			n, err := wait.Select(handles, ready, 0)
			if err != nil {
				return err
			}
			if n == 0 || !ready[0] {
				return nil
			}
		}

		n, from, ok, err := sockopt.RecvFrom(conn, t.recvBuf)
		if err != nil {
			return transmitter.NewOpError("recvfrom", conn.LocalAddr().String(), fmt.Errorf("%w: %w", transmitter.ErrReceiveFailed, err))
		}
		if !ok {
			return nil
		}
		if n == 0 || !from.IsValid() {
			continue
		}

		t.enqueue(t.recvBuf[:n], from, dataSocket)
	}
}

// enqueue filters, classifies and queues one datagram, copying b.
func (t *Transmitter) enqueue(b []byte, from netip.AddrPort, dataSocket bool) {
	// Control traffic on a separate socket arrives from the sender's
	// control port, one above the port the filter lists are keyed on.
	filterPort := from.Port()
	if !dataSocket {
		filterPort--
	}
	if !t.filter.ShouldAccept(t.receiveMode, from.Addr(), filterPort) {
		return
	}

	isData := dataSocket
	if t.mux {
		isData = !transmitter.IsControlPacket(b)
	}
	data := append([]byte(nil), b...)
	src := transmitter.NewUDPv4Address(from.Addr(), from.Port())
	t.queue.Push(transmitter.NewRawPacket(data, src, t.clock.Now(), isData))
}
