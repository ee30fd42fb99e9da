package external

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/transmitter"
	"github.com/opd-ai/rtptransport/wait"
)

var peer = transmitter.ExternalAddress{Network: "capture", ID: "peer-1"}

// recordingSender stores every packet it is asked to send.
type recordingSender struct {
	mu      sync.Mutex
	data    [][]byte
	control [][]byte
	self    transmitter.Address
	err     error
}

func (s *recordingSender) SendData(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, append([]byte(nil), b...))
	return s.err
}

func (s *recordingSender) SendControl(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.control = append(s.control, append([]byte(nil), b...))
	return s.err
}

func (s *recordingSender) ComesFromThisSender(addr transmitter.Address) bool {
	return s.self != nil && addr != nil && s.self.IsSameAddress(addr)
}

// loopSender feeds everything it sends straight back into the transmitter.
type loopSender struct {
	injector Injector
}

func (l *loopSender) SendData(b []byte) error    { return l.injector.InjectData(b, peer) }
func (l *loopSender) SendControl(b []byte) error { return l.injector.InjectControl(b, peer) }
func (l *loopSender) ComesFromThisSender(transmitter.Address) bool {
	return false
}

func newCreated(t *testing.T, params *Params) (*Transmitter, Injector) {
	t.Helper()
	tr := New()
	require.NoError(t, tr.Init(true))
	require.NoError(t, tr.Create(limits.DefaultMaxPacketSize, params))
	t.Cleanup(tr.Destroy)

	info, err := tr.TransmissionInfo()
	require.NoError(t, err)
	return tr, info.(*Info).Injector
}

func waitUntilWaiting(t *testing.T, tr *Transmitter) {
	t.Helper()
	assert.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.waiting
	}, time.Second, 5*time.Millisecond)
}

func TestLifecycle(t *testing.T) {
	tr := New()
	assert.ErrorIs(t, tr.Create(1400, nil), transmitter.ErrNotInitialized)
	require.NoError(t, tr.Init(false))
	assert.ErrorIs(t, tr.Create(limits.MaxExternalPacketSize+1, nil), transmitter.ErrPacketSizeTooBig)
	require.NoError(t, tr.Create(1400, &Params{HeaderOverhead: 16}))
	assert.ErrorIs(t, tr.Create(1400, nil), transmitter.ErrAlreadyCreated)
	assert.Equal(t, 16, tr.HeaderOverhead())
	assert.NoError(t, tr.Poll())

	name, err := tr.LocalHostName()
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	info, err := tr.TransmissionInfo()
	require.NoError(t, err)
	injector := info.(*Info).Injector

	tr.Destroy()
	assert.ErrorIs(t, injector.InjectData([]byte{1}, peer), transmitter.ErrNotCreated)
	assert.ErrorIs(t, tr.Poll(), transmitter.ErrNotCreated)
}

func TestInjectCopiesBytes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tr, injector := newCreated(t, &Params{TimeProvider: fixedClock{now}})

	buf := []byte{0x80, 0x60, 0x00, 0x01}
	require.NoError(t, injector.InjectData(buf, peer))
	buf[0] = 0xFF

	p := tr.GetNextPacket()
	require.NotNil(t, p)
	assert.Equal(t, []byte{0x80, 0x60, 0x00, 0x01}, p.Data())
	assert.True(t, p.IsData())
	assert.Equal(t, now, p.ReceiveTime())
	assert.True(t, p.Source().IsSameAddress(peer))
	assert.Nil(t, tr.GetNextPacket())
}

func TestInjectClassification(t *testing.T) {
	tr, injector := newCreated(t, nil)

	rtpPacket, err := (&rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 0, SSRC: 1}}).Marshal()
	require.NoError(t, err)
	sr, err := (&rtcp.SenderReport{SSRC: 1}).Marshal()
	require.NoError(t, err)

	require.NoError(t, injector.InjectAuto(rtpPacket, peer))
	require.NoError(t, injector.InjectAuto(sr, peer))
	require.NoError(t, injector.InjectControl(rtpPacket, peer))

	want := []bool{true, false, false}
	for i, isData := range want {
		p := tr.GetNextPacket()
		require.NotNil(t, p, "packet %d", i)
		assert.Equal(t, isData, p.IsData(), "packet %d", i)
	}
	assert.False(t, tr.NewDataAvailable())
}

func TestInjectTooLarge(t *testing.T) {
	_, injector := newCreated(t, nil)
	err := injector.InjectData(make([]byte, limits.MaxExternalPacketSize+1), peer)
	assert.ErrorIs(t, err, transmitter.ErrPacketTooLarge)
}

func TestWaitForDataReturnsImmediatelyWhenQueued(t *testing.T) {
	tr, injector := newCreated(t, nil)
	require.NoError(t, injector.InjectData([]byte{1}, peer))

	start := time.Now()
	available, err := tr.WaitForData(5 * time.Second)
	require.NoError(t, err)
	assert.True(t, available)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestInjectWakesWaiter(t *testing.T) {
	tr, injector := newCreated(t, nil)

	go func() {
		waitUntilWaiting(t, tr)
		assert.NoError(t, injector.InjectData([]byte{1, 2}, peer))
	}()

	start := time.Now()
	available, err := tr.WaitForData(5 * time.Second)
	require.NoError(t, err)
	assert.True(t, available)
	assert.Less(t, time.Since(start), 2*time.Second)

	p := tr.GetNextPacket()
	require.NotNil(t, p)
	assert.Equal(t, []byte{1, 2}, p.Data())
}

func TestSignalledOncePerQuietPeriod(t *testing.T) {
	tr, injector := newCreated(t, nil)

	for i := 0; i < 100; i++ {
		require.NoError(t, injector.InjectData([]byte{byte(i)}, peer))
	}
	tr.mu.Lock()
	assert.Equal(t, 1, tr.abortCount)
	tr.mu.Unlock()

	available, err := tr.WaitForData(time.Second)
	require.NoError(t, err)
	assert.True(t, available)
	for tr.GetNextPacket() != nil {
	}

	// The stale signal is discarded, so the wait runs to its timeout.
	start := time.Now()
	available, err = tr.WaitForData(50 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, available)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	tr.mu.Lock()
	assert.Equal(t, 0, tr.abortCount)
	tr.mu.Unlock()
}

func TestSendRequiresSender(t *testing.T) {
	tr, _ := newCreated(t, nil)
	err := tr.SendData([]byte{1})
	assert.ErrorIs(t, err, transmitter.ErrNoSender)
	assert.ErrorIs(t, tr.SendControl([]byte{1}), transmitter.ErrNoSender)
	assert.False(t, tr.ComesFromThisTransmitter(peer))
}

func TestSendForwardsToSender(t *testing.T) {
	self := transmitter.ExternalAddress{Network: "capture", ID: "me"}
	sender := &recordingSender{self: self}
	tr, _ := newCreated(t, &Params{Sender: sender})

	require.NoError(t, tr.SendData([]byte{1, 2}))
	require.NoError(t, tr.SendControl([]byte{3}))
	assert.Equal(t, [][]byte{{1, 2}}, sender.data)
	assert.Equal(t, [][]byte{{3}}, sender.control)

	assert.True(t, tr.ComesFromThisTransmitter(self))
	assert.False(t, tr.ComesFromThisTransmitter(peer))

	require.NoError(t, tr.SetMaximumPacketSize(4))
	assert.ErrorIs(t, tr.SendData(make([]byte, 5)), transmitter.ErrPacketTooLarge)
	assert.Len(t, sender.data, 1)

	sender.err = errors.New("link down")
	err := tr.SendData([]byte{1})
	assert.ErrorIs(t, err, transmitter.ErrSendFailed)
	assert.Equal(t, transmitter.KindTransientIO, transmitter.KindOf(err))
}

func TestSenderMayInjectBack(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Init(true))
	loop := &loopSender{}
	require.NoError(t, tr.Create(1400, &Params{Sender: loop}))
	defer tr.Destroy()

	info, err := tr.TransmissionInfo()
	require.NoError(t, err)
	loop.injector = info.(*Info).Injector

	require.NoError(t, tr.SendControl([]byte{0x80, 0xC9, 0x00, 0x01, 0x00}))
	p := tr.GetNextPacket()
	require.NotNil(t, p)
	assert.False(t, p.IsData())
}

func TestUnsupportedOperations(t *testing.T) {
	tr, _ := newCreated(t, nil)

	assert.ErrorIs(t, tr.AddDestination(peer), transmitter.ErrNotSupported)
	assert.ErrorIs(t, tr.DeleteDestination(peer), transmitter.ErrNotSupported)
	assert.False(t, tr.SupportsMulticasting())
	assert.ErrorIs(t, tr.JoinMulticastGroup(peer), transmitter.ErrNotSupported)
	assert.ErrorIs(t, tr.LeaveMulticastGroup(peer), transmitter.ErrNotSupported)
	assert.ErrorIs(t, tr.AddToAcceptList(peer), transmitter.ErrNotSupported)
	assert.ErrorIs(t, tr.DeleteFromAcceptList(peer), transmitter.ErrNotSupported)
	assert.ErrorIs(t, tr.AddToIgnoreList(peer), transmitter.ErrNotSupported)
	assert.ErrorIs(t, tr.DeleteFromIgnoreList(peer), transmitter.ErrNotSupported)
	assert.NoError(t, tr.SetReceiveMode(transmitter.AcceptAll))
	assert.ErrorIs(t, tr.SetReceiveMode(transmitter.IgnoreListed), transmitter.ErrNotSupported)
	tr.ClearDestinations()
	tr.LeaveAllMulticastGroups()
	tr.ClearAcceptList()
	tr.ClearIgnoreList()
}

func TestAbortWait(t *testing.T) {
	tr, _ := newCreated(t, nil)
	assert.ErrorIs(t, tr.AbortWait(), transmitter.ErrNotWaiting)

	go func() {
		waitUntilWaiting(t, tr)
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, tr.AbortWait())
	}()

	start := time.Now()
	available, err := tr.WaitForData(5 * time.Second)
	require.NoError(t, err)
	assert.False(t, available)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDestroyDuringWait(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Init(true))
	require.NoError(t, tr.Create(1400, nil))

	done := make(chan error, 1)
	go func() {
		_, err := tr.WaitForData(wait.Infinite)
		done <- err
	}()
	waitUntilWaiting(t, tr)

	tr.Destroy()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Destroy")
	}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type foreignParams struct{}

func (foreignParams) Protocol() transmitter.Protocol { return transmitter.ProtocolUDPv4 }

func TestCreateParams(t *testing.T) {
	tests := []struct {
		name    string
		params  transmitter.Params
		wantErr error
	}{
		{"nil interface", nil, nil},
		{"nil pointer", (*Params)(nil), nil},
		{"empty", &Params{}, nil},
		{"other backend", foreignParams{}, transmitter.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			require.NoError(t, tr.Init(true))
			err := tr.Create(limits.DefaultMaxPacketSize, tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer tr.Destroy()
			assert.ErrorIs(t, tr.SendData([]byte{1}), transmitter.ErrNoSender)
			assert.Equal(t, 0, tr.HeaderOverhead())
		})
	}
}
