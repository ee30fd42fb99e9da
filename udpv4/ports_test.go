package udpv4

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtptransport/transmitter"
)

type fakeSocket struct {
	port   uint16
	binder *fakeBinder
}

func (s *fakeSocket) Port() uint16 { return s.port }

func (s *fakeSocket) Close() error {
	delete(s.binder.open, s.port)
	return nil
}

// fakeBinder hands out random ephemeral ports and refuses ports that are
// busy or already bound.
type fakeBinder struct {
	rng   *rand.Rand
	busy  map[uint16]bool
	open  map[uint16]bool
	calls int
	fail  error
}

func newFakeBinder(seed int64, busyRatio float64) *fakeBinder {
	b := &fakeBinder{
		rng:  rand.New(rand.NewSource(seed)),
		busy: make(map[uint16]bool),
		open: make(map[uint16]bool),
	}
	for p := 1024; p < 65536; p++ {
		if b.rng.Float64() < busyRatio {
			b.busy[uint16(p)] = true
		}
	}
	return b
}

func (b *fakeBinder) bind(port uint16) (boundSocket, error) {
	b.calls++
	if b.fail != nil {
		return nil, b.fail
	}
	if port == 0 {
		for {
			candidate := uint16(1024 + b.rng.Intn(65536-1024))
			if !b.busy[candidate] && !b.open[candidate] {
				port = candidate
				break
			}
		}
	} else if b.busy[port] || b.open[port] {
		return nil, errors.New("address in use")
	}
	b.open[port] = true
	return &fakeSocket{port: port, binder: b}, nil
}

func TestPartnerPort(t *testing.T) {
	assert.Equal(t, uint16(5001), partnerPort(5000))
	assert.Equal(t, uint16(5000), partnerPort(5001))
	assert.Equal(t, uint16(65535), partnerPort(65534))
	assert.Equal(t, uint16(65534), partnerPort(65535))
}

func TestSelectPortsAlwaysYieldsValidPair(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		b := newFakeBinder(seed, 0.5)
		data, control, attempts, err := selectPorts(b.bind, false, false)
		if err != nil {
			require.ErrorIs(t, err, transmitter.ErrTooManyPortAttempts)
			continue
		}
		assert.LessOrEqual(t, attempts, maxPortAttempts)
		assert.Equal(t, uint16(0), data.Port()%2, "data port must be even")
		assert.Equal(t, data.Port()+1, control.Port(), "ports must be consecutive")
		assert.Len(t, b.open, 2, "rejected candidates must be closed")
	}
}

func TestSelectPortsMultiplexed(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		b := newFakeBinder(seed, 0.2)
		data, control, _, err := selectPorts(b.bind, true, false)
		require.NoError(t, err)
		assert.Same(t, data, control)
		assert.Equal(t, uint16(0), data.Port()%2)
		assert.Len(t, b.open, 1)
	}
}

func TestSelectPortsMultiplexedOddAllowed(t *testing.T) {
	b := newFakeBinder(7, 0)
	data, control, attempts, err := selectPorts(b.bind, true, true)
	require.NoError(t, err)
	assert.Same(t, data, control)
	assert.Equal(t, 1, attempts)
}

func TestSelectPortsGivesUp(t *testing.T) {
	// Every odd port is taken, so no even port ever finds its partner.
	b := newFakeBinder(1, 0)
	for p := 1025; p < 65536; p += 2 {
		b.busy[uint16(p)] = true
	}
	_, _, attempts, err := selectPorts(b.bind, false, false)
	assert.ErrorIs(t, err, transmitter.ErrTooManyPortAttempts)
	assert.Equal(t, maxPortAttempts, attempts)
	assert.Empty(t, b.open)
}

func TestSelectPortsBindFailure(t *testing.T) {
	b := newFakeBinder(1, 0)
	b.fail = errors.New("no sockets left")
	_, _, _, err := selectPorts(b.bind, false, false)
	assert.ErrorIs(t, err, transmitter.ErrSocketCreation)
	assert.Equal(t, 1, b.calls)
}

func TestBindPorts(t *testing.T) {
	tests := []struct {
		name        string
		portBase    uint16
		controlPort uint16
		mux         bool
		allowOdd    bool
		wantErr     error
		wantData    uint16
		wantControl uint16
	}{
		{name: "even pair", portBase: 6000, wantData: 6000, wantControl: 6001},
		{name: "forced control", portBase: 6000, controlPort: 7010, wantData: 6000, wantControl: 7010},
		{name: "multiplexed", portBase: 6000, mux: true, wantData: 6000, wantControl: 6000},
		{name: "odd rejected", portBase: 6001, wantErr: transmitter.ErrPortBaseNotEven},
		{name: "odd allowed", portBase: 6001, allowOdd: true, wantData: 6001, wantControl: 6002},
		{name: "data busy", portBase: 6100, wantErr: transmitter.ErrSocketCreation},
		{name: "control busy", portBase: 6200, wantErr: transmitter.ErrSocketCreation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBinder(1, 0)
			b.busy[6100] = true
			b.busy[6201] = true

			data, control, err := bindPorts(b.bind, tt.portBase, tt.controlPort, tt.mux, tt.allowOdd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, b.open)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, data.Port())
			assert.Equal(t, tt.wantControl, control.Port())
		})
	}
}
