package factory

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtptransport/external"
	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/tcp"
	"github.com/opd-ai/rtptransport/transmitter"
	"github.com/opd-ai/rtptransport/udpv4"
)

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		proto transmitter.Protocol
		want  interface{}
	}{
		{transmitter.ProtocolUDPv4, &udpv4.Transmitter{}},
		{transmitter.ProtocolTCP, &tcp.Transmitter{}},
		{transmitter.ProtocolExternal, &external.Transmitter{}},
	}
	for _, tt := range tests {
		t.Run(tt.proto.String(), func(t *testing.T) {
			tr, err := New(tt.proto)
			require.NoError(t, err)
			assert.IsType(t, tt.want, tr)

			params, err := DefaultParams(tt.proto)
			require.NoError(t, err)
			assert.Equal(t, tt.proto, params.Protocol())
		})
	}
}

func TestUnknownProtocol(t *testing.T) {
	_, err := New(transmitter.Protocol(42))
	assert.ErrorIs(t, err, transmitter.ErrUnknownProtocol)
	assert.Equal(t, transmitter.KindConfiguration, transmitter.KindOf(err))

	_, err = DefaultParams(transmitter.Protocol(42))
	assert.ErrorIs(t, err, transmitter.ErrUnknownProtocol)
}

func TestCreatedTransmitterIsUsable(t *testing.T) {
	tr, err := New(transmitter.ProtocolExternal)
	require.NoError(t, err)
	require.NoError(t, tr.Init(true))
	params, err := DefaultParams(transmitter.ProtocolExternal)
	require.NoError(t, err)
	require.NoError(t, tr.Create(limits.DefaultMaxPacketSize, params))
	defer tr.Destroy()

	assert.ErrorIs(t, tr.SendData([]byte{1}), transmitter.ErrNoSender)
}

func TestDefaultUDPParamsWithoutOverrides(t *testing.T) {
	for _, env := range []string{EnvPortBase, EnvMulticastTTL, EnvRecvBuffer, EnvSendBuffer, EnvRTCPMux} {
		t.Setenv(env, "")
	}
	assert.Equal(t, udpv4.DefaultParams(), DefaultUDPParams())
}

func TestDefaultUDPParamsOverrides(t *testing.T) {
	t.Setenv(EnvPortBase, "0")
	t.Setenv(EnvMulticastTTL, "16")
	t.Setenv(EnvRecvBuffer, "131072")
	t.Setenv(EnvSendBuffer, "65536")
	t.Setenv(EnvRTCPMux, "true")

	p := DefaultUDPParams()
	assert.Equal(t, uint16(0), p.PortBase)
	assert.Equal(t, uint8(16), p.MulticastTTL)
	assert.Equal(t, 131072, p.DataRecvBuffer)
	assert.Equal(t, 131072, p.ControlRecvBuffer)
	assert.Equal(t, 65536, p.DataSendBuffer)
	assert.Equal(t, 65536, p.ControlSendBuffer)
	assert.True(t, p.ControlMultiplexing)
}

func TestDefaultUDPParamsInvalidOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"port not a number", EnvPortBase, "rtp"},
		{"port out of range", EnvPortBase, "70000"},
		{"odd port", EnvPortBase, "5001"},
		{"ttl zero", EnvMulticastTTL, "0"},
		{"ttl out of range", EnvMulticastTTL, "256"},
		{"recv buffer too small", EnvRecvBuffer, "10"},
		{"send buffer not a number", EnvSendBuffer, "large"},
		{"mux not a bool", EnvRTCPMux, "sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, env := range []string{EnvPortBase, EnvMulticastTTL, EnvRecvBuffer, EnvSendBuffer, EnvRTCPMux} {
				t.Setenv(env, "")
			}
			t.Setenv(tt.env, tt.value)

			hook := logtest.NewGlobal()
			defer hook.Reset()

			assert.Equal(t, udpv4.DefaultParams(), DefaultUDPParams())

			var warned bool
			for _, entry := range hook.AllEntries() {
				if entry.Level == logrus.WarnLevel && entry.Data["env_var"] == tt.env {
					warned = true
				}
			}
			assert.True(t, warned, "expected a warning for %s=%s", tt.env, tt.value)
		})
	}
}
