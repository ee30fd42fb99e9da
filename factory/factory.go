package factory

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtptransport/external"
	"github.com/opd-ai/rtptransport/tcp"
	"github.com/opd-ai/rtptransport/transmitter"
	"github.com/opd-ai/rtptransport/udpv4"
)

// Environment variables read by DefaultUDPParams.
const (
	EnvPortBase     = "RTPTRANS_PORTBASE"
	EnvMulticastTTL = "RTPTRANS_MULTICAST_TTL"
	EnvRecvBuffer   = "RTPTRANS_RECV_BUFFER"
	EnvSendBuffer   = "RTPTRANS_SEND_BUFFER"
	EnvRTCPMux      = "RTPTRANS_RTCP_MUX"
)

// Bounds for the buffer size overrides.
const (
	MinBufferSize = 1024
	MaxBufferSize = 64 << 20
)

// New returns an uninitialized transmitter for proto.
func New(proto transmitter.Protocol) (transmitter.Transmitter, error) {
	var tr transmitter.Transmitter
	switch proto {
	case transmitter.ProtocolUDPv4:
		tr = udpv4.New()
	case transmitter.ProtocolTCP:
		tr = tcp.New()
	case transmitter.ProtocolExternal:
		tr = external.New()
	default:
		return nil, fmt.Errorf("%w: %d", transmitter.ErrUnknownProtocol, int(proto))
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"package":  "factory",
		"protocol": proto.String(),
	}).Debug("Created transmitter")
	return tr, nil
}

// DefaultParams returns the default parameters for proto. UDP parameters
// include the environment overrides.
func DefaultParams(proto transmitter.Protocol) (transmitter.Params, error) {
	switch proto {
	case transmitter.ProtocolUDPv4:
		return DefaultUDPParams(), nil
	case transmitter.ProtocolTCP:
		return tcp.DefaultParams(), nil
	case transmitter.ProtocolExternal:
		return &external.Params{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", transmitter.ErrUnknownProtocol, int(proto))
	}
}

// DefaultUDPParams returns udpv4.DefaultParams with the RTPTRANS_*
// environment overrides applied.
func DefaultUDPParams() *udpv4.Params {
	p := udpv4.DefaultParams()
	applyEnvironmentOverrides(p)
	logConfiguration(p)
	return p
}

func applyEnvironmentOverrides(p *udpv4.Params) {
	parsePortBase(p)
	parseMulticastTTL(p)
	parseBufferSize(p, EnvRecvBuffer, &p.DataRecvBuffer, &p.ControlRecvBuffer)
	parseBufferSize(p, EnvSendBuffer, &p.DataSendBuffer, &p.ControlSendBuffer)
	parseRTCPMux(p)
}

// warnInvalid logs an override that could not be applied.
func warnInvalid(function, envVar, value string, err error, using interface{}) {
	logrus.WithFields(logrus.Fields{
		"function":    function,
		"package":     "factory",
		"env_var":     envVar,
		"value":       value,
		"error":       err.Error(),
		"using_value": using,
	}).Warn("Ignoring invalid environment override, using default")
}

func parsePortBase(p *udpv4.Params) {
	s := os.Getenv(EnvPortBase)
	if s == "" {
		return
	}
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		warnInvalid("parsePortBase", EnvPortBase, s, err, p.PortBase)
		return
	}
	if port%2 != 0 && !p.AllowOddPortBase {
		warnInvalid("parsePortBase", EnvPortBase, s, transmitter.ErrPortBaseNotEven, p.PortBase)
		return
	}
	p.PortBase = uint16(port)
}

func parseMulticastTTL(p *udpv4.Params) {
	s := os.Getenv(EnvMulticastTTL)
	if s == "" {
		return
	}
	ttl, err := strconv.ParseUint(s, 10, 8)
	if err == nil && ttl == 0 {
		err = fmt.Errorf("ttl must be between 1 and 255")
	}
	if err != nil {
		warnInvalid("parseMulticastTTL", EnvMulticastTTL, s, err, p.MulticastTTL)
		return
	}
	p.MulticastTTL = uint8(ttl)
}

func parseBufferSize(p *udpv4.Params, envVar string, data, control *int) {
	s := os.Getenv(envVar)
	if s == "" {
		return
	}
	size, err := strconv.Atoi(s)
	if err == nil && (size < MinBufferSize || size > MaxBufferSize) {
		err = fmt.Errorf("buffer size %d outside [%d, %d]", size, MinBufferSize, MaxBufferSize)
	}
	if err != nil {
		warnInvalid("parseBufferSize", envVar, s, err, *data)
		return
	}
	*data = size
	*control = size
}

func parseRTCPMux(p *udpv4.Params) {
	s := os.Getenv(EnvRTCPMux)
	if s == "" {
		return
	}
	mux, err := strconv.ParseBool(s)
	if err != nil {
		warnInvalid("parseRTCPMux", EnvRTCPMux, s, err, p.ControlMultiplexing)
		return
	}
	p.ControlMultiplexing = mux
}

func logConfiguration(p *udpv4.Params) {
	logrus.WithFields(logrus.Fields{
		"function":      "DefaultUDPParams",
		"package":       "factory",
		"port_base":     p.PortBase,
		"multicast_ttl": p.MulticastTTL,
		"recv_buffer":   p.DataRecvBuffer,
		"send_buffer":   p.DataSendBuffer,
		"rtcp_mux":      p.ControlMultiplexing,
	}).Debug("Resolved UDP transmission parameters")
}
