package transmitter

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPv4AddressControlPort(t *testing.T) {
	ip := netip.MustParseAddr("192.0.2.10")

	a := NewUDPv4Address(ip, 5000)
	assert.Equal(t, netip.AddrPortFrom(ip, 5000), a.DataAddrPort())
	assert.Equal(t, netip.AddrPortFrom(ip, 5001), a.ControlAddrPort())

	a.Multiplexed = true
	assert.Equal(t, netip.AddrPortFrom(ip, 5000), a.ControlAddrPort())

	forced := UDPv4Address{IP: ip, Port: 5000, ControlPort: 7000}
	assert.Equal(t, netip.AddrPortFrom(ip, 7000), forced.ControlAddrPort())
}

func TestUDPv4AddressComparison(t *testing.T) {
	ip := netip.MustParseAddr("192.0.2.10")
	a := NewUDPv4Address(ip, 5000)
	b := UDPv4Address{IP: ip, Port: 5000, ControlPort: 9000}
	c := NewUDPv4Address(ip, 5002)
	d := NewUDPv4Address(netip.MustParseAddr("192.0.2.11"), 5000)

	assert.True(t, a.IsSameAddress(b))
	assert.False(t, a.IsSameAddress(c))
	assert.True(t, a.IsFromSameHost(c))
	assert.False(t, a.IsFromSameHost(d))
	assert.False(t, a.IsSameAddress(ExternalAddress{ID: "192.0.2.10"}))
	assert.True(t, a.Clone().IsSameAddress(a))
	assert.Equal(t, "192.0.2.10:5000", a.String())
}

func TestParseUDPv4Address(t *testing.T) {
	a, err := ParseUDPv4Address("127.0.0.1:6000")
	require.NoError(t, err)
	assert.True(t, a.IsValid())
	assert.Equal(t, uint16(6000), a.Port)

	a, err = ParseUDPv4Address("[::ffff:10.0.0.1]:6000")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), a.IP)

	_, err = ParseUDPv4Address("[::1]:6000")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseUDPv4Address("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestUDPv4AddressFromUDPAddr(t *testing.T) {
	a, err := UDPv4AddressFromUDPAddr(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 4000})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:4000", a.String())

	_, err = UDPv4AddressFromUDPAddr(nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = UDPv4AddressFromUDPAddr(&net.UDPAddr{IP: net.IPv6loopback, Port: 1})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestStreamAddressIdentity(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	a := NewStreamAddress(c1)
	assert.Equal(t, AddressStream, a.Type())
	assert.True(t, a.IsSameAddress(NewStreamAddress(c1)))
	assert.False(t, a.IsSameAddress(NewStreamAddress(c2)))
	assert.False(t, StreamAddress{}.IsSameAddress(StreamAddress{}))
	assert.Equal(t, "stream(<nil>)", StreamAddress{}.String())
}

func TestExternalAddress(t *testing.T) {
	a := ExternalAddress{Network: "pcap", ID: "host-1"}
	assert.True(t, a.IsSameAddress(ExternalAddress{Network: "pcap", ID: "host-1"}))
	assert.False(t, a.IsSameAddress(ExternalAddress{Network: "pcap", ID: "host-2"}))
	assert.Equal(t, "pcap:host-1", a.String())
	assert.Equal(t, "bare", ExternalAddress{ID: "bare"}.String())
}

func TestUDPv4AddressTopPort(t *testing.T) {
	ip := netip.MustParseAddr("10.0.0.1")

	plain := NewUDPv4Address(ip, 65535)
	assert.False(t, plain.IsValid(), "control port would wrap to 0")

	mux := UDPv4Address{IP: ip, Port: 65535, Multiplexed: true}
	assert.True(t, mux.IsValid())
	assert.Equal(t, uint16(65535), mux.ControlAddrPort().Port())

	forced := UDPv4Address{IP: ip, Port: 65535, ControlPort: 7000}
	assert.True(t, forced.IsValid())
	assert.Equal(t, uint16(7000), forced.ControlAddrPort().Port())

	assert.True(t, NewUDPv4Address(ip, 65534).IsValid())
}
