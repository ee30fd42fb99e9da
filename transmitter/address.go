package transmitter

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
)

// AddressType identifies the variant behind an Address.
type AddressType int

const (
	// AddressUDPv4 identifies a UDPv4Address.
	AddressUDPv4 AddressType = iota
	// AddressStream identifies a StreamAddress.
	AddressStream
	// AddressExternal identifies an ExternalAddress.
	AddressExternal
)

// String returns a human-readable address type name.
func (t AddressType) String() string {
	switch t {
	case AddressUDPv4:
		return "udpv4"
	case AddressStream:
		return "stream"
	case AddressExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Address is an endpoint understood by one of the transmitter backends.
// Implementations are immutable values.
type Address interface {
	// Type returns the address variant.
	Type() AddressType

	// IsSameAddress reports whether other designates the same endpoint.
	IsSameAddress(other Address) bool

	// IsFromSameHost reports whether other designates the same host,
	// ignoring ports or channels.
	IsFromSameHost(other Address) bool

	// Clone returns an independent copy.
	Clone() Address

	// String returns a printable form for logs.
	String() string
}

// UDPv4Address is an IPv4 host and data port. The control port is derived
// from the data port: Port+1 by default, the data port itself when
// Multiplexed is set, or ControlPort when it is non-zero.
//
// In accept and ignore lists a Port of zero stands for every port of IP.
type UDPv4Address struct {
	IP          netip.Addr
	Port        uint16
	ControlPort uint16
	Multiplexed bool
}

// NewUDPv4Address returns the address ip:port with a derived control port.
func NewUDPv4Address(ip netip.Addr, port uint16) UDPv4Address {
	return UDPv4Address{IP: ip.Unmap(), Port: port}
}

// ParseUDPv4Address parses "a.b.c.d:port".
func ParseUDPv4Address(s string) (UDPv4Address, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return UDPv4Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	ip := ap.Addr().Unmap()
	if !ip.Is4() {
		return UDPv4Address{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidAddress, s)
	}
	return UDPv4Address{IP: ip, Port: ap.Port()}, nil
}

// UDPv4AddressFromUDPAddr converts a *net.UDPAddr holding an IPv4 address.
func UDPv4AddressFromUDPAddr(addr *net.UDPAddr) (UDPv4Address, error) {
	if addr == nil {
		return UDPv4Address{}, fmt.Errorf("%w: nil address", ErrInvalidAddress)
	}
	ip, ok := netip.AddrFromSlice(addr.IP)
	if !ok || !ip.Unmap().Is4() {
		return UDPv4Address{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidAddress, addr)
	}
	return UDPv4Address{IP: ip.Unmap(), Port: uint16(addr.Port)}, nil
}

// Type implements Address.
func (a UDPv4Address) Type() AddressType { return AddressUDPv4 }

// IsValid reports whether the address holds an IPv4 host and a usable
// control port. Data port 65535 has no Port+1 partner, so it needs
// Multiplexed or an explicit ControlPort.
func (a UDPv4Address) IsValid() bool {
	if !a.IP.Is4() {
		return false
	}
	return a.Port != math.MaxUint16 || a.Multiplexed || a.ControlPort != 0
}

// DataAddrPort returns the data channel target.
func (a UDPv4Address) DataAddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.IP, a.Port)
}

// ControlAddrPort returns the control channel target.
func (a UDPv4Address) ControlAddrPort() netip.AddrPort {
	port := a.Port + 1
	switch {
	case a.Multiplexed:
		port = a.Port
	case a.ControlPort != 0:
		port = a.ControlPort
	}
	return netip.AddrPortFrom(a.IP, port)
}

// IsSameAddress implements Address. Only host and data port are compared.
func (a UDPv4Address) IsSameAddress(other Address) bool {
	o, ok := other.(UDPv4Address)
	return ok && o.IP == a.IP && o.Port == a.Port
}

// IsFromSameHost implements Address.
func (a UDPv4Address) IsFromSameHost(other Address) bool {
	o, ok := other.(UDPv4Address)
	return ok && o.IP == a.IP
}

// Clone implements Address.
func (a UDPv4Address) Clone() Address { return a }

// String implements Address.
func (a UDPv4Address) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// StreamAddress designates an already established stream connection.
// Two stream addresses are the same when they hold the same connection.
type StreamAddress struct {
	Conn net.Conn
}

// NewStreamAddress wraps conn.
func NewStreamAddress(conn net.Conn) StreamAddress {
	return StreamAddress{Conn: conn}
}

// Type implements Address.
func (a StreamAddress) Type() AddressType { return AddressStream }

// IsSameAddress implements Address.
func (a StreamAddress) IsSameAddress(other Address) bool {
	o, ok := other.(StreamAddress)
	return ok && a.Conn != nil && o.Conn == a.Conn
}

// IsFromSameHost implements Address. A connection is its own host.
func (a StreamAddress) IsFromSameHost(other Address) bool {
	return a.IsSameAddress(other)
}

// Clone implements Address. The connection itself is shared.
func (a StreamAddress) Clone() Address { return a }

// String implements Address.
func (a StreamAddress) String() string {
	if a.Conn == nil || a.Conn.RemoteAddr() == nil {
		return "stream(<nil>)"
	}
	return "stream(" + a.Conn.RemoteAddr().String() + ")"
}

// ExternalAddress is an opaque source identifier supplied by an embedding
// application that owns the transport.
type ExternalAddress struct {
	Network string
	ID      string
}

// Type implements Address.
func (a ExternalAddress) Type() AddressType { return AddressExternal }

// IsSameAddress implements Address.
func (a ExternalAddress) IsSameAddress(other Address) bool {
	o, ok := other.(ExternalAddress)
	return ok && o == a
}

// IsFromSameHost implements Address.
func (a ExternalAddress) IsFromSameHost(other Address) bool {
	return a.IsSameAddress(other)
}

// Clone implements Address.
func (a ExternalAddress) Clone() Address { return a }

// String implements Address.
func (a ExternalAddress) String() string {
	if a.Network == "" {
		return a.ID
	}
	return a.Network + ":" + a.ID
}
