package udpv4

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/ipv4"

	"github.com/opd-ai/rtptransport/transmitter"
)

// groupMember applies OS level multicast membership to the transmitter's
// sockets. Control is nil when data and control share a socket.
type groupMember struct {
	data    *ipv4.PacketConn
	control *ipv4.PacketConn
	ifi     *net.Interface
}

func newGroupMember(data, control *net.UDPConn, ifi *net.Interface) *groupMember {
	m := &groupMember{data: ipv4.NewPacketConn(data), ifi: ifi}
	if control != nil && control != data {
		m.control = ipv4.NewPacketConn(control)
	}
	return m
}

// configure sets TTL and outgoing interface on every socket.
func (m *groupMember) configure(ttl uint8) error {
	for _, pc := range m.conns() {
		if err := pc.SetMulticastTTL(int(ttl)); err != nil {
			return fmt.Errorf("set multicast TTL: %w", err)
		}
		if m.ifi != nil {
			if err := pc.SetMulticastInterface(m.ifi); err != nil {
				return fmt.Errorf("set multicast interface %s: %w", m.ifi.Name, err)
			}
		}
	}
	return nil
}

func (m *groupMember) conns() []*ipv4.PacketConn {
	if m.control == nil {
		return []*ipv4.PacketConn{m.data}
	}
	return []*ipv4.PacketConn{m.data, m.control}
}

func (m *groupMember) join(group netip.Addr) error {
	addr := &net.UDPAddr{IP: net.IP(group.AsSlice())}
	if err := m.data.JoinGroup(m.ifi, addr); err != nil {
		return transmitter.NewOpError("join", group.String(), err)
	}
	if m.control != nil {
		if err := m.control.JoinGroup(m.ifi, addr); err != nil {
			_ = m.data.LeaveGroup(m.ifi, addr)
			return transmitter.NewOpError("join", group.String(), err)
		}
	}
	return nil
}

func (m *groupMember) leave(group netip.Addr) error {
	addr := &net.UDPAddr{IP: net.IP(group.AsSlice())}
	var result *multierror.Error
	for _, pc := range m.conns() {
		if err := pc.LeaveGroup(m.ifi, addr); err != nil {
			result = multierror.Append(result, transmitter.NewOpError("leave", group.String(), err))
		}
	}
	return result.ErrorOrNil()
}

// leaveAll leaves every group, continuing past individual failures.
func (m *groupMember) leaveAll(groups map[netip.Addr]struct{}) error {
	var result *multierror.Error
	for group := range groups {
		if err := m.leave(group); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// interfaceByIP returns the interface carrying ip.
func interfaceByIP(ip netip.Addr) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if candidate, ok := netip.AddrFromSlice(ipnet.IP); ok && candidate.Unmap() == ip {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no interface with address %s", transmitter.ErrInvalidAddress, ip)
}
