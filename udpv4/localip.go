package udpv4

import (
	"net"
	"net/netip"
	"strings"
)

// resolver abstracts the host lookups used for local address discovery.
type resolver struct {
	interfaceAddrs func() ([]net.Addr, error)
	lookupAddr     func(addr string) ([]string, error)
}

var defaultResolver = resolver{
	interfaceAddrs: net.InterfaceAddrs,
	lookupAddr:     net.LookupAddr,
}

// localIPs builds the local address list: the configured override, else the
// bind address, else every IPv4 interface address. Loopback is always
// included.
func (r resolver) localIPs(override []netip.Addr, bindIP netip.Addr) []netip.Addr {
	var ips []netip.Addr
	switch {
	case len(override) > 0:
		for _, ip := range override {
			if ip = ip.Unmap(); ip.Is4() {
				ips = append(ips, ip)
			}
		}
		return ips
	case bindIP.IsValid() && !bindIP.IsUnspecified():
		ips = append(ips, bindIP.Unmap())
	default:
		ips = r.interfaceIPv4s()
	}

	loopback := netip.AddrFrom4([4]byte{127, 0, 0, 1})
	for _, ip := range ips {
		if ip == loopback {
			return ips
		}
	}
	return append(ips, loopback)
}

func (r resolver) interfaceIPv4s() []netip.Addr {
	addrs, err := r.interfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []netip.Addr
	for _, a := range addrs {
		var raw net.IP
		switch v := a.(type) {
		case *net.IPNet:
			raw = v.IP
		case *net.IPAddr:
			raw = v.IP
		default:
			continue
		}
		ip, ok := netip.AddrFromSlice(raw)
		if !ok {
			continue
		}
		if ip = ip.Unmap(); ip.Is4() && !ip.IsLoopback() {
			ips = append(ips, ip)
		}
	}
	return ips
}

// hostName returns the first name any of ips reverse-resolves to, falling
// back to the dotted-decimal form of the first address.
func (r resolver) hostName(ips []netip.Addr) string {
	for _, ip := range ips {
		names, err := r.lookupAddr(ip.String())
		if err != nil {
			continue
		}
		for _, name := range names {
			if name = strings.TrimSuffix(name, "."); name != "" {
				return name
			}
		}
	}
	if len(ips) == 0 {
		return ""
	}
	return ips[0].String()
}
