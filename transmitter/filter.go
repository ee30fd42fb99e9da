package transmitter

import (
	"fmt"
	"net/netip"
	"slices"
)

// portFilter records the listed ports of one source host. When allPorts is
// set the listed ports are exceptions rather than members.
type portFilter struct {
	allPorts bool
	ports    []uint16
}

func (f *portFilter) has(port uint16) bool {
	return slices.Contains(f.ports, port)
}

func (f *portFilter) remove(port uint16) {
	f.ports = slices.DeleteFunc(f.ports, func(p uint16) bool { return p == port })
}

// matches reports whether (host, port) is a listed source.
func (f *portFilter) matches(port uint16) bool {
	if f.allPorts {
		return !f.has(port)
	}
	return f.has(port)
}

// AcceptIgnoreTable is the per-source filter consulted in AcceptListed and
// IgnoreListed receive modes. Port zero means "every port of this host".
// It is not synchronized.
type AcceptIgnoreTable struct {
	entries map[netip.Addr]*portFilter
}

// NewAcceptIgnoreTable returns an empty table.
func NewAcceptIgnoreTable() *AcceptIgnoreTable {
	return &AcceptIgnoreTable{entries: make(map[netip.Addr]*portFilter)}
}

// Add lists (ip, port). Adding port zero lists every port of ip and drops
// any exceptions. Adding a specific port to a host listed with every port
// lifts an earlier exception for that port.
func (t *AcceptIgnoreTable) Add(ip netip.Addr, port uint16) error {
	f, ok := t.entries[ip]
	if !ok {
		f = &portFilter{}
		t.entries[ip] = f
		if port == 0 {
			f.allPorts = true
		} else {
			f.ports = append(f.ports, port)
		}
		return nil
	}

	switch {
	case port == 0:
		f.allPorts = true
		f.ports = nil
	case f.allPorts:
		if !f.has(port) {
			return fmt.Errorf("%w: %s port %d", ErrAlreadyExists, ip, port)
		}
		f.remove(port)
	default:
		if f.has(port) {
			return fmt.Errorf("%w: %s port %d", ErrAlreadyExists, ip, port)
		}
		f.ports = append(f.ports, port)
	}
	return nil
}

// Delete unlists (ip, port). Deleting port zero unlists every port of ip.
// Deleting a specific port from a host listed with every port records an
// exception for that port.
func (t *AcceptIgnoreTable) Delete(ip netip.Addr, port uint16) error {
	f, ok := t.entries[ip]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEntry, ip)
	}

	switch {
	case port == 0:
		f.allPorts = false
		f.ports = nil
	case f.allPorts:
		if f.has(port) {
			return fmt.Errorf("%w: %s port %d already excluded", ErrNoSuchEntry, ip, port)
		}
		f.ports = append(f.ports, port)
	default:
		if !f.has(port) {
			return fmt.Errorf("%w: %s port %d", ErrNoSuchEntry, ip, port)
		}
		f.remove(port)
	}

	if !f.allPorts && len(f.ports) == 0 {
		delete(t.entries, ip)
	}
	return nil
}

// Clear removes every entry.
func (t *AcceptIgnoreTable) Clear() {
	clear(t.entries)
}

// Len returns the number of listed hosts.
func (t *AcceptIgnoreTable) Len() int {
	return len(t.entries)
}

// Listed reports whether (ip, port) is covered by the table.
func (t *AcceptIgnoreTable) Listed(ip netip.Addr, port uint16) bool {
	f, ok := t.entries[ip]
	return ok && f.matches(port)
}

// ShouldAccept decides whether a packet from (ip, port) is admitted under mode.
// The result depends only on mode and the table contents.
func (t *AcceptIgnoreTable) ShouldAccept(mode ReceiveMode, ip netip.Addr, port uint16) bool {
	switch mode {
	case AcceptListed:
		return t.Listed(ip, port)
	case IgnoreListed:
		return !t.Listed(ip, port)
	default:
		return true
	}
}
