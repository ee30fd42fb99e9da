package udpv4

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/opd-ai/rtptransport/internal/sockopt"
	"github.com/opd-ai/rtptransport/transmitter"
)

// boundSocket is a socket bound to a local port.
type boundSocket interface {
	Port() uint16
	Close() error
}

// bindFunc binds a new socket to port, zero meaning any free port.
type bindFunc func(port uint16) (boundSocket, error)

// udpSocket adapts *net.UDPConn to boundSocket.
type udpSocket struct {
	*net.UDPConn
}

func (s udpSocket) Port() uint16 {
	return s.LocalAddr().(*net.UDPAddr).AddrPort().Port()
}

// udpBinder returns a bindFunc opening IPv4 UDP sockets on ip.
func udpBinder(ip netip.Addr, reuse bool) bindFunc {
	lc := net.ListenConfig{}
	if reuse {
		lc.Control = sockopt.ReuseAddr
	}
	if !ip.IsValid() {
		ip = netip.IPv4Unspecified()
	}
	return func(port uint16) (boundSocket, error) {
		addr := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
		pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
		if err != nil {
			return nil, transmitter.NewOpError("bind", addr, err)
		}
		return udpSocket{pc.(*net.UDPConn)}, nil
	}
}

// partnerPort returns the other port of the even/odd pair containing port.
func partnerPort(port uint16) uint16 {
	if port%2 == 0 {
		return port + 1
	}
	return port - 1
}

// selectPorts binds a data and control socket on consecutive ports with the
// lower port even, retrying with fresh ephemeral ports. With mux a single
// socket is returned as both data and control; it must have an even port
// unless allowOdd is set.
func selectPorts(bind bindFunc, mux, allowOdd bool) (data, control boundSocket, attempts int, err error) {
	for attempts = 1; attempts <= maxPortAttempts; attempts++ {
		first, err := bind(0)
		if err != nil {
			return nil, nil, attempts, fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err)
		}
		port := first.Port()

		if mux {
			if port%2 == 0 || allowOdd {
				return first, first, attempts, nil
			}
			first.Close()
			continue
		}

		partner := partnerPort(port)
		second, err := bind(partner)
		if err != nil {
			first.Close()
			continue
		}

		low, high := first, second
		if partner < port {
			low, high = second, first
		}
		if low.Port()%2 != 0 || high.Port() != low.Port()+1 {
			first.Close()
			second.Close()
			continue
		}
		return low, high, attempts, nil
	}
	return nil, nil, maxPortAttempts, transmitter.ErrTooManyPortAttempts
}

// selectDataPort binds a single socket with an even port, or any port when
// allowOdd is set.
func selectDataPort(bind bindFunc, allowOdd bool) (boundSocket, int, error) {
	data, _, attempts, err := selectPorts(bind, true, allowOdd)
	return data, attempts, err
}

// bindPorts binds the data socket to portBase and the control socket to
// controlPort, or reuses the data socket when mux is set.
func bindPorts(bind bindFunc, portBase, controlPort uint16, mux, allowOdd bool) (data, control boundSocket, err error) {
	if portBase%2 != 0 && !allowOdd {
		return nil, nil, transmitter.ErrPortBaseNotEven
	}
	data, err = bind(portBase)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err)
	}
	if mux {
		return data, data, nil
	}
	if controlPort == 0 {
		controlPort = portBase + 1
	}
	control, err = bind(controlPort)
	if err != nil {
		data.Close()
		return nil, nil, fmt.Errorf("%w: %w", transmitter.ErrSocketCreation, err)
	}
	return data, control, nil
}
