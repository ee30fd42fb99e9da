//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package sockopt

import (
	"errors"
	"fmt"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"
)

// PendingBytes returns the number of bytes that can be read from c without
// blocking. For datagram sockets this is the size of the next datagram.
func PendingBytes(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("syscall conn: %w", err)
	}
	var n int
	var ioctlErr error
	if err := raw.Control(func(fd uintptr) {
		n, ioctlErr = unix.IoctlGetInt(int(fd), pendingBytesRequest)
	}); err != nil {
		return 0, err
	}
	if ioctlErr != nil {
		return 0, fmt.Errorf("pending bytes ioctl: %w", ioctlErr)
	}
	return n, nil
}

// RecvFrom reads one datagram from c into buf without blocking. ok is false
// when no datagram was queued. Sources other than IPv4 yield an invalid
// AddrPort.
func RecvFrom(c syscall.Conn, buf []byte) (n int, from netip.AddrPort, ok bool, err error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, netip.AddrPort{}, false, fmt.Errorf("syscall conn: %w", err)
	}
	var sa unix.Sockaddr
	var recvErr error
	readErr := raw.Read(func(fd uintptr) bool {
		for {
			n, sa, recvErr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
			if recvErr != unix.EINTR {
				return true
			}
		}
	})
	if readErr != nil {
		return 0, netip.AddrPort{}, false, readErr
	}
	if errors.Is(recvErr, unix.EAGAIN) || errors.Is(recvErr, unix.EWOULDBLOCK) {
		return 0, netip.AddrPort{}, false, nil
	}
	if recvErr != nil {
		return 0, netip.AddrPort{}, false, fmt.Errorf("recvfrom: %w", recvErr)
	}
	if sa4, isV4 := sa.(*unix.SockaddrInet4); isV4 {
		from = netip.AddrPortFrom(netip.AddrFrom4(sa4.Addr), uint16(sa4.Port))
	}
	return n, from, true, nil
}

// Read reads whatever is queued on a stream socket into buf without
// blocking. A zero count with a nil error means the peer closed the stream.
func Read(c syscall.Conn, buf []byte) (n int, ok bool, err error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, false, fmt.Errorf("syscall conn: %w", err)
	}
	var recvErr error
	readErr := raw.Read(func(fd uintptr) bool {
		for {
			n, _, recvErr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
			if recvErr != unix.EINTR {
				return true
			}
		}
	})
	if readErr != nil {
		return 0, false, readErr
	}
	if errors.Is(recvErr, unix.EAGAIN) || errors.Is(recvErr, unix.EWOULDBLOCK) {
		return 0, false, nil
	}
	if recvErr != nil {
		return 0, false, fmt.Errorf("recv: %w", recvErr)
	}
	return n, true, nil
}

// ReuseAddr is a net.ListenConfig Control function that sets SO_REUSEADDR
// before the socket is bound.
func ReuseAddr(network, address string, c syscall.RawConn) error {
	var optErr error
	if err := c.Control(func(fd uintptr) {
		optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	if optErr != nil {
		return fmt.Errorf("SO_REUSEADDR on %s %s: %w", network, address, optErr)
	}
	return nil
}

// BufferSizes returns the kernel receive and send buffer sizes of c.
func BufferSizes(c syscall.Conn) (recv, send int, err error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, 0, fmt.Errorf("syscall conn: %w", err)
	}
	var recvErr, sendErr error
	if err := raw.Control(func(fd uintptr) {
		recv, recvErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
		send, sendErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
	}); err != nil {
		return 0, 0, err
	}
	if recvErr != nil {
		return 0, 0, fmt.Errorf("SO_RCVBUF: %w", recvErr)
	}
	if sendErr != nil {
		return 0, 0, fmt.Errorf("SO_SNDBUF: %w", sendErr)
	}
	return recv, send, nil
}
