//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package sockopt

import (
	"net/netip"
	"syscall"
)

// PendingBytes is not available on this platform.
func PendingBytes(c syscall.Conn) (int, error) {
	return 0, ErrUnsupportedPlatform
}

// RecvFrom is not available on this platform.
func RecvFrom(c syscall.Conn, buf []byte) (int, netip.AddrPort, bool, error) {
	return 0, netip.AddrPort{}, false, ErrUnsupportedPlatform
}

// Read is not available on this platform.
func Read(c syscall.Conn, buf []byte) (int, bool, error) {
	return 0, false, ErrUnsupportedPlatform
}

// ReuseAddr is not available on this platform.
func ReuseAddr(network, address string, c syscall.RawConn) error {
	return ErrUnsupportedPlatform
}

// BufferSizes is not available on this platform.
func BufferSizes(c syscall.Conn) (int, int, error) {
	return 0, 0, ErrUnsupportedPlatform
}
