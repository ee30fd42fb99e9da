package sockopt

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrUnsupportedPlatform is returned on platforms without the required socket calls.
var ErrUnsupportedPlatform = errors.New("socket options not supported on this platform")

// Handle returns the OS handle behind c. The handle stays owned by c and must
// not be closed by the caller.
func Handle(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("syscall conn: %w", err)
	}
	fd := -1
	if err := raw.Control(func(h uintptr) {
		fd = int(h)
	}); err != nil {
		return -1, fmt.Errorf("control: %w", err)
	}
	return fd, nil
}
