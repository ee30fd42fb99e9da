//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package wait

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const readableEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR

func poll(handles []int, ready []bool, timeout time.Duration) (int, error) {
	fds := make([]unix.PollFd, len(handles))
	for i, h := range handles {
		fds[i] = unix.PollFd{Fd: int32(h), Events: unix.POLLIN}
	}

	if _, err := unix.Poll(fds, timeoutMillis(timeout)); err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}

	count := 0
	for i := range fds {
		if fds[i].Revents&readableEvents != 0 {
			ready[i] = true
			count++
		}
	}
	return count, nil
}
