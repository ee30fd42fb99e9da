//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package wait

import "time"

func poll(handles []int, ready []bool, timeout time.Duration) (int, error) {
	return 0, ErrUnsupportedPlatform
}
