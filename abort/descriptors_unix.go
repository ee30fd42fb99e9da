//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package abort

import (
	"errors"

	"golang.org/x/sys/unix"
)

// signalByte is written once per abort signal.
const signalByte = '*'

func openPipe() (int, int, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return -1, -1, err
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return -1, -1, err
		}
	}
	return p[0], p[1], nil
}

func writeSignal(fd int) error {
	buf := []byte{signalByte}
	for {
		_, err := unix.Write(fd, buf)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil
		default:
			return err
		}
	}
}

// readSignal reads one byte and reports whether a signal was consumed.
func readSignal(fd int) (bool, error) {
	var buf [1]byte
	for {
		n, err := unix.Read(fd, buf[:])
		switch {
		case err == nil:
			return n == 1, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return false, nil
		default:
			return false, err
		}
	}
}

func closeFD(fd int) {
	_ = unix.Close(fd)
}
