//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package abort

func openPipe() (int, int, error) {
	return -1, -1, ErrUnsupportedPlatform
}

func writeSignal(fd int) error {
	return ErrUnsupportedPlatform
}

func readSignal(fd int) (bool, error) {
	return false, ErrUnsupportedPlatform
}

func closeFD(fd int) {}
