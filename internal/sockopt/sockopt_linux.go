//go:build linux

package sockopt

import "golang.org/x/sys/unix"

// pendingBytesRequest is the ioctl reporting queued input bytes.
const pendingBytesRequest = unix.SIOCINQ
