//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package sockopt

// pendingBytesRequest is FIONREAD, _IOR('f', 127, int), which x/sys does
// not export for these platforms.
const pendingBytesRequest = 0x4004667f
