package wait

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrHandleCountMismatch indicates the ready slice does not match the handle slice
	ErrHandleCountMismatch = errors.New("ready flags do not match handle count")

	// ErrUnsupportedPlatform indicates the platform has no readiness primitive
	ErrUnsupportedPlatform = errors.New("multiplexed wait not supported on this platform")
)

// Infinite can be passed as timeout to wait until a handle becomes ready.
const Infinite time.Duration = -1

// Select waits until at least one of handles is ready for reading or the
// timeout elapses. ready must have the same length as handles; on return
// ready[i] reports whether handles[i] became readable. The number of ready
// handles is returned.
func Select(handles []int, ready []bool, timeout time.Duration) (int, error) {
	if len(ready) != len(handles) {
		return 0, ErrHandleCountMismatch
	}
	for i := range ready {
		ready[i] = false
	}
	return poll(handles, ready, timeout)
}

// timeoutMillis converts a duration to the millisecond argument of poll(2),
// rounding up so that short positive timeouts never turn into busy polls.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
