package transmitter

import (
	"sync"
	"time"
)

// TimeProvider stamps received packets with their arrival time.
type TimeProvider interface {
	Now() time.Time
}

// TimeProviderFunc adapts a function to TimeProvider.
type TimeProviderFunc func() time.Time

// Now calls f.
func (f TimeProviderFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock TimeProvider = TimeProviderFunc(time.Now)

var (
	clockMu      sync.RWMutex
	defaultClock = SystemClock
)

// SetDefaultTimeProvider replaces the clock used by transmitters created
// without one. Nil restores SystemClock. Transmitters already created keep
// the clock they captured.
func SetDefaultTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = SystemClock
	}
	clockMu.Lock()
	defaultClock = tp
	clockMu.Unlock()
}

// GetTimeProvider returns tp, or the package default when tp is nil.
func GetTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	clockMu.RLock()
	defer clockMu.RUnlock()
	return defaultClock
}
