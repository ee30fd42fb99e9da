package abort

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/rtptransport/wait"
)

var (
	// ErrAlreadyInitialized indicates Init was called on live descriptors
	ErrAlreadyInitialized = errors.New("abort descriptors already initialized")

	// ErrNotInitialized indicates the descriptors have not been initialized
	ErrNotInitialized = errors.New("abort descriptors not initialized")

	// ErrUnsupportedPlatform indicates the platform cannot create a signalling pipe
	ErrUnsupportedPlatform = errors.New("abort descriptors not supported on this platform")
)

// Descriptors is a connected pair of OS handles used to interrupt a
// goroutine blocked in wait.Select. It is safe for concurrent use.
type Descriptors struct {
	mu          sync.RWMutex
	readFD      int
	writeFD     int
	initialized bool
}

// New returns uninitialized descriptors.
func New() *Descriptors {
	return &Descriptors{readFD: -1, writeFD: -1}
}

// Init creates the signalling pipe.
func (d *Descriptors) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return ErrAlreadyInitialized
	}

	r, w, err := openPipe()
	if err != nil {
		return fmt.Errorf("create abort pipe: %w", err)
	}
	d.readFD, d.writeFD = r, w
	d.initialized = true
	return nil
}

// Destroy releases both handles. It does nothing if Init was never called.
func (d *Descriptors) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}
	closeFD(d.readFD)
	closeFD(d.writeFD)
	d.readFD, d.writeFD = -1, -1
	d.initialized = false
}

// IsInitialized reports whether Init succeeded and Destroy has not been called since.
func (d *Descriptors) IsInitialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// Handle returns the readable end to include in a wait.Select set, or -1.
func (d *Descriptors) Handle() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readFD
}

// SendAbortSignal wakes one waiter. A full pipe already holds a pending
// signal, so the write is dropped rather than reported.
func (d *Descriptors) SendAbortSignal() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return ErrNotInitialized
	}
	if err := writeSignal(d.writeFD); err != nil {
		return fmt.Errorf("send abort signal: %w", err)
	}
	return nil
}

// ReadSignallingByte consumes exactly one pending signal, if any.
func (d *Descriptors) ReadSignallingByte() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return ErrNotInitialized
	}
	if _, err := readSignal(d.readFD); err != nil {
		return fmt.Errorf("read abort signal: %w", err)
	}
	return nil
}

// ClearAbortSignal drains every pending signal. It never blocks and may be
// called any number of times.
func (d *Descriptors) ClearAbortSignal() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return ErrNotInitialized
	}

	handles := []int{d.readFD}
	ready := make([]bool, 1)
	for {
		n, err := wait.Select(handles, ready, 0)
		if err != nil {
			return fmt.Errorf("clear abort signal: %w", err)
		}
		if n == 0 || !ready[0] {
			return nil
		}
		got, err := readSignal(d.readFD)
		if err != nil {
			return fmt.Errorf("clear abort signal: %w", err)
		}
		if !got {
			return nil
		}
	}
}
