package transmitter

import "sync"

// State is the lifecycle state of a transmitter.
type State int

const (
	// StateUninitialized is the state before Init.
	StateUninitialized State = iota
	// StateInitialized is the state after Init and before Create.
	StateInitialized
	// StateCreated is the only state in which the transport is usable.
	StateCreated
	// StateDestroyed is the state after Destroy. Create may be called again.
	StateDestroyed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateCreated:
		return "created"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// RequireCreated returns the lifecycle error matching s, or nil when s is StateCreated.
func (s State) RequireCreated() error {
	switch s {
	case StateCreated:
		return nil
	case StateUninitialized:
		return ErrNotInitialized
	default:
		return ErrNotCreated
	}
}

// CanCreate returns the lifecycle error that prevents Create from running in s.
func (s State) CanCreate() error {
	switch s {
	case StateInitialized, StateDestroyed:
		return nil
	case StateUninitialized:
		return ErrNotInitialized
	default:
		return ErrAlreadyCreated
	}
}

// NewLocker returns a mutex when threadSafe is set and a no-op locker otherwise.
func NewLocker(threadSafe bool) sync.Locker {
	if threadSafe {
		return &sync.Mutex{}
	}
	return nopLocker{}
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}
