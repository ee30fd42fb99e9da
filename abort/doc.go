// Package abort implements abort descriptors: a cross-goroutine signal channel
// whose receiving end is an OS handle that can be placed in a wait.Select set.
//
// A goroutine blocked in wait.Select on a socket set that includes Handle()
// is woken as soon as another goroutine calls SendAbortSignal. The woken
// goroutine consumes the signal with ReadSignallingByte (one signal) or
// ClearAbortSignal (all pending signals).
//
//	d := abort.New()
//	if err := d.Init(); err != nil {
//	    return err
//	}
//	defer d.Destroy()
//
//	// waiter
//	n, err := wait.Select([]int{sock, d.Handle()}, ready, wait.Infinite)
//
//	// any other goroutine
//	d.SendAbortSignal()
//
// A single Descriptors value may be shared by several transmitters; the
// transmitter that owns it is the one that calls Destroy.
package abort
