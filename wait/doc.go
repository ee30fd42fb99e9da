// Package wait blocks on a set of readable OS handles with a timeout.
//
// Select is the single suspension point of every transmitter backend: the
// backend places its sockets and the read handle of its abort descriptors in
// one handle set and waits until at least one of them becomes readable.
//
//	ready := make([]bool, len(handles))
//	n, err := wait.Select(handles, ready, 250*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	if n == 0 {
//	    // timed out or interrupted
//	}
//
// A negative timeout waits indefinitely. An interrupted system call is
// reported as zero ready handles and no error so that callers simply retry on
// their next iteration.
package wait
