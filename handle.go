package driftq

// Handle observes the settlement of one task. It is handed to the timeout
// handler so the host can keep watching a straggler after its drift was
// evicted from the queue.
type Handle struct {
	done chan struct{}
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// settle records the task outcome and releases Done. Called exactly once,
// by the goroutine running the worker.
func (h *Handle) settle(err error) {
	h.err = err
	close(h.done)
}

// Done returns a channel closed when the task has settled, successfully or
// not. Eviction from the queue does not close it; only the worker returning
// does.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task's outcome. It must only be called after Done is
// closed; before settlement the result is meaningless.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
