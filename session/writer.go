package session

import "sync"

// stateWriter applies writes of one boolean state in call order, one at a
// time. While a write is in flight only the newest pending value is kept,
// so a slow earlier write can never land after a later one.
type stateWriter struct {
	apply func(value bool)

	mu      sync.Mutex
	pending bool
	dirty   bool
	running bool
	done    chan struct{}
}

func newStateWriter(apply func(value bool)) *stateWriter {
	return &stateWriter{apply: apply}
}

// Set queues value and returns without waiting for it to be applied.
func (w *stateWriter) Set(value bool) {
	w.mu.Lock()
	w.pending, w.dirty = value, true
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	done := make(chan struct{})
	w.done = done
	w.mu.Unlock()

	go w.drain(done)
}

func (w *stateWriter) drain(done chan struct{}) {
	defer close(done)
	for {
		w.mu.Lock()
		if !w.dirty {
			w.running = false
			w.mu.Unlock()
			return
		}
		value := w.pending
		w.dirty = false
		w.mu.Unlock()

		w.apply(value)
	}
}

// Flush blocks until every queued value has been applied.
func (w *stateWriter) Flush() {
	w.mu.Lock()
	running, done := w.running, w.done
	w.mu.Unlock()
	if running {
		<-done
	}
}
