package client

import "sync"

// eventQueue runs application listeners in arrival order on one goroutine,
// away from the read loop. Listeners may then issue correlated calls whose
// responses the read loop still delivers.
type eventQueue struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

// push appends fn without blocking the caller.
func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}

	fn := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]

	return fn
}

// run drains the queue until done is closed. Work still queued at that
// point is dropped.
func (q *eventQueue) run(done <-chan struct{}) {
	for {
		select {
		case <-q.wake:
		case <-done:
			return
		}

		for fn := q.pop(); fn != nil; fn = q.pop() {
			select {
			case <-done:
				return
			default:
			}

			fn()
		}
	}
}
