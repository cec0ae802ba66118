package bridge

import "sync"

// queue is an unbounded FIFO with a single consumer. The producer side can be
// closed (no more messages) and the consumer side can be dropped (nobody reads).
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	closed  bool
	dropped bool
	signal  chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{signal: make(chan struct{}, 1)}
}

func (q *queue[T]) push(v T) error {
	q.mu.Lock()
	switch {
	case q.closed:
		q.mu.Unlock()
		return ErrClosed
	case q.dropped:
		q.mu.Unlock()
		return ErrPeerGone
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *queue[T]) pop() (T, Status) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head < len(q.items) {
		v := q.items[q.head]
		q.items[q.head] = zero
		q.head++
		if q.head == len(q.items) {
			// Reset so the backing array is reused instead of growing forever.
			q.items = q.items[:0]
			q.head = 0
		}
		return v, Message
	}
	if q.closed || q.dropped {
		return zero, Closed
	}
	return zero, Empty
}

func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *queue[T]) drop() {
	q.mu.Lock()
	q.dropped = true
	clear(q.items[q.head:])
	q.items = nil
	q.head = 0
	q.mu.Unlock()
}

func (q *queue[T]) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
