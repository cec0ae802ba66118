// Package bridge connects a caller that polls once per frame with a goroutine
// that blocks on I/O. Each side holds a Worker: what one side sends, the other
// receives, in order, without either side ever blocking on the other.
package bridge

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPeerGone is returned by Send after the other side closed its Worker.
	ErrPeerGone = errors.New("bridge: peer gone")
	// ErrClosed is returned by Send after this side closed its Worker.
	ErrClosed = errors.New("bridge: worker closed")
)

// Status reports the outcome of a TryReceive.
type Status int

const (
	// Empty means nothing is pending yet.
	Empty Status = iota
	// Message means a value was returned.
	Message
	// Closed means the peer is gone and every message has been drained.
	Closed
)

func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Message:
		return "message"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Worker is one half of a crossed channel pair: it sends I and receives O.
type Worker[I, O any] struct {
	out       *queue[I]
	in        *queue[O]
	closeOnce sync.Once
}

// Pair returns two connected workers. Whatever a sends, b receives, and the
// other way round.
func Pair[I, O any]() (*Worker[I, O], *Worker[O, I]) {
	forward := newQueue[I]()
	backward := newQueue[O]()
	a := &Worker[I, O]{out: forward, in: backward}
	b := &Worker[O, I]{out: backward, in: forward}
	return a, b
}

// Spawn runs fn on a new goroutine with the crossed half of a new pair and
// returns the caller's half. The goroutine's half is closed when fn returns.
func Spawn[I, O any](ctx context.Context, fn func(context.Context, *Worker[O, I])) *Worker[I, O] {
	caller, task := Pair[I, O]()
	go func() {
		defer task.Close()
		fn(ctx, task)
	}()
	return caller
}

// Send enqueues msg for the peer. It never blocks.
func (w *Worker[I, O]) Send(msg I) error {
	return w.out.push(msg)
}

// TryReceive returns the next message if one is pending. It never blocks and
// is safe to call every frame. Once it reports Closed it keeps doing so.
func (w *Worker[I, O]) TryReceive() (O, Status) {
	return w.in.pop()
}

// Receive waits for the next message. The boolean is false when the peer has
// closed and everything was drained, or when ctx is done.
func (w *Worker[I, O]) Receive(ctx context.Context) (O, bool) {
	for {
		msg, status := w.in.pop()
		switch status {
		case Message:
			return msg, true
		case Closed:
			return msg, false
		}

		select {
		case <-w.in.signal:
		case <-ctx.Done():
			var zero O
			return zero, false
		}
	}
}

// Close drops this side. The peer drains what was already sent and then sees
// Closed; its further sends fail with ErrPeerGone.
func (w *Worker[I, O]) Close() {
	w.closeOnce.Do(func() {
		w.out.close()
		w.in.drop()
	})
}
