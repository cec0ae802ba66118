package session

import (
	"context"

	"github.com/DoyleJ11/whist-client/internal/bridge"
)

// Run feeds commands from w into m until the peer closes or ctx is done.
// Every command is answered through w in the order it arrived.
func Run(ctx context.Context, m *Machine, w *bridge.Worker[Response, Command]) {
	defer m.Close()
	for {
		cmd, ok := w.Receive(ctx)
		if !ok {
			return
		}
		for _, res := range m.Handle(ctx, cmd) {
			if err := w.Send(res); err != nil {
				return
			}
		}
	}
}

// Handle is the frame loop's end of a spawned session. None of its methods
// block.
type Handle struct {
	protocol *bridge.Worker[Command, Response]
	events   *bridge.Worker[struct{}, Event]
	cancel   context.CancelFunc
}

// Spawn starts a session on its own goroutine.
func Spawn(ctx context.Context, cfg Config) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	events, sink := bridge.Pair[struct{}, Event]()
	emit := func(ev Event) { _ = sink.Send(ev) }

	protocol := bridge.Spawn[Command, Response](ctx, func(ctx context.Context, w *bridge.Worker[Response, Command]) {
		defer sink.Close()
		Run(ctx, NewMachine(cfg, emit), w)
	})
	return &Handle{protocol: protocol, events: events, cancel: cancel}
}

// Send queues a command.
func (h *Handle) Send(cmd Command) error { return h.protocol.Send(cmd) }

// Poll returns the next response, if any.
func (h *Handle) Poll() (Response, bridge.Status) { return h.protocol.TryReceive() }

// PollEvent returns the next room stream event, if any.
func (h *Handle) PollEvent() (Event, bridge.Status) { return h.events.TryReceive() }

// Close stops the session and abandons any command in flight. Nothing can be
// polled afterwards.
func (h *Handle) Close() {
	h.cancel()
	h.protocol.Close()
	h.events.Close()
}
