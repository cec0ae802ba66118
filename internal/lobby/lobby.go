// Package lobby runs one room of the dev server as an actor: it owns the
// room's engine state and fans snapshots and chat out to subscribers.
package lobby

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/engine"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// FromClient applies Cmd and answers on Reply, which must be buffered.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isLobbyMsg() {}

type Result struct {
	Events []engine.Event
	Info   types.RoomInfo
	Err    error
}

// Subscribe registers a room stream. The current snapshot is sent at once.
type Subscribe struct {
	ClientID string
	Outbox   chan types.ServerMessage // where this client wants to receive updates
}

func (Subscribe) isLobbyMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isLobbyMsg() {}

// Chat is relayed to every subscriber, the sender included.
type Chat struct {
	From string
	Text string
}

func (Chat) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Version    int
	NumClients int
	Info       types.RoomInfo
	State      engine.State
}

type Lobby struct {
	id      string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan types.ServerMessage
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, id string, initial engine.State, logger *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Lobby{
		id:      id,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		clients: make(map[string]chan types.ServerMessage),
		logger:  logger.With(zap.String("room", id)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) ID() string { return l.id }

// Close stops the lobby and closes every subscriber outbox.
func (l *Lobby) Close() { l.cancel() }

// Done is closed when the lobby starts shutting down.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Subscribe:
				l.clients[msg.ClientID] = msg.Outbox
				l.send(msg.ClientID, msg.Outbox, l.snapshot())

			case Unsubscribe:
				delete(l.clients, msg.ClientID)

			case FromClient:
				events, newState, err := engine.Apply(l.state, msg.Cmd)
				if err != nil {
					l.logger.Debug("command rejected", zap.String("cmd", string(msg.Cmd.Type)), zap.Error(err))
					msg.Reply <- Result{Info: l.info(), Err: err}
					break
				}
				l.state = newState
				if len(events) > 0 {
					l.version++
					l.broadcast(l.snapshot())
				}
				msg.Reply <- Result{Events: events, Info: l.info()}

			case Chat:
				l.broadcast(types.ServerMessage{Type: "Chat", From: msg.From, Text: msg.Text})

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Info:       l.info(),
					State:      l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) info() types.RoomInfo { return engine.Info(l.id, l.state) }

func (l *Lobby) snapshot() types.ServerMessage {
	info := l.info()
	return types.ServerMessage{Type: "RoomSnapshot", Version: l.version, Room: &info}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more updates
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(msg types.ServerMessage) {
	for id, ch := range l.clients {
		l.send(id, ch, msg)
	}
}

func (l *Lobby) send(id string, ch chan types.ServerMessage, msg types.ServerMessage) {
	select {
	case ch <- msg:
	default:
		// Client is slow/full - drop them.
		l.logger.Info("dropping slow subscriber", zap.String("client", id))
		close(ch)
		delete(l.clients, id)
	}
}

// Inbox exposes the inbox so the HTTP and WS layers can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) post(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply runs cmd through the lobby and waits for the outcome.
func (l *Lobby) Apply(ctx context.Context, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.post(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-l.ctx.Done():
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// View returns the lobby's current state.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.post(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
