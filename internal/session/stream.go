package session

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/whist-client/internal/wsclient"
)

// roomStream follows one room's WebSocket until it ends or is cancelled.
// Every RoomEvent it emits comes before its single StreamClosed.
type roomStream struct {
	roomID string
	sender *wsclient.Sender
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *roomStream) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// stop cancels the stream and waits for its goroutines.
func (s *roomStream) stop() {
	s.cancel()
	<-s.done
}

// openStream subscribes to room id. The stream outlives the command that
// opened it; it ends on closeStream or when the server hangs up.
func (m *Machine) openStream(ctx context.Context, id string) {
	server := m.requireServer("openStream")
	m.closeStream()

	sender, receiver, err := server.OpenRoomStream(ctx, id)
	if err != nil {
		m.logger.Warn("room stream failed", zap.String("room", id), zap.Error(err))
		m.emit(StreamClosed{RoomID: id, Err: err})
		return
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &roomStream{roomID: id, sender: sender, cancel: cancel, done: make(chan struct{})}
	m.stream = s

	g, gctx := errgroup.WithContext(streamCtx)
	g.Go(func() error {
		defer cancel()
		return wsclient.Pump(gctx, receiver, func(msg json.RawMessage) {
			m.emit(RoomEvent{RoomID: id, Message: msg})
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = receiver.Close("leaving room")
		return nil
	})

	logger := m.logger
	emit := m.emit
	go func() {
		defer close(s.done)
		err := g.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			logger.Warn("room stream ended", zap.String("room", id), zap.Error(err))
		} else {
			logger.Debug("room stream closed", zap.String("room", id))
		}
		emit(StreamClosed{RoomID: id, Err: err})
	}()
}

func (m *Machine) closeStream() {
	if m.stream == nil {
		return
	}
	m.stream.stop()
	m.stream = nil
}
