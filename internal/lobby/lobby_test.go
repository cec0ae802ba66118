package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/whist-client/internal/engine"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

// helper: receive one message with a timeout so tests never hang
func recvMessage(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return types.ServerMessage{} // unreachable
	}
}

func recvNoMessage(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			// channel closed → no further messages possible
			return
		}
		t.Fatalf("expected no message within %v, but got: %+v", within, msg)
	case <-time.After(within):
	}
}

func newLobby(t *testing.T, min, max int, players ...string) *Lobby {
	t.Helper()
	init, err := engine.NewRoom("table", "", min, max)
	require.NoError(t, err)
	init.Players = players
	init.Phase = engine.DerivePhase(len(players), init.Rules, false)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewLobby(ctx, "r1", init, nil)
}

func TestLobby_Join_BroadcastsSnapshotAndVersionIncrements(t *testing.T) {
	l := newLobby(t, 2, 4, "ann")
	ctx := context.Background()

	out := make(chan types.ServerMessage, 2)
	l.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}

	first := recvMessage(t, out, 100*time.Millisecond)
	assert.Equal(t, "RoomSnapshot", first.Type)
	assert.Equal(t, 0, first.Version)
	require.NotNil(t, first.Room)
	assert.Len(t, first.Room.Players, 1)

	res, err := l.Apply(ctx, engine.Command{Type: engine.CmdJoin, Player: "bob"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, engine.ContainsEvent(res.Events, engine.EvtPlayerJoined))
	assert.Equal(t, types.PhaseReadyToStart, res.Info.Phase)

	next := recvMessage(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, types.PhaseReadyToStart, next.Room.Phase)
}

func TestLobby_RejectedCommandDoesNotBroadcast(t *testing.T) {
	l := newLobby(t, 2, 2, "ann", "bob")

	out := make(chan types.ServerMessage, 2)
	l.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvMessage(t, out, 100*time.Millisecond)

	res, err := l.Apply(context.Background(), engine.Command{Type: engine.CmdJoin, Player: "cat"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, engine.ErrRoomFull)

	recvNoMessage(t, out, 100*time.Millisecond)
}

func TestLobby_RejoinIsSilent(t *testing.T) {
	l := newLobby(t, 2, 4, "ann")

	out := make(chan types.ServerMessage, 2)
	l.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvMessage(t, out, 100*time.Millisecond)

	res, err := l.Apply(context.Background(), engine.Command{Type: engine.CmdJoin, Player: "ann"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Empty(t, res.Events)

	recvNoMessage(t, out, 100*time.Millisecond)
}

func TestLobby_ChatReachesEverySubscriber(t *testing.T) {
	l := newLobby(t, 2, 4, "ann", "bob")

	a := make(chan types.ServerMessage, 2)
	b := make(chan types.ServerMessage, 2)
	l.Inbox() <- Subscribe{ClientID: "a", Outbox: a}
	l.Inbox() <- Subscribe{ClientID: "b", Outbox: b}
	_ = recvMessage(t, a, 100*time.Millisecond)
	_ = recvMessage(t, b, 100*time.Millisecond)

	l.Inbox() <- Chat{From: "ann", Text: "gl hf"}

	for _, ch := range []chan types.ServerMessage{a, b} {
		msg := recvMessage(t, ch, 100*time.Millisecond)
		assert.Equal(t, "Chat", msg.Type)
		assert.Equal(t, "ann", msg.From)
		assert.Equal(t, "gl hf", msg.Text)
	}
}

func TestLobby_DropSlowClient(t *testing.T) {
	l := newLobby(t, 2, 4, "ann")

	// Room for the join snapshot only.
	out := make(chan types.ServerMessage, 1)
	l.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}

	_, err := l.Apply(context.Background(), engine.Command{Type: engine.CmdJoin, Player: "bob"})
	require.NoError(t, err)

	view, err := l.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, view.NumClients, "expected slow client to be dropped")
}

func TestLobby_Shutdown_ClosesOutboxes(t *testing.T) {
	l := newLobby(t, 2, 4)

	out := make(chan types.ServerMessage, 2)
	l.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvMessage(t, out, 100*time.Millisecond)

	l.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		assert.False(t, ok, "expected closed outbox")
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("outbox not closed after shutdown")
	}

	select {
	case <-l.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("lobby did not stop")
	}
	_, err := l.Apply(context.Background(), engine.Command{Type: engine.CmdJoin, Player: "bob"})
	assert.ErrorIs(t, err, ErrClosed)
}
