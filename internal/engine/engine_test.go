package engine

import (
	"errors"
	"testing"

	"github.com/DoyleJ11/whist-client/pkg/types"
)

func newRoom(t *testing.T, password string, min, max int, players ...string) State {
	t.Helper()
	s, err := NewRoom("table", password, min, max)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	s.Players = append(s.Players, players...)
	s.Phase = DerivePhase(len(s.Players), s.Rules, false)
	return s
}

func containsEvent(events []Event, eventType EventType) bool {
	return ContainsEvent(events, eventType)
}

func TestJoin(t *testing.T) {
	cases := []struct {
		name    string
		setup   State
		cmd     Command
		wantErr error
		joined  bool
	}{
		{
			name:   "open room accepts anyone",
			setup:  newRoom(t, "", 2, 4),
			cmd:    Command{Type: CmdJoin, Player: "ann"},
			joined: true,
		},
		{
			name:   "right password",
			setup:  newRoom(t, "hunter2", 2, 4),
			cmd:    Command{Type: CmdJoin, Player: "ann", Password: "hunter2"},
			joined: true,
		},
		{
			name:    "wrong password",
			setup:   newRoom(t, "hunter2", 2, 4),
			cmd:     Command{Type: CmdJoin, Player: "ann", Password: "hunter3"},
			wantErr: ErrWrongPassword,
		},
		{
			name:    "full room",
			setup:   newRoom(t, "", 2, 2, "ann", "bob"),
			cmd:     Command{Type: CmdJoin, Player: "cat"},
			wantErr: ErrRoomFull,
		},
		{
			name:  "already seated is a no-op",
			setup: newRoom(t, "", 2, 2, "ann", "bob"),
			cmd:   Command{Type: CmdJoin, Player: "bob"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, tc.cmd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want err %v, got %v", tc.wantErr, err)
			}
			if got := containsEvent(events, EvtPlayerJoined); got != tc.joined {
				t.Fatalf("PlayerJoined: want %v, got %v (%+v)", tc.joined, got, events)
			}
			if tc.joined && !next.HasPlayer(tc.cmd.Player) {
				t.Fatalf("expected %s seated, players=%v", tc.cmd.Player, next.Players)
			}
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := newRoom(t, "", 2, 4, "ann")
	_, next, err := Apply(s, Command{Type: CmdJoin, Player: "bob"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.Players) != 1 {
		t.Fatalf("input players changed: %v", s.Players)
	}
	if len(next.Players) != 2 {
		t.Fatalf("want 2 players, got %v", next.Players)
	}
}

func TestPhaseFollowsPlayerCount(t *testing.T) {
	s := newRoom(t, "", 2, 4, "ann")
	if s.Phase != types.PhaseLobby {
		t.Fatalf("want lobby, got %s", s.Phase)
	}

	events, s, err := Apply(s, Command{Type: CmdJoin, Player: "bob"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Phase != types.PhaseReadyToStart || !containsEvent(events, EvtPhaseChanged) {
		t.Fatalf("want ready_to_start with PhaseChanged, got %s %+v", s.Phase, events)
	}

	events, s, err = Apply(s, Command{Type: CmdLeave, Player: "ann"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Phase != types.PhaseLobby || !containsEvent(events, EvtPhaseChanged) {
		t.Fatalf("want lobby with PhaseChanged, got %s %+v", s.Phase, events)
	}
}

func TestStart(t *testing.T) {
	cases := []struct {
		name    string
		setup   State
		player  string
		wantErr error
	}{
		{name: "not enough players", setup: newRoom(t, "", 2, 4, "ann"), player: "ann", wantErr: ErrNotReady},
		{name: "outsider", setup: newRoom(t, "", 2, 4, "ann", "bob"), player: "cat", wantErr: ErrNotMember},
		{name: "ready", setup: newRoom(t, "", 2, 4, "ann", "bob"), player: "bob"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, Command{Type: CmdStart, Player: tc.player})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want err %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				return
			}
			if !containsEvent(events, EvtGameStarted) || next.Phase != types.PhasePlaying {
				t.Fatalf("want playing, got %s %+v", next.Phase, events)
			}
			if next.Rubber != 1 || next.Trick != 1 {
				t.Fatalf("counters not reset: %+v", next)
			}
		})
	}
}

func TestJoinAfterStart(t *testing.T) {
	s := newRoom(t, "", 2, 4, "ann", "bob")
	_, s, err := Apply(s, Command{Type: CmdStart, Player: "ann"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, _, err := Apply(s, Command{Type: CmdJoin, Player: "cat"}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("want ErrAlreadyStarted, got %v", err)
	}
	if _, _, err := Apply(s, Command{Type: CmdJoin, Player: "ann"}); err != nil {
		t.Fatalf("seated player rejoining: %v", err)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	_, _, err := Apply(newRoom(t, "", 2, 4), Command{Type: "Deal"})
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("want ErrUnsupportedCommand, got %v", err)
	}
}

func TestNewRoom_Bounds(t *testing.T) {
	s := newRoom(t, "", 0, 0)
	if s.Rules.MinPlayer != DefaultMinPlayer || s.Rules.MaxPlayer != DefaultMaxPlayer {
		t.Fatalf("defaults not applied: %+v", s.Rules)
	}
	s = newRoom(t, "", 6, 3)
	if s.Rules.MinPlayer != 3 {
		t.Fatalf("min above max not clamped: %+v", s.Rules)
	}
}

func TestInfo(t *testing.T) {
	s := newRoom(t, "pw", 2, 4, "ann", "bob")
	info := Info("r1", s)
	if !info.Password || info.ID != "r1" || len(info.Players) != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Players[0].Username != "ann" || info.Players[1].Username != "bob" {
		t.Fatalf("unexpected players: %+v", info.Players)
	}
}
