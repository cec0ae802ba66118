package engine

import (
	"errors"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/whist-client/pkg/types"
)

var ErrRoomFull = errors.New("room is full")
var ErrWrongPassword = errors.New("wrong password")
var ErrNotMember = errors.New("not a member of the room")
var ErrNotReady = errors.New("room not ready to start")
var ErrAlreadyStarted = errors.New("game already started")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Whist is played by four.
const (
	DefaultMinPlayer = 4
	DefaultMaxPlayer = 4
)

type Rules struct {
	MinPlayer int
	MaxPlayer int
}

// State is one room. Players are kept in join order.
type State struct {
	Name         string
	PasswordHash []byte
	Players      []string
	Rules        Rules
	Phase        types.RoomPhase

	Rubber int
	Game   int
	Hand   int
	Trick  int
}

type CommandType string

const (
	CmdJoin  CommandType = "Join"
	CmdLeave CommandType = "Leave"
	CmdStart CommandType = "Start"
)

/*
	CmdJoin  -> EvtPlayerJoined -> EvtPhaseChanged (when the room fills up to MinPlayer)
	CmdLeave -> EvtPlayerLeft   -> EvtPhaseChanged (when it drops below MinPlayer)
	CmdStart -> EvtGameStarted  -> EvtPhaseChanged
	A join by someone already seated checks the password and produces no events.
*/

type Command struct {
	Type     CommandType
	Player   string
	Password string
}

type EventType string

const (
	EvtPlayerJoined EventType = "PlayerJoined"
	EvtPlayerLeft   EventType = "PlayerLeft"
	EvtGameStarted  EventType = "GameStarted"
	EvtPhaseChanged EventType = "PhaseChanged"
)

type Event struct {
	Type   EventType
	Player string
	Phase  types.RoomPhase
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	var events []Event

	switch cmd.Type {
	case CmdJoin:
		if !checkPassword(s, cmd.Password) {
			return nil, s, ErrWrongPassword
		}
		if s.HasPlayer(cmd.Player) {
			return nil, s, nil
		}
		if s.Phase == types.PhasePlaying {
			return nil, s, ErrAlreadyStarted
		}
		if len(s.Players) >= s.Rules.MaxPlayer {
			return nil, s, ErrRoomFull
		}
		events = append(events, Event{Type: EvtPlayerJoined, Player: cmd.Player})

	case CmdLeave:
		if !s.HasPlayer(cmd.Player) {
			return nil, s, ErrNotMember
		}
		events = append(events, Event{Type: EvtPlayerLeft, Player: cmd.Player})

	case CmdStart:
		if !s.HasPlayer(cmd.Player) {
			return nil, s, ErrNotMember
		}
		if s.Phase == types.PhasePlaying {
			return nil, s, ErrAlreadyStarted
		}
		if s.Phase != types.PhaseReadyToStart {
			return nil, s, ErrNotReady
		}
		events = append(events, Event{Type: EvtGameStarted, Player: cmd.Player})

	default:
		return nil, s, ErrUnsupportedCommand
	}

	next := Reduce(s, events)
	if next.Phase != s.Phase {
		events = append(events, Event{Type: EvtPhaseChanged, Phase: next.Phase})
	}
	return events, next, nil
}

// Reduce replays events on top of s and returns the result. s is not modified.
func Reduce(s State, events []Event) State {
	s.Players = slices.Clone(s.Players)
	started := s.Phase == types.PhasePlaying

	for _, event := range events {
		switch event.Type {
		case EvtPlayerJoined:
			s.Players = append(s.Players, event.Player)
		case EvtPlayerLeft:
			s.Players = slices.DeleteFunc(s.Players, func(p string) bool { return p == event.Player })
		case EvtGameStarted:
			started = true
			s.Rubber, s.Game, s.Hand, s.Trick = 1, 1, 1, 1
		}
	}

	s.Phase = DerivePhase(len(s.Players), s.Rules, started)
	return s
}

func (s State) HasPlayer(name string) bool {
	return slices.Contains(s.Players, name)
}

func checkPassword(s State, password string) bool {
	if len(s.PasswordHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(password)) == nil
}
