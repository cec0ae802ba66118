package engine

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/whist-client/pkg/types"
)

// NewRoom returns an empty room. Zero bounds take the defaults and an empty
// password leaves the room open.
func NewRoom(name, password string, minPlayer, maxPlayer int) (State, error) {
	if minPlayer <= 0 {
		minPlayer = DefaultMinPlayer
	}
	if maxPlayer <= 0 {
		maxPlayer = DefaultMaxPlayer
	}
	if minPlayer > maxPlayer {
		minPlayer = maxPlayer
	}

	s := State{
		Name:    name,
		Players: []string{},
		Rules:   Rules{MinPlayer: minPlayer, MaxPlayer: maxPlayer},
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return State{}, err
		}
		s.PasswordHash = hash
	}
	s.Phase = DerivePhase(0, s.Rules, false) // Ensure "lobby" shows up on create
	return s, nil
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func DerivePhase(players int, rules Rules, started bool) types.RoomPhase {
	if started {
		return types.PhasePlaying
	} else if players >= rules.MinPlayer {
		return types.PhaseReadyToStart
	} else {
		return types.PhaseLobby
	}
}

// Info renders s the way the room routes report it.
func Info(id string, s State) types.RoomInfo {
	players := make([]types.Player, 0, len(s.Players))
	for _, name := range s.Players {
		players = append(players, types.Player{Username: name})
	}
	return types.RoomInfo{
		ID:           id,
		Name:         s.Name,
		Password:     len(s.PasswordHash) > 0,
		Players:      players,
		MinPlayer:    s.Rules.MinPlayer,
		MaxPlayer:    s.Rules.MaxPlayer,
		Phase:        s.Phase,
		RubberNumber: s.Rubber,
		GameNumber:   s.Game,
		HandNumber:   s.Hand,
		TrickNumber:  s.Trick,
	}
}
