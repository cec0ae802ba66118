package session

import "fmt"

type Stage int

const (
	Disconnected Stage = iota
	Connecting
	Connected
	LoggingIn
	RoomBrowsing
	RoomLobby
	InGame
)

func (s Stage) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case LoggingIn:
		return "logging in"
	case RoomBrowsing:
		return "room browsing"
	case RoomLobby:
		return "room lobby"
	case InGame:
		return "in game"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Sub refines LoggingIn and RoomBrowsing.
type Sub int

const (
	SubNone Sub = iota

	// LoggingIn
	SubPassword
	SubGithubDeviceWait
	SubGithubSwapping

	// RoomBrowsing
	SubLoading
	SubListed
	SubJoiningRoom
	SubCreatingRoom
	SubError
)

func (s Sub) String() string {
	switch s {
	case SubNone:
		return ""
	case SubPassword:
		return "password"
	case SubGithubDeviceWait:
		return "github device wait"
	case SubGithubSwapping:
		return "github swapping"
	case SubLoading:
		return "loading"
	case SubListed:
		return "listed"
	case SubJoiningRoom:
		return "joining room"
	case SubCreatingRoom:
		return "creating room"
	case SubError:
		return "error"
	default:
		return fmt.Sprintf("sub(%d)", int(s))
	}
}

// State is where the protocol stands. RoomID is the room being joined, sat
// in, or played in.
type State struct {
	Stage  Stage
	Sub    Sub
	RoomID string
}

func (s State) String() string {
	out := s.Stage.String()
	if s.Sub != SubNone {
		out += "/" + s.Sub.String()
	}
	if s.RoomID != "" {
		out += " [" + s.RoomID + "]"
	}
	return out
}

// StateViolation is the panic value raised when a command arrives without
// the state it depends on, e.g. SwapToken before any device code. Callers
// must issue commands in order; this is not a recoverable error.
type StateViolation struct {
	Command string
	Missing string
}

func (v *StateViolation) Error() string {
	return fmt.Sprintf("session: %s issued without %s", v.Command, v.Missing)
}
