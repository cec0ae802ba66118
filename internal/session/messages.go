package session

import (
	"encoding/json"

	"github.com/DoyleJ11/whist-client/internal/api"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

// Command is sent by the frame loop to the protocol goroutine.
type Command interface{ isCommand() }

// Connect checks the server at URL and makes it the session's server.
type Connect struct{ URL string }

type Login struct {
	Username string
	Password string
}

// GithubAuthRequest starts a GitHub device flow. An empty ClientID uses the
// configured one.
type GithubAuthRequest struct{ ClientID string }

// SwapToken trades a confirmed device code for a session token. An empty
// DeviceCode uses the one from the last GithubAuthRequest.
type SwapToken struct{ DeviceCode string }

type UserCreate struct {
	Username string
	Password string
}

type GetRoomList struct{}

type JoinRoom struct {
	ID       string
	Password string
}

type CreateRoom struct {
	Name      string
	Password  string
	MinPlayer int
	MaxPlayer int
}

// ReconnectRoom asks the server whether we are still in a room.
type ReconnectRoom struct{}

// GetRoomInfo fetches room ID, or the current room when ID is empty.
type GetRoomInfo struct{ ID string }

// StartRoom starts the game in the current room.
type StartRoom struct{}

// SendRoomMessage writes Message as JSON on the current room stream.
type SendRoomMessage struct{ Message any }

// Disconnect drops the server, token, room and stream.
type Disconnect struct{}

func (Connect) isCommand()           {}
func (Login) isCommand()             {}
func (GithubAuthRequest) isCommand() {}
func (SwapToken) isCommand()         {}
func (UserCreate) isCommand()        {}
func (GetRoomList) isCommand()       {}
func (JoinRoom) isCommand()          {}
func (CreateRoom) isCommand()        {}
func (ReconnectRoom) isCommand()     {}
func (GetRoomInfo) isCommand()       {}
func (StartRoom) isCommand()         {}
func (SendRoomMessage) isCommand()   {}
func (Disconnect) isCommand()        {}

// Response is sent back to the frame loop. Err is nil on success.
type Response interface{ isResponse() }

type ConnectResult struct {
	Info api.ServerInfo
	Err  error
}

// LoginResult answers Login, GithubAuthRequest and SwapToken. DeviceFlow is
// set while the user still has to confirm a device code.
type LoginResult struct {
	DeviceFlow *api.DeviceCode
	Err        error
}

// Waiting reports whether the login waits for the user to confirm a device code.
func (r LoginResult) Waiting() bool { return r.Err == nil && r.DeviceFlow != nil }

type UserCreateResult struct {
	UserID string
	Err    error
}

type RoomListResult struct {
	Rooms []string
	Err   error
}

type RoomJoinResult struct {
	RoomID string
	Status types.JoinStatus
	Err    error
}

// Outcome is what the reconnect probe decided.
type Outcome int

const (
	// OutcomeNotJoined: no room to resume; the room list follows.
	OutcomeNotJoined Outcome = iota
	// OutcomeLobby: back in the room without asking for anything.
	OutcomeLobby
	// OutcomeJoinWindow: the room needs its password again before rejoining.
	OutcomeJoinWindow
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLobby:
		return "lobby"
	case OutcomeJoinWindow:
		return "join window"
	default:
		return "not joined"
	}
}

type RoomReconnectResult struct {
	Outcome Outcome
	RoomID  string
	Err     error
}

type RoomCreateResult struct {
	RoomID string
	Err    error
}

type RoomInfoResult struct {
	Info types.RoomInfo
	Err  error
}

type RoomStartResult struct {
	RoomID string
	Err    error
}

type RoomMessageResult struct {
	Err error
}

type DisconnectResult struct{}

func (ConnectResult) isResponse()       {}
func (LoginResult) isResponse()         {}
func (UserCreateResult) isResponse()    {}
func (RoomListResult) isResponse()      {}
func (RoomJoinResult) isResponse()      {}
func (RoomReconnectResult) isResponse() {}
func (RoomCreateResult) isResponse()    {}
func (RoomInfoResult) isResponse()      {}
func (RoomStartResult) isResponse()     {}
func (RoomMessageResult) isResponse()   {}
func (DisconnectResult) isResponse()    {}

// Event comes from a room stream, independently of the responses.
type Event interface{ isEvent() }

// RoomEvent is one JSON message pushed by the server.
type RoomEvent struct {
	RoomID  string
	Message json.RawMessage
}

// Decode reads the message as a server message.
func (e RoomEvent) Decode() (types.ServerMessage, error) {
	var msg types.ServerMessage
	err := json.Unmarshal(e.Message, &msg)
	return msg, err
}

// StreamClosed ends the events of a room stream. Err is nil when the stream
// was closed on purpose by either side.
type StreamClosed struct {
	RoomID string
	Err    error
}

func (RoomEvent) isEvent()    {}
func (StreamClosed) isEvent() {}
