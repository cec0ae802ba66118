package types

// RoomPhase is the lifecycle stage of a room.
type RoomPhase string

const (
	PhaseLobby        RoomPhase = "lobby"
	PhaseReadyToStart RoomPhase = "ready_to_start"
	PhasePlaying      RoomPhase = "playing"
)

// JoinStatus is the membership answer of the join and reconnect routes.
type JoinStatus string

const (
	StatusJoined        JoinStatus = "joined"
	StatusAlreadyJoined JoinStatus = "already joined"
	StatusNotJoined     JoinStatus = "not joined"
)

// Member reports whether the status means the user sits in a room.
func (s JoinStatus) Member() bool {
	return s == StatusJoined || s == StatusAlreadyJoined
}

type Player struct {
	Username string `json:"username"`
	Games    int    `json:"games"`
	Rating   int    `json:"rating"`
}

// RoomInfo is the full view of one room.
type RoomInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Password     bool      `json:"password"`
	Players      []Player  `json:"players"`
	MinPlayer    int       `json:"min_player"`
	MaxPlayer    int       `json:"max_player"`
	Phase        RoomPhase `json:"phase"`
	RubberNumber int       `json:"rubber_number"`
	GameNumber   int       `json:"game_number"`
	HandNumber   int       `json:"hand_number"`
	TrickNumber  int       `json:"trick_number"`
}

type RoomListResponse struct {
	Rooms []string `json:"rooms"`
}

// RoomJoinRequest carries the room password; nil means none was given.
type RoomJoinRequest struct {
	Password *string `json:"password"`
}

type RoomJoinResponse struct {
	Status JoinStatus `json:"status"`
}

type RoomCreateRequest struct {
	RoomName  string  `json:"room_name"`
	Password  *string `json:"password"`
	MinPlayer *int    `json:"min_player"`
	MaxPlayer *int    `json:"max_player"`
}

type RoomCreateResponse struct {
	RoomID string `json:"room_id"`
}

// RoomReconnectResponse tells whether the user is still in a room from an
// earlier session, and if so which one and whether it needs a password.
type RoomReconnectResponse struct {
	Status   JoinStatus `json:"status"`
	Password *bool      `json:"password,omitempty"`
	RoomID   *string    `json:"room_id,omitempty"`
}
