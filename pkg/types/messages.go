// Package types holds the JSON shapes exchanged with a Whist server over HTTP
// and the room WebSocket.
package types

// InfoResponse is returned by GET on the server root.
type InfoResponse struct {
	Info GameInfo `json:"info"`
}

// GameInfo names the game and the versions of the core library and server.
type GameInfo struct {
	Game        string `json:"game"`
	WhistCore   string `json:"whist-core"`
	WhistServer string `json:"whist-server"`
}

// LoginForm is posted form-encoded to user/auth.
type LoginForm struct {
	Username string `json:"username" url:"username"`
	Password string `json:"password" url:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SwapTokenRequest trades a confirmed GitHub device code for a server token.
type SwapTokenRequest struct {
	DeviceCode string `json:"device_code"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserCreateResponse struct {
	UserID string `json:"user_id"`
}

// DeviceCodeRequest starts the GitHub device flow.
type DeviceCodeRequest struct {
	ClientID string `json:"client_id"`
}

type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// ErrorResponse is the body of a failed request on the dev server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client -> Server over the room stream
//
// Chat:
//   text: string
type ClientMessage struct {
	Type string `json:"type"` // "Chat"
	Text string `json:"text,omitempty"`
}

// Server -> Client over the room stream
//
// RoomSnapshot:
//   version: number
//   room: RoomInfo
//
// Chat:
//   from: string
//   text: string
//
// Error:
//   error: string
type ServerMessage struct {
	Type    string    `json:"type"` // "RoomSnapshot" | "Chat" | "Error"
	Version int       `json:"version,omitempty"`
	Room    *RoomInfo `json:"room,omitempty"`
	From    string    `json:"from,omitempty"`
	Text    string    `json:"text,omitempty"`
	Error   string    `json:"error,omitempty"`
}
