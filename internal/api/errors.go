package api

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/whist-client/internal/rest"
)

type ConnectKind int

const (
	// ConnectRequest: the server could not be reached or answered with an error.
	ConnectRequest ConnectKind = iota
	// ConnectIncompatible: the server answered but its game or versions do not fit.
	ConnectIncompatible
	// ConnectMalformed: the info document could not be understood.
	ConnectMalformed
)

// ConnectError is why a connection check failed.
type ConnectError struct {
	Kind ConnectKind
	Err  error
}

func (e *ConnectError) Error() string {
	switch e.Kind {
	case ConnectIncompatible:
		return fmt.Sprintf("incompatible server: %v", e.Err)
	case ConnectMalformed:
		return fmt.Sprintf("unexpected server info: %v", e.Err)
	default:
		return fmt.Sprintf("cannot reach server: %v", e.Err)
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// CompatField names the part of the server info that failed a requirement.
type CompatField int

const (
	FieldGame CompatField = iota
	FieldCoreVersion
	FieldServerVersion
)

func (f CompatField) String() string {
	switch f {
	case FieldGame:
		return "game"
	case FieldCoreVersion:
		return "core version"
	case FieldServerVersion:
		return "server version"
	default:
		return "unknown"
	}
}

// CompatibilityError names the failing field, what the server reported and
// what was required.
type CompatibilityError struct {
	Field CompatField
	Value string
	Want  string
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("%s %q does not match %q", e.Field, e.Value, e.Want)
}

type LoginKind int

const (
	LoginRequest LoginKind = iota
	LoginBadCredentials
	LoginUnknownTokenType
	// LoginDeviceNotAuthorized: the device code was not (yet) confirmed by the user.
	LoginDeviceNotAuthorized
	LoginMalformed
)

// LoginError is why a password login or device token swap failed.
type LoginError struct {
	Kind      LoginKind
	TokenType string
	Err       error
}

func (e *LoginError) Error() string {
	switch e.Kind {
	case LoginBadCredentials:
		return "wrong username or password"
	case LoginUnknownTokenType:
		return fmt.Sprintf("unknown token type %q", e.TokenType)
	case LoginDeviceNotAuthorized:
		return "device code not authorized"
	case LoginMalformed:
		return fmt.Sprintf("unexpected login response: %v", e.Err)
	default:
		return fmt.Sprintf("login failed: %v", e.Err)
	}
}

func (e *LoginError) Unwrap() error { return e.Err }

type DeviceFlowKind int

const (
	DeviceRequest DeviceFlowKind = iota
	DeviceMalformed
)

// DeviceFlowError is why a device code could not be obtained.
type DeviceFlowError struct {
	Kind DeviceFlowKind
	Err  error
}

func (e *DeviceFlowError) Error() string {
	if e.Kind == DeviceMalformed {
		return fmt.Sprintf("unexpected device code response: %v", e.Err)
	}
	return fmt.Sprintf("device code request failed: %v", e.Err)
}

func (e *DeviceFlowError) Unwrap() error { return e.Err }

type UserKind int

const (
	UserRequest UserKind = iota
	UserExists
	UserMalformed
)

// UserError is why creating a user failed.
type UserError struct {
	Kind UserKind
	Err  error
}

func (e *UserError) Error() string {
	switch e.Kind {
	case UserExists:
		return "username already taken"
	case UserMalformed:
		return fmt.Sprintf("unexpected user response: %v", e.Err)
	default:
		return fmt.Sprintf("create user failed: %v", e.Err)
	}
}

func (e *UserError) Unwrap() error { return e.Err }

type RoomKind int

const (
	RoomRequest RoomKind = iota
	RoomNotJoined
	RoomWrongPassword
	RoomFull
	RoomNotFound
	RoomNotReady
	RoomMalformed
	RoomUnauthorized
)

func (k RoomKind) String() string {
	switch k {
	case RoomNotJoined:
		return "not joined"
	case RoomWrongPassword:
		return "wrong password"
	case RoomFull:
		return "room is full"
	case RoomNotFound:
		return "room not found"
	case RoomNotReady:
		return "room not ready to start"
	case RoomMalformed:
		return "unexpected room response"
	case RoomUnauthorized:
		return "not logged in"
	default:
		return "room request failed"
	}
}

// RoomError is why a room operation failed.
type RoomError struct {
	Kind RoomKind
	Err  error
}

func (e *RoomError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RoomError) Unwrap() error { return e.Err }

// roomError maps the status codes the room routes use for semantic
// rejections; anything else stays a plain request failure. 401 is a missing
// or stale session token, 403 a rejected room password.
func roomError(err error) *RoomError {
	var de *rest.DecodeError
	switch {
	case errors.As(err, &de):
		return &RoomError{Kind: RoomMalformed, Err: err}
	case rest.IsStatus(err, 401):
		return &RoomError{Kind: RoomUnauthorized, Err: err}
	case rest.IsStatus(err, 403):
		return &RoomError{Kind: RoomWrongPassword, Err: err}
	case rest.IsStatus(err, 404):
		return &RoomError{Kind: RoomNotFound, Err: err}
	case rest.IsStatus(err, 409):
		return &RoomError{Kind: RoomFull, Err: err}
	default:
		return &RoomError{Kind: RoomRequest, Err: err}
	}
}

func isDecode(err error) bool {
	var de *rest.DecodeError
	return errors.As(err, &de)
}
