// Package api wraps the Whist server and GitHub routes in typed methods. Every
// method reports failures through an error type of its own so callers can tell
// an unreachable server from a rejected request.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/rest"
	"github.com/DoyleJ11/whist-client/internal/wsclient"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

type options struct {
	timeout     time.Duration
	dialTimeout time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

type Option func(*options)

// WithTimeout bounds every REST call and every frame written to a room stream.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialTimeout bounds the room stream handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:     rest.DefaultTimeout,
		dialTimeout: wsclient.DefaultDialTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) restOptions() []rest.Option {
	ro := []rest.Option{rest.WithTimeout(o.timeout), rest.WithLogger(o.logger)}
	if o.httpClient != nil {
		ro = append(ro, rest.WithHTTPClient(o.httpClient))
	}
	return ro
}

// ServerService calls the routes of one Whist server. It holds the session
// token, so it belongs to a single goroutine.
type ServerService struct {
	conn *rest.Client
	opts options
}

// NewServerService panics if baseURL is not an absolute URL whose path ends in "/".
func NewServerService(baseURL string, opts ...Option) *ServerService {
	o := buildOptions(opts)
	return &ServerService{
		conn: rest.New(baseURL, o.restOptions()...),
		opts: o,
	}
}

// BaseURL returns the server's base URL.
func (s *ServerService) BaseURL() *url.URL { return s.conn.BaseURL() }

// LoggedIn reports whether a token is held.
func (s *ServerService) LoggedIn() bool {
	_, ok := s.conn.Token()
	return ok
}

// Logout forgets the token.
func (s *ServerService) Logout() { s.conn.ClearToken() }

// GetInfo fetches the server's self description.
func (s *ServerService) GetInfo(ctx context.Context) (ServerInfo, error) {
	var res types.InfoResponse
	if err := s.conn.DoJSON(ctx, http.MethodGet, "", nil, rest.Empty(), &res); err != nil {
		return ServerInfo{}, err
	}
	info, err := ParseServerInfo(res)
	if err != nil {
		return ServerInfo{}, &ConnectError{Kind: ConnectMalformed, Err: err}
	}
	return info, nil
}

// CheckConnection fetches the server info and checks it against req.
func (s *ServerService) CheckConnection(ctx context.Context, req Requirement) (ServerInfo, error) {
	info, err := s.GetInfo(ctx)
	if err != nil {
		var ce *ConnectError
		if errors.As(err, &ce) {
			return ServerInfo{}, ce
		}
		if isDecode(err) {
			return ServerInfo{}, &ConnectError{Kind: ConnectMalformed, Err: err}
		}
		return ServerInfo{}, &ConnectError{Kind: ConnectRequest, Err: err}
	}
	if err := CheckCompatibility(info, req); err != nil {
		return info, &ConnectError{Kind: ConnectIncompatible, Err: err}
	}
	return info, nil
}

// Login authenticates with username and password. The token is only stored
// when the whole exchange succeeds.
func (s *ServerService) Login(ctx context.Context, username, password string) error {
	var res types.LoginResponse
	err := s.conn.DoJSON(ctx, http.MethodPost, "user/auth", nil,
		rest.Form(types.LoginForm{Username: username, Password: password}), &res)
	switch {
	case err == nil:
	case rest.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden):
		return &LoginError{Kind: LoginBadCredentials, Err: err}
	case isDecode(err):
		return &LoginError{Kind: LoginMalformed, Err: err}
	default:
		return &LoginError{Kind: LoginRequest, Err: err}
	}
	return s.storeToken(res)
}

// SwapDeviceToken trades a device code the user confirmed on GitHub for a
// server token.
func (s *ServerService) SwapDeviceToken(ctx context.Context, deviceCode string) error {
	var res types.LoginResponse
	err := s.conn.DoJSON(ctx, http.MethodPost, "oauth2/github/device", nil,
		rest.JSON(types.SwapTokenRequest{DeviceCode: deviceCode}), &res)
	switch {
	case err == nil:
	case rest.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden):
		return &LoginError{Kind: LoginDeviceNotAuthorized, Err: err}
	case isDecode(err):
		return &LoginError{Kind: LoginMalformed, Err: err}
	default:
		return &LoginError{Kind: LoginRequest, Err: err}
	}
	return s.storeToken(res)
}

func (s *ServerService) storeToken(res types.LoginResponse) error {
	if res.TokenType != rest.BearerTokenType {
		return &LoginError{Kind: LoginUnknownTokenType, TokenType: res.TokenType}
	}
	s.conn.SetToken(rest.Token{AccessToken: res.AccessToken, TokenType: res.TokenType})
	return nil
}

// CreateUser registers a new account and returns its id.
func (s *ServerService) CreateUser(ctx context.Context, username, password string) (string, error) {
	var res types.UserCreateResponse
	err := s.conn.DoJSON(ctx, http.MethodPost, "user/create", nil,
		rest.JSON(types.UserCreateRequest{Username: username, Password: password}), &res)
	switch {
	case err == nil:
		return res.UserID, nil
	case rest.IsStatus(err, http.StatusConflict):
		return "", &UserError{Kind: UserExists, Err: err}
	case isDecode(err):
		return "", &UserError{Kind: UserMalformed, Err: err}
	default:
		return "", &UserError{Kind: UserRequest, Err: err}
	}
}

// ListRooms returns the ids of all open rooms.
func (s *ServerService) ListRooms(ctx context.Context) ([]string, error) {
	var res types.RoomListResponse
	if err := s.conn.DoJSON(ctx, http.MethodGet, "room/info/ids", nil, rest.Empty(), &res); err != nil {
		return nil, roomError(err)
	}
	return res.Rooms, nil
}

// RoomInfo returns the full view of one room.
func (s *ServerService) RoomInfo(ctx context.Context, id string) (types.RoomInfo, error) {
	var res types.RoomInfo
	if err := s.conn.DoJSON(ctx, http.MethodGet, "room/info/"+url.PathEscape(id), nil, rest.Empty(), &res); err != nil {
		return types.RoomInfo{}, roomError(err)
	}
	return res, nil
}

// JoinRoom joins room id. An empty password is sent as no password.
func (s *ServerService) JoinRoom(ctx context.Context, id, password string) (types.JoinStatus, error) {
	var res types.RoomJoinResponse
	err := s.conn.DoJSON(ctx, http.MethodPost, "room/join/"+url.PathEscape(id), nil,
		rest.JSON(types.RoomJoinRequest{Password: optional(password)}), &res)
	if err != nil {
		return "", roomError(err)
	}
	switch res.Status {
	case types.StatusJoined, types.StatusAlreadyJoined:
		return res.Status, nil
	case types.StatusNotJoined:
		return res.Status, &RoomError{Kind: RoomNotJoined}
	default:
		return "", &RoomError{Kind: RoomMalformed, Err: errors.New("unknown join status " + string(res.Status))}
	}
}

// RoomSpec describes a room to create. Zero bounds are left to the server.
type RoomSpec struct {
	Name      string
	Password  string
	MinPlayer int
	MaxPlayer int
}

// CreateRoom creates a room, joins it and returns its id.
func (s *ServerService) CreateRoom(ctx context.Context, spec RoomSpec) (string, error) {
	req := types.RoomCreateRequest{
		RoomName:  spec.Name,
		Password:  optional(spec.Password),
		MinPlayer: optionalInt(spec.MinPlayer),
		MaxPlayer: optionalInt(spec.MaxPlayer),
	}
	var res types.RoomCreateResponse
	if err := s.conn.DoJSON(ctx, http.MethodPost, "room/create", nil, rest.JSON(req), &res); err != nil {
		return "", roomError(err)
	}
	if res.RoomID == "" {
		return "", &RoomError{Kind: RoomMalformed, Err: errors.New("missing room_id")}
	}
	return res.RoomID, nil
}

// Membership is the answer of the reconnect probe.
type Membership struct {
	Status   types.JoinStatus
	RoomID   string
	Password bool
}

// ReconnectRoom asks whether the user is still in a room from an earlier session.
func (s *ServerService) ReconnectRoom(ctx context.Context) (Membership, error) {
	var res types.RoomReconnectResponse
	if err := s.conn.DoJSON(ctx, http.MethodPost, "room/reconnect", nil, rest.Empty(), &res); err != nil {
		return Membership{}, roomError(err)
	}
	m := Membership{Status: res.Status}
	if res.RoomID != nil {
		m.RoomID = *res.RoomID
	}
	if res.Password != nil {
		m.Password = *res.Password
	}
	switch res.Status {
	case types.StatusJoined, types.StatusAlreadyJoined:
		if m.RoomID == "" {
			return Membership{}, &RoomError{Kind: RoomMalformed, Err: errors.New("member without room_id")}
		}
	case types.StatusNotJoined:
	default:
		return Membership{}, &RoomError{Kind: RoomMalformed, Err: errors.New("unknown join status " + string(res.Status))}
	}
	return m, nil
}

// StartRoom asks the server to start the game in room id.
func (s *ServerService) StartRoom(ctx context.Context, id string) error {
	_, err := s.conn.Do(ctx, http.MethodPost, "room/start/"+url.PathEscape(id), nil, rest.Empty())
	switch {
	case err == nil:
		return nil
	case rest.IsStatus(err, http.StatusPreconditionFailed):
		return &RoomError{Kind: RoomNotReady, Err: err}
	default:
		return roomError(err)
	}
}

// OpenRoomStream subscribes to the live updates of room id.
func (s *ServerService) OpenRoomStream(ctx context.Context, id string) (*wsclient.Sender, *wsclient.Receiver, error) {
	opts := []wsclient.Option{
		wsclient.WithDialTimeout(s.opts.dialTimeout),
		wsclient.WithWriteTimeout(s.opts.timeout),
		wsclient.WithLogger(s.opts.logger),
	}
	if tok, ok := s.conn.Token(); ok {
		opts = append(opts, wsclient.WithToken(tok.AccessToken))
	}
	if s.opts.httpClient != nil {
		opts = append(opts, wsclient.WithHTTPClient(s.opts.httpClient))
	}
	return wsclient.Connect(ctx, s.conn.Join("room/subscribe/"+url.PathEscape(id)).String(), opts...)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
