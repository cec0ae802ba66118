// Package session runs the client side of the Whist protocol: connect and
// check compatibility, log in, find or resume a room, and follow it over a
// WebSocket. A Machine handles one command at a time on one goroutine; Spawn
// puts it behind a bridge so a frame loop can drive it without blocking.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/api"
	"github.com/DoyleJ11/whist-client/internal/rest"
	"github.com/DoyleJ11/whist-client/internal/wsclient"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

// ErrNoStream is returned when a room message is sent while the room stream is down.
var ErrNoStream = errors.New("session: room stream not open")

// Config holds what a Machine needs besides commands.
type Config struct {
	Requirement    api.Requirement
	GitHubURL      string
	GitHubClientID string
	// RequestTimeout bounds REST calls and room stream writes.
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		Requirement:    api.DefaultRequirement(),
		GitHubURL:      api.DefaultGitHubURL,
		RequestTimeout: rest.DefaultTimeout,
		DialTimeout:    wsclient.DefaultDialTimeout,
		Logger:         zap.NewNop(),
	}
}

func (c Config) apiOptions() []api.Option {
	opts := []api.Option{
		api.WithTimeout(c.RequestTimeout),
		api.WithDialTimeout(c.DialTimeout),
		api.WithLogger(c.Logger),
	}
	if c.HTTPClient != nil {
		opts = append(opts, api.WithHTTPClient(c.HTTPClient))
	}
	return opts
}

// Machine is the session protocol state machine. It is owned by a single
// goroutine; none of its methods may be called concurrently.
type Machine struct {
	cfg    Config
	logger *zap.Logger
	emit   func(Event)

	state  State
	server *api.ServerService
	github *api.GitHubService
	device *api.DeviceCode
	stream *roomStream
}

// NewMachine returns a disconnected machine. Room stream events go to emit,
// which must not block; nil drops them.
func NewMachine(cfg Config, emit func(Event)) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Machine{
		cfg:    cfg,
		logger: cfg.Logger.Named("session"),
		emit:   emit,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

func (m *Machine) setState(s State) {
	if s != m.state {
		m.logger.Debug("state", zap.Stringer("from", m.state), zap.Stringer("to", s))
	}
	m.state = s
}

// Handle runs one command to completion and returns its responses in order.
// Most commands produce exactly one response; a successful login also runs
// the reconnect probe and, if that finds no room, the room list.
func (m *Machine) Handle(ctx context.Context, cmd Command) []Response {
	m.logger.Info("command", zap.String("type", fmt.Sprintf("%T", cmd)), zap.Stringer("state", m.state))

	switch c := cmd.(type) {
	case Connect:
		return []Response{m.connect(ctx, c)}
	case Login:
		return m.login(ctx, c)
	case GithubAuthRequest:
		return []Response{m.githubAuth(ctx, c)}
	case SwapToken:
		return m.swapToken(ctx, c)
	case UserCreate:
		return []Response{m.createUser(ctx, c)}
	case GetRoomList:
		return []Response{m.listRooms(ctx)}
	case JoinRoom:
		return []Response{m.joinRoom(ctx, c)}
	case CreateRoom:
		return []Response{m.createRoom(ctx, c)}
	case ReconnectRoom:
		return m.reconnect(ctx)
	case GetRoomInfo:
		return []Response{m.roomInfo(ctx, c)}
	case StartRoom:
		return []Response{m.startRoom(ctx)}
	case SendRoomMessage:
		return []Response{m.sendRoomMessage(ctx, c)}
	case Disconnect:
		m.Close()
		return []Response{DisconnectResult{}}
	default:
		panic(fmt.Sprintf("session: unknown command %T", cmd))
	}
}

// Close drops every piece of session state and stops the room stream.
func (m *Machine) Close() {
	m.closeStream()
	if m.server != nil {
		m.server.Logout()
	}
	m.server = nil
	m.device = nil
	m.setState(State{Stage: Disconnected})
}

func (m *Machine) requireServer(cmd string) *api.ServerService {
	if m.server == nil {
		panic(&StateViolation{Command: cmd, Missing: "a connected server"})
	}
	return m.server
}

func (m *Machine) requireRoom(cmd string) string {
	if m.state.RoomID == "" || (m.state.Stage != RoomLobby && m.state.Stage != InGame) {
		panic(&StateViolation{Command: cmd, Missing: "a joined room"})
	}
	return m.state.RoomID
}

func (m *Machine) connect(ctx context.Context, c Connect) Response {
	m.Close()
	m.setState(State{Stage: Connecting})

	base, err := baseURL(c.URL)
	if err != nil {
		m.setState(State{Stage: Disconnected})
		return ConnectResult{Err: &api.ConnectError{Kind: api.ConnectRequest, Err: err}}
	}

	server := api.NewServerService(base, m.cfg.apiOptions()...)
	info, err := server.CheckConnection(ctx, m.cfg.Requirement)
	if err != nil {
		m.logger.Warn("connect failed", zap.String("url", base), zap.Error(err))
		m.setState(State{Stage: Disconnected})
		return ConnectResult{Info: info, Err: err}
	}

	m.server = server
	m.github = api.NewGitHubService(m.cfg.GitHubURL, m.cfg.apiOptions()...)
	m.setState(State{Stage: Connected})
	m.logger.Info("connected",
		zap.String("url", base),
		zap.String("game", info.Game),
		zap.Stringer("core", info.CoreVersion),
		zap.Stringer("server", info.ServerVersion))
	return ConnectResult{Info: info}
}

// baseURL accepts what a user types into a connect box and returns a URL the
// REST client takes: absolute, with a path ending in "/".
func baseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q: missing host", raw)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	return u.String(), nil
}

func (m *Machine) login(ctx context.Context, c Login) []Response {
	server := m.requireServer("Login")
	m.setState(State{Stage: LoggingIn, Sub: SubPassword})

	if err := server.Login(ctx, c.Username, c.Password); err != nil {
		m.logger.Info("login failed", zap.String("username", c.Username), zap.Error(err))
		m.setState(State{Stage: Connected})
		return []Response{LoginResult{Err: err}}
	}
	m.logger.Info("logged in", zap.String("username", c.Username))
	return append([]Response{LoginResult{}}, m.reconnect(ctx)...)
}

func (m *Machine) githubAuth(ctx context.Context, c GithubAuthRequest) Response {
	m.requireServer("GithubAuthRequest")
	clientID := c.ClientID
	if clientID == "" {
		clientID = m.cfg.GitHubClientID
	}
	m.device = nil
	m.setState(State{Stage: LoggingIn, Sub: SubGithubDeviceWait})

	code, err := m.github.RequestDeviceCode(ctx, clientID)
	if err != nil {
		m.setState(State{Stage: Connected})
		return LoginResult{Err: err}
	}
	m.device = &code
	flow := code
	return LoginResult{DeviceFlow: &flow}
}

func (m *Machine) swapToken(ctx context.Context, c SwapToken) []Response {
	server := m.requireServer("SwapToken")
	code := c.DeviceCode
	if code == "" {
		if m.device == nil {
			panic(&StateViolation{Command: "SwapToken", Missing: "a device code"})
		}
		code = m.device.DeviceCode
	}
	m.setState(State{Stage: LoggingIn, Sub: SubGithubSwapping})

	err := server.SwapDeviceToken(ctx, code)
	m.device = nil
	if err != nil {
		m.setState(State{Stage: Connected})
		return []Response{LoginResult{Err: err}}
	}
	m.logger.Info("logged in with github")
	return append([]Response{LoginResult{}}, m.reconnect(ctx)...)
}

func (m *Machine) createUser(ctx context.Context, c UserCreate) Response {
	id, err := m.requireServer("UserCreate").CreateUser(ctx, c.Username, c.Password)
	return UserCreateResult{UserID: id, Err: err}
}

// reconnect is the probe run on entering room browsing: resume the room we
// are still in, ask for its password again, or fall through to the list.
func (m *Machine) reconnect(ctx context.Context) []Response {
	server := m.requireServer("ReconnectRoom")
	m.closeStream()
	m.setState(State{Stage: RoomBrowsing, Sub: SubLoading})

	member, err := server.ReconnectRoom(ctx)
	if err != nil {
		m.setState(State{Stage: RoomBrowsing, Sub: SubError})
		return []Response{RoomReconnectResult{Err: err}}
	}

	switch {
	case !member.Status.Member():
		return []Response{RoomReconnectResult{Outcome: OutcomeNotJoined}, m.listRooms(ctx)}
	case member.Password:
		m.setState(State{Stage: RoomBrowsing, Sub: SubJoiningRoom, RoomID: member.RoomID})
		return []Response{RoomReconnectResult{Outcome: OutcomeJoinWindow, RoomID: member.RoomID}}
	default:
		m.enterLobby(ctx, member.RoomID)
		return []Response{RoomReconnectResult{Outcome: OutcomeLobby, RoomID: member.RoomID}}
	}
}

func (m *Machine) listRooms(ctx context.Context) Response {
	server := m.requireServer("GetRoomList")
	m.closeStream()
	m.setState(State{Stage: RoomBrowsing, Sub: SubLoading})

	rooms, err := server.ListRooms(ctx)
	if err != nil {
		m.setState(State{Stage: RoomBrowsing, Sub: SubError})
		return RoomListResult{Err: err}
	}
	m.setState(State{Stage: RoomBrowsing, Sub: SubListed})
	return RoomListResult{Rooms: rooms}
}

func (m *Machine) joinRoom(ctx context.Context, c JoinRoom) Response {
	server := m.requireServer("JoinRoom")
	m.closeStream()
	m.setState(State{Stage: RoomBrowsing, Sub: SubJoiningRoom, RoomID: c.ID})

	status, err := server.JoinRoom(ctx, c.ID, c.Password)
	if err != nil {
		m.setState(State{Stage: RoomBrowsing, Sub: SubError})
		return RoomJoinResult{RoomID: c.ID, Status: status, Err: err}
	}
	m.enterLobby(ctx, c.ID)
	return RoomJoinResult{RoomID: c.ID, Status: status}
}

func (m *Machine) createRoom(ctx context.Context, c CreateRoom) Response {
	server := m.requireServer("CreateRoom")
	m.closeStream()
	m.setState(State{Stage: RoomBrowsing, Sub: SubCreatingRoom})

	id, err := server.CreateRoom(ctx, api.RoomSpec{
		Name:      c.Name,
		Password:  c.Password,
		MinPlayer: c.MinPlayer,
		MaxPlayer: c.MaxPlayer,
	})
	if err != nil {
		m.setState(State{Stage: RoomBrowsing, Sub: SubError})
		return RoomCreateResult{Err: err}
	}
	m.enterLobby(ctx, id)
	return RoomCreateResult{RoomID: id}
}

func (m *Machine) roomInfo(ctx context.Context, c GetRoomInfo) Response {
	server := m.requireServer("GetRoomInfo")
	id := c.ID
	if id == "" {
		id = m.requireRoom("GetRoomInfo")
	}

	info, err := server.RoomInfo(ctx, id)
	if err != nil {
		return RoomInfoResult{Info: info, Err: err}
	}
	if id == m.state.RoomID && m.state.Stage == RoomLobby && info.Phase == types.PhasePlaying {
		m.setState(State{Stage: InGame, RoomID: id})
	}
	return RoomInfoResult{Info: info}
}

func (m *Machine) startRoom(ctx context.Context) Response {
	server := m.requireServer("StartRoom")
	id := m.requireRoom("StartRoom")

	if err := server.StartRoom(ctx, id); err != nil {
		return RoomStartResult{RoomID: id, Err: err}
	}
	m.setState(State{Stage: InGame, RoomID: id})
	return RoomStartResult{RoomID: id}
}

func (m *Machine) sendRoomMessage(ctx context.Context, c SendRoomMessage) Response {
	m.requireRoom("SendRoomMessage")
	if m.stream == nil || m.stream.stopped() {
		return RoomMessageResult{Err: ErrNoStream}
	}
	return RoomMessageResult{Err: m.stream.sender.SendJSON(ctx, c.Message)}
}

func (m *Machine) enterLobby(ctx context.Context, id string) {
	m.setState(State{Stage: RoomLobby, RoomID: id})
	m.openStream(ctx, id)
}
