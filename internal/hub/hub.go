// Package hub is the registry of the dev server: accounts, session tokens,
// device flows, rooms and who sits where. It runs as a single actor.
package hub

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/whist-client/internal/engine"
	"github.com/DoyleJ11/whist-client/internal/lobby"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrBadCredentials     = errors.New("bad credentials")
	ErrUnknownToken       = errors.New("unknown token")
	ErrDeviceNotConfirmed = errors.New("device code not confirmed")
	ErrUnknownUserCode    = errors.New("unknown user code")
	ErrClosed             = errors.New("hub closed")
)

type HubMsg interface{ isHubMsg() }

// CreateUser stores an account. Hash is a bcrypt hash computed by the sender;
// the hub never runs bcrypt itself.
type CreateUser struct {
	Username string
	Hash     []byte
	Reply    chan Reply
}

// LookupUser replies with the stored password hash of Username, or nil.
type LookupUser struct {
	Username string
	Reply    chan []byte
}

// IssueToken hands Username a fresh session token.
type IssueToken struct {
	Username string
	Reply    chan Reply
}

// ResolveToken maps a token back to its username.
type ResolveToken struct {
	Token string
	Reply chan Reply
}

// StartDevice opens a device flow and replies with its device and user codes.
type StartDevice struct {
	Reply chan DeviceReply
}

// ConfirmDevice marks the flow with UserCode as approved by Username.
type ConfirmDevice struct {
	UserCode string
	Username string
	Reply    chan Reply
}

// SwapDevice trades a confirmed device code for a token. A code can be
// swapped once.
type SwapDevice struct {
	DeviceCode string
	Reply      chan Reply
}

type CreateLobby struct {
	State engine.State
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	ID    string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []string
}

type RemoveLobby struct {
	ID string
}

// Seat records that Username sits in room RoomID; an empty RoomID clears it.
type Seat struct {
	Username string
	RoomID   string
}

// GetSeat replies with the room Username sits in, or "".
type GetSeat struct {
	Username string
	Reply    chan string
}

type ShutdownHub struct{}

// Reply carries a string result: a user id, a token or a username.
type Reply struct {
	Value string
	Err   error
}

type DeviceReply struct {
	DeviceCode string
	UserCode   string
}

func (CreateUser) isHubMsg()    {}
func (LookupUser) isHubMsg()    {}
func (IssueToken) isHubMsg()    {}
func (ResolveToken) isHubMsg()  {}
func (StartDevice) isHubMsg()   {}
func (ConfirmDevice) isHubMsg() {}
func (SwapDevice) isHubMsg()    {}
func (CreateLobby) isHubMsg()   {}
func (GetLobby) isHubMsg()      {}
func (ListLobbies) isHubMsg()   {}
func (RemoveLobby) isHubMsg()   {}
func (Seat) isHubMsg()          {}
func (GetSeat) isHubMsg()       {}
func (ShutdownHub) isHubMsg()   {}

type user struct {
	id   string
	hash []byte
}

type device struct {
	userCode  string
	confirmed string // username once approved
}

type Hub struct {
	inbox   chan HubMsg
	users   map[string]user
	tokens  map[string]string
	devices map[string]*device // by device code
	lobbies map[string]*lobby.Lobby
	order   []string
	seats   map[string]string
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		users:   make(map[string]user),
		tokens:  make(map[string]string),
		devices: make(map[string]*device),
		lobbies: make(map[string]*lobby.Lobby),
		seats:   make(map[string]string),
		logger:  logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed when the hub starts shutting down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateUser:
				msg.Reply <- h.createUser(msg.Username, msg.Hash)

			case LookupUser:
				msg.Reply <- h.users[msg.Username].hash

			case IssueToken:
				if _, ok := h.users[msg.Username]; !ok {
					msg.Reply <- Reply{Err: ErrBadCredentials}
					break
				}
				msg.Reply <- Reply{Value: h.issueToken(msg.Username)}

			case ResolveToken:
				name, ok := h.tokens[msg.Token]
				if !ok {
					msg.Reply <- Reply{Err: ErrUnknownToken}
					break
				}
				msg.Reply <- Reply{Value: name}

			case StartDevice:
				code := uuid.NewString()
				userCode := code[:4] + "-" + code[4:8]
				h.devices[code] = &device{userCode: userCode}
				msg.Reply <- DeviceReply{DeviceCode: code, UserCode: userCode}

			case ConfirmDevice:
				d := h.deviceByUserCode(msg.UserCode)
				if d == nil {
					msg.Reply <- Reply{Err: ErrUnknownUserCode}
					break
				}
				d.confirmed = msg.Username
				msg.Reply <- Reply{}

			case SwapDevice:
				d, ok := h.devices[msg.DeviceCode]
				if !ok || d.confirmed == "" {
					msg.Reply <- Reply{Err: ErrDeviceNotConfirmed}
					break
				}
				delete(h.devices, msg.DeviceCode)
				if _, ok := h.users[d.confirmed]; !ok {
					// GitHub accounts have no local password.
					h.users[d.confirmed] = user{id: uuid.NewString()}
				}
				msg.Reply <- Reply{Value: h.issueToken(d.confirmed)}

			case CreateLobby:
				id := uuid.NewString()
				lb := lobby.NewLobby(h.ctx, id, msg.State, h.logger)
				h.lobbies[id] = lb
				h.order = append(h.order, id)
				msg.Reply <- lb

			case GetLobby:
				msg.Reply <- h.lobbies[msg.ID] // May be nil

			case ListLobbies:
				msg.Reply <- slices.Clone(h.order)

			case RemoveLobby:
				if lb := h.lobbies[msg.ID]; lb != nil {
					lb.Close()
				}
				delete(h.lobbies, msg.ID)
				h.order = slices.DeleteFunc(h.order, func(id string) bool { return id == msg.ID })
				for name, id := range h.seats {
					if id == msg.ID {
						delete(h.seats, name)
					}
				}

			case Seat:
				if msg.RoomID == "" {
					delete(h.seats, msg.Username)
					break
				}
				h.seats[msg.Username] = msg.RoomID

			case GetSeat:
				msg.Reply <- h.seats[msg.Username]

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) createUser(name string, hash []byte) Reply {
	if _, ok := h.users[name]; ok {
		return Reply{Err: ErrUserExists}
	}
	u := user{id: uuid.NewString(), hash: hash}
	h.users[name] = u
	h.logger.Info("user created", zap.String("username", name))
	return Reply{Value: u.id}
}

func (h *Hub) issueToken(name string) string {
	token := uuid.NewString()
	h.tokens[token] = name
	return token
}

func (h *Hub) deviceByUserCode(code string) *device {
	for _, d := range h.devices {
		if d.userCode == code {
			return d
		}
	}
	return nil
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	h.order = nil
	h.cancel()
}

// call posts a message built around a fresh reply channel and waits for the
// answer.
func call[T any](ctx context.Context, h *Hub, build func(chan T) HubMsg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case h.inbox <- build(reply):
	case <-h.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func callReply(ctx context.Context, h *Hub, build func(chan Reply) HubMsg) (string, error) {
	r, err := call(ctx, h, build)
	if err != nil {
		return "", err
	}
	return r.Value, r.Err
}

// RegisterUser creates an account and returns its id.
func (h *Hub) RegisterUser(ctx context.Context, username, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return callReply(ctx, h, func(r chan Reply) HubMsg {
		return CreateUser{Username: username, Hash: hash, Reply: r}
	})
}

// Login checks the password on the calling goroutine and returns a fresh token.
func (h *Hub) Login(ctx context.Context, username, password string) (string, error) {
	hash, err := call(ctx, h, func(r chan []byte) HubMsg { return LookupUser{Username: username, Reply: r} })
	if err != nil {
		return "", err
	}
	if hash == nil || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return "", ErrBadCredentials
	}
	return callReply(ctx, h, func(r chan Reply) HubMsg { return IssueToken{Username: username, Reply: r} })
}

// User returns the username behind token.
func (h *Hub) User(ctx context.Context, token string) (string, error) {
	return callReply(ctx, h, func(r chan Reply) HubMsg { return ResolveToken{Token: token, Reply: r} })
}

func (h *Hub) StartDeviceFlow(ctx context.Context) (DeviceReply, error) {
	return call(ctx, h, func(r chan DeviceReply) HubMsg { return StartDevice{Reply: r} })
}

func (h *Hub) ConfirmDeviceFlow(ctx context.Context, userCode, username string) error {
	_, err := callReply(ctx, h, func(r chan Reply) HubMsg {
		return ConfirmDevice{UserCode: userCode, Username: username, Reply: r}
	})
	return err
}

func (h *Hub) SwapDeviceCode(ctx context.Context, deviceCode string) (string, error) {
	return callReply(ctx, h, func(r chan Reply) HubMsg { return SwapDevice{DeviceCode: deviceCode, Reply: r} })
}

func (h *Hub) NewLobby(ctx context.Context, state engine.State) (*lobby.Lobby, error) {
	return call(ctx, h, func(r chan *lobby.Lobby) HubMsg { return CreateLobby{State: state, Reply: r} })
}

// Lobby returns room id, or nil when there is none.
func (h *Hub) Lobby(ctx context.Context, id string) (*lobby.Lobby, error) {
	return call(ctx, h, func(r chan *lobby.Lobby) HubMsg { return GetLobby{ID: id, Reply: r} })
}

// Lobbies returns every room id in creation order.
func (h *Hub) Lobbies(ctx context.Context) ([]string, error) {
	return call(ctx, h, func(r chan []string) HubMsg { return ListLobbies{Reply: r} })
}

func (h *Hub) SeatOf(ctx context.Context, username string) (string, error) {
	return call(ctx, h, func(r chan string) HubMsg { return GetSeat{Username: username, Reply: r} })
}

// SetSeat records where username sits. It does not wait for the hub.
func (h *Hub) SetSeat(ctx context.Context, username, roomID string) error {
	select {
	case h.inbox <- Seat{Username: username, RoomID: roomID}:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type userKey struct{}

// WithUser returns a context carrying the authenticated username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// UserFrom returns the username stored by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(userKey{}).(string)
	return name, ok && name != ""
}
