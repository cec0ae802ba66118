package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/engine"
	"github.com/DoyleJ11/whist-client/internal/hub"
	"github.com/DoyleJ11/whist-client/internal/lobby"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

// roomStatus maps engine rejections to the codes the room routes use.
func roomStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrWrongPassword), errors.Is(err, engine.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrRoomFull), errors.Is(err, engine.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotReady):
		return http.StatusPreconditionFailed
	case errors.Is(err, lobby.ErrClosed):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Info(info types.GameInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.InfoResponse{Info: info})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func CreateUser(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UserCreateRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}
		id, err := h.RegisterUser(r.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, hub.ErrUserExists):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, types.UserCreateResponse{UserID: id})
		}
	}
}

// Authenticate takes the form-encoded password login.
func Authenticate(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad form")
			return
		}
		token, err := h.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
		switch {
		case errors.Is(err, hub.ErrBadCredentials):
			writeError(w, http.StatusUnauthorized, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, types.LoginResponse{AccessToken: token, TokenType: "Bearer"})
		}
	}
}

func SwapDeviceToken(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SwapTokenRequest
		if !readJSON(w, r, &req) {
			return
		}
		token, err := h.SwapDeviceCode(r.Context(), req.DeviceCode)
		switch {
		case errors.Is(err, hub.ErrDeviceNotConfirmed):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, types.LoginResponse{AccessToken: token, TokenType: "Bearer"})
		}
	}
}

// DeviceCode stands in for GitHub's device code route.
func DeviceCode(h *hub.Hub, verificationURI string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.DeviceCodeRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.ClientID == "" {
			writeError(w, http.StatusBadRequest, "client_id is required")
			return
		}
		flow, err := h.StartDeviceFlow(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.DeviceCodeResponse{
			DeviceCode:      flow.DeviceCode,
			UserCode:        flow.UserCode,
			VerificationURI: verificationURI,
			ExpiresIn:       900,
			Interval:        5,
		})
	}
}

// DeviceConfirmRequest approves a device flow as if on GitHub.
type DeviceConfirmRequest struct {
	UserCode string `json:"user_code"`
	Username string `json:"username"`
}

func ConfirmDevice(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeviceConfirmRequest
		if !readJSON(w, r, &req) {
			return
		}
		err := h.ConfirmDeviceFlow(r.Context(), req.UserCode, req.Username)
		switch {
		case errors.Is(err, hub.ErrUnknownUserCode):
			writeError(w, http.StatusNotFound, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := h.Lobbies(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.RoomListResponse{Rooms: ids})
	}
}

// lobbyParam resolves the {id} route parameter or writes a 404.
func lobbyParam(h *hub.Hub, w http.ResponseWriter, r *http.Request) *lobby.Lobby {
	lb, err := h.Lobby(r.Context(), chi.URLParam(r, "id"))
	if err != nil || lb == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return nil
	}
	return lb
}

func RoomInfo(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lobbyParam(h, w, r)
		if lb == nil {
			return
		}
		view, err := lb.View(r.Context())
		if err != nil {
			writeError(w, roomStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, view.Info)
	}
}

func JoinRoom(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, _ := hub.UserFrom(r.Context())
		lb := lobbyParam(h, w, r)
		if lb == nil {
			return
		}
		var req types.RoomJoinRequest
		if !readJSON(w, r, &req) {
			return
		}
		password := ""
		if req.Password != nil {
			password = *req.Password
		}

		status, err := join(r.Context(), h, lb, username, password)
		if err != nil {
			logger.Debug("join rejected", zap.String("room", lb.ID()), zap.String("username", username), zap.Error(err))
			writeError(w, roomStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.RoomJoinResponse{Status: status})
	}
}

// join seats username in lb, leaving any other room first.
func join(ctx context.Context, h *hub.Hub, lb *lobby.Lobby, username, password string) (types.JoinStatus, error) {
	res, err := lb.Apply(ctx, engine.Command{Type: engine.CmdJoin, Player: username, Password: password})
	if err == nil {
		err = res.Err
	}
	if err != nil {
		return "", err
	}
	if !engine.ContainsEvent(res.Events, engine.EvtPlayerJoined) {
		return types.StatusAlreadyJoined, nil
	}

	if prev, _ := h.SeatOf(ctx, username); prev != "" && prev != lb.ID() {
		if old, _ := h.Lobby(ctx, prev); old != nil {
			_, _ = old.Apply(ctx, engine.Command{Type: engine.CmdLeave, Player: username})
		}
	}
	if err := h.SetSeat(ctx, username, lb.ID()); err != nil {
		return "", err
	}
	return types.StatusJoined, nil
}

func CreateRoom(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, _ := hub.UserFrom(r.Context())
		var req types.RoomCreateRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.RoomName == "" {
			writeError(w, http.StatusBadRequest, "room_name is required")
			return
		}
		var password string
		var minPlayer, maxPlayer int
		if req.Password != nil {
			password = *req.Password
		}
		if req.MinPlayer != nil {
			minPlayer = *req.MinPlayer
		}
		if req.MaxPlayer != nil {
			maxPlayer = *req.MaxPlayer
		}

		state, err := engine.NewRoom(req.RoomName, password, minPlayer, maxPlayer)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lb, err := h.NewLobby(r.Context(), state)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if _, err := join(r.Context(), h, lb, username, password); err != nil {
			writeError(w, roomStatus(err), err.Error())
			return
		}
		logger.Info("room created", zap.String("room", lb.ID()), zap.String("name", req.RoomName), zap.String("owner", username))
		writeJSON(w, http.StatusOK, types.RoomCreateResponse{RoomID: lb.ID()})
	}
}

func ReconnectRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, _ := hub.UserFrom(r.Context())
		notJoined := types.RoomReconnectResponse{Status: types.StatusNotJoined}

		id, err := h.SeatOf(r.Context(), username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if id == "" {
			writeJSON(w, http.StatusOK, notJoined)
			return
		}
		lb, err := h.Lobby(r.Context(), id)
		if err != nil || lb == nil {
			writeJSON(w, http.StatusOK, notJoined)
			return
		}
		view, err := lb.View(r.Context())
		if err != nil || !view.State.HasPlayer(username) {
			writeJSON(w, http.StatusOK, notJoined)
			return
		}
		password := view.Info.Password
		writeJSON(w, http.StatusOK, types.RoomReconnectResponse{
			Status:   types.StatusAlreadyJoined,
			Password: &password,
			RoomID:   &id,
		})
	}
}

func StartRoom(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, _ := hub.UserFrom(r.Context())
		lb := lobbyParam(h, w, r)
		if lb == nil {
			return
		}
		res, err := lb.Apply(r.Context(), engine.Command{Type: engine.CmdStart, Player: username})
		if err == nil {
			err = res.Err
		}
		if err != nil {
			writeError(w, roomStatus(err), err.Error())
			return
		}
		logger.Info("game started", zap.String("room", lb.ID()))
		w.WriteHeader(http.StatusOK)
	}
}
