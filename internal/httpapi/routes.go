// Package httpapi routes the dev server: the Whist REST contract, a stand-in
// for GitHub's device flow and the room stream upgrade.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/hub"
	"github.com/DoyleJ11/whist-client/internal/ws"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

// Options describe what the server reports about itself.
type Options struct {
	Info            types.GameInfo
	VerificationURI string
	Logger          *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Info:            types.GameInfo{Game: "whist", WhistCore: "0.9.2", WhistServer: "0.7.1"},
		VerificationURI: "https://github.com/login/device",
		Logger:          zap.NewNop(),
	}
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Public routes
	r.Get("/", Info(opts.Info))
	r.Get("/healthz", Healthz)
	r.Post("/user/create", CreateUser(h))
	r.Post("/user/auth", Authenticate(h))
	r.Post("/oauth2/github/device", SwapDeviceToken(h))
	r.Post("/login/device/code", DeviceCode(h, opts.VerificationURI))
	r.Post("/login/device/confirm", ConfirmDevice(h))

	// Routes that need a bearer token
	r.Group(func(r chi.Router) {
		r.Use(RequireUser(h))
		r.Get("/room/info/ids", ListRooms(h))
		r.Get("/room/info/{id}", RoomInfo(h))
		r.Post("/room/join/{id}", JoinRoom(h, logger))
		r.Post("/room/create", CreateRoom(h, logger))
		r.Post("/room/reconnect", ReconnectRoom(h))
		r.Post("/room/start/{id}", StartRoom(h, logger))
		r.Get("/room/subscribe/{id}", ws.Handler(h, logger))
	})
	return r
}

// RequireUser resolves the bearer token into a username on the request context.
func RequireUser(h *hub.Hub) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			username, err := h.User(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(hub.WithUser(r.Context(), username)))
		})
	}
}
