// Package ws serves the room stream of the dev server.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/hub"
	"github.com/DoyleJ11/whist-client/internal/lobby"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades room/subscribe/{id} for a seated player. Chat messages
// read from the socket are relayed to the room; room updates are written back.
func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := hub.UserFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		lb, err := h.Lobby(r.Context(), chi.URLParam(r, "id"))
		if err != nil || lb == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		view, err := lb.View(r.Context())
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if !view.State.HasPlayer(username) {
			http.Error(w, "not a member of the room", http.StatusForbidden)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := logger.With(zap.String("room", lb.ID()), zap.String("username", username))
		log.Debug("subscribed")

		out := make(chan types.ServerMessage, 8)
		clientID := uuid.NewString()

		select {
		case lb.Inbox() <- lobby.Subscribe{ClientID: clientID, Outbox: out}:
		case <-lb.Done():
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Unsubscribe{ClientID: clientID}:
			case <-lb.Done():
			}
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						// Lobby closed or dropped us.
						conn.Close(websocket.StatusGoingAway, "room closed")
						return
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err := wsjson.Write(ctx, conn, msg)
					cancel()
					if err != nil {
						log.Debug("write failed", zap.Error(err))
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug("unsubscribed")
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			switch cm.Type {
			case "Chat":
				select {
				case lb.Inbox() <- lobby.Chat{From: username, Text: cm.Text}:
				case <-lb.Done():
					return
				}
			default:
				writeError(r.Context(), conn, "unknown type")
			}
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, conn, types.ServerMessage{Type: "Error", Error: msg})
}
