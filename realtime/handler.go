package realtime

import (
	"net/http"

	"github.com/gorilla/websocket"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/middleware"
	"taskflow-project/backend/utils"
)

// ServeWS upgrades an authenticated request. Browsers cannot set headers on
// a WebSocket handshake, so the access token travels as ?token=.
func ServeWS(hub *Hub, tokens *utils.TokenManager, allowedOrigin string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.Authenticate(tokens, r.URL.Query().Get("token"))
		if err != nil {
			logging.Logger.Warnf("Event ID: WS_AUTH_FAILED, Description: Rejected socket from %s: %v", r.RemoteAddr, err)
			http.Error(w, `{"message":"Invalid token"}`, http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Logger.Warnf("Event ID: WS_UPGRADE_FAILED, Description: %v", err)
			return
		}

		client := newClient(hub, userID.Hex(), conn)
		if !hub.Register(client) {
			_ = conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}
