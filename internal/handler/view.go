package handler

import (
	"net/http"

	"invoicecam/internal/logger"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerRegistry tracks connected viewers.
type ViewerRegistry interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// ViewWebsocketHandler handles GET /api/capture/view. The viewer receives the
// session state followed by state changes and annotated preview frames.
func ViewWebsocketHandler(viewers ViewerRegistry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		viewers.Register(connection)
		defer viewers.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
