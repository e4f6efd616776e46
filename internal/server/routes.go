package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/meshroom/internal/protocol"
	"github.com/BioHazard786/meshroom/internal/relay"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB
	Subprotocols:    protocol.Subprotocols(),

	// Participants are not authenticated, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter wires the channel endpoint, the health check and the static
// front-end onto one mux.
func NewRouter(hub *relay.Hub, staticDir string, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /ws", ServeWs(hub, logger))
	mux.Handle("/", StaticHandler(staticDir, logger))
	return mux
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
//
// A "room" query parameter joins that room as soon as the connection is
// registered, without waiting for a join message.
func ServeWs(hub *relay.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "err", err)
			return
		}

		client := relay.NewClient(hub, conn, protocol.CodecFor(conn.Subprotocol()))
		client.Room = r.URL.Query().Get("room")

		if !hub.Attach(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
			conn.Close()
			return
		}

		logger.Debug("connection accepted", "peer", client.ID, "remote", r.RemoteAddr)

		go client.WritePump()
		go client.ReadPump()
	}
}
