package handler

import (
	"log"
	"net/http"

	"caseboard-sync-server/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader ws.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, readBufferSize, writeBufferSize int) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and registers the connection with
// the hub. The clientId query parameter carries the browser tab's editing
// session id; connections without one get a server-generated id, which
// still works but defeats publish-side echo suppression for that client.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.New().String()
		log.Printf("[WebSocket] connection without clientId, assigned %s", clientID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] failed to upgrade connection: %v", err)
		return
	}

	connID := uuid.New().String()
	client := websocket.NewClient(connID, clientID, conn, h.hub)

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
