package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Hub relays board update notifications between live connections. It is a
// pure best-effort multicast: no durability, no ordering, no redelivery. A
// subscriber whose send buffer is full is dropped rather than waited on.
type Hub struct {
	clients         map[string]*Client
	boardIndex      map[string]map[string]bool
	clientsMutex    sync.RWMutex
	Register        chan *Client
	Unregister      chan *Client
	HandleMessage   chan *ClientMessage
	maxConnPerBoard int
	writeWait       time.Duration
	pongWait        time.Duration
	pingPeriod      time.Duration
}

func NewHub(maxConnPerBoard int, writeWait, pongWait, pingPeriod time.Duration) *Hub {
	return &Hub{
		clients:         make(map[string]*Client),
		boardIndex:      make(map[string]map[string]bool),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		HandleMessage:   make(chan *ClientMessage),
		maxConnPerBoard: maxConnPerBoard,
		writeWait:       writeWait,
		pongWait:        pongWait,
		pingPeriod:      pingPeriod,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case clientMsg := <-h.HandleMessage:
			h.processMessage(clientMsg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	h.clients[client.ID] = client

	log.Printf("[WebSocket] connection registered: %s (client: %s)", client.ID, client.ClientID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		h.leaveBoardLocked(client)
		close(client.Send)
		log.Printf("[WebSocket] connection unregistered: %s", client.ID)
	}
}

// leaveBoardLocked removes the client from its current topic. Callers must
// hold clientsMutex.
func (h *Hub) leaveBoardLocked(client *Client) {
	if client.boardID == "" {
		return
	}
	if conns, ok := h.boardIndex[client.boardID]; ok {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.boardIndex, client.boardID)
		}
	}
	client.boardID = ""
}

func (h *Hub) joinBoard(client *Client, boardID string) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	h.leaveBoardLocked(client)

	if h.boardIndex[boardID] == nil {
		h.boardIndex[boardID] = make(map[string]bool)
	}

	if len(h.boardIndex[boardID]) >= h.maxConnPerBoard {
		log.Printf("[WebSocket] max connections reached for board %s, dropping %s", boardID, client.ID)
		delete(h.clients, client.ID)
		close(client.Send)
		return
	}

	h.boardIndex[boardID][client.ID] = true
	client.boardID = boardID

	log.Printf("[WebSocket] connection %s joined board %s", client.ID, boardID)
}

func (h *Hub) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		log.Printf("[WebSocket] error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case TypeJoin:
		var payload JoinPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			log.Printf("[WebSocket] bad join payload: %v", err)
			return
		}
		if payload.BoardID == "" {
			return
		}
		h.joinBoard(clientMsg.Client, payload.BoardID)

	case TypePing:
		pong, err := NewMessage(TypePong, nil)
		if err != nil {
			return
		}
		pongBytes, _ := json.Marshal(pong)
		select {
		case clientMsg.Client.Send <- pongBytes:
		default:
		}

	default:
		log.Printf("[WebSocket] unknown message type: %s", msg.Type)
	}
}

// BroadcastUpdate notifies every subscriber of the board's topic except
// connections belonging to the originating client id. This publish-time
// exclusion is the first half of echo suppression; receivers filter on
// sourceClientId again as the second half.
func (h *Hub) BroadcastUpdate(payload *UpdatePayload) error {
	msg, err := NewMessage(TypeUpdate, payload)
	if err != nil {
		return err
	}

	messageBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	conns, exists := h.boardIndex[payload.BoardID]
	if !exists {
		return nil
	}

	for connID := range conns {
		client := h.clients[connID]
		if client == nil || client.ClientID == payload.SourceClientID {
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("[WebSocket] connection %s send buffer full, dropping update", connID)
		}
	}

	return nil
}

// BoardSubscribers reports how many connections are joined to a board.
func (h *Hub) BoardSubscribers(boardID string) int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	if conns, exists := h.boardIndex[boardID]; exists {
		return len(conns)
	}
	return 0
}
