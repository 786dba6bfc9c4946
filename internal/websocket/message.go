package websocket

import (
	"encoding/json"
	"time"

	"caseboard-sync-server/internal/domain"
)

type MessageType string

const (
	TypeJoin   MessageType = "join"
	TypeUpdate MessageType = "update"
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload subscribes the connection to one board's topic. A later join
// replaces the previous subscription; a reconnecting client must re-join
// before it receives anything.
type JoinPayload struct {
	BoardID string `json:"boardId"`
}

// UpdatePayload announces that a new version of a board exists. Snapshot is
// an optional optimization: when present, receivers can reconcile without a
// round-trip fetch. Delivery is best-effort; receivers must not depend on it.
type UpdatePayload struct {
	BoardID        string            `json:"boardId"`
	Version        domain.VersionTag `json:"version"`
	SourceClientID string            `json:"sourceClientId"`
	Snapshot       *domain.Snapshot  `json:"snapshot,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
