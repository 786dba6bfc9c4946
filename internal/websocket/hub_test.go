package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"caseboard-sync-server/internal/domain"
)

func newTestHub() *Hub {
	return NewHub(8, time.Second, time.Minute, 54*time.Second)
}

func addSubscriber(h *Hub, connID, clientID, boardID string) *Client {
	c := NewClient(connID, clientID, nil, h)
	h.registerClient(c)
	h.joinBoard(c, boardID)
	return c
}

func receivedUpdate(t *testing.T, c *Client) *UpdatePayload {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad message: %v", err)
		}
		if msg.Type != TypeUpdate {
			t.Fatalf("message type = %s, want update", msg.Type)
		}
		var payload UpdatePayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		return &payload
	default:
		return nil
	}
}

func TestHubBroadcastExcludesOriginatingClient(t *testing.T) {
	h := newTestHub()
	a := addSubscriber(h, "conn-a", "client-a", "b1")
	b := addSubscriber(h, "conn-b", "client-b", "b1")

	err := h.BroadcastUpdate(&UpdatePayload{
		BoardID:        "b1",
		Version:        domain.NewVersionTag(3, time.Now()),
		SourceClientID: "client-a",
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	if got := receivedUpdate(t, a); got != nil {
		t.Error("originating client received its own update")
	}

	got := receivedUpdate(t, b)
	if got == nil {
		t.Fatal("other subscriber did not receive the update")
	}
	if got.BoardID != "b1" || got.SourceClientID != "client-a" {
		t.Errorf("payload = %+v", got)
	}
}

func TestHubBroadcastScopedToBoard(t *testing.T) {
	h := newTestHub()
	b1 := addSubscriber(h, "conn-1", "client-1", "b1")
	b2 := addSubscriber(h, "conn-2", "client-2", "b2")

	h.BroadcastUpdate(&UpdatePayload{
		BoardID:        "b1",
		Version:        domain.NewVersionTag(1, time.Now()),
		SourceClientID: "someone-else",
	})

	if receivedUpdate(t, b1) == nil {
		t.Error("b1 subscriber missed the update")
	}
	if receivedUpdate(t, b2) != nil {
		t.Error("b2 subscriber received an update for another board")
	}
}

func TestHubJoinReplacesSubscription(t *testing.T) {
	h := newTestHub()
	c := addSubscriber(h, "conn-1", "client-1", "b1")

	h.joinBoard(c, "b2")

	if n := h.BoardSubscribers("b1"); n != 0 {
		t.Errorf("b1 subscribers = %d, want 0 after re-join", n)
	}
	if n := h.BoardSubscribers("b2"); n != 1 {
		t.Errorf("b2 subscribers = %d, want 1", n)
	}
}

func TestHubUnregisterLeavesTopic(t *testing.T) {
	h := newTestHub()
	c := addSubscriber(h, "conn-1", "client-1", "b1")

	h.unregisterClient(c)

	if n := h.BoardSubscribers("b1"); n != 0 {
		t.Errorf("b1 subscribers = %d, want 0 after unregister", n)
	}

	// Broadcast after unregister must not panic or deliver.
	h.BroadcastUpdate(&UpdatePayload{
		BoardID:        "b1",
		Version:        domain.NewVersionTag(1, time.Now()),
		SourceClientID: "x",
	})
}

func TestHubEnforcesMaxConnPerBoard(t *testing.T) {
	h := NewHub(1, time.Second, time.Minute, 54*time.Second)
	first := addSubscriber(h, "conn-1", "client-1", "b1")
	second := addSubscriber(h, "conn-2", "client-2", "b1")

	if n := h.BoardSubscribers("b1"); n != 1 {
		t.Errorf("b1 subscribers = %d, want 1 with cap 1", n)
	}

	// The rejected connection is hung up on, not left registered and
	// silently unsubscribed: its send channel closes so the write pump
	// tears the connection down.
	select {
	case _, ok := <-second.Send:
		if ok {
			t.Error("rejected connection received data instead of a close")
		}
	default:
		t.Error("rejected connection's send channel left open")
	}

	h.BroadcastUpdate(&UpdatePayload{
		BoardID:        "b1",
		Version:        domain.NewVersionTag(1, time.Now()),
		SourceClientID: "x",
	})
	if receivedUpdate(t, first) == nil {
		t.Error("surviving subscriber missed the update")
	}
}
