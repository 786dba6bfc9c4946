package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"caseboard-sync-server/internal/websocket"

	ws "github.com/gorilla/websocket"
)

// Listener subscribes to a board's fanout topic and feeds incoming update
// notifications to the Reconciler. The channel is best-effort: a missed
// notification costs nothing, because hydration converges through the
// version-tag comparison anyway.
type Listener struct {
	wsURL    string
	boardID  string
	clientID string
	rec      *Reconciler
	api      *API

	reconnectDelay time.Duration
	dialer         *ws.Dialer

	// DirtyCheck reports whether the editing session has unsaved local
	// work, so applied remote snapshots can raise the overwrite notice.
	DirtyCheck func() bool
	// OnReconnect fires after every successful reconnect (not the first
	// connect); wiring it to Client.ForceFlush drains writes that queued
	// up while offline.
	OnReconnect func()

	mu       sync.Mutex
	conn     *ws.Conn
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewListener(wsURL, boardID string, api *API, rec *Reconciler) *Listener {
	return &Listener{
		wsURL:          wsURL,
		boardID:        boardID,
		clientID:       api.ClientID(),
		rec:            rec,
		api:            api,
		reconnectDelay: 5 * time.Second,
		dialer:         ws.DefaultDialer,
		stopCh:         make(chan struct{}),
	}
}

// Run connects, joins the board topic, and reads until the connection
// drops, then reconnects and re-joins. Blocks until Stop; run it on its
// own goroutine.
func (l *Listener) Run() {
	endpoint := l.endpoint()
	attempt := 0

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		conn, _, err := l.dialer.Dial(endpoint, nil)
		if err != nil {
			log.Printf("fanout dial failed for board %s: %v", l.boardID, err)
			if !l.wait(l.reconnectDelay) {
				return
			}
			continue
		}

		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()

		// Stop may have run between the dial and the store above, missing
		// the connection; without this check readLoop would block forever.
		select {
		case <-l.stopCh:
			conn.Close()
			return
		default:
		}

		// A reconnecting client must re-announce its subscription before
		// it receives anything.
		if err := l.join(conn); err != nil {
			conn.Close()
			if !l.wait(l.reconnectDelay) {
				return
			}
			continue
		}

		if attempt > 0 && l.OnReconnect != nil {
			l.OnReconnect()
		}
		attempt++

		l.readLoop(conn)
		conn.Close()

		if !l.wait(l.reconnectDelay) {
			return
		}
	}
}

func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.mu.Unlock()
}

// wait sleeps for d, returning false if Stop was called first.
func (l *Listener) wait(d time.Duration) bool {
	select {
	case <-l.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (l *Listener) endpoint() string {
	return l.wsURL + "?clientId=" + url.QueryEscape(l.clientID)
}

func (l *Listener) join(conn *ws.Conn) error {
	msg, err := websocket.NewMessage(websocket.TypeJoin, &websocket.JoinPayload{
		BoardID: l.boardID,
	})
	if err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (l *Listener) readLoop(conn *ws.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.stopCh:
			default:
				log.Printf("fanout read for board %s ended: %v", l.boardID, err)
			}
			return
		}

		// The hub's write pump may coalesce queued messages into one
		// frame, newline-separated.
		for _, raw := range bytes.Split(data, []byte{'\n'}) {
			if len(raw) > 0 {
				l.handleMessage(raw)
			}
		}
	}
}

func (l *Listener) handleMessage(data []byte) {
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != websocket.TypeUpdate {
		return
	}

	var payload websocket.UpdatePayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return
	}
	if payload.BoardID != l.boardID {
		return
	}
	// Receive-time echo suppression: the hub already excludes the sender's
	// connections, this guards against exclusion bugs and reconnect races.
	if payload.SourceClientID == l.clientID {
		return
	}

	dirty := l.DirtyCheck != nil && l.DirtyCheck()

	if payload.Snapshot != nil {
		l.rec.Apply(payload.Snapshot, dirty)
		return
	}

	// Notification without the snapshot optimization: fetch, then apply.
	if !payload.Version.NewerThan(l.rec.Version()) {
		return
	}
	snap, err := l.api.GetBoard(context.Background(), l.boardID)
	if err != nil {
		log.Printf("fanout-triggered fetch for board %s failed: %v", l.boardID, err)
		return
	}
	l.rec.Apply(snap, dirty)
}
