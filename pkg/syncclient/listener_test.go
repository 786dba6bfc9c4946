package syncclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/internal/handler"
	"caseboard-sync-server/internal/websocket"
)

func updateFrame(t *testing.T, boardID, sourceClientID string, version domain.VersionTag, snap *domain.Snapshot) []byte {
	t.Helper()
	msg, err := websocket.NewMessage(websocket.TypeUpdate, &websocket.UpdatePayload{
		BoardID:        boardID,
		Version:        version,
		SourceClientID: sourceClientID,
		Snapshot:       snap,
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestListener(f *fakeBoardServer) (*Listener, *Reconciler) {
	rec := NewReconciler("b1", nil)
	api := NewAPI(f.srv.URL, "client-b")
	return NewListener("ws://unused", "b1", api, rec), rec
}

func TestListenerIgnoresOwnEcho(t *testing.T) {
	f := newFakeBoardServer()
	defer f.Close()

	l, rec := newTestListener(f)

	applied := false
	rec.OnApply = func(*domain.Snapshot) { applied = true }

	snap := editSnap("echo")
	snap.Version = domain.NewVersionTag(3, time.Now())
	l.handleMessage(updateFrame(t, "b1", "client-b", snap.Version, snap))

	if applied {
		t.Error("listener applied its own echoed update")
	}
	if rec.Version() != domain.NoVersion {
		t.Errorf("known version moved to %s on an echo", rec.Version())
	}
}

func TestListenerIgnoresOtherBoards(t *testing.T) {
	f := newFakeBoardServer()
	defer f.Close()

	l, rec := newTestListener(f)

	applied := false
	rec.OnApply = func(*domain.Snapshot) { applied = true }

	snap := editSnap("elsewhere")
	snap.Board.ID = "b2"
	snap.Version = domain.NewVersionTag(3, time.Now())
	l.handleMessage(updateFrame(t, "b2", "client-a", snap.Version, snap))

	if applied {
		t.Error("listener applied an update for a board it is not watching")
	}
}

func TestListenerAppliesInlineSnapshot(t *testing.T) {
	f := newFakeBoardServer()
	defer f.Close()

	l, rec := newTestListener(f)

	var appliedTitle string
	rec.OnApply = func(s *domain.Snapshot) { appliedTitle = s.Nodes[0].Title }

	snap := editSnap("pushed")
	snap.Version = domain.NewVersionTag(4, time.Now())
	l.handleMessage(updateFrame(t, "b1", "client-a", snap.Version, snap))

	if appliedTitle != "pushed" {
		t.Errorf("applied %q, want pushed", appliedTitle)
	}
	if rec.Version() != snap.Version {
		t.Errorf("known version = %s, want %s", rec.Version(), snap.Version)
	}

	// The inline snapshot makes the round-trip unnecessary.
	f.mu.Lock()
	gets := f.gets
	f.mu.Unlock()
	if gets != 0 {
		t.Errorf("listener fetched %d times despite the inline snapshot", gets)
	}
}

func TestListenerFetchesOnBareNotification(t *testing.T) {
	f := newFakeBoardServer()
	defer f.Close()

	remote := editSnap("fetched")
	remote.Version = domain.NewVersionTag(5, time.Now())
	f.seed(remote)

	l, rec := newTestListener(f)

	var appliedTitle string
	rec.OnApply = func(s *domain.Snapshot) { appliedTitle = s.Nodes[0].Title }

	l.handleMessage(updateFrame(t, "b1", "client-a", remote.Version, nil))

	if appliedTitle != "fetched" {
		t.Errorf("applied %q, want fetched", appliedTitle)
	}
	if rec.Version() != remote.Version {
		t.Errorf("known version = %s, want %s", rec.Version(), remote.Version)
	}
}

func TestListenerIgnoresStaleNotification(t *testing.T) {
	f := newFakeBoardServer()
	defer f.Close()

	l, rec := newTestListener(f)
	rec.Seed(domain.NewVersionTag(9, time.Now()))

	l.handleMessage(updateFrame(t, "b1", "client-a", domain.NewVersionTag(4, time.Now()), nil))

	f.mu.Lock()
	gets := f.gets
	f.mu.Unlock()
	if gets != 0 {
		t.Errorf("listener fetched %d times for a stale notification", gets)
	}
}

func TestListenerRaisesNoticeOverDirtyEdits(t *testing.T) {
	f := newFakeBoardServer()
	defer f.Close()

	l, rec := newTestListener(f)
	l.DirtyCheck = func() bool { return true }

	noticed := false
	rec.OnNotice = func(*domain.Snapshot) { noticed = true }

	snap := editSnap("remote-won")
	snap.Version = domain.NewVersionTag(2, time.Now())
	l.handleMessage(updateFrame(t, "b1", "client-a", snap.Version, snap))

	if !noticed {
		t.Error("notice did not fire although unsaved local work was replaced")
	}
}

func TestListenerStopDuringConnect(t *testing.T) {
	hub := websocket.NewHub(32, 10*time.Second, 60*time.Second, 54*time.Second)
	go hub.Run()

	wsHandler := handler.NewWebSocketHandler(hub, 1024, 1024)
	srv := httptest.NewServer(http.HandlerFunc(wsHandler.HandleConnection))
	defer srv.Close()

	f := newFakeBoardServer()
	defer f.Close()

	rec := NewReconciler("b1", nil)
	api := NewAPI(f.srv.URL, "client-b")
	l := NewListener("ws"+strings.TrimPrefix(srv.URL, "http"), "b1", api, rec)

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	// Stopping while the dial may still be in flight must not strand Run
	// on a connection it never saw closed.
	l.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// End to end through a live hub: one session publishes, the other's
// listener applies, and the publisher's own connections never hear it back.
func TestListenerReceivesHubFanout(t *testing.T) {
	hub := websocket.NewHub(32, 10*time.Second, 60*time.Second, 54*time.Second)
	go hub.Run()

	wsHandler := handler.NewWebSocketHandler(hub, 1024, 1024)
	srv := httptest.NewServer(http.HandlerFunc(wsHandler.HandleConnection))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	f := newFakeBoardServer()
	defer f.Close()

	rec := NewReconciler("b1", nil)
	api := NewAPI(f.srv.URL, "client-b")

	appliedCh := make(chan *domain.Snapshot, 4)
	rec.OnApply = func(s *domain.Snapshot) { appliedCh <- s }

	l := NewListener(wsURL, "b1", api, rec)
	go l.Run()
	defer l.Stop()

	eventually(t, func() bool { return hub.BoardSubscribers("b1") == 1 }, "listener never joined the board topic")

	// First an update attributed to this listener's own client id: the hub
	// must exclude it at publish time. Then a foreign update; receiving the
	// foreign one proves delivery works, so the echo truly was suppressed
	// rather than still in flight.
	echo := editSnap("echo")
	echo.Version = domain.NewVersionTag(1, time.Now())
	hub.BroadcastUpdate(&websocket.UpdatePayload{
		BoardID:        "b1",
		Version:        echo.Version,
		SourceClientID: "client-b",
		Snapshot:       echo,
	})

	foreign := editSnap("from-a")
	foreign.Version = domain.NewVersionTag(2, time.Now())
	hub.BroadcastUpdate(&websocket.UpdatePayload{
		BoardID:        "b1",
		Version:        foreign.Version,
		SourceClientID: "client-a",
		Snapshot:       foreign,
	})

	select {
	case snap := <-appliedCh:
		if snap.Nodes[0].Title != "from-a" {
			t.Fatalf("applied %q, want from-a", snap.Nodes[0].Title)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("foreign update never arrived")
	}

	select {
	case snap := <-appliedCh:
		t.Fatalf("unexpected extra apply: %q", snap.Nodes[0].Title)
	default:
	}

	if rec.Version() != foreign.Version {
		t.Errorf("known version = %s, want %s", rec.Version(), foreign.Version)
	}
}
