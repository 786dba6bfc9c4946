package localcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"caseboard-sync-server/internal/domain"
)

func testSnapshot(title string, seq int64) *domain.Snapshot {
	return &domain.Snapshot{
		Board: domain.Board{ID: "b1", Title: title},
		Nodes: []domain.Node{
			{ID: "n1", Type: domain.NodeTypeText, Title: title},
		},
		Version: domain.NewVersionTag(seq, time.Now()),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	snap := testSnapshot("hello", 4)
	store.Save("b1", snap)

	entry, ok := store.Load("b1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Version != snap.Version {
		t.Errorf("version = %s, want %s", entry.Version, snap.Version)
	}
	if entry.Snapshot.Nodes[0].Title != "hello" {
		t.Errorf("node title = %q", entry.Snapshot.Nodes[0].Title)
	}
	if entry.CachedAt.IsZero() {
		t.Error("cached_at not set")
	}
}

func TestStoreMissOnUnknownBoard(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, ok := store.Load("never-seen"); ok {
		t.Error("expected cache miss")
	}
}

func TestStoreOverwritesUnconditionally(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.Save("b1", testSnapshot("old", 9))
	store.Save("b1", testSnapshot("new", 2))

	entry, ok := store.Load("b1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	// Local cache has exactly one writer; last write wins even when the
	// version counter goes backwards.
	if entry.Snapshot.Board.Title != "new" {
		t.Errorf("title = %q, want new", entry.Snapshot.Board.Title)
	}
}

func TestStoreCorruptEntryReadsAsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.Save("b1", testSnapshot("x", 1))

	path := filepath.Join(dir, "caseboard.b1.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}

	if _, ok := store.Load("b1"); ok {
		t.Error("corrupt entry should read as a miss")
	}
}

func TestStoreRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.Save("b1", testSnapshot("x", 1))
	store.Remove("b1")

	if _, ok := store.Load("b1"); ok {
		t.Error("expected miss after remove")
	}
}
