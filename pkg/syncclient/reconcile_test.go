package syncclient

import (
	"testing"
	"time"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/pkg/localcache"
)

func snapAt(title string, seq int64) *domain.Snapshot {
	return &domain.Snapshot{
		Board: domain.Board{ID: "b1", Title: title},
		Nodes: []domain.Node{
			{ID: "n1", Type: domain.NodeTypeText, Title: title},
		},
		Version: domain.NewVersionTag(seq, time.Now()),
	}
}

func TestReconcilerApplyIsIdempotent(t *testing.T) {
	rec := NewReconciler("b1", nil)

	applied := 0
	rec.OnApply = func(*domain.Snapshot) { applied++ }

	snap := snapAt("v1", 1)

	if !rec.Apply(snap, false) {
		t.Fatal("first apply should succeed")
	}
	if rec.Apply(snap, false) {
		t.Error("second apply of the same version should be a no-op")
	}
	if applied != 1 {
		t.Errorf("OnApply fired %d times, want 1", applied)
	}
	if rec.Version() != snap.Version {
		t.Errorf("known version = %s, want %s", rec.Version(), snap.Version)
	}
}

func TestReconcilerIgnoresOlderVersions(t *testing.T) {
	rec := NewReconciler("b1", nil)

	rec.Apply(snapAt("v5", 5), false)

	// Out-of-order delivery of an older notification must not regress
	// freshly-applied state.
	if rec.Apply(snapAt("v3", 3), false) {
		t.Error("older snapshot should not apply")
	}
	if rec.Version().Seq() != 5 {
		t.Errorf("known seq = %d, want 5", rec.Version().Seq())
	}
}

func TestReconcilerNoticeOnDiscardedLocalWork(t *testing.T) {
	rec := NewReconciler("b1", nil)

	var noticed, applied bool
	rec.OnNotice = func(*domain.Snapshot) { noticed = true }
	rec.OnApply = func(*domain.Snapshot) { applied = true }

	rec.Apply(snapAt("remote", 2), true)

	if !applied {
		t.Error("snapshot was not applied")
	}
	if !noticed {
		t.Error("discarding local work must raise the notice")
	}

	noticed = false
	rec.Apply(snapAt("clean", 3), false)
	if noticed {
		t.Error("notice fired without discarded local work")
	}
}

func TestReconcilerWritesThroughToCache(t *testing.T) {
	cache, err := localcache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	rec := NewReconciler("b1", cache)

	snap := snapAt("cached", 1)
	rec.Apply(snap, false)

	entry, ok := cache.Load("b1")
	if !ok {
		t.Fatal("cache entry missing after apply")
	}
	if entry.Version != snap.Version {
		t.Errorf("cached version = %s, want %s", entry.Version, snap.Version)
	}
}

func TestReconcilerSeedOnlyMovesForward(t *testing.T) {
	rec := NewReconciler("b1", nil)

	v3 := domain.NewVersionTag(3, time.Now())
	v1 := domain.NewVersionTag(1, time.Now())

	rec.Seed(v3)
	rec.Seed(v1)

	if rec.Version() != v3 {
		t.Errorf("known version = %s, want %s", rec.Version(), v3)
	}
}
