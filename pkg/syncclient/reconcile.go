package syncclient

import (
	"sync"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/pkg/localcache"
)

// Reconciler is the fetch-and-replace recovery routine. It owns the
// locally known version tag and applies authoritative snapshots to the
// view and cache, never attempting a field-level merge.
type Reconciler struct {
	mu      sync.Mutex
	boardID string
	known   domain.VersionTag

	cache *localcache.Store

	// OnApply receives every snapshot that replaced the local view.
	OnApply func(snap *domain.Snapshot)
	// OnNotice fires when a reconciliation discarded unsaved local work,
	// so the UI can show a "remote changes applied" banner.
	OnNotice func(snap *domain.Snapshot)
}

func NewReconciler(boardID string, cache *localcache.Store) *Reconciler {
	return &Reconciler{
		boardID: boardID,
		cache:   cache,
	}
}

// Version returns the locally known tag.
func (r *Reconciler) Version() domain.VersionTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known
}

// Seed sets the known tag after a read or write that already updated the
// view through another path (hydration, a successful save).
func (r *Reconciler) Seed(tag domain.VersionTag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag.NewerThan(r.known) {
		r.known = tag
	}
}

// Apply overwrites the local view with the snapshot if it is strictly
// newer than the known tag, and reports whether it did. Applying the same
// or an older version is a no-op, which makes out-of-order notification
// delivery harmless. discardedLocal marks that unsaved edits existed at
// the moment of reconciliation and were lost to the server state.
func (r *Reconciler) Apply(snap *domain.Snapshot, discardedLocal bool) bool {
	r.mu.Lock()
	if !snap.Version.NewerThan(r.known) {
		r.mu.Unlock()
		return false
	}
	r.known = snap.Version
	r.mu.Unlock()

	if r.cache != nil {
		r.cache.Save(r.boardID, snap)
	}

	if r.OnApply != nil {
		r.OnApply(snap)
	}
	if discardedLocal && r.OnNotice != nil {
		r.OnNotice(snap)
	}

	return true
}
