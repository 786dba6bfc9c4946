// Package localcache persists the last known snapshot per board so a
// client can render immediately on startup, before any network round-trip.
// It is never authoritative: a successful server fetch or save always
// overwrites it.
package localcache

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"caseboard-sync-server/internal/domain"
)

const keyPrefix = "caseboard"

type Entry struct {
	Snapshot domain.Snapshot   `json:"snapshot"`
	Version  domain.VersionTag `json:"version"`
	CachedAt time.Time         `json:"cached_at"`
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(boardID string) string {
	name := fmt.Sprintf("%s.%s.json", keyPrefix, url.PathEscape(boardID))
	return filepath.Join(s.dir, name)
}

// Load returns the cached entry for the board, or false on a miss. A
// corrupt entry reads as a miss.
func (s *Store) Load(boardID string) (*Entry, bool) {
	data, err := os.ReadFile(s.path(boardID))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("cache entry for board %s unreadable, treating as miss: %v", boardID, err)
		return nil, false
	}

	return &entry, true
}

// Save overwrites the cache entry unconditionally. Failures are logged and
// swallowed: a full disk only costs the next offline-first boot, it must
// never fail a save.
func (s *Store) Save(boardID string, snap *domain.Snapshot) {
	entry := Entry{
		Snapshot: *snap,
		Version:  snap.Version,
		CachedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("failed to encode cache entry for board %s: %v", boardID, err)
		return
	}

	if err := os.WriteFile(s.path(boardID), data, 0o644); err != nil {
		log.Printf("failed to write cache entry for board %s: %v", boardID, err)
	}
}

// Remove drops the cached entry, if any.
func (s *Store) Remove(boardID string) {
	os.Remove(s.path(boardID))
}
