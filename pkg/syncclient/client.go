// Package syncclient is the local-first editing side of the board sync
// protocol: it debounces UI edits into conditional snapshot writes, retries
// through disconnection, and falls back to fetch-and-replace reconciliation
// when another session has won the version race.
package syncclient

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/pkg/localcache"
)

type State int

const (
	StateIdle State = iota
	StatePending
	StateFlushing
	StateRetryScheduled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFlushing:
		return "flushing"
	case StateRetryScheduled:
		return "retry-scheduled"
	}
	return "unknown"
}

type Options struct {
	Debounce     time.Duration
	RetryDelay   time.Duration
	OfflineAfter int
	Clock        Clock
}

func (o *Options) fillDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 800 * time.Millisecond
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.OfflineAfter <= 0 {
		o.OfflineAfter = 3
	}
	if o.Clock == nil {
		o.Clock = NewClock()
	}
}

// Client runs the per-board write scheduler. The debounce buffer holds at
// most one pending snapshot (last edit wins), so writes from one session
// can never reorder. All scheduling happens on one goroutine; Schedule and
// ForceFlush only mutate the buffer and wake it.
type Client struct {
	api     *API
	rec     *Reconciler
	cache   *localcache.Store
	boardID string
	opts    Options

	mu            sync.Mutex
	state         State
	pending       *domain.Snapshot
	inFlightDirty *domain.Snapshot
	retries       int
	force         bool

	kick     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	// OnStateChange observes scheduler transitions (UI status indicator).
	OnStateChange func(State)
	// OnOffline fires when consecutive save failures cross the threshold.
	OnOffline func(retries int)
}

func New(api *API, rec *Reconciler, cache *localcache.Store, boardID string, opts Options) *Client {
	opts.fillDefaults()
	return &Client{
		api:     api,
		rec:     rec,
		cache:   cache,
		boardID: boardID,
		opts:    opts,
		state:   StateIdle,
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (c *Client) Start() {
	go c.run()
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LocalDirty reports whether unsaved edits exist (buffered or superseding
// an in-flight write).
func (c *Client) LocalDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil || c.inFlightDirty != nil
}

// Schedule buffers a snapshot for persistence. Always accepted; within the
// debounce window the newest snapshot replaces the previous one.
func (c *Client) Schedule(snap *domain.Snapshot) {
	c.mu.Lock()
	var notify func()
	switch c.state {
	case StateFlushing:
		c.inFlightDirty = snap
	case StateRetryScheduled:
		c.pending = snap
	default:
		c.pending = snap
		notify = c.setStateLocked(StatePending)
	}
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
	c.wake()
}

// ForceFlush bypasses the debounce timer and writes immediately if an edit
// is buffered. Used on reconnect and on explicit save actions.
func (c *Client) ForceFlush() {
	c.mu.Lock()
	c.force = true
	c.mu.Unlock()
	c.wake()
}

// SetVersion seeds the expected version tag after a read that was not
// itself a write (hydration, reconciliation).
func (c *Client) SetVersion(tag domain.VersionTag) {
	c.rec.Seed(tag)
}

// Cached loads the last persisted snapshot for immediate rendering, before
// any network round-trip. Returns nil on a cache miss.
func (c *Client) Cached() *domain.Snapshot {
	if c.cache == nil {
		return nil
	}
	entry, ok := c.cache.Load(c.boardID)
	if !ok {
		return nil
	}
	c.rec.Seed(entry.Version)
	return &entry.Snapshot
}

// Hydrate fetches authoritative state. An unknown board id is created from
// the cached snapshot, or empty if none. The returned snapshot is what the
// view should show after hydration.
func (c *Client) Hydrate(ctx context.Context) (*domain.Snapshot, error) {
	remote, err := c.api.GetBoard(ctx, c.boardID)
	if errors.Is(err, domain.ErrBoardNotFound) {
		base := c.Cached()
		if base == nil {
			base = &domain.Snapshot{Board: domain.Board{ID: c.boardID}}
		}
		created, createErr := c.api.CreateBoard(ctx, c.boardID, base)
		if createErr != nil {
			return nil, createErr
		}
		c.rec.Seed(created.Version)
		if c.cache != nil {
			c.cache.Save(c.boardID, created)
		}
		return created, nil
	}
	if err != nil {
		return nil, err
	}

	c.rec.Apply(remote, false)
	return remote, nil
}

func (c *Client) wake() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// setStateLocked records the transition and returns the observer
// notification to run once c.mu is released, so a hook that calls back
// into the client cannot deadlock.
func (c *Client) setStateLocked(s State) func() {
	if c.state == s {
		return nil
	}
	c.state = s
	hook := c.OnStateChange
	if hook == nil {
		return nil
	}
	return func() { hook(s) }
}

func (c *Client) run() {
	var timer Timer
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C()
		}

		select {
		case <-c.stopCh:
			stopTimer()
			return

		case <-c.kick:
			c.mu.Lock()
			force := c.force
			c.force = false
			state := c.state
			hasPending := c.pending != nil
			c.mu.Unlock()

			if force && hasPending {
				stopTimer()
				if d, ok := c.flush(); ok {
					timer = c.opts.Clock.NewTimer(d)
				}
			} else if state == StatePending {
				stopTimer()
				timer = c.opts.Clock.NewTimer(c.opts.Debounce)
			}

		case <-fire:
			timer = nil
			c.mu.Lock()
			hasPending := c.pending != nil
			c.mu.Unlock()
			if hasPending {
				if d, ok := c.flush(); ok {
					timer = c.opts.Clock.NewTimer(d)
				}
			}
		}
	}
}

// flush attempts the conditional write. It returns the delay to schedule
// next, if any: the debounce window when a newer edit arrived mid-flight,
// or the retry delay after a transient failure.
func (c *Client) flush() (time.Duration, bool) {
	c.mu.Lock()
	snap := c.pending
	c.pending = nil
	notify := c.setStateLocked(StateFlushing)
	c.mu.Unlock()
	if notify != nil {
		notify()
	}

	expected := c.rec.Version()

	saved, err := c.api.ReplaceBoard(context.Background(), c.boardID, snap, expected)

	if err == nil {
		c.rec.Seed(saved.Version)
		if c.cache != nil {
			c.cache.Save(c.boardID, saved)
		}
		c.mu.Lock()
		c.retries = 0
		if c.inFlightDirty != nil {
			c.pending = c.inFlightDirty
			c.inFlightDirty = nil
			notify = c.setStateLocked(StatePending)
			c.mu.Unlock()
			if notify != nil {
				notify()
			}
			return c.opts.Debounce, true
		}
		notify = c.setStateLocked(StateIdle)
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
		return 0, false
	}

	if domain.IsVersionConflict(err) {
		return c.reconcile()
	}

	c.mu.Lock()
	if c.inFlightDirty != nil {
		c.pending = c.inFlightDirty
		c.inFlightDirty = nil
	} else {
		c.pending = snap
	}
	c.retries++
	retries := c.retries
	notify = c.setStateLocked(StateRetryScheduled)
	c.mu.Unlock()
	if notify != nil {
		notify()
	}

	log.Printf("save of board %s failed (attempt %d): %v", c.boardID, retries, err)
	if retries >= c.opts.OfflineAfter && c.OnOffline != nil {
		c.OnOffline(retries)
	}

	return c.opts.RetryDelay, true
}

// reconcile resolves a version conflict by fetching server state and
// replacing the local view with it. The conflicting local snapshot is
// discarded, not rebased: retrying it against the new version would
// silently revert the other writer's work. Like flush, it returns the
// next delay to schedule, if any.
func (c *Client) reconcile() (time.Duration, bool) {
	c.mu.Lock()
	c.inFlightDirty = nil
	c.mu.Unlock()

	fetched, err := c.api.GetBoard(context.Background(), c.boardID)
	if err != nil {
		log.Printf("reconcile fetch for board %s failed: %v", c.boardID, err)
		c.mu.Lock()
		if c.inFlightDirty != nil {
			// An edit arrived during the failed fetch. Keep it: the known
			// tag is still stale, so its flush conflicts again and
			// re-enters reconciliation.
			c.pending = c.inFlightDirty
			c.inFlightDirty = nil
			notify := c.setStateLocked(StatePending)
			c.mu.Unlock()
			if notify != nil {
				notify()
			}
			return c.opts.Debounce, true
		}
		notify := c.setStateLocked(StateIdle)
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
		return 0, false
	}

	c.rec.Apply(fetched, true)

	c.mu.Lock()
	// An edit scheduled while the fetch was in flight was built on the
	// pre-reconciliation view and is discarded with the conflicting
	// snapshot. Leaving it buffered would let a later flush write it over
	// both the server state and any edit made after it.
	c.inFlightDirty = nil
	notify := c.setStateLocked(StateIdle)
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
	return 0, false
}
