package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/internal/repository"
	"caseboard-sync-server/internal/websocket"
)

// FanoutPublisher is the hub-facing side of the board service. Publishing
// is fire-and-forget: a failed or dropped notification is never an error
// for the write that triggered it.
type FanoutPublisher interface {
	BroadcastUpdate(payload *websocket.UpdatePayload) error
}

// BoardService implements the version-tagged snapshot protocol. The version
// tag is the sole concurrency control token: a conditional replace whose
// expected tag is stale fails, and the per-board mutex guarantees at most
// one writer wins any given version.
type BoardService struct {
	repo      repository.BoardRepository
	assetRepo repository.AssetRepository
	sanitizer *Sanitizer
	fanout    FanoutPublisher
	locks     sync.Map
	now       func() time.Time
}

func NewBoardService(
	repo repository.BoardRepository,
	assetRepo repository.AssetRepository,
	sanitizer *Sanitizer,
	fanout FanoutPublisher,
) *BoardService {
	return &BoardService{
		repo:      repo,
		assetRepo: assetRepo,
		sanitizer: sanitizer,
		fanout:    fanout,
		now:       time.Now,
	}
}

func (s *BoardService) lock(boardID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(boardID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *BoardService) Get(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	return s.repo.Get(ctx, boardID)
}

func (s *BoardService) List(ctx context.Context) ([]*domain.BoardSummary, error) {
	return s.repo.ListVisible(ctx)
}

func (s *BoardService) Create(ctx context.Context, boardID string, req *domain.SaveBoardRequest) (*domain.Snapshot, error) {
	mu := s.lock(boardID)
	mu.Lock()
	defer mu.Unlock()

	now := s.now()
	snap := s.sanitizer.Clean(req.Snapshot())
	snap.Board.ID = boardID
	snap.Board.CreatedAt = now
	snap.Board.UpdatedAt = now
	snap.Version = domain.NewVersionTag(0, now)

	if err := s.repo.Create(ctx, snap); err != nil {
		return nil, err
	}

	s.publish(snap, req.ClientID)

	return snap, nil
}

func (s *BoardService) Replace(ctx context.Context, boardID string, req *domain.SaveBoardRequest) (*domain.Snapshot, error) {
	mu := s.lock(boardID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.repo.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}

	// Empty expected tag forces the write; used only by hydration paths.
	if !req.Version.IsZero() && req.Version != current.Version {
		return nil, &domain.VersionConflictError{
			BoardID:  boardID,
			Expected: req.Version,
			Current:  current.Version,
		}
	}

	now := s.now()
	snap := s.sanitizer.Clean(req.Snapshot())
	snap.Board.ID = boardID
	snap.Board.CreatedAt = current.Board.CreatedAt
	snap.Board.UpdatedAt = now
	snap.Version = current.Version.Next(now)

	if err := s.repo.Replace(ctx, snap); err != nil {
		return nil, err
	}

	s.publish(snap, req.ClientID)

	return snap, nil
}

func (s *BoardService) Delete(ctx context.Context, boardID string) error {
	mu := s.lock(boardID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.Delete(ctx, boardID); err != nil {
		if errors.Is(err, domain.ErrBoardNotFound) {
			log.Printf("delete of unknown board %s ignored", boardID)
			return nil
		}
		return err
	}

	if s.assetRepo != nil {
		if err := s.assetRepo.DeleteAll(ctx, boardID); err != nil {
			log.Printf("asset cleanup for board %s failed: %v", boardID, err)
		}
	}

	return nil
}

func (s *BoardService) publish(snap *domain.Snapshot, sourceClientID string) {
	if s.fanout == nil {
		return
	}
	err := s.fanout.BroadcastUpdate(&websocket.UpdatePayload{
		BoardID:        snap.Board.ID,
		Version:        snap.Version,
		SourceClientID: sourceClientID,
		Snapshot:       snap,
	})
	if err != nil {
		log.Printf("fanout publish for board %s failed: %v", snap.Board.ID, err)
	}
}
