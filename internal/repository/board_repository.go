package repository

import (
	"context"
	"fmt"
	"net/http"

	"caseboard-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type BoardRepository interface {
	Get(ctx context.Context, boardID string) (*domain.Snapshot, error)
	Create(ctx context.Context, snap *domain.Snapshot) error
	Replace(ctx context.Context, snap *domain.Snapshot) error
	Delete(ctx context.Context, boardID string) error
	ListVisible(ctx context.Context) ([]*domain.BoardSummary, error)
}

// boardDoc is the CouchDB document shape: one document per board holding
// the entire snapshot. A single Put replaces nodes, edges, metadata and
// version as one unit, which is the all-or-nothing write the sync protocol
// depends on.
type boardDoc struct {
	DocID   string            `json:"_id"`
	Rev     string            `json:"_rev,omitempty"`
	Kind    string            `json:"kind"`
	Board   domain.Board      `json:"board"`
	Nodes   []domain.Node     `json:"nodes"`
	Edges   []domain.Edge     `json:"edges"`
	Version domain.VersionTag `json:"version"`
}

type boardRepository struct {
	client *kivik.Client
	dbName string
}

func NewBoardRepository(client *kivik.Client, dbName string) BoardRepository {
	return &boardRepository{
		client: client,
		dbName: dbName,
	}
}

func boardDocID(boardID string) string {
	return fmt.Sprintf("board:%s", boardID)
}

func (r *boardRepository) Get(ctx context.Context, boardID string) (*domain.Snapshot, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(ctx, boardDocID(boardID))

	var doc boardDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, domain.ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to fetch board: %w", err)
	}

	return &domain.Snapshot{
		Board:   doc.Board,
		Nodes:   doc.Nodes,
		Edges:   doc.Edges,
		Version: doc.Version,
	}, nil
}

func (r *boardRepository) Create(ctx context.Context, snap *domain.Snapshot) error {
	db := r.client.DB(r.dbName)

	doc := boardDoc{
		DocID:   boardDocID(snap.Board.ID),
		Kind:    "board",
		Board:   snap.Board,
		Nodes:   snap.Nodes,
		Edges:   snap.Edges,
		Version: snap.Version,
	}

	if _, err := db.Put(ctx, doc.DocID, doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return domain.ErrBoardExists
		}
		return fmt.Errorf("failed to create board: %w", err)
	}

	return nil
}

func (r *boardRepository) Replace(ctx context.Context, snap *domain.Snapshot) error {
	db := r.client.DB(r.dbName)
	docID := boardDocID(snap.Board.ID)

	var existing boardDoc
	row := db.Get(ctx, docID)
	if err := row.ScanDoc(&existing); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return domain.ErrBoardNotFound
		}
		return fmt.Errorf("failed to fetch board for replace: %w", err)
	}

	doc := boardDoc{
		DocID:   docID,
		Rev:     existing.Rev,
		Kind:    "board",
		Board:   snap.Board,
		Nodes:   snap.Nodes,
		Edges:   snap.Edges,
		Version: snap.Version,
	}

	if _, err := db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to replace board: %w", err)
	}

	return nil
}

func (r *boardRepository) Delete(ctx context.Context, boardID string) error {
	db := r.client.DB(r.dbName)
	docID := boardDocID(boardID)

	var existing boardDoc
	row := db.Get(ctx, docID)
	if err := row.ScanDoc(&existing); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return domain.ErrBoardNotFound
		}
		return fmt.Errorf("failed to fetch board for delete: %w", err)
	}

	if _, err := db.Delete(ctx, docID, existing.Rev); err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}

	return nil
}

func (r *boardRepository) ListVisible(ctx context.Context) ([]*domain.BoardSummary, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"kind": "board",
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.BoardSummary
	for rows.Next() {
		var doc boardDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		if !doc.Board.IsPublic && doc.Board.OwnerID != nil {
			continue
		}
		summaries = append(summaries, &domain.BoardSummary{
			ID:        doc.Board.ID,
			Title:     doc.Board.Title,
			IsPublic:  doc.Board.IsPublic,
			NodeCount: len(doc.Nodes),
			Version:   doc.Version,
			UpdatedAt: doc.Board.UpdatedAt,
		})
	}

	return summaries, nil
}
