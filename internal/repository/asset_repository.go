package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"caseboard-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type AssetRepository interface {
	Put(ctx context.Context, boardID, assetID, contentType string, data []byte) error
	Get(ctx context.Context, boardID, assetID string) ([]byte, string, error)
	DeleteAll(ctx context.Context, boardID string) error
}

// Uploaded images live as CouchDB attachments on one container document
// per board, so cascading a board delete is a single document delete.
type assetDoc struct {
	DocID   string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	Kind    string `json:"kind"`
	BoardID string `json:"board_id"`
}

type assetRepository struct {
	client *kivik.Client
	dbName string
}

func NewAssetRepository(client *kivik.Client, dbName string) AssetRepository {
	return &assetRepository{
		client: client,
		dbName: dbName,
	}
}

func assetDocID(boardID string) string {
	return fmt.Sprintf("assets:%s", boardID)
}

func (r *assetRepository) Put(ctx context.Context, boardID, assetID, contentType string, data []byte) error {
	db := r.client.DB(r.dbName)
	docID := assetDocID(boardID)

	var container assetDoc
	row := db.Get(ctx, docID)
	if err := row.ScanDoc(&container); err != nil {
		if kivik.HTTPStatus(err) != http.StatusNotFound {
			return fmt.Errorf("failed to fetch asset container: %w", err)
		}
		container = assetDoc{DocID: docID, Kind: "assets", BoardID: boardID}
		rev, err := db.Put(ctx, docID, container)
		if err != nil {
			return fmt.Errorf("failed to create asset container: %w", err)
		}
		container.Rev = rev
	}

	att := &kivik.Attachment{
		Filename:    assetID,
		ContentType: contentType,
		Content:     io.NopCloser(bytes.NewReader(data)),
	}

	if _, err := db.PutAttachment(ctx, docID, att, kivik.Rev(container.Rev)); err != nil {
		return fmt.Errorf("failed to store asset: %w", err)
	}

	return nil
}

func (r *assetRepository) Get(ctx context.Context, boardID, assetID string) ([]byte, string, error) {
	db := r.client.DB(r.dbName)

	att, err := db.GetAttachment(ctx, assetDocID(boardID), assetID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, "", domain.ErrAssetNotFound
		}
		return nil, "", fmt.Errorf("failed to fetch asset: %w", err)
	}
	defer att.Content.Close()

	data, err := io.ReadAll(att.Content)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read asset: %w", err)
	}

	return data, att.ContentType, nil
}

func (r *assetRepository) DeleteAll(ctx context.Context, boardID string) error {
	db := r.client.DB(r.dbName)
	docID := assetDocID(boardID)

	var container assetDoc
	row := db.Get(ctx, docID)
	if err := row.ScanDoc(&container); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to fetch asset container for delete: %w", err)
	}

	if _, err := db.Delete(ctx, docID, container.Rev); err != nil {
		return fmt.Errorf("failed to delete assets: %w", err)
	}

	return nil
}
