package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"caseboard-sync-server/internal/repository"

	"github.com/google/uuid"
)

// AssetInfo is the upload response contract: where the bytes are served
// from plus the decoded dimensions. No transcoding happens here, so the
// thumbnail URL is the asset URL itself.
type AssetInfo struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type AssetService struct {
	repo           repository.AssetRepository
	maxUploadBytes int64
}

func NewAssetService(repo repository.AssetRepository, maxUploadBytes int64) *AssetService {
	return &AssetService{
		repo:           repo,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *AssetService) Upload(ctx context.Context, boardID string, data []byte) (*AssetInfo, error) {
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrAssetTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}

	assetID := uuid.New().String()
	if err := s.repo.Put(ctx, boardID, assetID, contentType, data); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("/api/v1/assets/%s/%s", boardID, assetID)
	return &AssetInfo{
		URL:          url,
		ThumbnailURL: url,
		Width:        cfg.Width,
		Height:       cfg.Height,
	}, nil
}

func (s *AssetService) Fetch(ctx context.Context, boardID, assetID string) ([]byte, string, error) {
	return s.repo.Get(ctx, boardID, assetID)
}
