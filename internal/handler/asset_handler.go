package handler

import (
	"errors"
	"io"
	"net/http"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/internal/service"
	"caseboard-sync-server/pkg/response"

	"github.com/gorilla/mux"
)

type AssetHandler struct {
	service        *service.AssetService
	maxUploadBytes int64
}

func NewAssetHandler(service *service.AssetService, maxUploadBytes int64) *AssetHandler {
	return &AssetHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload accepts raw image bytes in the request body, scoped to a board by
// the projectId query parameter.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	boardID := r.URL.Query().Get("projectId")
	if boardID == "" {
		response.BadRequest(w, "projectId is required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxUploadBytes+1))
	if err != nil {
		response.BadRequest(w, "Failed to read upload body")
		return
	}

	info, err := h.service.Upload(r.Context(), boardID, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssetTooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, "Upload too large")
		case errors.Is(err, service.ErrNotAnImage):
			response.Error(w, http.StatusUnsupportedMediaType, "Not a supported image")
		default:
			response.InternalError(w, "Failed to store asset")
		}
		return
	}

	response.JSON(w, http.StatusCreated, info)
}

func (h *AssetHandler) Serve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	boardID := vars["projectId"]
	assetID := vars["assetId"]

	data, contentType, err := h.service.Fetch(r.Context(), boardID, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) {
			response.NotFound(w, "Asset not found")
			return
		}
		response.InternalError(w, "Failed to fetch asset")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
