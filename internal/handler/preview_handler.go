package handler

import (
	"errors"
	"net/http"

	"caseboard-sync-server/internal/service"
	"caseboard-sync-server/pkg/response"
)

type PreviewHandler struct {
	service *service.PreviewService
}

func NewPreviewHandler(service *service.PreviewService) *PreviewHandler {
	return &PreviewHandler{service: service}
}

func (h *PreviewHandler) Unfurl(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		response.BadRequest(w, "url is required")
		return
	}

	preview, err := h.service.Fetch(r.Context(), rawURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPreviewInvalidURL), errors.Is(err, service.ErrPreviewBlocked):
			response.Error(w, http.StatusUnprocessableEntity, "URL cannot be previewed")
		case errors.Is(err, service.ErrPreviewTimeout):
			response.Error(w, http.StatusGatewayTimeout, "Preview fetch timed out")
		default:
			response.Error(w, http.StatusBadGateway, "Preview fetch failed")
		}
		return
	}

	response.JSON(w, http.StatusOK, preview)
}
