package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"caseboard-sync-server/internal/domain"
	"caseboard-sync-server/internal/service"
	"caseboard-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type BoardHandler struct {
	service  *service.BoardService
	validate *validator.Validate
}

func NewBoardHandler(service *service.BoardService) *BoardHandler {
	return &BoardHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	boards, err := h.service.List(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list boards")
		return
	}

	response.JSON(w, http.StatusOK, boards)
}

func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["id"]
	if boardID == "" {
		response.BadRequest(w, "Board ID is required")
		return
	}

	snap, err := h.service.Get(r.Context(), boardID)
	if err != nil {
		if errors.Is(err, domain.ErrBoardNotFound) {
			response.NotFound(w, "Board not found")
			return
		}
		response.InternalError(w, "Failed to fetch board")
		return
	}

	response.JSON(w, http.StatusOK, snap)
}

func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["id"]
	if boardID == "" {
		response.BadRequest(w, "Board ID is required")
		return
	}

	var req domain.SaveBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	snap, err := h.service.Create(r.Context(), boardID, &req)
	if err != nil {
		if errors.Is(err, domain.ErrBoardExists) {
			response.Error(w, http.StatusConflict, "Board already exists")
			return
		}
		response.InternalError(w, "Failed to create board")
		return
	}

	response.JSON(w, http.StatusCreated, snap)
}

func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["id"]
	if boardID == "" {
		response.BadRequest(w, "Board ID is required")
		return
	}

	var req domain.SaveBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	snap, err := h.service.Replace(r.Context(), boardID, &req)
	if err != nil {
		if errors.Is(err, domain.ErrBoardNotFound) {
			response.NotFound(w, "Board not found")
			return
		}
		var conflict *domain.VersionConflictError
		if errors.As(err, &conflict) {
			response.Conflict(w, conflict.Current)
			return
		}
		response.InternalError(w, "Failed to save board")
		return
	}

	response.JSON(w, http.StatusOK, snap)
}

func (h *BoardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["id"]
	if boardID == "" {
		response.BadRequest(w, "Board ID is required")
		return
	}

	if err := h.service.Delete(r.Context(), boardID); err != nil {
		response.InternalError(w, "Failed to delete board")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Board deleted"})
}
