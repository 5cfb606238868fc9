package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.handleList)
	r.Post("/items", h.handleCreate)
	r.Get("/items/{id}", h.handleGet)
	r.Post("/items/{id}/adjust", h.handleAdjust)
}

type itemListResponse struct {
	Items      []Item            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

type adjustRequest struct {
	Delta int64 `json:"delta" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status:    StockStatus(q.Get("status")),
		Category:  q.Get("category"),
		Warehouse: q.Get("warehouse"),
		Search:    q.Get("search"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	items, pagination, err := h.service.ListItems(r.Context(), filters)
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemListResponse{Items: items, Pagination: pagination})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateItemInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), input)
	if err != nil {
		h.fail(w, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Errorf(shared.KindValidation, "invalid item id"))
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Errorf(shared.KindValidation, "invalid item id"))
		return
	}
	var req adjustRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	adj, err := h.service.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
