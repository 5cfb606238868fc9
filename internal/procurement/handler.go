package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// IdempotencyHeader carries the client supplied key for order creation.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for procurement module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Post("/orders", h.handleCreate)
	r.Get("/orders/export", h.handleExport)
	r.Get("/orders/{id}", h.handleGet)
	r.Post("/orders/{id}/status", h.handleTransition)
	r.Post("/orders/{id}/receive", h.handleReceive)
}

type orderListResponse struct {
	Orders     []PurchaseOrder   `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	po, err := h.service.CreatePurchaseOrder(r.Context(), input, key)
	if err != nil {
		h.fail(w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, pagination, err := h.service.ListPurchaseOrders(r.Context(), filters)
	if err != nil {
		h.fail(w, "list purchase orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderListResponse{Orders: orders, Pagination: pagination})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.TransitionStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		h.fail(w, "transition purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	result, err := h.service.ReceivePurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "receive purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, filename, err := h.service.ExportRegister(r.Context(), filters)
	if err != nil {
		h.fail(w, "export purchase orders", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		h.logger.Error("write purchase order export", slog.Any("error", err))
	}
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
	}
	for param, dst := range map[string]*uuid.NullUUID{
		"supplier_id": &filters.SupplierID,
		"project_id":  &filters.ProjectID,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, shared.Errorf(shared.KindValidation, "invalid %s", param)
		}
		*dst = uuid.NullUUID{UUID: id, Valid: true}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return filters, nil
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Errorf(shared.KindValidation, "invalid purchase order id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
