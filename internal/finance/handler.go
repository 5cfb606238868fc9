package finance

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// Handler exposes accounts and ledger entries over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the finance handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.handleListAccounts)
	r.Post("/accounts", h.handleCreateAccount)
	r.Post("/accounts/{id}/default", h.handleSetDefault)
	r.Get("/transactions", h.handleListTransactions)
	r.Post("/transactions", h.handleCreateTransaction)
}

type transactionListResponse struct {
	Transactions []Transaction    `json:"transactions"`
	Pagination   shared.Pagination `json:"pagination"`
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var input CreateAccountInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.CreateAccount(r.Context(), input)
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Errorf(shared.KindValidation, "invalid account id"))
		return
	}
	acc, err := h.service.SetDefaultAccount(r.Context(), id)
	if err != nil {
		h.fail(w, "set default account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var input CreateTransactionInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	txn, err := h.service.CreateTransaction(r.Context(), input)
	if err != nil {
		h.fail(w, "create transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Type: TransactionType(q.Get("type"))}
	for param, dst := range map[string]*uuid.NullUUID{
		"project_id":        &filters.ProjectID,
		"supplier_id":       &filters.SupplierID,
		"purchase_order_id": &filters.PurchaseOrderID,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, shared.Errorf(shared.KindValidation, "invalid %s", param))
			return
		}
		*dst = uuid.NullUUID{UUID: id, Valid: true}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	txns, pagination, err := h.service.ListTransactions(r.Context(), filters)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, transactionListResponse{Transactions: txns, Pagination: pagination})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
