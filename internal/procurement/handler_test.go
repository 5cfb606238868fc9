package procurement

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

func newTestRouter(store *memoryStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, _ := newTestService(store)
	h := NewHandler(logger, svc)
	r := chi.NewRouter()
	r.Use(shared.ActorMiddleware)
	r.Route("/procurement", h.MountRoutes)
	return r
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateWithIdempotencyKey(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store)
	body := `{"item_name":"Gravel","quantity":10,"unit_cost":"4.5","supplier_id":"` + uuid.NewString() + `","project_id":"` + uuid.NewString() + `"}`
	headers := map[string]string{IdempotencyHeader: "abc", shared.ActorHeader: "buyer"}

	rec := doRequest(router, http.MethodPost, "/procurement/orders", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	var po PurchaseOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &po))
	require.Equal(t, StatusPending, po.Status)
	require.Equal(t, "buyer", po.RequestedBy)
	require.True(t, po.TotalCost.Equal(decimal.NewFromInt(45)))

	rec = doRequest(router, http.MethodPost, "/procurement/orders", body, headers)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodPost, "/procurement/orders", `{"item_name":"Gravel","quantity":0}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerTransitionErrors(t *testing.T) {
	store := newMemoryStore()
	po := store.seedOrder(PurchaseOrder{ItemName: "Rebar", Quantity: 2, UnitCost: decimal.NewFromInt(10), Status: StatusApproved})
	pending := store.seedOrder(PurchaseOrder{ItemName: "Rebar", Quantity: 2, UnitCost: decimal.NewFromInt(10), Status: StatusPending})
	router := newTestRouter(store)

	rec := doRequest(router, http.MethodPost, "/procurement/orders/"+po.ID.String()+"/status", `{"status":"Ordered"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "NoAccountConfigured", problem.Kind)

	rec = doRequest(router, http.MethodPost, "/procurement/orders/"+pending.ID.String()+"/status", `{"status":"Received"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "InvalidTransition", problem.Kind)

	rec = doRequest(router, http.MethodPost, "/procurement/orders/"+uuid.NewString()+"/receive", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/procurement/orders/nope", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerReceiveFlow(t *testing.T) {
	store := newMemoryStore()
	item := store.seedItem("Cement", 5)
	store.seedAccount("Operating", true)
	po := store.seedOrder(PurchaseOrder{ItemID: uuid.NullUUID{UUID: item.ID, Valid: true}, ItemName: "Cement", Quantity: 100, UnitCost: decimal.NewFromInt(5), Status: StatusApproved})
	router := newTestRouter(store)

	rec := doRequest(router, http.MethodPost, "/procurement/orders/"+po.ID.String()+"/status", `{"status":"Ordered"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/procurement/orders/"+po.ID.String()+"/receive", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipt ReceiptResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.Equal(t, int64(105), receipt.Quantity)
	require.Equal(t, "In Stock", receipt.StockStatus)
	require.Equal(t, StatusReceived, receipt.Order.Status)

	rec = doRequest(router, http.MethodGet, "/procurement/orders?status=Received", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list orderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Orders, 1)
}

func TestHandlerExport(t *testing.T) {
	store := newMemoryStore()
	store.seedOrder(PurchaseOrder{ItemName: "Bolt", Quantity: 1, UnitCost: decimal.NewFromInt(1), Status: StatusPending})
	router := newTestRouter(store)

	rec := doRequest(router, http.MethodGet, "/procurement/orders/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "purchase-orders-")
	require.NotZero(t, rec.Body.Len())

	rec = doRequest(router, http.MethodGet, "/procurement/orders/export?supplier_id=bad", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
