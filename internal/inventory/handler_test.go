package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo, nil, nil, logger))
	r := chi.NewRouter()
	r.Route("/inventory", h.MountRoutes)
	return r
}

func TestHandlerAdjustNegativeStock(t *testing.T) {
	item := seedItem("Tiles", 2)
	router := newTestRouter(newMemoryRepo(item))

	req := httptest.NewRequest(http.MethodPost, "/inventory/items/"+item.ID.String()+"/adjust", strings.NewReader(`{"delta":-5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "NegativeStock", problem.Kind)
}

func TestHandlerCreateAndGet(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	req := httptest.NewRequest(http.MethodPost, "/inventory/items", strings.NewReader(`{"name":"Steel beams","quantity":25,"warehouse":"north"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusInStock, created.Status)

	req = httptest.NewRequest(http.MethodGet, "/inventory/items/"+created.ID.String(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/inventory/items/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAdjustRequiresDelta(t *testing.T) {
	item := seedItem("Nails", 50)
	router := newTestRouter(newMemoryRepo(item))

	req := httptest.NewRequest(http.MethodPost, "/inventory/items/"+item.ID.String()+"/adjust", strings.NewReader(`{"delta":0}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
