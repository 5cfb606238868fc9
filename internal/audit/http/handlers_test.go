package audithttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-build/internal/audit"
	"github.com/odyssey-erp/odyssey-build/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newAuditRouter(service *stubTimelineService, store blob.Store) http.Handler {
	handler := NewHandler(nil, service, store)
	handler.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(shared.ActorMiddleware)
	handler.MountRoutes(r)
	return r
}

func TestTimelineReturnsRows(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), Actor: "auditor", Action: "PO_RECEIVE", Entity: "purchase_order", EntityID: "1"}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	router := newAuditRouter(service, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?from=2026-03-01&to=2026-03-15&entity=purchase_order", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got audit.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0].Actor != "auditor" {
		t.Fatalf("unexpected rows: %+v", got.Rows)
	}
	if service.lastFilters.From.Format("2006-01-02") != "2026-03-01" || service.lastFilters.To.Format("2006-01-02") != "2026-03-16" {
		t.Fatalf("unexpected filters: %+v", service.lastFilters)
	}
	if service.lastFilters.Entity != "purchase_order" {
		t.Fatalf("entity filter not applied: %+v", service.lastFilters)
	}
}

func TestTimelineRejectsBadRange(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{}, nil)
	for _, query := range []string{"from=2026-03-10&to=2026-03-01", "from=2025-01-01&to=2026-03-01", "to=yesterday", "page=0"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{ID: 1, Actor: "auditor", Action: "PO_CREATE"}}}
	router := newAuditRouter(service, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit/export.csv?from=2026-03-01&to=2026-03-05", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if !strings.Contains(rr.Body.String(), "PO_CREATE") {
		t.Fatalf("expected action in csv: %s", rr.Body.String())
	}
}

func TestExportRateLimitedPerActor(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{}, nil)
	var last int
	for i := 0; i <= rateLimit; i++ {
		req := httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil)
		req.Header.Set(shared.ActorHeader, "auditor")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d requests, got %d", rateLimit, last)
	}

	req := httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil)
	req.Header.Set(shared.ActorHeader, "someone-else")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected other actor to pass, got %d", rr.Code)
	}
}

func TestArchivesListing(t *testing.T) {
	store := blob.NewMemoryStore()
	ctx := context.Background()
	for _, key := range []string{"audit/2025/12/31.csv", "audit/2026/01/01.csv", "exports/other.xlsx"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), blob.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	router := newAuditRouter(&stubTimelineService{}, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit/archives?year=2026", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var infos []blob.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "audit/2026/01/01.csv" {
		t.Fatalf("unexpected archives: %+v", infos)
	}

	noStore := newAuditRouter(&stubTimelineService{}, nil)
	rr = httptest.NewRecorder()
	noStore.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit/archives", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}
