package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-build/internal/audit"
	"github.com/odyssey-erp/odyssey-build/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves audit timeline requests.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	store   blob.Store
	now     func() time.Time
}

// NewHandler builds the audit handler. store may be nil when archives are disabled.
func NewHandler(logger *slog.Logger, service TimelineService, store blob.Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:  logger,
		service: service,
		store:   store,
		now:     time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) handleArchives(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.Problem(w, http.StatusNotImplemented, http.StatusText(http.StatusNotImplemented), "audit archives are not configured")
		return
	}
	prefix := "audit/"
	if year := strings.TrimSpace(r.URL.Query().Get("year")); year != "" {
		if _, err := strconv.Atoi(year); err != nil || len(year) != 4 {
			httpx.RespondError(w, shared.Errorf(shared.KindValidation, "invalid year"))
			return
		}
		prefix += year + "/"
	}
	infos, err := h.store.List(r.Context(), prefix)
	if err != nil {
		h.handleServerError(w, "list audit archives", err)
		return
	}
	httpx.JSON(w, http.StatusOK, infos)
}

// parseFilters reads from/to as dates; to is inclusive of the whole day.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return audit.TimelineFilters{}, invalidFilter("to")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return audit.TimelineFilters{}, invalidFilter("from")
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, invalidFilter("range")
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, invalidFilter("range")
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, invalidFilter("page")
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, invalidFilter("page_size")
		}
		pageSize = min(parsed, maxPageSize)
	}

	return audit.TimelineFilters{
		From:     fromTime,
		To:       toTime.AddDate(0, 0, 1),
		Actor:    strings.TrimSpace(q.Get("actor")),
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func invalidFilter(field string) error {
	return shared.Errorf(shared.KindValidation, "invalid %s filter", field)
}
