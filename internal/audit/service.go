package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-build/internal/platform/blob"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository is the read side of audit_logs.
type Repository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Service serves the audit timeline and daily archives.
type Service struct {
	repo   Repository
	store  blob.Store
	logger *slog.Logger
}

// NewService builds the audit service. store may be nil when archiving is disabled.
func NewService(repo Repository, store blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, store: store, logger: logger}
}

// Timeline loads one page of entries.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.TimelineWindow(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every entry matching filters without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.TimelineAll(ctx, filters)
}

// ArchiveKey is the blob key holding the archive for day.
func ArchiveKey(day time.Time) string {
	return day.UTC().Format("audit/2006/01/02.csv")
}

// Archive writes the UTC day's entries as CSV into the blob store.
// Re-running it for the same day overwrites the object.
func (s *Service) Archive(ctx context.Context, day time.Time) (ArchiveResult, error) {
	if s.store == nil {
		return ArchiveResult{}, errors.New("audit: blob store not configured")
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := s.Export(ctx, TimelineFilters{From: start, To: start.AddDate(0, 0, 1)})
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("load audit day %s: %w", start.Format("2006-01-02"), err)
	}
	payload, err := WriteCSV(rows)
	if err != nil {
		return ArchiveResult{}, err
	}
	key := ArchiveKey(start)
	info, err := s.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"rows": strconv.Itoa(len(rows))},
	})
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("store audit archive %s: %w", key, err)
	}
	s.logger.Info("audit archive written", slog.String("key", key), slog.Int("rows", len(rows)))
	return ArchiveResult{Day: start, Key: key, Rows: len(rows), Size: info.Size}, nil
}

var csvHeader = []string{"id", "occurred_at", "actor", "action", "entity", "entity_id", "meta"}

// WriteCSV encodes rows with a header line. Meta is written as compact JSON.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return nil, fmt.Errorf("encode meta for audit %d: %w", row.ID, err)
			}
			meta = string(raw)
		}
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.At.UTC().Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
