package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-build/internal/audit"
	jobmetrics "github.com/odyssey-erp/odyssey-build/internal/jobs"
)

// Archiver writes one day of audit entries to storage.
type Archiver interface {
	Archive(ctx context.Context, day time.Time) (audit.ArchiveResult, error)
}

// AuditArchiveJob runs the daily audit archive.
type AuditArchiveJob struct {
	Archiver Archiver
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewAuditArchiveJob initialises the archive handler.
func NewAuditArchiveJob(archiver Archiver, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditArchiveJob {
	return &AuditArchiveJob{
		Archiver: archiver,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAuditArchive tasks.
func (j *AuditArchiveJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Archiver == nil {
		return errors.New("audit archive: handler not configured")
	}
	var payload AuditArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	day := j.clock().AddDate(0, 0, -1)
	if payload.Day != "" {
		parsed, err := time.Parse(dayLayout, payload.Day)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}

	tracker := j.Metrics.Track(TaskAuditArchive)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	result, err := j.Archiver.Archive(ctx, day)
	if err != nil {
		logger.Error("audit archive failed", slog.String("day", day.Format(dayLayout)), slog.Any("error", err))
		return err
	}
	logger.Info("audit archive complete", slog.String("key", result.Key), slog.Int("rows", result.Rows))
	return nil
}
