package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-build/internal/jobs"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AlertObserver counts handled alerts.
type AlertObserver interface {
	ObserveStockAlert(status string)
}

// StockAlertJob records stock alerts in the audit trail.
type StockAlertJob struct {
	Audit    AuditRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Observer AlertObserver
}

// NewStockAlertJob initialises the stock alert handler.
func NewStockAlertJob(audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics, observer AlertObserver) *StockAlertJob {
	return &StockAlertJob{Audit: audit, Logger: logger, Metrics: metrics, Observer: observer}
}

// Handle processes TaskStockAlert tasks.
func (j *StockAlertJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Audit == nil {
		return errors.New("stock alert: handler not configured")
	}
	var payload StockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !payload.Status.NeedsAlert() {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskStockAlert)
	defer func() { err = tracker.End(err) }()

	j.logger().Warn("stock level alert",
		slog.String("item_id", payload.ItemID.String()),
		slog.String("item", payload.Name),
		slog.Int64("quantity", payload.Quantity),
		slog.String("status", string(payload.Status)),
	)
	err = j.Audit.Record(ctx, shared.AuditLog{
		Actor:    shared.SystemActor,
		Action:   "STOCK_ALERT",
		Entity:   "inventory_item",
		EntityID: payload.ItemID.String(),
		Meta: map[string]any{
			"name":     payload.Name,
			"quantity": payload.Quantity,
			"status":   string(payload.Status),
		},
	})
	if err != nil {
		return err
	}
	if j.Observer != nil {
		j.Observer.ObserveStockAlert(string(payload.Status))
	}
	return nil
}

func (j *StockAlertJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
