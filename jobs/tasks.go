package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-build/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockAlert notifies purchasing that an item dropped to Low Stock or Out of Stock.
	TaskStockAlert = "stock:alert"
	// TaskAuditArchive writes one day of audit entries to the blob store.
	TaskAuditArchive = "audit:archive"
)

// dayLayout is the date format carried in archive payloads.
const dayLayout = "2006-01-02"

// StockAlertPayload is the task body for TaskStockAlert.
type StockAlertPayload = inventory.StockAlert

// AuditArchivePayload selects the UTC day to archive. Empty means yesterday.
type AuditArchivePayload struct {
	Day string `json:"day,omitempty"`
}

// NewStockAlertTask constructs an Asynq task for a stock alert.
func NewStockAlertTask(alert inventory.StockAlert) (*asynq.Task, error) {
	body, err := json.Marshal(StockAlertPayload(alert))
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAlert, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewAuditArchiveTask constructs an archive task. A zero day leaves the choice
// to the handler so cron registrations always archive the previous day.
func NewAuditArchiveTask(day time.Time) (*asynq.Task, error) {
	payload := AuditArchivePayload{}
	if !day.IsZero() {
		payload.Day = day.UTC().Format(dayLayout)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditArchive, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
