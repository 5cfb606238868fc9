package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-build/internal/audit"
	"github.com/odyssey-erp/odyssey-build/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-build/internal/jobs"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type countingObserver struct{ statuses []string }

func (o *countingObserver) ObserveStockAlert(status string) { o.statuses = append(o.statuses, status) }

type stubArchiver struct {
	days []time.Time
	err  error
}

func (s *stubArchiver) Archive(_ context.Context, day time.Time) (audit.ArchiveResult, error) {
	s.days = append(s.days, day)
	return audit.ArchiveResult{Day: day, Key: audit.ArchiveKey(day)}, s.err
}

func TestStockAlertJobRecordsAudit(t *testing.T) {
	rec := &recordingAudit{}
	observer := &countingObserver{}
	job := NewStockAlertJob(rec, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()), observer)
	alert := inventory.StockAlert{ItemID: uuid.New(), Name: "Cement", Quantity: 3, Status: inventory.StatusLowStock}
	task, err := NewStockAlertTask(alert)
	require.NoError(t, err)
	require.Equal(t, TaskStockAlert, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, rec.logs, 1)
	require.Equal(t, "STOCK_ALERT", rec.logs[0].Action)
	require.Equal(t, alert.ItemID.String(), rec.logs[0].EntityID)
	require.Equal(t, shared.SystemActor, rec.logs[0].Actor)
	require.Equal(t, []string{"Low Stock"}, observer.statuses)

	rec.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))
}

func TestStockAlertJobSkipsBadPayloads(t *testing.T) {
	job := NewStockAlertJob(&recordingAudit{}, nil, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskStockAlert, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	body, _ := json.Marshal(inventory.StockAlert{ItemID: uuid.New(), Quantity: 50, Status: inventory.StatusInStock})
	err = job.Handle(context.Background(), asynq.NewTask(TaskStockAlert, body))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditArchiveJobDefaultsToYesterday(t *testing.T) {
	archiver := &stubArchiver{}
	job := NewAuditArchiveJob(archiver, nil, nil)
	job.clock = func() time.Time { return time.Date(2026, 4, 2, 1, 0, 0, 0, time.UTC) }

	task, err := NewAuditArchiveTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewAuditArchiveTask(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, archiver.days, 2)
	require.Equal(t, "2026-04-01", archiver.days[0].Format(dayLayout))
	require.Equal(t, "2026-03-15", archiver.days[1].Format(dayLayout))

	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditArchive, []byte(`{"day":"15/03/2026"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	archiver.err = errors.New("bucket missing")
	require.Error(t, job.Handle(context.Background(), task))
}

func TestClientPublishesStockAlert(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { _ = client.Close() })

	var publisher inventory.AlertPublisher = client
	err := publisher.PublishStockAlert(context.Background(), inventory.StockAlert{ItemID: uuid.New(), Name: "Tiles", Status: inventory.StatusOutOfStock})
	require.NoError(t, err)

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 4, body.Pending)

	down := chi.NewRouter()
	down.Route("/jobs", NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes)
	rr = httptest.NewRecorder()
	down.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
