package app

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/odyssey-erp/odyssey-build/internal/audit/http"
	"github.com/odyssey-erp/odyssey-build/internal/finance"
	"github.com/odyssey-erp/odyssey-build/internal/inventory"
	"github.com/odyssey-erp/odyssey-build/internal/observability"
	"github.com/odyssey-erp/odyssey-build/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-build/internal/procurement"
	"github.com/odyssey-erp/odyssey-build/jobs"
)

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Metrics            *observability.Metrics
	InventoryHandler   *inventory.Handler
	FinanceHandler     *finance.Handler
	ProcurementHandler *procurement.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
	Readiness          map[string]ReadinessCheck
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Readiness))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.InventoryHandler != nil {
			api.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.FinanceHandler != nil {
			api.Route("/finance", params.FinanceHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			api.Route("/procurement", params.ProcurementHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "no route for "+r.URL.Path)
	})
	return r
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func readinessHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		out := readiness{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				out.Checks[name] = err.Error()
				out.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			out.Checks[name] = "ok"
		}
		httpx.JSON(w, status, out)
	}
}
