package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/refdesk/refdesk/internal/assignments"
	"github.com/refdesk/refdesk/internal/audit"
	"github.com/refdesk/refdesk/internal/auth"
	"github.com/refdesk/refdesk/internal/billing"
	"github.com/refdesk/refdesk/internal/games"
	"github.com/refdesk/refdesk/internal/leagues"
	"github.com/refdesk/refdesk/internal/locations"
	"github.com/refdesk/refdesk/internal/meta"
	"github.com/refdesk/refdesk/internal/observability"
	"github.com/refdesk/refdesk/internal/officials"
	"github.com/refdesk/refdesk/internal/shared"
	"github.com/refdesk/refdesk/internal/stats"
	"github.com/refdesk/refdesk/internal/users"
	"github.com/refdesk/refdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	LeaguesHandler     *leagues.Handler
	GamesHandler       *games.Handler
	AssignmentsHandler *assignments.Handler
	OfficialsHandler   *officials.Handler
	LocationsHandler   *locations.Handler
	MetaHandler        *meta.Handler
	BillingHandler     *billing.Handler
	StatsHandler       *stats.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the RefDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		params.MetaHandler.MountRoutes(r)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/leagues", params.LeaguesHandler.MountRoutes)
		r.Route("/games", params.GamesHandler.MountRoutes)
		r.Route("/assignments", params.AssignmentsHandler.MountRoutes)
		r.Route("/officials", params.OfficialsHandler.MountRoutes)
		r.Route("/locations", params.LocationsHandler.MountRoutes)
		r.Route("/bill-to-entities", params.BillingHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
	})

	// The stats handler registers /api/dashboard and /api/stats itself;
	// chi prefers the static routes over the /api subtree wildcard.
	params.StatsHandler.MountRoutes(r)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
