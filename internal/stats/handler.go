package stats

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/platform/httpx"
)

// Handler serves the dashboard and organization totals.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler constructs the stats HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, authzMW authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzMW}
}

// MountRoutes registers the dashboard endpoints on the API router.
// Unlike the entity modules these sit at the top of the /api tree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/api/dashboard", h.dashboard)
		r.With(h.authz.RequireAction(authz.ActionManageUsers)).Get("/api/stats", h.globalStats)
	})
}

type recentGameResponse struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Location string `json:"location,omitempty"`
	Sport    string `json:"sport"`
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	dash, err := h.service.Dashboard(r.Context(), pr)
	if err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "dashboard temporarily unavailable")
		return
	}
	recent := make([]recentGameResponse, 0, len(dash.RecentGames))
	for _, g := range dash.RecentGames {
		recent = append(recent, recentGameResponse{
			ID:       g.ID,
			Date:     g.GameDate.Format("2006-01-02"),
			Time:     g.GameTime,
			HomeTeam: g.HomeTeam,
			AwayTeam: g.AwayTeam,
			Location: g.Location,
			Sport:    g.Sport,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"stats": map[string]any{
			"upcoming_games":    dash.UpcomingGames,
			"total_assignments": dash.TotalAssignments,
			"active_officials":  dash.ActiveOfficials,
		},
		"recent_games": recent,
	})
}

func (h *Handler) globalStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.GlobalTotals(r.Context())
	if err != nil {
		h.logger.Error("load totals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "stats temporarily unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stats": map[string]any{
		"total_users":       totals.Users,
		"total_officials":   totals.Officials,
		"total_games":       totals.Games,
		"total_assignments": totals.Assignments,
		"total_leagues":     totals.Leagues,
		"total_locations":   totals.Locations,
	}})
}
