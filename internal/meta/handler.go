package meta

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/platform/httpx"
)

// RepositoryPort defines data access methods for the level hierarchy.
type RepositoryPort interface {
	Levels(ctx context.Context, f LevelFilters) ([]PredeterminedLevel, error)
	AvailableSports(ctx context.Context) ([]string, error)
	AvailableCategories(ctx context.Context, sport string) ([]string, error)
}

// Handler serves the reference vocabulary. Everything here is read-only
// and visible to every authenticated role.
type Handler struct {
	logger *slog.Logger
	repo   RepositoryPort
	authz  authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo RepositoryPort, authzMW authz.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, authz: authzMW}
}

// MountRoutes registers reference data routes on the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/sports", h.listSports)
		r.Get("/sports-list", h.listAvailableSports)
		r.Get("/categories-list", h.listCategories)
		r.Get("/predetermined-levels", h.listLevels)
		r.Get("/predetermined-levels/sport/{sport}", h.levelsBySport)
	})
}

type levelResponse struct {
	ID           int64  `json:"id"`
	Sport        string `json:"sport,omitempty"`
	Category     string `json:"category,omitempty"`
	LevelName    string `json:"level_name"`
	DisplayOrder int    `json:"display_order"`
	Description  string `json:"description,omitempty"`
}

func (h *Handler) listSports(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"sports": Sports})
}

func (h *Handler) listAvailableSports(w http.ResponseWriter, r *http.Request) {
	sports, err := h.repo.AvailableSports(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sports": sports})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.AvailableCategories(r.Context(), r.URL.Query().Get("sport"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	levels, err := h.repo.Levels(r.Context(), LevelFilters{
		Sport:    q.Get("sport"),
		Category: q.Get("category"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]levelResponse, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, levelResponse{
			ID:           lvl.ID,
			Sport:        lvl.Sport,
			Category:     lvl.Category,
			LevelName:    lvl.LevelName,
			DisplayOrder: lvl.DisplayOrder,
			Description:  lvl.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": out})
}

// levelsBySport groups one sport's levels by category, the shape the
// league setup form consumes.
func (h *Handler) levelsBySport(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	levels, err := h.repo.Levels(r.Context(), LevelFilters{Sport: sport})
	if err != nil {
		h.respondError(w, err)
		return
	}
	grouped := map[string][]levelResponse{}
	for _, lvl := range levels {
		grouped[lvl.Category] = append(grouped[lvl.Category], levelResponse{
			ID:           lvl.ID,
			LevelName:    lvl.LevelName,
			DisplayOrder: lvl.DisplayOrder,
			Description:  lvl.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sport": sport, "levels": grouped})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	h.logger.Error("meta handler", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
