package audit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/platform/httpx"
)

const maxDateRangeDays = 90

// Handler serves the audit timeline listing.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler constructs the audit HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, authzMW authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzMW}
}

// MountRoutes registers the audit endpoint. Assigners and officials
// have no audit window, so the whole subtree sits behind manage_users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Use(h.authz.RequireAction(authz.ActionManageUsers))
		r.Get("/", h.timeline)
	})
}

type rowResponse struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Actor    string         `json:"actor,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type pagingResponse struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.parseFilters(w, r)
	if !ok {
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]rowResponse, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, rowResponse{
			ID:       row.ID,
			At:       row.At,
			ActorID:  row.ActorID,
			Actor:    row.Actor,
			Action:   row.Action,
			Entity:   row.Entity,
			EntityID: row.EntityID,
			Meta:     row.Meta,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"logs": out,
		"paging": pagingResponse{
			Page:     result.Paging.Page,
			PageSize: result.Paging.PageSize,
			HasNext:  result.Paging.HasNext,
			PrevPage: result.Paging.PrevPage,
			NextPage: result.Paging.NextPage,
		},
	})
}

func (h *Handler) parseFilters(w http.ResponseWriter, r *http.Request) (Filters, bool) {
	q := r.URL.Query()
	var f Filters

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return Filters{}, false
		}
		f.From = parsed
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return Filters{}, false
		}
		f.To = parsed
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		if f.From.After(f.To) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from is after to")
			return Filters{}, false
		}
		if f.To.Sub(f.From) > maxDateRangeDays*24*time.Hour {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date range exceeds 90 days")
			return Filters{}, false
		}
	}
	if v := strings.TrimSpace(q.Get("actor")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor must be a user id")
			return Filters{}, false
		}
		f.ActorID = id
	}
	f.Entity = strings.TrimSpace(q.Get("entity"))
	f.Action = strings.TrimSpace(q.Get("action"))
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "page must be a positive integer")
			return Filters{}, false
		}
		f.Page = page
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "page_size must be a positive integer")
			return Filters{}, false
		}
		f.PageSize = size
	}
	return f, true
}
