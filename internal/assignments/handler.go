package assignments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/platform/httpx"
	"github.com/refdesk/refdesk/internal/shared"
)

// Handler manages assignment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authzMW authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzMW, validator: validator.New()}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/", h.listAssignments)
		r.Get("/{id}", h.getAssignment)
		r.Group(func(r chi.Router) {
			r.Use(h.authz.RequireAction(authz.ActionAssignGames))
			r.Post("/", h.createAssignment)
			r.Post("/bulk", h.bulkAssign)
			r.Get("/stats", h.stats)
			r.Put("/{id}", h.updateAssignment)
			r.Delete("/{id}", h.deleteAssignment)
		})
	})
}

type assignmentRequest struct {
	GameID     int64    `json:"game_id" validate:"required"`
	OfficialID int64    `json:"official_id" validate:"required"`
	Position   string   `json:"position" validate:"max=50"`
	Fee        *float64 `json:"fee"`
}

type assignmentUpdateRequest struct {
	Position *string  `json:"position" validate:"omitempty,max=50"`
	Status   *string  `json:"status"`
	Fee      *float64 `json:"fee"`
}

type bulkAssignRequest struct {
	IdempotencyKey string              `json:"idempotency_key" validate:"max=64"`
	Assignments    []assignmentRequest `json:"assignments" validate:"required,min=1,dive"`
}

type assignmentResponse struct {
	ID           int64     `json:"id"`
	GameID       int64     `json:"game_id"`
	OfficialID   int64     `json:"official_id"`
	OfficialName string    `json:"official_name,omitempty"`
	Position     string    `json:"position"`
	Status       string    `json:"status"`
	Fee          float64   `json:"fee"`
	AssignedAt   time.Time `json:"assigned_at"`
	LeagueID     int64     `json:"league_id,omitempty"`
	GameDate     string    `json:"game_date"`
	GameTime     string    `json:"game_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Sport        string    `json:"sport"`
	Location     string    `json:"location,omitempty"`
}

type bulkRowResponse struct {
	GameID     int64  `json:"game_id"`
	OfficialID int64  `json:"official_id"`
	ID         int64  `json:"id,omitempty"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

func toAssignmentResponse(a Assignment) assignmentResponse {
	return assignmentResponse{
		ID:           a.ID,
		GameID:       a.GameID,
		OfficialID:   a.OfficialID,
		OfficialName: a.OfficialName,
		Position:     a.Position,
		Status:       a.Status,
		Fee:          a.Fee,
		AssignedAt:   a.AssignedAt,
		LeagueID:     a.LeagueID,
		GameDate:     a.GameDate.Format("2006-01-02"),
		GameTime:     a.GameTime,
		HomeTeam:     a.HomeTeam,
		AwayTeam:     a.AwayTeam,
		Sport:        a.Sport,
		Location:     a.Location,
	}
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	gameID, _ := strconv.ParseInt(q.Get("game_id"), 10, 64)
	officialID, _ := strconv.ParseInt(q.Get("official_id"), 10, 64)
	filters := ListFilters{
		GameID:     gameID,
		OfficialID: officialID,
		Status:     q.Get("status"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
	}
	assignments, err := h.service.List(r.Context(), pr, filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	visible := authz.FilterVisibleFunc(h.authz.Policy, pr, assignments, func(a Assignment) authz.Resource { return a.Ref() })
	out := make([]assignmentResponse, 0, len(visible))
	for _, a := range visible {
		out = append(out, toAssignmentResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": out})
}

func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assignmentID(w, r)
	if !ok {
		return
	}
	assignment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionView, assignment.Ref()) {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignment": toAssignmentResponse(*assignment)})
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "game_id and official_id are required")
		return
	}
	game, err := h.service.GameFor(r.Context(), req.GameID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionAssignGames, authz.AssignmentRef{League: game.LeagueID, OfficialID: req.OfficialID}) {
		return
	}
	assignment, err := h.service.Create(r.Context(), pr.ID, CreateInput{
		GameID:     req.GameID,
		OfficialID: req.OfficialID,
		Position:   req.Position,
		Fee:        req.Fee,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"assignment": toAssignmentResponse(*assignment)})
}

// bulkAssign creates a batch with per-row outcomes. Each row is checked
// and written independently; a denial or validation failure marks its row
// and the batch moves on. The idempotency key rejects whole-batch retries.
func (h *Handler) bulkAssign(w http.ResponseWriter, r *http.Request) {
	var req bulkAssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "assignments must list game_id and official_id per row")
		return
	}
	if req.IdempotencyKey != "" {
		claimed, err := h.service.ClaimKey(r.Context(), req.IdempotencyKey)
		if err != nil {
			h.respondError(w, err)
			return
		}
		if !claimed {
			httpx.JSON(w, http.StatusOK, map[string]any{"duplicate": true, "results": []bulkRowResponse{}})
			return
		}
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	results := make([]bulkRowResponse, 0, len(req.Assignments))
	created := 0
	for _, item := range req.Assignments {
		row := bulkRowResponse{GameID: item.GameID, OfficialID: item.OfficialID}
		if err := h.bulkRow(r.Context(), pr, item, &row); err != nil {
			h.respondError(w, err)
			return
		}
		if row.OK {
			created++
		}
		results = append(results, row)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"created": created, "results": results})
}

// bulkRow runs one bulk item end to end. Row-level outcomes land in row;
// only infrastructure failures come back as an error.
func (h *Handler) bulkRow(ctx context.Context, pr authz.Principal, item assignmentRequest, row *bulkRowResponse) error {
	game, err := h.service.GameFor(ctx, item.GameID)
	if err != nil {
		if msg, ok := rowMessage(err); ok {
			row.Error = msg
			return nil
		}
		return err
	}
	dec, err := h.authz.Policy.Authorize(pr, authz.ActionAssignGames, authz.AssignmentRef{League: game.LeagueID, OfficialID: item.OfficialID})
	if err != nil {
		return err
	}
	if !dec.Allowed {
		row.Error = string(dec.Reason)
		return nil
	}
	assignment, err := h.service.Create(ctx, pr.ID, CreateInput{
		GameID:     item.GameID,
		OfficialID: item.OfficialID,
		Position:   item.Position,
		Fee:        item.Fee,
	})
	if err != nil {
		if msg, ok := rowMessage(err); ok {
			row.Error = msg
			return nil
		}
		return err
	}
	row.ID = assignment.ID
	row.OK = true
	return nil
}

// rowMessage translates expected per-row failures into stable strings for
// bulk results. Unexpected errors are not row outcomes.
func rowMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrGameMissing):
		return "game_not_found", true
	case errors.Is(err, ErrOfficialMissing):
		return "official_not_found", true
	case errors.Is(err, ErrDuplicate):
		return "already_assigned", true
	case errors.Is(err, ErrTimeConflict):
		return "time_conflict", true
	case errors.Is(err, ErrGameFull):
		return "game_full", true
	case errors.Is(err, shared.ErrFeeOutOfRange), errors.Is(err, shared.ErrFeePrecision):
		return "invalid_fee", true
	}
	return "", false
}

func (h *Handler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assignmentID(w, r)
	if !ok {
		return
	}
	var req assignmentUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	assignment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionAssignGames, assignment.Ref()) {
		return
	}
	updated, err := h.service.Update(r.Context(), pr.ID, id, UpdateInput{
		Position: req.Position,
		Status:   req.Status,
		Fee:      req.Fee,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignment": toAssignmentResponse(*updated)})
}

func (h *Handler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assignmentID(w, r)
	if !ok {
		return
	}
	assignment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionAssignGames, assignment.Ref()) {
		return
	}
	if err := h.service.Delete(r.Context(), pr.ID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	stats, err := h.service.StatsFor(r.Context(), pr)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stats": map[string]any{
		"by_status":   stats.ByStatus,
		"by_position": stats.ByPosition,
	}})
}

func (h *Handler) assignmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrGameMissing):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "game not found")
	case errors.Is(err, ErrOfficialMissing):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "official not found")
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "official already assigned to this game")
	case errors.Is(err, ErrTimeConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "official already booked at that date and time")
	case errors.Is(err, ErrGameFull):
		httpx.Problem(w, http.StatusConflict, "Conflict", "game already fully crewed")
	case errors.Is(err, ErrBadStatus), errors.Is(err, ErrEmptyUpdate):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, shared.ErrFeeOutOfRange), errors.Is(err, shared.ErrFeePrecision):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("assignments handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
