package games

import (
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

// Handler manages game endpoints.
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

// MountRoutes registers game routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/", h.listGames)
		r.Post("/", h.createGame)
		r.Get("/next-link-group", h.nextLinkGroup)
		r.Post("/bulk-link", h.bulkLink)
		r.Post("/bulk-unlink", h.bulkUnlink)
		r.Post("/bulk-delete", h.bulkDelete)
		r.Get("/{id}", h.getGame)
		r.Put("/{id}", h.updateGame)
		r.Delete("/{id}", h.deleteGame)
	})
}

type createGameRequest struct {
	LeagueID        int64    `json:"league_id"`
	GameDate        string   `json:"game_date" validate:"required,datetime=2006-01-02"`
	GameTime        string   `json:"game_time" validate:"required,datetime=15:04"`
	HomeTeam        string   `json:"home_team" validate:"required,max=100"`
	AwayTeam        string   `json:"away_team" validate:"required,max=100"`
	Location        string   `json:"location" validate:"max=100"`
	Sport           string   `json:"sport" validate:"required,max=50"`
	Level           string   `json:"level" validate:"max=100"`
	OfficialsNeeded int      `json:"officials_needed" validate:"omitempty,min=1,max=10"`
	Notes           string   `json:"notes" validate:"max=500"`
	AssignedFee     *float64 `json:"assigned_fee"`
}

type updateGameRequest struct {
	LeagueID        int64  `json:"league_id"`
	GameDate        string `json:"game_date" validate:"required,datetime=2006-01-02"`
	GameTime        string `json:"game_time" validate:"required,datetime=15:04"`
	HomeTeam        string `json:"home_team" validate:"required,max=100"`
	AwayTeam        string `json:"away_team" validate:"required,max=100"`
	Location        string `json:"location" validate:"max=100"`
	Sport           string `json:"sport" validate:"required,max=50"`
	Level           string `json:"level" validate:"max=100"`
	OfficialsNeeded int    `json:"officials_needed" validate:"omitempty,min=1,max=10"`
	Status          string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	LinkGroup       string `json:"link_group" validate:"max=20"`
	Notes           string `json:"notes" validate:"max=500"`
}

type bulkLinkRequest struct {
	GameIDs   []int64 `json:"game_ids" validate:"required,min=2,dive,gt=0"`
	LinkGroup string  `json:"link_group" validate:"required,max=20"`
}

type bulkIDsRequest struct {
	GameIDs []int64 `json:"game_ids" validate:"required,min=1,dive,gt=0"`
}

type gameResponse struct {
	ID                int64     `json:"id"`
	LeagueID          int64     `json:"league_id,omitempty"`
	LeagueName        string    `json:"league_name,omitempty"`
	GameDate          string    `json:"game_date"`
	GameTime          string    `json:"game_time"`
	HomeTeam          string    `json:"home_team"`
	AwayTeam          string    `json:"away_team"`
	Location          string    `json:"location,omitempty"`
	Sport             string    `json:"sport"`
	Level             string    `json:"level,omitempty"`
	OfficialsNeeded   int       `json:"officials_needed"`
	OfficialsAssigned int       `json:"officials_assigned"`
	Status            string    `json:"status"`
	LinkGroup         string    `json:"link_group,omitempty"`
	AssignedFee       *float64  `json:"assigned_fee,omitempty"`
	FeeOverride       bool      `json:"fee_override"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func toGameResponse(g Game) gameResponse {
	return gameResponse{
		ID:                g.ID,
		LeagueID:          g.LeagueID,
		LeagueName:        g.LeagueName,
		GameDate:          g.GameDate.Format("2006-01-02"),
		GameTime:          g.GameTime,
		HomeTeam:          g.HomeTeam,
		AwayTeam:          g.AwayTeam,
		Location:          g.Location,
		Sport:             g.Sport,
		Level:             g.Level,
		OfficialsNeeded:   g.OfficialsNeeded,
		OfficialsAssigned: g.AssignedCount(),
		Status:            g.Status,
		LinkGroup:         g.LinkGroup,
		AssignedFee:       g.AssignedFee,
		FeeOverride:       g.FeeOverride,
		Notes:             g.Notes,
		CreatedAt:         g.CreatedAt,
	}
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Sport:  q.Get("sport"),
		Date:   q.Get("date"),
		Status: q.Get("status"),
	}
	games, err := h.service.List(r.Context(), pr, filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	visible := authz.FilterVisibleFunc(h.authz.Policy, pr, games, func(g Game) authz.Resource { return g.Ref() })
	out := make([]gameResponse, 0, len(visible))
	for _, g := range visible {
		out = append(out, toGameResponse(g))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"games": out})
}

func (h *Handler) getGame(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	game, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionView, game.Ref()) {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"game": toGameResponse(*game)})
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionCreate, authz.GameRef{League: req.LeagueID}) {
		return
	}
	gameDate, _ := time.Parse("2006-01-02", req.GameDate)
	if req.OfficialsNeeded == 0 {
		req.OfficialsNeeded = 1
	}
	game, err := h.service.Create(r.Context(), pr.ID, CreateInput{
		LeagueID:        req.LeagueID,
		GameDate:        gameDate,
		GameTime:        req.GameTime,
		HomeTeam:        req.HomeTeam,
		AwayTeam:        req.AwayTeam,
		Location:        req.Location,
		Sport:           req.Sport,
		Level:           req.Level,
		OfficialsNeeded: req.OfficialsNeeded,
		Notes:           req.Notes,
		AssignedFee:     req.AssignedFee,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"game": toGameResponse(*game)})
}

func (h *Handler) updateGame(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	var req updateGameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	game, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionEdit, game.Ref()) {
		return
	}
	if req.LeagueID != game.LeagueID {
		// Moving a game re-scopes it; the destination league must be in
		// reach too, or an admin could push games out of their leagues.
		if !h.authz.Authorize(w, pr, authz.ActionEdit, authz.GameRef{ID: id, League: req.LeagueID}) {
			return
		}
	}
	gameDate, _ := time.Parse("2006-01-02", req.GameDate)
	if req.OfficialsNeeded == 0 {
		req.OfficialsNeeded = 1
	}
	updated, err := h.service.Update(r.Context(), pr.ID, id, UpdateInput{
		LeagueID:        req.LeagueID,
		GameDate:        gameDate,
		GameTime:        req.GameTime,
		HomeTeam:        req.HomeTeam,
		AwayTeam:        req.AwayTeam,
		Location:        req.Location,
		Sport:           req.Sport,
		Level:           req.Level,
		OfficialsNeeded: req.OfficialsNeeded,
		Status:          req.Status,
		LinkGroup:       req.LinkGroup,
		Notes:           req.Notes,
	}, pr.Role == authz.RoleSuperadmin)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"game": toGameResponse(*updated)})
}

func (h *Handler) deleteGame(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	game, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionDelete, game.Ref()) {
		return
	}
	if err := h.service.Delete(r.Context(), pr.ID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) bulkLink(w http.ResponseWriter, r *http.Request) {
	var req bulkLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bulk link requires at least two game ids and a link group")
		return
	}
	pr, games, ok := h.authorizeBulk(w, r, req.GameIDs, authz.ActionEdit)
	if !ok {
		return
	}
	linked, err := h.service.BulkLink(r.Context(), pr.ID, gameIDs(games), req.LinkGroup)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"linked": linked, "link_group": req.LinkGroup})
}

func (h *Handler) bulkUnlink(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "game_ids is required")
		return
	}
	pr, games, ok := h.authorizeBulk(w, r, req.GameIDs, authz.ActionEdit)
	if !ok {
		return
	}
	unlinked, err := h.service.BulkUnlink(r.Context(), pr.ID, gameIDs(games))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unlinked": unlinked})
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "game_ids is required")
		return
	}
	pr, games, ok := h.authorizeBulk(w, r, req.GameIDs, authz.ActionDelete)
	if !ok {
		return
	}
	deleted, err := h.service.BulkDelete(r.Context(), pr.ID, gameIDs(games))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// authorizeBulk loads the targeted games and checks the action on every
// one. A single out-of-scope game rejects the whole batch before any row
// is touched; ids that match nothing simply drop out.
func (h *Handler) authorizeBulk(w http.ResponseWriter, r *http.Request, ids []int64, action authz.Action) (authz.Principal, []Game, bool) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	games, err := h.service.GetMany(r.Context(), ids)
	if err != nil {
		h.respondError(w, err)
		return pr, nil, false
	}
	for _, g := range games {
		if !h.authz.Authorize(w, pr, action, g.Ref()) {
			return pr, nil, false
		}
	}
	return pr, games, true
}

func (h *Handler) nextLinkGroup(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionEdit, nil) {
		return
	}
	group, err := h.service.NextLinkGroup(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"link_group": group})
}

func gameIDs(games []Game) []int64 {
	ids := make([]int64, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	return ids
}

func (h *Handler) gameID(w http.ResponseWriter, r *http.Request) (int64, bool) {
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
	case errors.Is(err, ErrLeagueMissing):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "league not found")
	case errors.Is(err, shared.ErrInvalidGameTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", "game status transition not allowed")
	case errors.Is(err, shared.ErrFeeOutOfRange), errors.Is(err, shared.ErrFeePrecision):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("games handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
