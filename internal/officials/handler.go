package officials

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/platform/httpx"
	"github.com/refdesk/refdesk/internal/shared"
)

// Handler manages official endpoints.
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

// MountRoutes registers official routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)

		// Self-service surface. update_own_profile is held by officials
		// alone, so it doubles as the officials-only gate.
		r.Group(func(r chi.Router) {
			r.Use(h.authz.RequireAction(authz.ActionUpdateOwnProfile))
			r.Get("/my-games", h.myGames)
			r.Get("/my-stats", h.myStats)
			r.Get("/profile", h.getProfile)
			r.Put("/profile", h.updateProfile)
			r.Post("/game/{gameID}/respond", h.respond)
			r.Get("/availability", h.listAvailability)
			r.Post("/availability", h.createAvailability)
			r.Delete("/availability/{id}", h.deleteAvailability)
		})

		r.Get("/", h.listOfficials)
		r.Get("/{id}", h.getOfficial)

		r.Group(func(r chi.Router) {
			r.Use(h.authz.RequireAction(authz.ActionManageUsers, authz.ActionManageOfficials))
			r.Post("/", h.createOfficial)
			r.Put("/{id}", h.updateOfficial)
			r.Get("/{id}/ranking", h.listRankings)
			r.Put("/{id}/ranking", h.putRanking)
		})
	})
}

type createOfficialRequest struct {
	Username          string   `json:"username" validate:"required,min=3"`
	Password          string   `json:"password" validate:"required,min=8"`
	FullName          string   `json:"full_name" validate:"required"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone" validate:"omitempty,min=10"`
	Certifications    string   `json:"certifications" validate:"max=500"`
	Sports            []string `json:"sports" validate:"dive,max=50"`
	ExperienceYears   int      `json:"experience_years" validate:"gte=0"`
	AvailabilityNotes string   `json:"availability_notes" validate:"max=500"`
}

type updateOfficialRequest struct {
	FullName          string   `json:"full_name" validate:"required"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone" validate:"omitempty,min=10"`
	Certifications    string   `json:"certifications" validate:"max=500"`
	Sports            []string `json:"sports" validate:"dive,max=50"`
	ExperienceYears   int      `json:"experience_years" validate:"gte=0"`
	AvailabilityNotes string   `json:"availability_notes" validate:"max=500"`
}

type profileRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,min=10"`
	Address  string `json:"address" validate:"max=200"`
}

type respondRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline"`
	Notes    string `json:"notes" validate:"max=500"`
}

type availabilityRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Type      string `json:"availability_type" validate:"required,oneof=available unavailable"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Reason    string `json:"reason" validate:"max=200"`
}

type rankingRequest struct {
	LeagueID int64  `json:"league_id" validate:"required"`
	Ranking  int    `json:"ranking" validate:"required,min=1,max=5"`
	Notes    string `json:"notes" validate:"max=500"`
}

type officialResponse struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	FullName          string     `json:"full_name"`
	Email             string     `json:"email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	IsActive          bool       `json:"is_active"`
	Certifications    string     `json:"certifications,omitempty"`
	Sports            string     `json:"sports,omitempty"`
	ExperienceYears   int        `json:"experience_years"`
	AvailabilityNotes string     `json:"availability_notes,omitempty"`
	LeagueIDs         []int64    `json:"league_ids"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type recentAssignmentResponse struct {
	GameDate string `json:"game_date"`
	GameTime string `json:"game_time"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Sport    string `json:"sport"`
	Position string `json:"position"`
	Status   string `json:"status"`
}

type officialDetailResponse struct {
	officialResponse
	TotalAssignments   int64                      `json:"total_assignments"`
	LastAssignmentDate string                     `json:"last_assignment_date,omitempty"`
	RecentAssignments  []recentAssignmentResponse `json:"recent_assignments"`
}

type profileResponse struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type myGameResponse struct {
	ID         int64  `json:"id"`
	GameDate   string `json:"game_date"`
	GameTime   string `json:"game_time"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Location   string `json:"location,omitempty"`
	Sport      string `json:"sport"`
	LeagueName string `json:"league_name,omitempty"`
	Level      string `json:"level,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Position   string `json:"position"`
	Status     string `json:"status"`
}

type availabilityResponse struct {
	ID         int64     `json:"id"`
	OfficialID int64     `json:"official_id"`
	Date       string    `json:"date"`
	Type       string    `json:"availability_type"`
	StartTime  string    `json:"start_time,omitempty"`
	EndTime    string    `json:"end_time,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type rankingResponse struct {
	OfficialID int64     `json:"official_id"`
	LeagueID   int64     `json:"league_id"`
	LeagueName string    `json:"league_name,omitempty"`
	Ranking    int       `json:"ranking"`
	Notes      string    `json:"notes,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

func toOfficialResponse(o Official) officialResponse {
	leagueIDs := o.LeagueIDs
	if leagueIDs == nil {
		leagueIDs = []int64{}
	}
	return officialResponse{
		ID:                o.ID,
		Username:          o.Username,
		FullName:          o.FullName,
		Email:             o.Email,
		Phone:             o.Phone,
		IsActive:          o.IsActive,
		Certifications:    o.Certifications,
		Sports:            o.Sports,
		ExperienceYears:   o.ExperienceYears,
		AvailabilityNotes: o.AvailabilityNotes,
		LeagueIDs:         leagueIDs,
		LastLogin:         o.LastLogin,
		CreatedAt:         o.CreatedAt,
	}
}

func toDetailResponse(d Detail) officialDetailResponse {
	out := officialDetailResponse{
		officialResponse:  toOfficialResponse(d.Official),
		TotalAssignments:  d.TotalAssignments,
		RecentAssignments: make([]recentAssignmentResponse, 0, len(d.RecentAssignments)),
	}
	if d.LastAssignmentDate != nil {
		out.LastAssignmentDate = d.LastAssignmentDate.Format("2006-01-02")
	}
	for _, ra := range d.RecentAssignments {
		out.RecentAssignments = append(out.RecentAssignments, recentAssignmentResponse{
			GameDate: ra.GameDate.Format("2006-01-02"),
			GameTime: ra.GameTime,
			HomeTeam: ra.HomeTeam,
			AwayTeam: ra.AwayTeam,
			Sport:    ra.Sport,
			Position: ra.Position,
			Status:   ra.Status,
		})
	}
	return out
}

func toProfileResponse(p Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Username:  p.Username,
		FullName:  p.FullName,
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		IsActive:  p.IsActive,
		LastLogin: p.LastLogin,
		CreatedAt: p.CreatedAt,
	}
}

func toAvailabilityResponse(a Availability) availabilityResponse {
	return availabilityResponse{
		ID:         a.ID,
		OfficialID: a.OfficialID,
		Date:       a.Date.Format("2006-01-02"),
		Type:       a.Type,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		Reason:     a.Reason,
		CreatedAt:  a.CreatedAt,
	}
}

func toRankingResponse(rk Ranking) rankingResponse {
	return rankingResponse{
		OfficialID: rk.OfficialID,
		LeagueID:   rk.LeagueID,
		LeagueName: rk.LeagueName,
		Ranking:    rk.Ranking,
		Notes:      rk.Notes,
		AssignedAt: rk.AssignedAt,
	}
}

func (h *Handler) listOfficials(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	officials, err := h.service.List(r.Context(), pr)
	if err != nil {
		h.respondError(w, err)
		return
	}
	visible := authz.FilterVisibleFunc(h.authz.Policy, pr, officials, func(o Official) authz.Resource { return o.Ref() })
	out := make([]officialResponse, 0, len(visible))
	for _, o := range visible {
		out = append(out, toOfficialResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"officials": out})
}

func (h *Handler) getOfficial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionView, detail.Ref()) {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"official": toDetailResponse(*detail)})
}

func (h *Handler) createOfficial(w http.ResponseWriter, r *http.Request) {
	var req createOfficialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ManagementAction(pr.Role), authz.AccountRef{Role: authz.RoleOfficial}) {
		return
	}
	official, err := h.service.Create(r.Context(), pr.ID, CreateInput{
		Username:          req.Username,
		Password:          req.Password,
		FullName:          req.FullName,
		Email:             req.Email,
		Phone:             req.Phone,
		Certifications:    req.Certifications,
		Sports:            strings.Join(req.Sports, ", "),
		ExperienceYears:   req.ExperienceYears,
		AvailabilityNotes: req.AvailabilityNotes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"official": toOfficialResponse(*official)})
}

func (h *Handler) updateOfficial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var req updateOfficialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	target, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ManagementAction(pr.Role), target.Ref()) {
		return
	}
	official, err := h.service.Update(r.Context(), pr.ID, id, UpdateInput{
		FullName:          req.FullName,
		Email:             req.Email,
		Phone:             req.Phone,
		Certifications:    req.Certifications,
		Sports:            strings.Join(req.Sports, ", "),
		ExperienceYears:   req.ExperienceYears,
		AvailabilityNotes: req.AvailabilityNotes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"official": toOfficialResponse(*official)})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	profile, err := h.service.Profile(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toProfileResponse(*profile)})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	profile, err := h.service.UpdateProfile(r.Context(), pr.ID, ProfileInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toProfileResponse(*profile)})
}

func (h *Handler) myGames(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	games, err := h.service.MyGames(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]myGameResponse, 0, len(games))
	for _, g := range games {
		out = append(out, myGameResponse{
			ID:         g.GameID,
			GameDate:   g.GameDate.Format("2006-01-02"),
			GameTime:   g.GameTime,
			HomeTeam:   g.HomeTeam,
			AwayTeam:   g.AwayTeam,
			Location:   g.Location,
			Sport:      g.Sport,
			LeagueName: g.LeagueName,
			Level:      g.Level,
			Notes:      g.Notes,
			Position:   g.Position,
			Status:     g.Status,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"games": out})
}

func (h *Handler) myStats(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	stats, err := h.service.MyStats(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stats": map[string]any{
		"total":      stats.Total,
		"upcoming":   stats.Upcoming,
		"completed":  stats.Completed,
		"this_month": stats.ThisMonth,
	}})
}

// respond is keyed by the session official, so only their own assignment
// on the game is reachable.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.idParam(w, r, "gameID")
	if !ok {
		return
	}
	var req respondRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "response must be accept or decline")
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	status, err := h.service.Respond(r.Context(), pr.ID, gameID, req.Response, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"game_id": gameID, "status": status})
}

func (h *Handler) listAvailability(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	records, err := h.service.Availability(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]availabilityResponse, 0, len(records))
	for _, a := range records {
		out = append(out, toAvailabilityResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"availability": out})
}

func (h *Handler) createAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	pr, _ := authz.PrincipalFromContext(r.Context())
	record, err := h.service.AddAvailability(r.Context(), pr.ID, AvailabilityInput{
		Date:      date,
		Type:      req.Type,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"availability": toAvailabilityResponse(*record)})
}

func (h *Handler) deleteAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	record, err := h.service.GetAvailability(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionUpdateOwnProfile, record.Ref()) {
		return
	}
	if err := h.service.RemoveAvailability(r.Context(), pr.ID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) listRankings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	rankings, err := h.service.Rankings(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	visible := authz.FilterVisibleFunc(h.authz.Policy, pr, rankings, func(rk Ranking) authz.Resource { return rk.Ref() })
	out := make([]rankingResponse, 0, len(visible))
	for _, rk := range visible {
		out = append(out, toRankingResponse(rk))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rankings": out})
}

func (h *Handler) putRanking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var req rankingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "league_id and a ranking between 1 and 5 are required")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ManagementAction(pr.Role), authz.RankingRef{OfficialID: id, League: req.LeagueID}) {
		return
	}
	ranking, err := h.service.SetRanking(r.Context(), pr.ID, id, RankingInput{
		LeagueID: req.LeagueID,
		Ranking:  req.Ranking,
		Notes:    req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ranking": toRankingResponse(*ranking)})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
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
	case errors.Is(err, ErrUsernameTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "username already exists")
	case errors.Is(err, ErrAvailabilityExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "availability window already recorded")
	case errors.Is(err, ErrBadResponse), errors.Is(err, ErrWindowIncomplete), errors.Is(err, ErrBadRanking):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("officials handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
