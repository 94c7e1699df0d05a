package leagues

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

// Handler manages league endpoints.
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

// MountRoutes registers league routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/", h.listLeagues)
		r.Post("/", h.createLeague)
		r.Get("/{id}", h.getLeague)
		r.Put("/{id}", h.updateLeague)
		r.Delete("/{id}", h.deleteLeague)
		r.Get("/{id}/levels", h.listLevels)
		r.Group(func(r chi.Router) {
			r.Use(h.authz.RequireAction(authz.ActionManageUsers))
			r.Post("/{id}/assign", h.assignUser)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.authz.RequireAction(authz.ActionManageBilling))
			r.Get("/{id}/fees", h.listFees)
			r.Post("/{id}/fees", h.createFee)
			r.Put("/{id}/fees/{feeID}", h.updateFee)
			r.Delete("/{id}/fees/{feeID}", h.deleteFee)
			r.Get("/{id}/billing", h.listBilling)
			r.Post("/{id}/billing", h.createBilling)
			r.Put("/{id}/billing/{billingID}", h.updateBilling)
			r.Delete("/{id}/billing/{billingID}", h.deleteBilling)
		})
	})
}

type leagueRequest struct {
	Name        string   `json:"name" validate:"required"`
	Sport       string   `json:"sport" validate:"required"`
	Season      string   `json:"season" validate:"required"`
	Description string   `json:"description"`
	Levels      []string `json:"levels"`
}

type assignRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type feeRequest struct {
	LevelName   string  `json:"level_name" validate:"required"`
	OfficialFee float64 `json:"official_fee"`
	Notes       string  `json:"notes"`
}

type billingRequest struct {
	LevelName  string  `json:"level_name" validate:"required"`
	BillAmount float64 `json:"bill_amount" validate:"required"`
	BillToID   int64   `json:"bill_to_id" validate:"required"`
	Notes      string  `json:"notes"`
}

type billingUpdateRequest struct {
	BillAmount *float64 `json:"bill_amount"`
	BillToID   *int64   `json:"bill_to_id"`
	Notes      *string  `json:"notes"`
}

type leagueResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Sport       string    `json:"sport"`
	Season      string    `json:"season"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type levelResponse struct {
	ID         int64  `json:"id"`
	LeagueID   int64  `json:"league_id"`
	LevelName  string `json:"level_name"`
	Notes      string `json:"notes,omitempty"`
	LeagueName string `json:"league_name"`
}

type feeResponse struct {
	ID          int64     `json:"id"`
	LeagueID    int64     `json:"league_id"`
	LevelName   string    `json:"level_name"`
	OfficialFee float64   `json:"official_fee"`
	Notes       string    `json:"notes,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type billingResponse struct {
	ID         int64     `json:"id"`
	LeagueID   int64     `json:"league_id"`
	LevelName  string    `json:"level_name"`
	BillAmount float64   `json:"bill_amount"`
	BillToID   int64     `json:"bill_to_id"`
	BillToName string    `json:"bill_to_name,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toLeagueResponse(l League) leagueResponse {
	return leagueResponse{
		ID:          l.ID,
		Name:        l.Name,
		Sport:       l.Sport,
		Season:      l.Season,
		Description: l.Description,
		IsActive:    l.IsActive,
		CreatedAt:   l.CreatedAt,
	}
}

func toFeeResponse(f Fee) feeResponse {
	return feeResponse{
		ID:          f.ID,
		LeagueID:    f.LeagueID,
		LevelName:   f.LevelName,
		OfficialFee: f.OfficialFee,
		Notes:       f.Notes,
		CreatedBy:   f.CreatedByName,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func toBillingResponse(b BillingRule) billingResponse {
	return billingResponse{
		ID:         b.ID,
		LeagueID:   b.LeagueID,
		LevelName:  b.LevelName,
		BillAmount: b.BillAmount,
		BillToID:   b.BillToID,
		BillToName: b.BillToName,
		Notes:      b.Notes,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func (h *Handler) listLeagues(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Sport:  q.Get("sport"),
		Season: q.Get("season"),
	}
	leagues, err := h.service.List(r.Context(), pr, filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	visible := authz.FilterVisibleFunc(h.authz.Policy, pr, leagues, func(l League) authz.Resource { return l.Ref() })
	out := make([]leagueResponse, 0, len(visible))
	for _, l := range visible {
		out = append(out, toLeagueResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"leagues": out})
}

func (h *Handler) getLeague(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionView, authz.LeagueRef{ID: id}) {
		return
	}
	league, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"league": toLeagueResponse(*league)})
}

func (h *Handler) createLeague(w http.ResponseWriter, r *http.Request) {
	var req leagueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionCreate, authz.LeagueRef{}) {
		return
	}
	league, err := h.service.Create(r.Context(), pr.ID, CreateInput{
		Name:        req.Name,
		Sport:       req.Sport,
		Season:      req.Season,
		Description: req.Description,
		Levels:      req.Levels,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"league": toLeagueResponse(*league)})
}

func (h *Handler) updateLeague(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	var req leagueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionEdit, authz.LeagueRef{ID: id}) {
		return
	}
	league, err := h.service.Update(r.Context(), pr.ID, id, UpdateInput{
		Name:        req.Name,
		Sport:       req.Sport,
		Season:      req.Season,
		Description: req.Description,
		Levels:      req.Levels,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"league": toLeagueResponse(*league)})
}

func (h *Handler) deleteLeague(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionDelete, authz.LeagueRef{ID: id}) {
		return
	}
	if err := h.service.Delete(r.Context(), pr.ID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionView, authz.LeagueRef{ID: id}) {
		return
	}
	levels, err := h.service.Levels(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]levelResponse, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, levelResponse{
			ID:         lvl.ID,
			LeagueID:   lvl.LeagueID,
			LevelName:  lvl.LevelName,
			Notes:      lvl.Notes,
			LeagueName: lvl.LeagueName,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": out})
}

func (h *Handler) assignUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	// Membership grants reshape who can see the league, so the operation
	// stays above the admin tier regardless of scope overlap.
	if pr.Role != authz.RoleSuperadmin {
		httpx.Denied(w, string(authz.ReasonRoleForbidden))
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id is required")
		return
	}
	if err := h.service.AssignUser(r.Context(), pr.ID, id, req.UserID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assigned": true})
}

func (h *Handler) listFees(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.FeeScheduleRef{League: id}) {
		return
	}
	fees, err := h.service.ListFees(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]feeResponse, 0, len(fees))
	for _, f := range fees {
		out = append(out, toFeeResponse(f))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"fees": out})
}

func (h *Handler) createFee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.FeeScheduleRef{League: id}) {
		return
	}
	fee, err := h.service.CreateFee(r.Context(), pr.ID, id, FeeInput{
		LevelName:   req.LevelName,
		OfficialFee: req.OfficialFee,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"fee": toFeeResponse(*fee)})
}

func (h *Handler) updateFee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	feeID, ok := h.pathID(w, r, "feeID")
	if !ok {
		return
	}
	var req feeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.FeeScheduleRef{ID: feeID, League: id}) {
		return
	}
	fee, err := h.service.UpdateFee(r.Context(), pr.ID, id, feeID, FeeInput{
		LevelName:   req.LevelName,
		OfficialFee: req.OfficialFee,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"fee": toFeeResponse(*fee)})
}

func (h *Handler) deleteFee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	feeID, ok := h.pathID(w, r, "feeID")
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.FeeScheduleRef{ID: feeID, League: id}) {
		return
	}
	if err := h.service.DeleteFee(r.Context(), pr.ID, id, feeID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) listBilling(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillingRuleRef{League: id}) {
		return
	}
	rules, err := h.service.ListBilling(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]billingResponse, 0, len(rules))
	for _, b := range rules {
		out = append(out, toBillingResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"billing": out})
}

func (h *Handler) createBilling(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	var req billingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillingRuleRef{League: id}) {
		return
	}
	rule, err := h.service.CreateBilling(r.Context(), pr.ID, id, BillingInput{
		LevelName:  req.LevelName,
		BillAmount: req.BillAmount,
		BillToID:   req.BillToID,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"billing": toBillingResponse(*rule)})
}

func (h *Handler) updateBilling(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	billingID, ok := h.pathID(w, r, "billingID")
	if !ok {
		return
	}
	var req billingUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillingRuleRef{ID: billingID, League: id}) {
		return
	}
	rule, err := h.service.UpdateBilling(r.Context(), pr.ID, id, billingID, BillingUpdate{
		BillAmount: req.BillAmount,
		BillToID:   req.BillToID,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"billing": toBillingResponse(*rule)})
}

func (h *Handler) deleteBilling(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leagueID(w, r)
	if !ok {
		return
	}
	billingID, ok := h.pathID(w, r, "billingID")
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillingRuleRef{ID: billingID, League: id}) {
		return
	}
	if err := h.service.DeleteBilling(r.Context(), pr.ID, id, billingID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) leagueID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return h.pathID(w, r, "id")
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNameTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "league name already exists for this season")
	case errors.Is(err, ErrFeeExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "fee schedule already exists for this level")
	case errors.Is(err, ErrBillingExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "billing structure already exists for this level")
	case errors.Is(err, ErrBillToMissing):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "bill-to entity not found")
	case errors.Is(err, ErrNotAssignable):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "only admin and assigner accounts can hold league memberships")
	case errors.Is(err, ErrEmptyUpdate):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no fields to update")
	case errors.Is(err, shared.ErrFeeOutOfRange), errors.Is(err, shared.ErrFeePrecision), errors.Is(err, shared.ErrBillAmountTooSmall):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("leagues handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
