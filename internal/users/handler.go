package users

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

// Handler manages account management endpoints.
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

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/{id}", h.getUser)
		r.Group(func(r chi.Router) {
			r.Use(h.authz.RequireAction(authz.ActionManageUsers))
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Delete("/{id}", h.deleteUser)
			r.Post("/search", h.searchUsers)
			r.Post("/add-to-league", h.addToLeague)
		})
	})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,min=10"`
	Address  string `json:"address"`
	Role     string `json:"role" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

type searchRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type addToLeagueRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type userResponse struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	LeagueIDs []int64    `json:"league_ids"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toUserResponse(u User) userResponse {
	leagueIDs := u.LeagueIDs
	if leagueIDs == nil {
		leagueIDs = []int64{}
	}
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		LeagueIDs: leagueIDs,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	users, err := h.service.List(r.Context(), pr)
	if err != nil {
		h.respondError(w, err)
		return
	}
	visible := authz.FilterVisibleFunc(h.authz.Policy, pr, users, func(u User) authz.Resource { return u.Ref() })
	out := make([]userResponse, 0, len(visible))
	for _, u := range visible {
		out = append(out, toUserResponse(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !h.authz.Authorize(w, pr, authz.ActionView, user.Ref()) {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(*user)})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, ok := authz.ParseRole(req.Role)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role")
		return
	}

	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageUsers, authz.AccountRef{Role: role}) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user, err := h.service.Create(r.Context(), pr.ID, CreateInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Role:     role,
		IsActive: active,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": toUserResponse(*user)})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if pr.ID == id {
		h.respondError(w, ErrSelfDeletion)
		return
	}
	target, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !h.authz.Authorize(w, pr, authz.ActionDelete, target.Ref()) {
		return
	}
	result, err := h.service.Delete(r.Context(), pr.ID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"deleted":     result.Deleted,
		"deactivated": result.Deactivated,
	})
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email is required")
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	result, err := h.service.SearchByEmail(r.Context(), pr, req.Email)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":              toUserResponse(result.User),
		"already_in_league": result.AlreadyInLeague,
	})
}

func (h *Handler) addToLeague(w http.ResponseWriter, r *http.Request) {
	var req addToLeagueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id is required")
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	target, err := h.service.Get(r.Context(), req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	// Membership overlap cannot gate an introduction, so the check runs
	// against the role class: may this actor manage accounts of that tier.
	if !h.authz.Authorize(w, pr, authz.ActionManageUsers, authz.AccountRef{Role: target.Role}) {
		return
	}
	added, err := h.service.AddToLeague(r.Context(), pr.ID, req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"leagues_added": len(added)})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
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
	case errors.Is(err, ErrUsernameTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "username already exists")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "email already exists")
	case errors.Is(err, ErrSelfDeletion):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cannot delete your own account")
	case errors.Is(err, ErrNoLeagues):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active league memberships")
	default:
		h.logger.Error("users handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
