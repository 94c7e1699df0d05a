package auth

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

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	authz          authz.Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, authzMW authz.Middleware) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		authz:          authzMW,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/session", h.handleSession)
		r.Get("/auth/me", h.handleMe)
		r.Get("/user/profile", h.handleProfile)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type accountResponse struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toAccountResponse(acct *Account) accountResponse {
	return accountResponse{
		ID:        acct.ID,
		Username:  acct.Username,
		FullName:  acct.FullName,
		Email:     acct.Email,
		Phone:     acct.Phone,
		Address:   acct.Address,
		Role:      string(acct.Role),
		IsActive:  acct.IsActive,
		LastLogin: acct.LastLogin,
		CreatedAt: acct.CreatedAt,
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "username and password are required")
		return
	}

	acct, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid username or password")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Rotate the session ID so a pre-login cookie never carries over.
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	sess.SetUser(strconv.FormatInt(acct.ID, 10))
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)

	if err := h.service.RecordLogin(r.Context(), acct); err != nil {
		h.logger.Warn("record login", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":       toAccountResponse(acct),
		"csrf_token": csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if raw := sess.User(); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				if err := h.service.RecordLogout(r.Context(), id); err != nil {
					h.logger.Warn("record logout", slog.Any("error", err))
				}
			}
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	acct, err := h.service.AccountByID(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"session": map[string]any{
			"user_id":   acct.ID,
			"username":  acct.Username,
			"full_name": acct.FullName,
			"role":      string(acct.Role),
		},
		"csrf_token": csrfToken,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	acct, err := h.service.AccountByID(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toAccountResponse(acct)})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	pr, _ := authz.PrincipalFromContext(r.Context())
	acct, err := h.service.AccountByID(r.Context(), pr.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"profile": toAccountResponse(acct)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.logger.Error("auth handler", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
