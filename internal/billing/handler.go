package billing

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

// Handler manages bill-to entity endpoints. Every route sits behind the
// manage_billing permission.
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

// MountRoutes registers bill-to entity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Use(h.authz.RequireAction(authz.ActionManageBilling))
		r.Get("/", h.listEntities)
		r.Post("/", h.createEntity)
		r.Get("/{id}", h.getEntity)
		r.Put("/{id}", h.updateEntity)
		r.Delete("/{id}", h.deleteEntity)
	})
}

type billToRequest struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,min=10"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	TaxID         string `json:"tax_id"`
}

type billToResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	ZipCode       string    `json:"zip_code,omitempty"`
	TaxID         string    `json:"tax_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toBillToResponse(b BillTo) billToResponse {
	return billToResponse{
		ID:            b.ID,
		Name:          b.Name,
		ContactPerson: b.ContactPerson,
		Email:         b.Email,
		Phone:         b.Phone,
		Address:       b.Address,
		City:          b.City,
		State:         b.State,
		ZipCode:       b.ZipCode,
		TaxID:         b.TaxID,
		CreatedAt:     b.CreatedAt,
	}
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]billToResponse, 0, len(entities))
	for _, b := range entities {
		out = append(out, toBillToResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entities": out})
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	entity, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entity": toBillToResponse(*entity)})
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillToRef{}) {
		return
	}
	entity, err := h.service.Create(r.Context(), pr.ID, input(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"entity": toBillToResponse(*entity)})
}

func (h *Handler) updateEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillToRef{ID: id}) {
		return
	}
	entity, err := h.service.Update(r.Context(), pr.ID, id, input(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entity": toBillToResponse(*entity)})
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionManageBilling, authz.BillToRef{ID: id}) {
		return
	}
	if err := h.service.Delete(r.Context(), pr.ID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (billToRequest, bool) {
	var req billToRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func input(req billToRequest) Input {
	return Input{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		TaxID:         req.TaxID,
	}
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
	case errors.Is(err, ErrNameTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "entity name already exists")
	case errors.Is(err, ErrInUse):
		httpx.Problem(w, http.StatusConflict, "Conflict", "entity is referenced by league billing rules")
	default:
		h.logger.Error("billing handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
