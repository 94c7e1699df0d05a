package locations

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

// Handler manages venue endpoints. Reads are open to every authenticated
// role; mutations require the create/edit/delete permissions only admins
// and superadmins hold.
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

// MountRoutes registers venue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePrincipal)
		r.Get("/", h.listLocations)
		r.Post("/", h.createLocation)
		r.Put("/{id}", h.updateLocation)
		r.Delete("/{id}", h.deleteLocation)
	})
}

type locationRequest struct {
	Name          string `json:"name" validate:"required"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone" validate:"omitempty,min=10"`
	ContactEmail  string `json:"contact_email" validate:"omitempty,email"`
	Capacity      int    `json:"capacity" validate:"gte=0"`
	Notes         string `json:"notes"`
}

type locationResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	ZipCode       string    `json:"zip_code,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	ContactPhone  string    `json:"contact_phone,omitempty"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	Capacity      int       `json:"capacity,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func toLocationResponse(l Location) locationResponse {
	return locationResponse{
		ID:            l.ID,
		Name:          l.Name,
		Address:       l.Address,
		City:          l.City,
		State:         l.State,
		ZipCode:       l.ZipCode,
		ContactPerson: l.ContactPerson,
		ContactPhone:  l.ContactPhone,
		ContactEmail:  l.ContactEmail,
		Capacity:      l.Capacity,
		Notes:         l.Notes,
		IsActive:      l.IsActive,
		CreatedAt:     l.CreatedAt,
	}
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]locationResponse, 0, len(locations))
	for _, l := range locations {
		out = append(out, toLocationResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": out})
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionCreate, authz.LocationRef{}) {
		return
	}
	location, err := h.service.Create(r.Context(), pr.ID, input(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"location": toLocationResponse(*location)})
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionEdit, authz.LocationRef{ID: id}) {
		return
	}
	location, err := h.service.Update(r.Context(), pr.ID, id, input(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location": toLocationResponse(*location)})
}

func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	pr, _ := authz.PrincipalFromContext(r.Context())
	if !h.authz.Authorize(w, pr, authz.ActionDelete, authz.LocationRef{ID: id}) {
		return
	}
	if err := h.service.Delete(r.Context(), pr.ID, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func input(req locationRequest) Input {
	return Input{
		Name:          req.Name,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		ContactPerson: req.ContactPerson,
		ContactPhone:  req.ContactPhone,
		ContactEmail:  req.ContactEmail,
		Capacity:      req.Capacity,
		Notes:         req.Notes,
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
		httpx.Problem(w, http.StatusConflict, "Duplicate", "location name already exists")
	default:
		h.logger.Error("locations handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
