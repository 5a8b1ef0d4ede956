package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     access.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), guard: guard}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("roles.view"))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
		r.Get("/hierarchy", h.listEdges)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("roles.edit"))
		r.Post("/", h.createRole)
		r.Put("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
		r.Post("/hierarchy", h.createEdge)
		r.Delete("/hierarchy/{edgeID}", h.deleteEdge)
	})
}

type roleForm struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Department  string `json:"department" validate:"max=100"`
}

type edgeForm struct {
	ParentRoleID int64 `json:"parent_role_id" validate:"required,gt=0"`
	ChildRoleID  int64 `json:"child_role_id" validate:"required,gt=0"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeRoleForm(w, r)
	if !ok {
		return
	}
	role, err := h.service.CreateRole(r.Context(), form.Name, form.Description, form.Department)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	form, ok := h.decodeRoleForm(w, r)
	if !ok {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, form.Name, form.Description, form.Department)
	if err != nil {
		h.logger.Error("update role", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.logger.Error("delete role", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := h.service.ListEdges(r.Context())
	if err != nil {
		h.logger.Error("list hierarchy edges", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"edges": edges})
}

func (h *Handler) createEdge(w http.ResponseWriter, r *http.Request) {
	var form edgeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	edge, err := h.service.CreateEdge(r.Context(), form.ParentRoleID, form.ChildRoleID)
	if err != nil {
		if errors.Is(err, access.ErrCycleRejected) {
			httpx.Problem(w, http.StatusConflict, "Cycle Rejected", err.Error())
			return
		}
		h.logger.Error("create hierarchy edge", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, edge)
}

func (h *Handler) deleteEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "edgeID")
	if !ok {
		return
	}
	if err := h.service.DeleteEdge(r.Context(), id); err != nil {
		h.logger.Error("delete hierarchy edge", slog.Int64("edge_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeRoleForm(w http.ResponseWriter, r *http.Request) (roleForm, bool) {
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return form, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return form, false
	}
	return form, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}
