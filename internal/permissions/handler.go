package permissions

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Handler manages permission catalog endpoints.
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

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("permissions.view"))
		r.Get("/", h.listPermissions)
		r.Get("/{permissionID}", h.getPermission)
		r.Get("/grants", h.listGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("permissions.edit"))
		r.Post("/", h.createPermission)
		r.Put("/{permissionID}", h.updatePermission)
		r.Delete("/{permissionID}", h.deletePermission)
		r.Post("/grants", h.attachRole)
		r.Delete("/grants/{grantID}", h.detachRole)
	})
}

type permissionForm struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type grantForm struct {
	RoleID       int64 `json:"role_id" validate:"required,gt=0"`
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodePermissionForm(w, r)
	if !ok {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), form.Name, form.Description)
	if err != nil {
		h.logger.Error("create permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	form, ok := h.decodePermissionForm(w, r)
	if !ok {
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, form.Name, form.Description)
	if err != nil {
		h.logger.Error("update permission", slog.Int64("permission_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.logger.Error("delete permission", slog.Int64("permission_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	var roleID int64
	if raw := r.URL.Query().Get("role_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role_id")
			return
		}
		roleID = parsed
	}
	grants, err := h.service.ListGrants(r.Context(), roleID)
	if err != nil {
		h.logger.Error("list permission grants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *Handler) attachRole(w http.ResponseWriter, r *http.Request) {
	var form grantForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grant, err := h.service.AttachRole(r.Context(), form.RoleID, form.PermissionID)
	if err != nil {
		h.logger.Error("attach permission grant", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) detachRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "grantID")
	if !ok {
		return
	}
	if err := h.service.DetachRole(r.Context(), id); err != nil {
		h.logger.Error("detach permission grant", slog.Int64("grant_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodePermissionForm(w http.ResponseWriter, r *http.Request) (permissionForm, bool) {
	var form permissionForm
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
