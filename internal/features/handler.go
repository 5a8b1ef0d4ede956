package features

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Handler manages feature catalog endpoints.
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

// MountRoutes registers feature routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("features.view"))
		r.Get("/", h.listFeatures)
		r.Get("/{featureID}", h.getFeature)
		r.Get("/grants", h.listGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("features.edit"))
		r.Post("/", h.createFeature)
		r.Put("/{featureID}", h.updateFeature)
		r.Put("/{featureID}/parent", h.reparentFeature)
		r.Delete("/{featureID}", h.deleteFeature)
		r.Post("/grants", h.attachRole)
		r.Put("/grants/{grantID}", h.setGrantActive)
		r.Delete("/grants/{grantID}", h.detachRole)
	})
}

type featureForm struct {
	ParentID     int64  `json:"parent_id" validate:"gte=0"`
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Route        string `json:"route" validate:"max=200"`
	Icon         string `json:"icon" validate:"max=100"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
	IsMainMenu   bool   `json:"is_main_menu"`
	IsActive     bool   `json:"is_active"`
}

type reparentForm struct {
	ParentID int64 `json:"parent_id" validate:"gte=0"`
}

type grantForm struct {
	RoleID    int64 `json:"role_id" validate:"required,gt=0"`
	FeatureID int64 `json:"feature_id" validate:"required,gt=0"`
}

type grantStateForm struct {
	IsActive bool `json:"is_active"`
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.service.ListFeatures(r.Context())
	if err != nil {
		h.logger.Error("list features", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"features": features})
}

func (h *Handler) getFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "featureID")
	if !ok {
		return
	}
	feature, err := h.service.GetFeature(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, feature)
}

func (h *Handler) createFeature(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeFeatureForm(w, r)
	if !ok {
		return
	}
	feature, err := h.service.CreateFeature(r.Context(), Feature{
		ParentID:     form.ParentID,
		Name:         form.Name,
		Route:        form.Route,
		Icon:         form.Icon,
		DisplayOrder: form.DisplayOrder,
		IsMainMenu:   form.IsMainMenu,
		IsActive:     form.IsActive,
	})
	if err != nil {
		h.logger.Error("create feature", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, feature)
}

func (h *Handler) updateFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "featureID")
	if !ok {
		return
	}
	form, ok := h.decodeFeatureForm(w, r)
	if !ok {
		return
	}
	feature, err := h.service.UpdateFeature(r.Context(), Feature{
		ID:           id,
		Name:         form.Name,
		Route:        form.Route,
		Icon:         form.Icon,
		DisplayOrder: form.DisplayOrder,
		IsMainMenu:   form.IsMainMenu,
		IsActive:     form.IsActive,
	})
	if err != nil {
		h.logger.Error("update feature", slog.Int64("feature_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, feature)
}

func (h *Handler) reparentFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "featureID")
	if !ok {
		return
	}
	var form reparentForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ReparentFeature(r.Context(), id, form.ParentID); err != nil {
		h.logger.Error("reparent feature", slog.Int64("feature_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) deleteFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "featureID")
	if !ok {
		return
	}
	if err := h.service.DeleteFeature(r.Context(), id); err != nil {
		h.logger.Error("delete feature", slog.Int64("feature_id", id), slog.Any("error", err))
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
		h.logger.Error("list feature grants", slog.Any("error", err))
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
	grant, err := h.service.AttachRole(r.Context(), form.RoleID, form.FeatureID)
	if err != nil {
		h.logger.Error("attach feature grant", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) setGrantActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "grantID")
	if !ok {
		return
	}
	var form grantStateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.SetGrantActive(r.Context(), id, form.IsActive); err != nil {
		h.logger.Error("set feature grant state", slog.Int64("grant_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) detachRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "grantID")
	if !ok {
		return
	}
	if err := h.service.DetachRole(r.Context(), id); err != nil {
		h.logger.Error("detach feature grant", slog.Int64("grant_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeFeatureForm(w http.ResponseWriter, r *http.Request) (featureForm, bool) {
	var form featureForm
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
