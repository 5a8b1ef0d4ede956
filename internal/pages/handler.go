package pages

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Handler manages page catalog endpoints.
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

// MountRoutes registers page routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("pages.view"))
		r.Get("/", h.listPages)
		r.Get("/{pageID}", h.getPage)
		r.Get("/mappings", h.listMappings)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("pages.edit"))
		r.Post("/", h.createPage)
		r.Put("/{pageID}", h.updatePage)
		r.Delete("/{pageID}", h.deletePage)
		r.Post("/mappings", h.attachFeature)
		r.Delete("/mappings/{mappingID}", h.detachFeature)
	})
}

type pageForm struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Route    string `json:"route" validate:"max=200"`
	IsActive bool   `json:"is_active"`
}

type mappingForm struct {
	PageID    int64 `json:"page_id" validate:"required,gt=0"`
	FeatureID int64 `json:"feature_id" validate:"required,gt=0"`
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		h.logger.Error("list pages", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *Handler) getPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "pageID")
	if !ok {
		return
	}
	page, err := h.service.GetPage(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodePageForm(w, r)
	if !ok {
		return
	}
	page, err := h.service.CreatePage(r.Context(), form.Name, form.Route, form.IsActive)
	if err != nil {
		h.logger.Error("create page", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, page)
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "pageID")
	if !ok {
		return
	}
	form, ok := h.decodePageForm(w, r)
	if !ok {
		return
	}
	page, err := h.service.UpdatePage(r.Context(), id, form.Name, form.Route, form.IsActive)
	if err != nil {
		h.logger.Error("update page", slog.Int64("page_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "pageID")
	if !ok {
		return
	}
	if err := h.service.DeletePage(r.Context(), id); err != nil {
		h.logger.Error("delete page", slog.Int64("page_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.service.ListMappings(r.Context())
	if err != nil {
		h.logger.Error("list page mappings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

func (h *Handler) attachFeature(w http.ResponseWriter, r *http.Request) {
	var form mappingForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mapping, err := h.service.AttachFeature(r.Context(), form.PageID, form.FeatureID)
	if err != nil {
		h.logger.Error("attach page feature", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mapping)
}

func (h *Handler) detachFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "mappingID")
	if !ok {
		return
	}
	if err := h.service.DetachFeature(r.Context(), id); err != nil {
		h.logger.Error("detach page feature", slog.Int64("mapping_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodePageForm(w http.ResponseWriter, r *http.Request) (pageForm, bool) {
	var form pageForm
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
