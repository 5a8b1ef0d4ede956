package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Handler manages user administration endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("users.view"))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
		r.Get("/{userID}/roles", h.listAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("users.edit"))
		r.Post("/", h.createUser)
		r.Put("/{userID}", h.updateUser)
		r.Delete("/{userID}", h.deleteUser)
		r.Post("/{userID}/roles", h.assignRole)
		r.Put("/roles/{assignmentID}", h.setAssignmentActive)
		r.Delete("/roles/{assignmentID}", h.revokeRole)
	})
}

type createUserForm struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type updateUserForm struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
	IsActive bool   `json:"is_active"`
}

type assignRoleForm struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type assignmentStateForm struct {
	IsActive bool `json:"is_active"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	users, pagination, err := h.service.ListUsers(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "pagination": pagination})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var form createUserForm
	if !h.decode(w, r, &form) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), form.Username, form.Email, form.FullName, form.Password)
	if err != nil {
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var form updateUserForm
	if !h.decode(w, r, &form) {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, form.Email, form.FullName, form.IsActive)
	if err != nil {
		h.logger.Error("update user", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.logger.Error("delete user", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	assignments, err := h.service.ListAssignments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var form assignRoleForm
	if !h.decode(w, r, &form) {
		return
	}
	assignment, err := h.service.AssignRole(r.Context(), id, form.RoleID)
	if err != nil {
		h.logger.Error("assign role", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) setAssignmentActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	var form assignmentStateForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.service.SetAssignmentActive(r.Context(), id, form.IsActive); err != nil {
		h.logger.Error("set assignment state", slog.Int64("assignment_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	if err := h.service.RevokeRole(r.Context(), id); err != nil {
		h.logger.Error("revoke role", slog.Int64("assignment_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}
