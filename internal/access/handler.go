package access

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
	"github.com/meridian-iam/meridian-iam/internal/shared"
)

// NavigationSource resolves access results and navigation views.
type NavigationSource interface {
	ResolveUserAccess(ctx context.Context, userID int64) (Result, error)
	ResolveNavigation(ctx context.Context, userID int64) (NavigationTree, error)
}

// Handler exposes the resolved-access endpoints.
type Handler struct {
	logger *slog.Logger
	source NavigationSource
	guard  Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, source NavigationSource, guard Middleware) *Handler {
	return &Handler{logger: logger, source: source, guard: guard}
}

// MountRoutes registers access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myNavigation)
	r.Get("/me/permissions", h.myPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("users.view"))
		r.Get("/users/{userID}", h.userAccess)
	})
}

type navigationResponse struct {
	Roots    []*NavNode `json:"roots"`
	Routable []int64    `json:"routable_features"`
}

func (h *Handler) myNavigation(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	tree, err := h.source.ResolveNavigation(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve navigation", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := navigationResponse{Roots: tree.Roots}
	for _, f := range tree.RoutableFeatures() {
		resp.Routable = append(resp.Routable, f.ID)
	}
	if resp.Roots == nil {
		// A user with no resolvable access sees an empty tree, not an error.
		resp.Roots = []*NavNode{}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	result, err := h.source.ResolveUserAccess(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": result.PermissionNames()})
}

func (h *Handler) userAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	result, err := h.source.ResolveUserAccess(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve user access", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
