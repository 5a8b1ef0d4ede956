package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/auth"
	"github.com/meridian-iam/meridian-iam/internal/features"
	"github.com/meridian-iam/meridian-iam/internal/observability"
	"github.com/meridian-iam/meridian-iam/internal/pages"
	"github.com/meridian-iam/meridian-iam/internal/permissions"
	"github.com/meridian-iam/meridian-iam/internal/roles"
	"github.com/meridian-iam/meridian-iam/internal/shared"
	"github.com/meridian-iam/meridian-iam/internal/users"
	"github.com/meridian-iam/meridian-iam/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler        *auth.Handler
	AccessHandler      *access.Handler
	RolesHandler       *roles.Handler
	FeaturesHandler    *features.Handler
	PagesHandler       *pages.Handler
	PermissionsHandler *permissions.Handler
	UsersHandler       *users.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.AccessHandler != nil {
		r.Route("/access", params.AccessHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.FeaturesHandler != nil {
		r.Route("/features", params.FeaturesHandler.MountRoutes)
	}
	if params.PagesHandler != nil {
		r.Route("/pages", params.PagesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
