package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	credhandler "verichain/internal/credential/handler"
	insthandler "verichain/internal/institution/handler"
	"verichain/internal/platform/health"
	"verichain/internal/platform/middleware"
	phandler "verichain/internal/principal/handler"
	"verichain/pkg/validation"
)

// Handlers are the module handlers mounted by NewRouter.
type Handlers struct {
	Principals   *phandler.Handler
	Institutions *insthandler.Handler
	Credentials  *credhandler.Handler
	Health       *health.Handler
}

type RouterConfig struct {
	RequestTimeout time.Duration
	// ClaimTimeout bounds the routes that wait on ledger confirmations.
	ClaimTimeout time.Duration
	AdminToken   string
	Tokens       middleware.JWTValidator
	// Observer may be nil.
	Observer middleware.RequestObserver
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter wires every endpoint with its middleware. Timeouts are applied per
// group because an outer http.TimeoutHandler would cut the longer claim budget.
func NewRouter(h Handlers, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	if cfg.Observer != nil {
		r.Use(middleware.Metrics(cfg.Observer))
	}

	if h.Health != nil {
		h.Health.Register(r)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.BodyLimit(validation.MaxBodySize))
		h.Principals.RegisterPublic(r)
		h.Credentials.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.BodyLimit(validation.MaxBodySize))
		r.Use(middleware.RequireAuth(cfg.Tokens, logger))
		h.Principals.RegisterAuthenticated(r)
	})

	// Uploads set their own, larger body limit.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.ClaimTimeout))
		r.Use(middleware.RequireAuth(cfg.Tokens, logger))
		h.Credentials.RegisterAuthenticated(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.BodyLimit(validation.MaxBodySize))
		r.Use(middleware.RequireAdminToken(cfg.AdminToken, logger))
		h.Institutions.Register(r)
		h.Principals.RegisterPlatform(r)
	})

	return r
}
