// Package core provides the API chassis for the Huddle billing service.
// It creates a chi router and enforces cross-cutting concerns -- panic
// recovery, request correlation, logging, security headers, and
// authentication -- before requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"huddle/internal/config"
	"huddle/internal/types"
)

// Authenticator resolves a bearer credential into the authenticated Identity.
// Implementations live outside core (internal/auth) so the chassis stays free
// of token-format concerns; tests inject fakes.
type Authenticator interface {
	// ResolveToken verifies the credential and returns the Identity it
	// represents. Returns a *types.AppError with an auth_* code on failure.
	ResolveToken(ctx context.Context, token string) (*types.Identity, error)
}

// Server encapsulates the chassis dependencies for the Huddle API, allowing
// for easy injection during testing and distinct configuration per
// environment.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator
	HealthProbes  []HealthProbe

	// V1RouteRegistrars are invoked under /v1 when MountRoutes runs. Domain
	// handlers append themselves here from main to avoid import cycles.
	V1RouteRegistrars []func(chi.Router)

	// WebhookRegistrars are mounted outside /v1 and outside the auth
	// middleware; the provider authenticates with a signature, not a token.
	WebhookRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes the chassis and prepares the server for route
// mounting. The caller is responsible for mounting routes (via MountRoutes)
// after construction; this separation lets tests customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, probe := range s.HealthProbes {
		if closer, ok := probe.(interface{ Close() }); ok {
			closer.Close()
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}

// writeAuthError writes a structured 401 response with the given code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	Error(w, r, types.NewAppError(code, message, nil))
}
