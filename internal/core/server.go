// Package core provides the API chassis for latebird. It builds a chi router
// and enforces the cross-cutting concerns (recovery, request IDs, logging,
// metrics, authentication) before requests reach the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"latebird/internal/config"
	"latebird/internal/types"
)

// Authenticator resolves a session token into the acting user. Implemented
// by auth.Authenticator; injected as an interface for testability.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// Pinger checks connectivity of a backing resource for the health endpoint.
// Satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteRegistrar mounts a group of domain handler routes onto the router.
// The indirection keeps core free of handler imports.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the HTTP surface's dependencies so tests can inject
// their own.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator
	DB            Pinger

	// APIRouteRegistrars are mounted under /api behind authentication.
	APIRouteRegistrars []RouteRegistrar
	// PublicRouteRegistrars are mounted at the root without authentication
	// (the login handshake lives here).
	PublicRouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer initializes the chassis. The caller mounts routes afterwards via
// MountRoutes; the separation lets tests customize registration.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
