// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package server assembles the shopfront HTTP API: session endpoints, the
// profile endpoint used by back office clients, and the admin resources.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/guard"
)

// SessionService is the server-side session surface the API needs.
// *auth.Service implements it.
type SessionService interface {
	CookieName() string
	SessionFromRequest(r *http.Request) (*auth.Session, error)
	SignOut(ctx context.Context, session *auth.Session) error
	UpdatePassword(ctx context.Context, session *auth.Session, newSecret string) error
}

// RouterOptions controls the construction of the router. Sessions, Guard and
// Profiles are required.
type RouterOptions struct {
	Sessions    SessionService
	Guard       *guard.Guard
	Profiles    access.ProfileRepository
	Admin       http.Handler
	CORSOrigins []string
	Middleware  []func(http.Handler) http.Handler
	Logger      *slog.Logger
}

// DefaultCORSOptions returns the CORS policy for the given browser origins.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter builds the API router.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	if opts.Sessions == nil || opts.Guard == nil || opts.Profiles == nil {
		return nil, oops.Code("SERVER_INVALID_CONFIG").
			Errorf("sessions, guard and profile repository are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		sessions: opts.Sessions,
		profiles: opts.Profiles,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(DefaultCORSOptions(opts.CORSOrigins)))
	}
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.With(opts.Guard.Require(access.RoleNone)).Get("/session", h.session)
		r.Post("/session/signout", h.signOut)
		r.Post("/session/password", h.updatePassword)
		r.Get("/profile", h.profile)
		if opts.Admin != nil {
			r.Mount("/admin", opts.Admin)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		guard.WriteError(w, http.StatusNotFound, "not found")
	})
	return r, nil
}
