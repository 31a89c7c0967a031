// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package guard checks every privileged HTTP request before it reaches a
// handler.
//
// The guard derives the caller's session from the request's own credentials
// and resolves the role with a fresh profile lookup. Role claims carried in
// the request body, headers or token are never consulted.
package guard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
)

// CodePolicyViolation marks a request whose role is below the required minimum.
const CodePolicyViolation = "POLICY_VIOLATION"

var tracer = otel.Tracer("shopfront/guard")

var decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "shopfront_guard_decisions_total",
	Help: "Route guard decisions by outcome",
}, []string{"outcome"})

// Collectors returns the package's Prometheus collectors for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{decisions}
}

// SessionSource derives a verified session from a request. *auth.Service
// implements it.
type SessionSource interface {
	SessionFromRequest(r *http.Request) (*auth.Session, error)
}

// RoleResolver maps a session to a principal. *access.Resolver implements it.
type RoleResolver interface {
	Resolve(ctx context.Context, session *auth.Session) (access.Principal, error)
}

// Denial is a terminal guard response.
type Denial struct {
	Status  int
	Message string
	Err     error
}

func (d *Denial) Error() string {
	if d.Err != nil {
		return d.Message + ": " + d.Err.Error()
	}
	return d.Message
}

func (d *Denial) Unwrap() error { return d.Err }

// Write sends the denial as a JSON error body.
func (d *Denial) Write(w http.ResponseWriter) {
	WriteError(w, d.Status, d.Message)
}

// Guard is the server-side checkpoint for privileged endpoints.
type Guard struct {
	sessions SessionSource
	resolver RoleResolver
	logger   *slog.Logger
}

// New creates a Guard. If logger is nil, slog.Default is used.
func New(sessions SessionSource, resolver RoleResolver, logger *slog.Logger) (*Guard, error) {
	if sessions == nil {
		return nil, oops.Code("GUARD_INVALID_CONFIG").Errorf("session source is required")
	}
	if resolver == nil {
		return nil, oops.Code("GUARD_INVALID_CONFIG").Errorf("role resolver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{sessions: sessions, resolver: resolver, logger: logger}, nil
}

// Check authenticates r and requires at least min. It returns the principal,
// or a Denial with status 401 when there is no valid session and 403 when the
// role cannot be resolved or is insufficient.
func (g *Guard) Check(r *http.Request, minRole access.Role) (access.Principal, *Denial) {
	ctx, span := tracer.Start(r.Context(), "guard.check",
		trace.WithAttributes(
			attribute.String("guard.required_role", string(minRole)),
			attribute.String("http.route", r.URL.Path),
		))
	defer span.End()

	session, err := g.sessions.SessionFromRequest(r.WithContext(ctx))
	if err != nil {
		if auth.IsInfrastructureError(err) {
			g.logger.WarnContext(ctx, "session validation failed", "path", r.URL.Path, "error", err)
		} else {
			g.logger.InfoContext(ctx, "request denied: no valid session", "path", r.URL.Path, "error", err)
		}
		return access.Principal{}, g.deny(span, "unauthenticated", &Denial{
			Status:  http.StatusUnauthorized,
			Message: "unauthorized",
			Err:     err,
		})
	}
	span.SetAttributes(attribute.String("guard.subject_id", session.SubjectID()))

	principal, err := g.resolver.Resolve(ctx, session)
	if err != nil {
		g.logger.InfoContext(ctx, "request denied: role not resolvable",
			"path", r.URL.Path,
			"subject_id", session.SubjectID(),
			"error", err)
		return access.Principal{}, g.deny(span, "forbidden", &Denial{
			Status:  http.StatusForbidden,
			Message: "forbidden",
			Err:     err,
		})
	}
	span.SetAttributes(attribute.String("guard.role", string(principal.Role)))

	if decision := access.Decide(principal.Role, minRole); !decision.Allow {
		g.logger.InfoContext(ctx, "request denied: insufficient role",
			"path", r.URL.Path,
			"subject_id", session.SubjectID(),
			"role", principal.Role,
			"required", minRole)
		return access.Principal{}, g.deny(span, "forbidden", &Denial{
			Status:  http.StatusForbidden,
			Message: "forbidden",
			Err: oops.Code(CodePolicyViolation).
				With("subject_id", session.SubjectID()).
				With("role", principal.Role).
				With("required", minRole).
				Errorf("%s", decision.Reason),
		})
	}

	decisions.WithLabelValues("allowed").Inc()
	return principal, nil
}

func (g *Guard) deny(span trace.Span, outcome string, d *Denial) *Denial {
	decisions.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("guard.outcome", outcome))
	span.SetStatus(codes.Error, d.Message)
	return d
}

// Require returns middleware that runs Check and stores the principal in the
// request context for the handler.
func (g *Guard) Require(minRole access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, denial := g.Check(r, minRole)
			if denial != nil {
				denial.Write(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p access.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by Require.
func PrincipalFromContext(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(access.Principal)
	return p, ok
}
