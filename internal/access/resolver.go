// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
)

// Resolver error codes.
const (
	CodeProfileNotFound     = "PROFILE_NOT_FOUND"
	CodeResolverUnavailable = "RESOLVER_UNAVAILABLE"
)

var resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "shopfront_role_resolutions_total",
	Help: "Role resolutions by result",
}, []string{"result"})

// Collectors returns the package's Prometheus collectors for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{resolutions}
}

// Resolver maps a session to the caller's role. Every call reads the profile
// store; nothing is cached, so a promotion or demotion applies to the next
// resolution.
type Resolver struct {
	profiles ProfileRepository
	logger   *slog.Logger
}

// NewResolver creates a Resolver. If logger is nil, slog.Default is used.
func NewResolver(profiles ProfileRepository, logger *slog.Logger) (*Resolver, error) {
	if profiles == nil {
		return nil, oops.Code("ACCESS_INVALID_CONFIG").Errorf("profile repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: profiles, logger: logger}, nil
}

// Resolve returns the principal for session. It fails with
// CodeProfileNotFound when the subject has no profile, CodeResolverUnavailable
// when the store cannot answer, and CodeRoleInvalid when the stored role is
// malformed. Callers must treat every failure as "no usable identity".
func (r *Resolver) Resolve(ctx context.Context, session *auth.Session) (Principal, error) {
	if session == nil {
		resolutions.WithLabelValues("no_session").Inc()
		return Principal{}, oops.Code(auth.CodeSessionMissing).Wrap(auth.ErrNoSession)
	}
	if session.IsExpired() {
		resolutions.WithLabelValues("expired").Inc()
		return Principal{}, oops.Code(auth.CodeSessionExpired).
			With("subject_id", session.SubjectID()).
			Errorf("session has expired")
	}

	subjectID := session.SubjectID()
	profile, err := r.profiles.GetRoleForSubject(auth.WithSession(ctx, session), subjectID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			resolutions.WithLabelValues("not_found").Inc()
			return Principal{}, oops.Code(CodeProfileNotFound).
				With("subject_id", subjectID).
				Wrap(err)
		}
		resolutions.WithLabelValues("unavailable").Inc()
		r.logger.WarnContext(ctx, "role resolution failed",
			"subject_id", subjectID,
			"error", err)
		if !errors.Is(err, ErrUnavailable) {
			err = errors.Join(ErrUnavailable, err)
		}
		return Principal{}, oops.Code(CodeResolverUnavailable).
			With("subject_id", subjectID).
			Wrap(err)
	}

	role, err := ParseRole(profile.Role)
	if err != nil || role == RoleNone {
		resolutions.WithLabelValues("invalid_role").Inc()
		r.logger.WarnContext(ctx, "profile has malformed role",
			"subject_id", subjectID,
			"role", profile.Role)
		return Principal{}, oops.Code(CodeRoleInvalid).
			With("subject_id", subjectID).
			With("role", profile.Role).
			Errorf("profile role is not assignable")
	}

	resolutions.WithLabelValues("ok").Inc()
	return Principal{
		Identity:  session.Identity(),
		Role:      role,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}, nil
}
