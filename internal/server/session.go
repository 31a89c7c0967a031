// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/client"
	"github.com/shopfront/shopfront/internal/guard"
	"github.com/shopfront/shopfront/pkg/errutil"
)

// maxPasswordBody caps the password change request body.
const maxPasswordBody = 4 << 10

// PasswordRequest is the body of POST /api/session/password.
type PasswordRequest struct {
	Password string `json:"password"`
}

type handlers struct {
	sessions SessionService
	profiles access.ProfileRepository
	logger   *slog.Logger
}

// session returns the principal the guard resolved for the caller.
func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	p, ok := guard.PrincipalFromContext(r.Context())
	if !ok {
		guard.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	guard.WriteJSON(w, http.StatusOK, p)
}

// authenticate derives the session or writes a 401.
func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	session, err := h.sessions.SessionFromRequest(r)
	if err != nil {
		if auth.IsInfrastructureError(err) {
			errutil.LogErrorContext(r.Context(), h.logger, "session lookup failed", err)
		}
		guard.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return session, true
}

// profile returns the caller's own profile. Unlike the guarded routes it
// reports a missing profile as 404 so the client resolver can tell it apart
// from an unreachable store.
func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetRoleForSubject(r.Context(), session.SubjectID())
	switch {
	case errors.Is(err, access.ErrProfileNotFound):
		guard.WriteError(w, http.StatusNotFound, "profile not found")
		return
	case err != nil:
		h.logger.WarnContext(r.Context(), "profile lookup failed",
			"subject_id", session.SubjectID(),
			"error", err)
		guard.WriteError(w, http.StatusServiceUnavailable, "profile store unavailable")
		return
	}

	guard.WriteJSON(w, http.StatusOK, client.ProfileResponse{
		SubjectID: profile.SubjectID,
		Role:      profile.Role,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	})
}

// signOut revokes the presented token and clears the session cookie.
func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.sessions.SignOut(r.Context(), session); err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "sign out failed", err)
		guard.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// updatePassword forwards a password change to the identity service.
func (h *handlers) updatePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req PasswordRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPasswordBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Password == "" {
		guard.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}

	err := h.sessions.UpdatePassword(r.Context(), session, req.Password)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	switch errutil.Code(err) {
	case "AUTH_PASSWORD_INVALID":
		guard.WriteError(w, http.StatusBadRequest, "password rejected")
	case "AUTH_PASSWORD_UNSUPPORTED":
		guard.WriteError(w, http.StatusNotImplemented, "password changes are not available")
	default:
		errutil.LogErrorContext(r.Context(), h.logger, "password update failed", err)
		guard.WriteError(w, http.StatusBadGateway, "identity service error")
	}
}
