// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/access/audit"
	"github.com/shopfront/shopfront/internal/guard"
	"github.com/shopfront/shopfront/pkg/errutil"
)

const maxBodyBytes = 1 << 20

// Store is the persistence the handlers need. *Repository implements it.
type Store interface {
	List(ctx context.Context, res *Resource, q ListQuery) ([]Row, int64, error)
	Patch(ctx context.Context, res *Resource, id string, changes map[string]any) (before, after Row, err error)
}

// Auditor records completed mutations. *audit.Recorder implements it.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// ListResponse is the body of a list request.
type ListResponse struct {
	Data  []Row `json:"data"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Handler serves /api/admin.
type Handler struct {
	store     Store
	guard     *guard.Guard
	auditor   Auditor
	logger    *slog.Logger
	resources []*Resource
}

// NewHandler creates a Handler for Resources().
func NewHandler(store Store, g *guard.Guard, auditor Auditor, logger *slog.Logger) (*Handler, error) {
	if store == nil || g == nil || auditor == nil {
		return nil, oops.Code("ADMIN_INVALID_CONFIG").Errorf("store, guard and auditor are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     store,
		guard:     g,
		auditor:   auditor,
		logger:    logger,
		resources: Resources(),
	}, nil
}

// Routes returns the admin router. Each route is guarded by its resource's
// declared minimum role.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	for _, res := range h.resources {
		r.With(h.guard.Require(res.ListRole)).Get("/"+res.Name, h.list(res))
		r.With(h.guard.Require(res.PatchRole)).Patch("/"+res.Name, h.patch(res))
	}
	return r
}

func (h *Handler) list(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ParseListQuery(res, r.URL.Query())
		if err != nil {
			guard.WriteError(w, http.StatusBadRequest, messageOf(err))
			return
		}

		data, total, err := h.store.List(r.Context(), res, q)
		if err != nil {
			errutil.LogErrorContext(r.Context(), h.logger, "admin list failed", err, "resource", res.Name)
			guard.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		guard.WriteJSON(w, http.StatusOK, ListResponse{Data: data, Page: q.Page, Limit: q.Limit, Total: total})
	}
}

func (h *Handler) patch(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		principal, ok := guard.PrincipalFromContext(ctx)
		if !ok {
			guard.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			guard.WriteError(w, http.StatusBadRequest, "request body too large or unreadable")
			return
		}

		patch, err := DecodePatch(res, body)
		if err != nil {
			if errutil.HasCode(err, CodePatchInvalid) {
				guard.WriteError(w, http.StatusBadRequest, messageOf(err))
				return
			}
			errutil.LogErrorContext(ctx, h.logger, "admin patch schema failed", err, "resource", res.Name)
			guard.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		changes := patch.Changes()
		if len(changes) == 0 {
			guard.WriteError(w, http.StatusBadRequest, "no fields to update")
			return
		}
		action := audit.ActionUpdate
		if _, changesRole := changes["role"]; changesRole && res.Name == "profiles" {
			if patch.TargetID() == principal.Identity.SubjectID {
				h.logger.InfoContext(ctx, "rejected self role change", "subject_id", principal.Identity.SubjectID)
				guard.WriteError(w, http.StatusBadRequest, "cannot change your own role")
				return
			}
			action = audit.ActionRoleChange
		}

		before, after, err := h.store.Patch(ctx, res, patch.TargetID(), changes)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				guard.WriteError(w, http.StatusNotFound, "not found")
				return
			}
			errutil.LogErrorContext(ctx, h.logger, "admin patch failed", err, "resource", res.Name, "id", patch.TargetID())
			guard.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		h.record(ctx, principal, action, res, patch.TargetID(), before, after)
		guard.WriteJSON(w, http.StatusOK, after)
	}
}

// record writes the audit entry for a committed change. Failures are logged
// and do not fail the response.
func (h *Handler) record(ctx context.Context, p access.Principal, action string, res *Resource, id string, before, after Row) {
	entry, err := audit.NewEntry(p.Identity.SubjectID, action, res.Table, id, before, after)
	if err == nil {
		err = h.auditor.Record(ctx, entry)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, h.logger, "audit entry not recorded", err,
			"resource", res.Name,
			"id", id,
			"actor_id", p.Identity.SubjectID)
	}
}

// messageOf returns the client-facing message of an oops error.
func messageOf(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}
