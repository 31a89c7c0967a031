// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package client holds the pieces a back office client uses to talk to the
// shopfront server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
)

// ProfilePath is the server endpoint returning the caller's profile.
const ProfilePath = "/api/profile"

// ProfileResponse is the body of GET /api/profile.
type ProfileResponse struct {
	SubjectID string    `json:"subjectId"`
	Role      string    `json:"role"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileClient is an access.ProfileRepository backed by the server's
// profile endpoint. The session being resolved must be in the context
// (access.Resolver puts it there); its token authenticates the call.
type ProfileClient struct {
	baseURL string
	http    *http.Client
}

// NewProfileClient creates a client for the server at baseURL. If httpClient
// is nil a client with a 10s timeout is used.
func NewProfileClient(baseURL string, httpClient *http.Client) (*ProfileClient, error) {
	if baseURL == "" {
		return nil, oops.Code("CLIENT_INVALID_CONFIG").Errorf("server URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProfileClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

// GetRoleForSubject implements access.ProfileRepository. A 404 maps to
// access.ErrProfileNotFound; every other failure maps to access.ErrUnavailable.
func (c *ProfileClient) GetRoleForSubject(ctx context.Context, subjectID string) (*access.Profile, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok || session.SubjectID() != subjectID {
		return nil, oops.With("subject_id", subjectID).
			Wrap(errors.Join(access.ErrUnavailable, auth.ErrNoSession))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ProfilePath, nil)
	if err != nil {
		return nil, oops.With("subject_id", subjectID).Wrap(errors.Join(access.ErrUnavailable, err))
	}
	req.Header.Set("Authorization", "Bearer "+session.Token())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, oops.With("subject_id", subjectID).Wrap(errors.Join(access.ErrUnavailable, err))
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, oops.With("subject_id", subjectID).Wrap(access.ErrProfileNotFound)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best effort detail
		return nil, oops.With("subject_id", subjectID).
			With("status", resp.StatusCode).
			Wrap(errors.Join(access.ErrUnavailable,
				errors.New("server returned "+resp.Status+": "+strings.TrimSpace(string(msg)))))
	}

	var body ProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, oops.With("subject_id", subjectID).Wrap(errors.Join(access.ErrUnavailable, err))
	}
	if body.SubjectID != subjectID {
		return nil, oops.With("subject_id", subjectID).
			With("returned_subject_id", body.SubjectID).
			Wrap(errors.Join(access.ErrUnavailable, errors.New("profile subject mismatch")))
	}
	return &access.Profile{
		SubjectID: body.SubjectID,
		Role:      body.Role,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		CreatedAt: body.CreatedAt,
		UpdatedAt: body.UpdatedAt,
	}, nil
}
