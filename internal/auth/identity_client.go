// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// IdentityClient calls the identity service's REST endpoints on behalf of a
// caller holding a session token.
type IdentityClient struct {
	baseURL string
	http    *http.Client
}

// NewIdentityClient creates a client for the identity service at baseURL.
// If httpClient is nil a client with a 10s timeout is used.
func NewIdentityClient(baseURL string, httpClient *http.Client) (*IdentityClient, error) {
	if baseURL == "" {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("identity service URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &IdentityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// Logout ends the session identified by token at the identity service.
func (c *IdentityClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/logout", token, nil, "AUTH_LOGOUT_FAILED")
}

// UpdatePassword sets a new secret for the subject of token.
func (c *IdentityClient) UpdatePassword(ctx context.Context, token, newSecret string) error {
	if newSecret == "" {
		return oops.Code("AUTH_PASSWORD_INVALID").Errorf("new password cannot be empty")
	}
	body := map[string]string{"password": newSecret}
	return c.do(ctx, http.MethodPut, "/user", token, body, "AUTH_PASSWORD_UPDATE_FAILED")
}

func (c *IdentityClient) do(ctx context.Context, method, path, token string, body any, code string) error {
	if token == "" {
		return oops.Code(CodeSessionMissing).Wrap(ErrNoSession)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return oops.Code(code).With("operation", "encode request").Wrap(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return oops.Code(code).With("operation", "build request").Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code(code).With("operation", method+" "+path).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best effort detail
		return oops.Code(code).
			With("status", resp.StatusCode).
			With("path", path).
			Errorf("identity service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
