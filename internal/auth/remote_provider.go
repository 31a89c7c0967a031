// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// RemoteProvider is the client-side IdentityProvider: it keeps the session the
// identity service handed out in a MemoryStore and forwards sign-out and
// password changes to the service.
type RemoteProvider struct {
	store  *MemoryStore
	client *IdentityClient
}

// NewRemoteProvider creates a RemoteProvider with no session.
func NewRemoteProvider(client *IdentityClient) *RemoteProvider {
	return &RemoteProvider{store: NewMemoryStore(), client: client}
}

// SetToken installs the token returned by a completed sign-in or refresh.
func (p *RemoteProvider) SetToken(token string) error {
	session, err := ParseUnverified(token)
	if err != nil {
		return err
	}
	p.store.Set(session)
	return nil
}

// Current implements SessionStore.
func (p *RemoteProvider) Current(ctx context.Context) (*Session, error) {
	return p.store.Current(ctx)
}

// OnChange implements SessionStore.
func (p *RemoteProvider) OnChange(listener Listener) func() {
	return p.store.OnChange(listener)
}

// SignOut ends the session at the identity service and drops it locally. The
// local session is dropped even when the service call fails.
func (p *RemoteProvider) SignOut(ctx context.Context) error {
	session, _ := p.store.Current(ctx) //nolint:errcheck // MemoryStore.Current never fails
	defer p.store.Clear()
	if session == nil || p.client == nil {
		return nil
	}
	return p.client.Logout(ctx, session.Token())
}

// UpdatePassword implements IdentityProvider.
func (p *RemoteProvider) UpdatePassword(ctx context.Context, newSecret string) error {
	session, _ := p.store.Current(ctx) //nolint:errcheck // MemoryStore.Current never fails
	if session == nil {
		return oops.Code(CodeSessionMissing).Wrap(ErrNoSession)
	}
	if p.client == nil {
		return oops.Code("AUTH_PASSWORD_UNSUPPORTED").Errorf("identity service is not configured")
	}
	return p.client.UpdatePassword(ctx, session.Token(), newSecret)
}

var _ IdentityProvider = (*RemoteProvider)(nil)
