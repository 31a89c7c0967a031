// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package auth holds the session side of shopfront access control.
//
// Sessions are issued by an external identity service as signed tokens. This
// package never issues credentials; it only:
//   - models the Session and the Identity derived from it
//   - verifies presented tokens on the server (Verifier) and tracks server-side
//     sign-out in a revocation list (Service)
//   - exposes the client-side Session Store contract and an in-memory,
//     event-driven implementation (MemoryStore)
//   - talks to the identity service for sign-out and password changes
//     (IdentityClient, RemoteProvider)
//
// Sessions are immutable once constructed with NewSession. A refresh or a
// sign-out replaces the session wholesale.
package auth
