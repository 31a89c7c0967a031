// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"
	"sync"
	"time"

	"github.com/shopfront/shopfront/internal/access"
)

// ProfileRepository is an in-memory access.ProfileRepository with controllable
// latency and failures. Safe for concurrent use.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]access.Profile
	delays   map[string]time.Duration
	err      error
	calls    map[string]int
}

// NewProfileRepository creates an empty repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[string]access.Profile),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
}

// Put stores a profile with the given role.
func (r *ProfileRepository) Put(subjectID string, role access.Role) {
	r.PutProfile(access.Profile{SubjectID: subjectID, Role: string(role)})
}

// PutProfile stores p as-is, including malformed roles.
func (r *ProfileRepository) PutProfile(p access.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.SubjectID] = p
}

// Delete removes a subject's profile.
func (r *ProfileRepository) Delete(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, subjectID)
}

// SetDelay makes lookups for subjectID wait d (or until ctx is done).
func (r *ProfileRepository) SetDelay(subjectID string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays[subjectID] = d
}

// SetError makes every lookup fail with err. Pass nil to clear.
func (r *ProfileRepository) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Calls returns how many lookups were made for subjectID.
func (r *ProfileRepository) Calls(subjectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[subjectID]
}

// GetRoleForSubject implements access.ProfileRepository.
func (r *ProfileRepository) GetRoleForSubject(ctx context.Context, subjectID string) (*access.Profile, error) {
	r.mu.Lock()
	r.calls[subjectID]++
	delay := r.delays[subjectID]
	r.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[subjectID]
	if !ok {
		return nil, access.ErrProfileNotFound
	}
	return &p, nil
}
