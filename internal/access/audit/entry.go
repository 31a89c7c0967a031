// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package audit

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Actions recorded by the admin API.
const (
	ActionUpdate     = "update"
	ActionRoleChange = "role_change"
)

// Entry is one audit record.
type Entry struct {
	ID          ulid.ULID       `json:"id"`
	ActorID     string          `json:"actorId"`
	Action      string          `json:"action"`
	TargetTable string          `json:"targetTable"`
	TargetID    string          `json:"targetId"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewEntry builds an entry, marshaling the before and after snapshots.
// A nil snapshot is stored as absent.
func NewEntry(actorID, action, targetTable, targetID string, before, after any) (Entry, error) {
	b, err := snapshot(before)
	if err != nil {
		return Entry{}, oops.Code("AUDIT_SNAPSHOT_FAILED").With("which", "before").Wrap(err)
	}
	a, err := snapshot(after)
	if err != nil {
		return Entry{}, oops.Code("AUDIT_SNAPSHOT_FAILED").With("which", "after").Wrap(err)
	}
	return Entry{
		ActorID:     actorID,
		Action:      action,
		TargetTable: targetTable,
		TargetID:    targetID,
		Before:      b,
		After:       a,
	}, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller with context
	}
	return data, nil
}
