// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package audit

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/store"
)

const insertEntrySQL = `
	INSERT INTO audit_log (
		id, actor_id, action, target_table, target_id, before, after, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

// PostgresWriter implements Writer for PostgreSQL. It only inserts.
type PostgresWriter struct {
	pool store.Pool
}

// NewPostgresWriter creates a PostgresWriter.
func NewPostgresWriter(pool store.Pool) *PostgresWriter {
	return &PostgresWriter{pool: pool}
}

// Write inserts entry into audit_log. Writing an entry whose ID is already
// stored is a no-op, so a WAL replay of an insert whose acknowledgement was
// lost succeeds.
func (w *PostgresWriter) Write(ctx context.Context, entry Entry) error {
	_, err := w.pool.Exec(ctx, insertEntrySQL,
		entry.ID.String(),
		entry.ActorID,
		entry.Action,
		entry.TargetTable,
		entry.TargetID,
		jsonbArg(entry.Before),
		jsonbArg(entry.After),
		entry.Timestamp,
	)
	if err != nil {
		return oops.Code("AUDIT_INSERT_FAILED").
			With("actor_id", entry.ActorID).
			With("target_table", entry.TargetTable).
			With("target_id", entry.TargetID).
			Wrap(err)
	}
	return nil
}

// jsonbArg maps an empty snapshot to SQL NULL.
func jsonbArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
