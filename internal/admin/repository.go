// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/store"
)

// ErrNotFound is returned when the row to update does not exist.
var ErrNotFound = errors.New("row not found")

// Row is one record keyed by JSON field name.
type Row = map[string]any

// Repository reads and updates administrable tables.
type Repository struct {
	pool store.Pool
	now  func() time.Time
}

// NewRepository creates a Repository.
func NewRepository(pool store.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

func selectList(res *Resource) string {
	cols := make([]string, 0, len(res.Columns))
	for _, c := range res.Columns {
		cols = append(cols, pgx.Identifier{c.Name}.Sanitize()+" AS "+pgx.Identifier{c.JSON}.Sanitize())
	}
	return strings.Join(cols, ", ")
}

// escapeLike escapes LIKE wildcards so search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of res and the total number of matching rows.
func (r *Repository) List(ctx context.Context, res *Resource, q ListQuery) ([]Row, int64, error) {
	table := pgx.Identifier{res.Table}.Sanitize()

	var (
		where string
		args  []any
	)
	if search := res.searchColumns(); q.Search != "" && len(search) > 0 {
		conds := make([]string, 0, len(search))
		for _, c := range search {
			conds = append(conds, pgx.Identifier{c}.Sanitize()+"::text ILIKE $1")
		}
		where = " WHERE (" + strings.Join(conds, " OR ") + ")"
		args = append(args, "%"+escapeLike(q.Search)+"%")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM "+table+where, args...).Scan(&total); err != nil {
		return nil, 0, oops.Code("ADMIN_LIST_FAILED").
			With("resource", res.Name).
			With("operation", "count").
			Wrap(err)
	}

	order := "DESC"
	if !q.SortDesc {
		order = "ASC"
	}
	n := len(args)
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, %s ASC LIMIT $%d OFFSET $%d",
		selectList(res), table, where,
		pgx.Identifier{q.SortBy}.Sanitize(), order,
		pgx.Identifier{res.IDColumn}.Sanitize(),
		n+1, n+2)
	args = append(args, q.Limit, q.Offset())

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, oops.Code("ADMIN_LIST_FAILED").
			With("resource", res.Name).
			With("operation", "select").
			Wrap(err)
	}
	data, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, 0, oops.Code("ADMIN_LIST_FAILED").
			With("resource", res.Name).
			With("operation", "scan").
			Wrap(err)
	}
	if data == nil {
		data = []Row{}
	}
	return data, total, nil
}

// Patch applies changes to the row identified by id inside one transaction
// and returns the row before and after. changes is keyed by column name.
func (r *Repository) Patch(ctx context.Context, res *Resource, id string, changes map[string]any) (before, after Row, err error) {
	if len(changes) == 0 {
		return nil, nil, oops.Code("ADMIN_EMPTY_PATCH").With("resource", res.Name).Errorf("no fields to update")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, oops.Code("ADMIN_PATCH_FAILED").With("resource", res.Name).With("operation", "begin").Wrap(err)
	}
	defer func() {
		//nolint:errcheck // Rollback error is expected when transaction commits successfully
		_ = tx.Rollback(ctx)
	}()

	table := pgx.Identifier{res.Table}.Sanitize()
	idCol := pgx.Identifier{res.IDColumn}.Sanitize()
	cols := selectList(res)

	rows, err := tx.Query(ctx, "SELECT "+cols+" FROM "+table+" WHERE "+idCol+" = $1 FOR UPDATE", id)
	if err != nil {
		return nil, nil, oops.Code("ADMIN_PATCH_FAILED").With("resource", res.Name).With("operation", "lock").Wrap(err)
	}
	before, err = pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, oops.Code("ADMIN_NOT_FOUND").
			With("resource", res.Name).
			With("id", id).
			Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, nil, oops.Code("ADMIN_PATCH_FAILED").With("resource", res.Name).With("operation", "lock").Wrap(err)
	}

	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for i, name := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{name}.Sanitize(), i+1))
		args = append(args, changes[name])
	}
	sets = append(sets, fmt.Sprintf(`"updated_at" = $%d`, len(names)+1))
	args = append(args, r.now().UTC(), id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		table, strings.Join(sets, ", "), idCol, len(args), cols)
	rows, err = tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, oops.Code("ADMIN_PATCH_FAILED").With("resource", res.Name).With("operation", "update").Wrap(err)
	}
	after, err = pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, nil, oops.Code("ADMIN_PATCH_FAILED").With("resource", res.Name).With("operation", "update").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, oops.Code("ADMIN_PATCH_FAILED").With("resource", res.Name).With("operation", "commit").Wrap(err)
	}
	return before, after, nil
}
