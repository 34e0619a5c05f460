// Package dbexec adapts database/sql handles to the narrow query and statement
// interfaces the schema and engine packages depend on.
package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"db-migrate/internal/dialect"
)

// Rows is a fully materialized result set.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Maps returns each row keyed by column name.
func (r *Rows) Maps() []map[string]any {
	out := make([]map[string]any, len(r.Values))
	for i, vals := range r.Values {
		m := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			if j < len(vals) {
				m[c] = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// ExecResult reports what a single statement did.
type ExecResult struct {
	RowsAffected int64
	Action       dialect.WriteAction
}

type QueryExecutor interface {
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
}

type StatementExecutor interface {
	Execute(ctx context.Context, query string, args ...any) (ExecResult, error)
}

// DB implements both executors on top of a *sql.DB.
type DB struct {
	db *sql.DB
	d  dialect.Dialect
}

func New(db *sql.DB, d dialect.Dialect) *DB {
	return &DB{db: db, d: d}
}

func (x *DB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := x.db.QueryContext(ctx, query, x.bind(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute runs a write statement. When the statement ends with the dialect's
// insert flag clause, the returned boolean decides between inserted and updated.
func (x *DB) Execute(ctx context.Context, query string, args ...any) (ExecResult, error) {
	if flag := x.d.InsertFlagClause(); flag != "" && strings.HasSuffix(strings.TrimSpace(query), flag) {
		var inserted bool
		err := x.db.QueryRowContext(ctx, query, x.bind(args)...).Scan(&inserted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// ON CONFLICT DO NOTHING returns no row.
			return ExecResult{Action: dialect.ActionUnchanged}, nil
		case err != nil:
			return ExecResult{}, err
		case inserted:
			return ExecResult{RowsAffected: 1, Action: dialect.ActionInserted}, nil
		default:
			return ExecResult{RowsAffected: 1, Action: dialect.ActionUpdated}, nil
		}
	}

	res, err := x.db.ExecContext(ctx, query, x.bind(args)...)
	if err != nil {
		return ExecResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report it; the write itself succeeded.
		return ExecResult{Action: dialect.ActionUnknown}, nil
	}
	return ExecResult{RowsAffected: n, Action: x.d.ClassifyWrite(n)}, nil
}

func (x *DB) bind(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = x.d.BindValue(a)
	}
	return out
}

var (
	_ QueryExecutor     = (*DB)(nil)
	_ StatementExecutor = (*DB)(nil)
)
