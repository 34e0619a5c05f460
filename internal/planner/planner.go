// Package planner turns a normalized row into an idempotent upsert statement.
package planner

import (
	"errors"
	"fmt"
	"sort"

	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
)

// ErrContractViolation means a normalized row does not match its table. It
// indicates a bug upstream and aborts the run.
var ErrContractViolation = errors.New("normalized row violates table contract")

// Statement is a planned upsert: columns in table order, values aligned with
// them, and the type annotation each value needs.
type Statement struct {
	Table       string
	Columns     []string
	Values      []any
	Casts       map[string]string
	ConflictKey []string
	Identity    []string
}

// ConflictKey picks the columns an upsert conflicts on: the whole primary key,
// else a single unique column, else the first composite unique key, else a
// column named id, else the first column. The last two are guesses; a table
// without any key can then duplicate rows on re-runs.
func ConflictKey(t *schema.Table) []string {
	if len(t.PrimaryKey) > 0 && present(t, t.PrimaryKey) {
		return t.PrimaryKey
	}
	for _, c := range t.Columns {
		if c.IsUnique {
			return []string{c.Name}
		}
	}
	for _, k := range t.UniqueKeys {
		if len(k) > 0 && present(t, k) {
			return k
		}
	}
	if t.Column("id") != nil {
		return []string{"id"}
	}
	return []string{t.Columns[0].Name}
}

func present(t *schema.Table, cols []string) bool {
	for _, c := range cols {
		if t.Column(c) == nil {
			return false
		}
	}
	return true
}

// Plan builds the upsert for row. Every table column must be present in row,
// and row must hold nothing else.
func Plan(t *schema.Table, row map[string]any) (*Statement, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: table has no columns", ErrContractViolation)
	}

	var extra []string
	for k := range row {
		if t.Column(k) == nil {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: %s: columns %v not in table", ErrContractViolation, t.Name, extra)
	}

	st := &Statement{
		Table:       t.Name,
		Columns:     make([]string, 0, len(t.Columns)),
		Values:      make([]any, 0, len(t.Columns)),
		Casts:       make(map[string]string),
		ConflictKey: ConflictKey(t),
		Identity:    t.IdentityColumns(),
	}
	for _, c := range t.Columns {
		v, ok := row[c.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s: column %s missing from row", ErrContractViolation, t.Name, c.Name)
		}
		st.Columns = append(st.Columns, c.Name)
		st.Values = append(st.Values, v)
		if cast := c.CastType(); cast != "" {
			st.Casts[c.Name] = cast
		}
	}
	return st, nil
}

// SQL renders the statement for d. Identifiers come from the introspected
// table and are quoted by the dialect; values stay bound parameters.
func (s *Statement) SQL(d dialect.Dialect) string {
	return d.UpsertQuery(dialect.Upsert{
		Table:    s.Table,
		Columns:  s.Columns,
		Casts:    s.Casts,
		Key:      s.ConflictKey,
		Identity: s.Identity,
	})
}
