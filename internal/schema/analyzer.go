package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/dialect"
)

// ErrSchemaUnavailable means a table's column metadata could not be read.
var ErrSchemaUnavailable = errors.New("schema unavailable")

// Introspector reads table metadata from a database catalog.
type Introspector struct {
	q         dbexec.QueryExecutor
	d         dialect.Dialect
	schema    string
	knownEnum func(typeName string) bool
}

func NewIntrospector(q dbexec.QueryExecutor, d dialect.Dialect, schemaName string) *Introspector {
	// [Interface-First]: Delegate schema resolution to the dialect
	return &Introspector{q: q, d: d, schema: d.GetSchemaName(schemaName)}
}

// RecognizeEnums marks user-defined columns whose type satisfies known as enums,
// for catalogs that do not flag enum types themselves.
func (in *Introspector) RecognizeEnums(known func(typeName string) bool) *Introspector {
	in.knownEnum = known
	return in
}

func (in *Introspector) Schema() string { return in.schema }

// ---------------------------------------------------------------------
// 1. Tables
// ---------------------------------------------------------------------

func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	query, args := in.d.TablesQuery(in.schema)
	rows, err := in.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	names := make([]string, 0, len(rows.Values))
	for _, r := range rows.Values {
		if len(r) == 0 {
			continue
		}
		if name := asString(r[0]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// ---------------------------------------------------------------------
// 2. Columns
// ---------------------------------------------------------------------

// DescribeTable returns the columns of a table in physical order, with
// primary key, unique and identity flags, and the table's unique keys.
func (in *Introspector) DescribeTable(ctx context.Context, name string) (*Table, error) {
	query, args := in.d.ColumnsQuery(in.schema, name)
	rows, err := in.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchemaUnavailable, name, err)
	}
	if len(rows.Values) == 0 {
		return nil, fmt.Errorf("%w: %s: table not found or has no columns", ErrSchemaUnavailable, name)
	}

	t := &Table{Name: name, Dependencies: []string{}}
	var keyed []string
	for _, r := range rows.Values {
		if len(r) < 7 {
			return nil, fmt.Errorf("%w: %s: catalog returned %d fields, want 7", ErrSchemaUnavailable, name, len(r))
		}
		col := &Column{
			Name:       asString(r[0]),
			IsNullable: strings.EqualFold(asString(r[1]), "YES"),
			DataType:   in.d.NormalizeType(asString(r[2])),
			NativeType: asString(r[3]),
			Position:   asInt(r[4]),
			ColumnType: asString(r[6]),
		}
		if len(r) > 7 {
			col.IsIdentity = strings.EqualFold(asString(r[7]), "YES")
		}
		if col.Name == "" {
			continue // Skip invalid rows
		}

		switch strings.ToUpper(asString(r[5])) {
		case "PRI":
			col.IsPK = true
			keyed = append(keyed, col.Name)
		case "UNI":
			col.IsUnique = true
		}

		classify(col, asString(r[2]), in.knownEnum)
		t.Columns = append(t.Columns, col)
	}

	pkQuery, pkArgs := in.d.PrimaryKeysQuery(in.schema, name)
	pkRows, err := in.q.Query(ctx, pkQuery, pkArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: primary key: %w", ErrSchemaUnavailable, name, err)
	}
	for _, r := range pkRows.Values {
		if len(r) == 0 {
			continue
		}
		if c := t.Column(asString(r[0])); c != nil {
			c.IsPK = true
			t.PrimaryKey = append(t.PrimaryKey, c.Name)
		}
	}
	if len(t.PrimaryKey) == 0 {
		t.PrimaryKey = keyed
	}

	if t.UniqueKeys, err = in.uniqueKeys(ctx, t); err != nil {
		return nil, fmt.Errorf("%w: %s: unique keys: %w", ErrSchemaUnavailable, name, err)
	}

	return t, nil
}

// uniqueKeys groups the catalog's unique index rows by index, in catalog order.
// An index over an expression or an unknown column is dropped.
func (in *Introspector) uniqueKeys(ctx context.Context, t *Table) ([][]string, error) {
	query, args := in.d.UniqueKeysQuery(in.schema, t.Name)
	rows, err := in.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var (
		order  []string
		byName = make(map[string][]string)
		broken = make(map[string]bool)
	)
	for _, r := range rows.Values {
		if len(r) < 2 {
			continue
		}
		idx, col := asString(r[0]), asString(r[1])
		if _, seen := byName[idx]; !seen {
			order = append(order, idx)
			byName[idx] = nil
		}
		if c := t.Column(col); c != nil {
			byName[idx] = append(byName[idx], c.Name)
		} else {
			broken[idx] = true
		}
	}

	var keys [][]string
	for _, idx := range order {
		if !broken[idx] && len(byName[idx]) > 0 {
			keys = append(keys, byName[idx])
		}
	}
	return keys, nil
}

// ---------------------------------------------------------------------
// 3. Foreign Keys & Ordering
// ---------------------------------------------------------------------

// foreignKeys returns the foreign keys of the schema keyed by upper-cased table
// name (Oracle folds identifiers), restricted to references among names.
func (in *Introspector) foreignKeys(ctx context.Context, names []string) (map[string][]*ForeignKey, error) {
	// Use map for O(1) lookups, with normalized keys for case-insensitive matching
	known := make(map[string]string, len(names))
	for _, n := range names {
		known[strings.ToUpper(n)] = n
	}

	query, args := in.d.ForeignKeysQuery(in.schema)
	rows, err := in.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	out := make(map[string][]*ForeignKey)
	for _, r := range rows.Values {
		if len(r) < 5 {
			continue
		}
		tName, cName, rTable, rCol := asString(r[0]), asString(r[2]), asString(r[3]), asString(r[4])
		if tName == "" || rTable == "" || strings.EqualFold(tName, rTable) {
			continue
		}
		tKey := strings.ToUpper(tName)
		actual, ok := known[strings.ToUpper(rTable)]
		if _, self := known[tKey]; !ok || !self {
			// external references we can't order against
			continue
		}
		out[tKey] = append(out[tKey], &ForeignKey{Column: cName, RefTable: actual, RefColumn: rCol})
	}
	return out, nil
}

func attach(t *Table, fks []*ForeignKey) {
	seen := make(map[string]bool)
	for _, fk := range fks {
		t.ForeignKeys = append(t.ForeignKeys, fk)
		if !seen[fk.RefTable] {
			seen[fk.RefTable] = true
			t.Dependencies = append(t.Dependencies, fk.RefTable)
		}
	}
}

// Analyze describes every named table, loads their foreign keys, and returns
// them in dependency order.
func (in *Introspector) Analyze(ctx context.Context, names []string) ([]*Table, error) {
	fks, err := in.foreignKeys(ctx, names)
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(names))
	for _, n := range names {
		t, err := in.DescribeTable(ctx, n)
		if err != nil {
			return nil, err
		}
		attach(t, fks[strings.ToUpper(n)])
		tables = append(tables, t)
	}
	return SortTablesByFKCount(tables), nil
}

// Order returns names sorted so that referenced tables come first. Only
// foreign keys are read; columns are not described.
func (in *Introspector) Order(ctx context.Context, names []string) ([]string, error) {
	fks, err := in.foreignKeys(ctx, names)
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, len(names))
	for i, n := range names {
		tables[i] = &Table{Name: n, Dependencies: []string{}}
		attach(tables[i], fks[strings.ToUpper(n)])
	}

	sorted := SortTablesByFKCount(tables)
	out := make([]string, len(sorted))
	for i, t := range sorted {
		out[i] = t.Name
	}
	return out, nil
}

// SortTablesByFKCount sorts tables by dependency order.
// It handles circular dependencies by using a scoring system.
func SortTablesByFKCount(tables []*Table) []*Table {
	var sorted []*Table
	processed := make(map[string]bool)
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	// Keep looping until all tables are processed
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}

			allDepsProcessed := true
			for _, depName := range t.Dependencies {
				if !processed[depName] {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}

		// Pass 2: If no table added, we have a cycle. Break it using heuristic score.
		if !added {
			var bestTable *Table
			bestScore := -999999

			for _, t := range tables {
				if processed[t.Name] {
					continue
				}

				// Penalty: unprocessed FKs. Bonus: table sits on a 2-cycle.
				score := 0
				isCircular := false
				for _, depName := range t.Dependencies {
					if processed[depName] {
						continue
					}
					score -= 100
					if cand, ok := byName[depName]; ok && !isCircular {
						for _, candDep := range cand.Dependencies {
							if candDep == t.Name {
								isCircular = true
								break
							}
						}
					}
				}
				if isCircular {
					score += 500 // Priority boost
				}

				// Tie-breaker: Name (Deterministic)
				if score > bestScore || (score == bestScore && (bestTable == nil || t.Name > bestTable.Name)) {
					bestScore = score
					bestTable = t
				}
			}

			if bestTable == nil {
				// Should not happen if tables > sorted
				slog.Error("dependency sort deadlocked", "remaining", len(tables)-len(sorted))
				break
			}
			sorted = append(sorted, bestTable)
			processed[bestTable.Name] = true
			slog.Debug("breaking circular dependency", "table", bestTable.Name, "score", bestScore)
		}
	}

	return sorted
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func asInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case int32:
		return int(val)
	case int16:
		return int(val)
	case float64:
		return int(val)
	default:
		n, _ := strconv.Atoi(strings.TrimSpace(asString(v)))
		return n
	}
}
