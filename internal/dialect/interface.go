package dialect

import (
	"context"
	"database/sql"
)

// WriteAction tells what an upsert did to the target row, when the database can tell.
type WriteAction int

const (
	ActionUnknown WriteAction = iota
	ActionInserted
	ActionUpdated
	ActionUnchanged
)

func (a WriteAction) String() string {
	switch a {
	case ActionInserted:
		return "inserted"
	case ActionUpdated:
		return "updated"
	case ActionUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Upsert is the shape of one insert-or-update statement.
type Upsert struct {
	Table   string
	Columns []string
	Casts   map[string]string // column -> type annotation, see Dialect.Cast
	// Key is the conflict target in key order; every column must be in Columns.
	Key []string
	// Identity lists columns the database would generate, written explicitly here.
	Identity []string
}

// Updatable returns the columns a conflicting row gets overwritten with: every
// column except the key and identity columns, in order.
func (u Upsert) Updatable() []string {
	skip := make(map[string]bool, len(u.Key)+len(u.Identity))
	for _, k := range u.Key {
		skip[k] = true
	}
	for _, k := range u.Identity {
		skip[k] = true
	}
	out := make([]string, 0, len(u.Columns))
	for _, c := range u.Columns {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

// Dialect abstracts database-specific operations.
//
// Catalog queries return the SQL text together with its bound arguments, so that
// table and schema names never end up interpolated into the query.
type Dialect interface {
	Name() string

	// Metadata Queries (Schema Introspection)
	//
	// TablesQuery yields one column: table name.
	// ColumnsQuery yields: name, is_nullable (YES/NO), data_type, native type name,
	// ordinal position, column key (PRI/UNI/''), full column type, is_identity (YES/NO).
	// PrimaryKeysQuery yields: column name, in key order.
	// UniqueKeysQuery yields: index or constraint name, column name, grouped by
	// name and in key order. Partial and expression indexes are left out.
	// ForeignKeysQuery yields: table, constraint, column, referenced table, referenced column.
	TablesQuery(schema string) (string, []any)
	ColumnsQuery(schema, table string) (string, []any)
	PrimaryKeysQuery(schema, table string) (string, []any)
	UniqueKeysQuery(schema, table string) (string, []any)
	ForeignKeysQuery(schema string) (string, []any)

	// Bulk Hooks (used by clean)
	DisableConstraints(ctx context.Context, tx *sql.Tx) error
	EnableConstraints(ctx context.Context, tx *sql.Tx) error

	// Query Generation. Identifiers passed here must come from the introspected catalog.
	QuoteIdent(name string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.
	Cast(expr, typeName string) string
	SelectQuery(table string, cols []string, orderBy string) string
	UpsertQuery(u Upsert) string
	TruncateQuery(table string) string
	CountQuery(table string) string
	EnsureEnumQueries(typeName string, labels []string) []string

	// Write Results
	//
	// InsertFlagClause is the suffix UpsertQuery appends when the database can report
	// whether the row was inserted (a single boolean column). Empty otherwise.
	InsertFlagClause() string
	ClassifyWrite(rowsAffected int64) WriteAction

	// Helpers
	BindValue(v any) any
	NormalizeType(sqlType string) string
	GetSchemaName(input string) string
}
