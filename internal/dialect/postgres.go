package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`,
		[]any{schema}
}

func (d *PostgresDialect) ColumnsQuery(schema, table string) (string, []any) {
	// pg_catalog instead of information_schema: unique indexes (not only constraints)
	// count as unique, and enum types are recognizable through typtype.
	return `SELECT
    a.attname,
    CASE WHEN a.attnotnull THEN 'NO' ELSE 'YES' END,
    CASE
        WHEN t.typcategory = 'A' THEN 'ARRAY'
        WHEN t.typtype = 'e' THEN 'USER-DEFINED'
        ELSE pg_catalog.format_type(a.atttypid, NULL)
    END,
    t.typname,
    a.attnum,
    CASE WHEN EXISTS (
        SELECT 1 FROM pg_index i
        WHERE i.indrelid = a.attrelid AND i.indisunique AND NOT i.indisprimary
          AND i.indnatts = 1 AND i.indkey[0] = a.attnum AND i.indpred IS NULL
    ) THEN 'UNI' ELSE '' END,
    CASE
        WHEN t.typtype = 'e' THEN 'enum'
        WHEN t.typcategory = 'A' AND et.typtype = 'e' THEN 'enum[]'
        ELSE pg_catalog.format_type(a.atttypid, a.atttypmod)
    END,
    CASE WHEN a.attidentity IN ('a', 'd') THEN 'YES' ELSE 'NO' END
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_type t ON t.oid = a.atttypid
LEFT JOIN pg_type et ON et.oid = t.typelem
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`, []any{schema, table}
}

func (d *PostgresDialect) PrimaryKeysQuery(schema, table string) (string, []any) {
	return `SELECT a.attname
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary
ORDER BY array_position(i.indkey::int2[], a.attnum)`, []any{schema, table}
}

// UniqueKeysQuery skips partial indexes: ON CONFLICT only infers them when the
// statement repeats their predicate.
func (d *PostgresDialect) UniqueKeysQuery(schema, table string) (string, []any) {
	return `SELECT ic.relname, a.attname
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_class ic ON ic.oid = i.indexrelid
CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
WHERE n.nspname = $1 AND c.relname = $2
  AND i.indisunique AND NOT i.indisprimary
  AND i.indpred IS NULL AND i.indexprs IS NULL
ORDER BY ic.relname, k.ord`, []any{schema, table}
}

func (d *PostgresDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name AND kcu.table_schema = ccu.table_schema JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`,
		[]any{schema}
}

func (d *PostgresDialect) DisableConstraints(ctx context.Context, tx *sql.Tx) error {
	// Only affects foreign keys declared DEFERRABLE; TRUNCATE ... CASCADE covers the rest.
	_, err := tx.ExecContext(ctx, "SET CONSTRAINTS ALL DEFERRED")
	return err
}

func (d *PostgresDialect) EnableConstraints(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "SET CONSTRAINTS ALL IMMEDIATE")
	return err
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

// Cast renders expr::"type", keeping a trailing [] outside the quotes.
func (d *PostgresDialect) Cast(expr, typeName string) string {
	if typeName == "" {
		return expr
	}
	base, suffix := typeName, ""
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSuffix(base, "[]")
		suffix += "[]"
	}
	return fmt.Sprintf("%s::%s%s", expr, d.QuoteIdent(base), suffix)
}

func (d *PostgresDialect) SelectQuery(table string, cols []string, orderBy string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(cols, d.QuoteIdent), ", "), d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return q
}

// UpsertQuery adds OVERRIDING SYSTEM VALUE when identity columns are written,
// which GENERATED ALWAYS columns refuse otherwise.
func (d *PostgresDialect) UpsertQuery(u Upsert) string {
	vals := make([]string, len(u.Columns))
	for i, c := range u.Columns {
		vals[i] = d.Cast(d.Placeholder(i), u.Casts[c])
	}

	var updates []string
	for _, c := range u.Updatable() {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", d.QuoteIdent(c), d.QuoteIdent(c)))
	}
	action := "DO UPDATE SET " + strings.Join(updates, ", ")
	if len(updates) == 0 {
		action = "DO NOTHING"
	}

	override := " "
	if len(u.Identity) > 0 {
		override = " OVERRIDING SYSTEM VALUE "
	}

	return fmt.Sprintf("INSERT INTO %s (%s)%sVALUES (%s) ON CONFLICT (%s) %s %s",
		d.QuoteIdent(u.Table),
		strings.Join(quoteAll(u.Columns, d.QuoteIdent), ", "),
		override,
		strings.Join(vals, ", "),
		strings.Join(quoteAll(u.Key, d.QuoteIdent), ", "),
		action,
		d.InsertFlagClause(),
	)
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", d.QuoteIdent(table))
}

func (d *PostgresDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

// EnsureEnumQueries creates the type when missing, then adds any label the
// existing type lacks. Postgres has no CREATE TYPE IF NOT EXISTS, hence the DO block.
func (d *PostgresDialect) EnsureEnumQueries(typeName string, labels []string) []string {
	lits := make([]string, len(labels))
	for i, l := range labels {
		lits[i] = QuoteLiteral(l)
	}
	queries := []string{fmt.Sprintf(`DO $$
BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = %s AND typtype = 'e') THEN
        CREATE TYPE %s AS ENUM (%s);
    END IF;
END
$$`, QuoteLiteral(typeName), d.QuoteIdent(typeName), strings.Join(lits, ", "))}

	for _, l := range lits {
		queries = append(queries, fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s", d.QuoteIdent(typeName), l))
	}
	return queries
}

// InsertFlagClause relies on xmax being zero only for freshly inserted tuples.
func (d *PostgresDialect) InsertFlagClause() string {
	return "RETURNING (xmax = 0) AS inserted"
}

func (d *PostgresDialect) ClassifyWrite(rowsAffected int64) WriteAction {
	if rowsAffected == 0 {
		return ActionUnchanged
	}
	return ActionUnknown
}

func (d *PostgresDialect) BindValue(v any) any {
	switch val := v.(type) {
	case []any:
		return pq.Array(val)
	case []string:
		return pq.StringArray(val)
	case map[string]any:
		return jsonBind(val)
	}
	return v
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "varchar":
		return "varchar"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}
