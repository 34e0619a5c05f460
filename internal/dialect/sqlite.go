package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type SqliteDialect struct{}

func (d *SqliteDialect) Name() string { return "sqlite" }

// The pragma table functions take the schema as their last argument.

func (d *SqliteDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND ?1 IS NOT NULL ORDER BY name`,
		[]any{schema}
}

func (d *SqliteDialect) ColumnsQuery(schema, table string) (string, []any) {
	return `SELECT
    p.name,
    CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END,
    lower(p.type),
    lower(p.type),
    p.cid + 1,
    CASE WHEN EXISTS (
        SELECT 1 FROM pragma_index_list(?2, ?1) il
        JOIN pragma_index_info(il.name, ?1) ii
        WHERE il."unique" = 1 AND il.origin <> 'pk' AND il.partial = 0 AND ii.name = p.name
          AND (SELECT COUNT(*) FROM pragma_index_info(il.name, ?1)) = 1
    ) THEN 'UNI' ELSE '' END,
    p.type,
    'NO'
FROM pragma_table_info(?2, ?1) p
ORDER BY p.cid`, []any{schema, table}
}

func (d *SqliteDialect) PrimaryKeysQuery(schema, table string) (string, []any) {
	return `SELECT name FROM pragma_table_info(?2, ?1) WHERE pk > 0 ORDER BY pk`, []any{schema, table}
}

// UniqueKeysQuery reads both UNIQUE constraints and CREATE UNIQUE INDEX;
// expression columns come back with a NULL name.
func (d *SqliteDialect) UniqueKeysQuery(schema, table string) (string, []any) {
	return `SELECT il.name, ii.name
FROM pragma_index_list(?2, ?1) il
JOIN pragma_index_info(il.name, ?1) ii
WHERE il."unique" = 1 AND il.origin <> 'pk' AND il.partial = 0
ORDER BY il.name, ii.seqno`, []any{schema, table}
}

func (d *SqliteDialect) ForeignKeysQuery(schema string) (string, []any) {
	// Foreign keys are unnamed in the catalog; the pragma id stands in for the name.
	return `SELECT m.name, 'fk_' || m.name || '_' || f.id, f."from", f."table", COALESCE(f."to", '')
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name, ?1) f
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, f.id, f.seq`, []any{schema}
}

// PRAGMA foreign_keys is a no-op inside a transaction; deferring the checks is not.
func (d *SqliteDialect) DisableConstraints(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON")
	return err
}

func (d *SqliteDialect) EnableConstraints(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = OFF")
	return err
}

func (d *SqliteDialect) QuoteIdent(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SqliteDialect) Cast(expr, typeName string) string {
	return castless(expr, typeName)
}

func (d *SqliteDialect) SelectQuery(table string, cols []string, orderBy string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(cols, d.QuoteIdent), ", "), d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return q
}

func (d *SqliteDialect) UpsertQuery(u Upsert) string {
	var updates []string
	for _, c := range u.Updatable() {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", d.QuoteIdent(c), d.QuoteIdent(c)))
	}
	action := "DO UPDATE SET " + strings.Join(updates, ", ")
	if len(updates) == 0 {
		action = "DO NOTHING"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		d.QuoteIdent(u.Table),
		strings.Join(quoteAll(u.Columns, d.QuoteIdent), ", "),
		GeneratePlaceholders(len(u.Columns), d.Placeholder),
		strings.Join(quoteAll(u.Key, d.QuoteIdent), ", "),
		action,
	)
}

func (d *SqliteDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", d.QuoteIdent(table))
}

func (d *SqliteDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

// SQLite has no enum types; labels are enforced by the normalizer only.
func (d *SqliteDialect) EnsureEnumQueries(typeName string, labels []string) []string {
	return nil
}

func (d *SqliteDialect) InsertFlagClause() string { return "" }

func (d *SqliteDialect) ClassifyWrite(rowsAffected int64) WriteAction {
	if rowsAffected == 0 {
		return ActionUnchanged
	}
	return ActionUnknown
}

func (d *SqliteDialect) BindValue(v any) any {
	return jsonBind(v)
}

func (d *SqliteDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *SqliteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}
