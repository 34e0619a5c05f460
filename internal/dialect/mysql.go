package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,
		[]any{schema}
}

func (d *MysqlDialect) ColumnsQuery(schema, table string) (string, []any) {
	// COLUMN_TYPE carries the label list of inline enums, e.g. enum('a','b').
	return `SELECT COLUMN_NAME, IS_NULLABLE, DATA_TYPE, DATA_TYPE, ORDINAL_POSITION, IF(COLUMN_KEY IN ('PRI', 'UNI'), LEFT(COLUMN_KEY, 3), ''), COLUMN_TYPE, IF(EXTRA LIKE '%auto_increment%', 'YES', 'NO') FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`,
		[]any{schema, table}
}

func (d *MysqlDialect) PrimaryKeysQuery(schema, table string) (string, []any) {
	return `SELECT COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION`,
		[]any{schema, table}
}

func (d *MysqlDialect) UniqueKeysQuery(schema, table string) (string, []any) {
	// functional key parts have a NULL COLUMN_NAME
	return `SELECT INDEX_NAME, COLUMN_NAME FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND NON_UNIQUE = 0 AND INDEX_NAME <> 'PRIMARY' ORDER BY INDEX_NAME, SEQ_IN_INDEX`,
		[]any{schema, table}
}

func (d *MysqlDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL`,
		[]any{schema}
}

func (d *MysqlDialect) DisableConstraints(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) EnableConstraints(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return quoteWith(name, "`", "`")
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) Cast(expr, typeName string) string {
	return castless(expr, typeName)
}

func (d *MysqlDialect) SelectQuery(table string, cols []string, orderBy string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(cols, d.QuoteIdent), ", "), d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return q
}

// UpsertQuery uses ON DUPLICATE KEY UPDATE, which fires on any unique key of
// the table, not only u.Key. AUTO_INCREMENT columns accept explicit values as is.
func (d *MysqlDialect) UpsertQuery(u Upsert) string {
	vals := GeneratePlaceholders(len(u.Columns), d.Placeholder)

	var updates []string
	for _, c := range u.Updatable() {
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", d.QuoteIdent(c), d.QuoteIdent(c)))
	}
	if len(updates) == 0 {
		// No-op assignment keeps the statement valid and the row untouched.
		k := d.QuoteIdent(u.Key[0])
		updates = append(updates, fmt.Sprintf("%s = %s", k, k))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		d.QuoteIdent(u.Table), strings.Join(quoteAll(u.Columns, d.QuoteIdent), ", "), vals, strings.Join(updates, ", "))
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

// MySQL enums are declared inline on the column; there is no type to create.
func (d *MysqlDialect) EnsureEnumQueries(typeName string, labels []string) []string {
	return nil
}

func (d *MysqlDialect) InsertFlagClause() string { return "" }

// ClassifyWrite follows the ON DUPLICATE KEY UPDATE affected-rows convention:
// 1 inserted, 2 updated, 0 existing row left as is.
func (d *MysqlDialect) ClassifyWrite(rowsAffected int64) WriteAction {
	switch rowsAffected {
	case 0:
		return ActionUnchanged
	case 1:
		return ActionInserted
	case 2:
		return ActionUpdated
	default:
		return ActionUnknown
	}
}

func (d *MysqlDialect) BindValue(v any) any {
	return jsonBind(v)
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}
