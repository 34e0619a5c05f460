package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

// Oracle catalog views are scoped to the current user. The schema argument is
// consumed by a dummy clause so every dialect takes the same arguments.

func (d *OracleDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL ORDER BY TABLE_NAME`, []any{schema}
}

func (d *OracleDialect) ColumnsQuery(schema, table string) (string, []any) {
	return `
SELECT
    t.COLUMN_NAME,
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
    t.DATA_TYPE,
    t.DATA_TYPE,
    t.COLUMN_ID,
    CASE WHEN u.CONSTRAINT_NAME IS NOT NULL THEN 'UNI' ELSE '' END,
    t.DATA_TYPE,
    t.IDENTITY_COLUMN
FROM USER_TAB_COLUMNS t
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'U'
      AND (SELECT COUNT(*) FROM USER_CONS_COLUMNS c2 WHERE c2.CONSTRAINT_NAME = uc.CONSTRAINT_NAME) = 1
) u ON t.TABLE_NAME = u.TABLE_NAME AND t.COLUMN_NAME = u.COLUMN_NAME
WHERE :1 IS NOT NULL AND t.TABLE_NAME = :2
ORDER BY t.COLUMN_ID`, []any{schema, table}
}

func (d *OracleDialect) PrimaryKeysQuery(schema, table string) (string, []any) {
	return `
SELECT cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'P' AND :1 IS NOT NULL AND uc.TABLE_NAME = :2
ORDER BY cc.POSITION`, []any{schema, table}
}

func (d *OracleDialect) UniqueKeysQuery(schema, table string) (string, []any) {
	return `
SELECT cc.CONSTRAINT_NAME, cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'U' AND :1 IS NOT NULL AND uc.TABLE_NAME = :2
ORDER BY cc.CONSTRAINT_NAME, cc.POSITION`, []any{schema, table}
}

func (d *OracleDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND :1 IS NOT NULL`, []any{schema}
}

type oracleConstraint struct {
	Table string
	Name  string
}

func (d *OracleDialect) foreignKeys(ctx context.Context, tx *sql.Tx, status string) ([]oracleConstraint, error) {
	rows, err := tx.QueryContext(ctx, "SELECT TABLE_NAME, CONSTRAINT_NAME FROM USER_CONSTRAINTS WHERE CONSTRAINT_TYPE = 'R' AND STATUS = :1", status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oracleConstraint
	for rows.Next() {
		var c oracleConstraint
		if err := rows.Scan(&c.Table, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DisableConstraints disables every enabled foreign key of the current user.
// Note: in Oracle, DDL (ALTER) implicitly commits the transaction.
func (d *OracleDialect) DisableConstraints(ctx context.Context, tx *sql.Tx) error {
	constraints, err := d.foreignKeys(ctx, tx, "ENABLED")
	if err != nil {
		return err
	}
	for _, c := range constraints {
		query := fmt.Sprintf("ALTER TABLE %s DISABLE CONSTRAINT %s", d.QuoteIdent(c.Table), d.QuoteIdent(c.Name))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to disable constraint %s on %s: %w", c.Name, c.Table, err)
		}
	}
	return nil
}

func (d *OracleDialect) EnableConstraints(ctx context.Context, tx *sql.Tx) error {
	constraints, err := d.foreignKeys(ctx, tx, "DISABLED")
	if err != nil {
		return err
	}
	for _, c := range constraints {
		query := fmt.Sprintf("ALTER TABLE %s ENABLE CONSTRAINT %s", d.QuoteIdent(c.Table), d.QuoteIdent(c.Name))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to enable constraint %s on %s: %w", c.Name, c.Table, err)
		}
	}
	return nil
}

func (d *OracleDialect) QuoteIdent(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) Cast(expr, typeName string) string {
	return castless(expr, typeName)
}

func (d *OracleDialect) SelectQuery(table string, cols []string, orderBy string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(cols, d.QuoteIdent), ", "), d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return q
}

// UpsertQuery renders a MERGE. Identity columns are written as given, which
// GENERATED BY DEFAULT accepts and GENERATED ALWAYS rejects.
func (d *OracleDialect) UpsertQuery(u Upsert) string {
	src := make([]string, len(u.Columns))
	srcRefs := make([]string, len(u.Columns))
	for i, c := range u.Columns {
		src[i] = fmt.Sprintf("%s AS %s", d.Placeholder(i), d.QuoteIdent(c))
		srcRefs[i] = "src." + d.QuoteIdent(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE INTO %s tgt USING (SELECT %s FROM dual) src ON (%s)",
		d.QuoteIdent(u.Table), strings.Join(src, ", "), matchOn(u.Key, d.QuoteIdent))

	// Columns referenced in the ON clause cannot be updated.
	if rest := u.Updatable(); len(rest) > 0 {
		sets := make([]string, len(rest))
		for i, c := range rest {
			sets[i] = fmt.Sprintf("tgt.%s = src.%s", d.QuoteIdent(c), d.QuoteIdent(c))
		}
		fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(sets, ", "))
	}
	fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(quoteAll(u.Columns, d.QuoteIdent), ", "), strings.Join(srcRefs, ", "))
	return b.String()
}

func (d *OracleDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *OracleDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *OracleDialect) EnsureEnumQueries(typeName string, labels []string) []string {
	return nil
}

func (d *OracleDialect) InsertFlagClause() string { return "" }

func (d *OracleDialect) ClassifyWrite(rowsAffected int64) WriteAction {
	if rowsAffected == 0 {
		return ActionUnchanged
	}
	return ActionUnknown
}

func (d *OracleDialect) BindValue(v any) any {
	switch val := v.(type) {
	case bool:
		// NUMBER(1) flags; go-ora binds bool inconsistently across server versions.
		if val {
			return 1
		}
		return 0
	}
	return jsonBind(v)
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	if strings.Contains(s, "char") || strings.Contains(s, "clob") {
		return "string"
	}
	if strings.Contains(s, "int") || strings.Contains(s, "number") || strings.Contains(s, "float") {
		return "integer"
	}
	if strings.HasPrefix(s, "timestamp") {
		return "timestamp"
	}
	if strings.Contains(s, "date") {
		return "datetime"
	}
	if strings.Contains(s, "blob") || strings.Contains(s, "raw") {
		return "blob"
	}
	return s
}

func (d *OracleDialect) GetSchemaName(input string) string {
	return input
}
