package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type MSSQLDialect struct{}

// Helper: MSSQL Driver (go-mssqldb) prefers @p1, @p2 named parameters over ?

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,
		[]any{schema}
}

func (d *MSSQLDialect) ColumnsQuery(schema, table string) (string, []any) {
	// UNIQUE constraints and single-column unique indexes both mark a column unique.
	// Filtered indexes do not count.
	return `
		SELECT
			c.COLUMN_NAME,
			c.IS_NULLABLE,
			c.DATA_TYPE,
			c.DATA_TYPE,
			c.ORDINAL_POSITION,
			CASE WHEN uq.COLUMN_NAME IS NOT NULL OR ui.COLUMN_NAME IS NOT NULL THEN 'UNI' ELSE '' END AS COLUMN_KEY,
			c.DATA_TYPE,
			CASE WHEN idc.column_id IS NOT NULL THEN 'YES' ELSE 'NO' END AS IS_IDENTITY
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
		) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
		LEFT JOIN (
			SELECT t.name AS TABLE_NAME, col.name AS COLUMN_NAME
			FROM sys.indexes idx
			JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
			JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
			JOIN sys.tables t ON idx.object_id = t.object_id
			JOIN sys.schemas s ON t.schema_id = s.schema_id
			WHERE idx.is_unique = 1
				AND idx.is_primary_key = 0
				AND idx.has_filter = 0
				AND s.name = @p1
				AND (SELECT COUNT(*) FROM sys.index_columns ic2 WHERE ic2.object_id = idx.object_id AND ic2.index_id = idx.index_id) = 1
		) ui ON c.TABLE_NAME = ui.TABLE_NAME AND c.COLUMN_NAME = ui.COLUMN_NAME
		LEFT JOIN sys.identity_columns idc
			ON idc.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
			AND idc.name = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`, []any{schema, table}
}

func (d *MSSQLDialect) PrimaryKeysQuery(schema, table string) (string, []any) {
	return `SELECT kcu.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2 ORDER BY kcu.ORDINAL_POSITION`,
		[]any{schema, table}
}

func (d *MSSQLDialect) UniqueKeysQuery(schema, table string) (string, []any) {
	return `
		SELECT idx.name, col.name
		FROM sys.indexes idx
		JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
		JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
		JOIN sys.tables t ON idx.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE idx.is_unique = 1
			AND idx.is_primary_key = 0
			AND idx.has_filter = 0
			AND ic.is_included_column = 0
			AND s.name = @p1 AND t.name = @p2
		ORDER BY idx.name, ic.key_ordinal
	`, []any{schema, table}
}

func (d *MSSQLDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME WHERE KCU1.TABLE_SCHEMA = @p1`,
		[]any{schema}
}

func (d *MSSQLDialect) constraintTables(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = 'dbo'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *MSSQLDialect) DisableConstraints(ctx context.Context, tx *sql.Tx) error {
	tables, err := d.constraintTables(ctx, tx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("failed to disable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) EnableConstraints(ctx context.Context, tx *sql.Tx) error {
	tables, err := d.constraintTables(ctx, tx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("failed to enable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return quoteWith(name, "[", "]")
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) Cast(expr, typeName string) string {
	return castless(expr, typeName)
}

func (d *MSSQLDialect) SelectQuery(table string, cols []string, orderBy string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(cols, d.QuoteIdent), ", "), d.QuoteIdent(table))
	if orderBy != "" {
		q += " ORDER BY " + d.QuoteIdent(orderBy)
	}
	return q
}

// UpsertQuery renders a MERGE. Explicit identity values need IDENTITY_INSERT,
// which is switched back off in the same batch: a session may hold it for one
// table at a time.
func (d *MSSQLDialect) UpsertQuery(u Upsert) string {
	src := make([]string, len(u.Columns))
	srcRefs := make([]string, len(u.Columns))
	for i, c := range u.Columns {
		src[i] = fmt.Sprintf("%s AS %s", d.Placeholder(i), d.QuoteIdent(c))
		srcRefs[i] = "src." + d.QuoteIdent(c)
	}

	var b strings.Builder
	if len(u.Identity) > 0 {
		fmt.Fprintf(&b, "SET IDENTITY_INSERT %s ON; ", d.QuoteIdent(u.Table))
	}
	fmt.Fprintf(&b, "MERGE INTO %s AS tgt USING (SELECT %s) AS src ON %s",
		d.QuoteIdent(u.Table), strings.Join(src, ", "), matchOn(u.Key, d.QuoteIdent))

	if rest := u.Updatable(); len(rest) > 0 {
		sets := make([]string, len(rest))
		for i, c := range rest {
			sets[i] = fmt.Sprintf("tgt.%s = src.%s", d.QuoteIdent(c), d.QuoteIdent(c))
		}
		fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(sets, ", "))
	}
	fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		strings.Join(quoteAll(u.Columns, d.QuoteIdent), ", "), strings.Join(srcRefs, ", "))
	if len(u.Identity) > 0 {
		fmt.Fprintf(&b, " SET IDENTITY_INSERT %s OFF;", d.QuoteIdent(u.Table))
	}
	return b.String()
}

func (d *MSSQLDialect) TruncateQuery(table string) string {
	// DELETE instead of TRUNCATE: TRUNCATE is refused on tables referenced by foreign keys.
	return fmt.Sprintf("DELETE FROM %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) EnsureEnumQueries(typeName string, labels []string) []string {
	return nil
}

func (d *MSSQLDialect) InsertFlagClause() string { return "" }

func (d *MSSQLDialect) ClassifyWrite(rowsAffected int64) WriteAction {
	if rowsAffected == 0 {
		return ActionUnchanged
	}
	return ActionUnknown
}

func (d *MSSQLDialect) BindValue(v any) any {
	return jsonBind(v)
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float", "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	case "uniqueidentifier":
		return "uuid"
	default:
		return t
	}
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}
