package dialect_test

import (
	"database/sql/driver"
	"testing"

	"db-migrate/internal/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDialect(t *testing.T) {
	cases := map[string]string{
		"postgres":  "postgres",
		"pgx":       "postgres",
		"sqlserver": "sqlserver",
		"mssql":     "sqlserver",
		"oracle":    "oracle",
		"sqlite":    "sqlite",
		"mysql":     "mysql",
		"":          "mysql",
	}
	for driver, want := range cases {
		assert.Equal(t, want, dialect.GetDialect(driver).Name(), "driver %q", driver)
	}
}

func TestPostgresUpsertQuery(t *testing.T) {
	d := &dialect.PostgresDialect{}
	q := d.UpsertQuery(dialect.Upsert{
		Table:   "users",
		Columns: []string{"id", "email", "status", "tags", "created_at"},
		Casts:   map[string]string{"status": "user_status", "tags": "text[]", "created_at": "timestamptz"},
		Key:     []string{"email"},
	})

	assert.Equal(t,
		`INSERT INTO "users" ("id", "email", "status", "tags", "created_at") `+
			`VALUES ($1, $2, $3::"user_status", $4::"text"[], $5::"timestamptz") `+
			`ON CONFLICT ("email") DO UPDATE SET "id" = EXCLUDED."id", "status" = EXCLUDED."status", "tags" = EXCLUDED."tags", "created_at" = EXCLUDED."created_at" `+
			`RETURNING (xmax = 0) AS inserted`,
		q)
}

func TestPostgresUpsertQuery_KeyOnly(t *testing.T) {
	d := &dialect.PostgresDialect{}
	q := d.UpsertQuery(dialect.Upsert{Table: "tags", Columns: []string{"id"}, Key: []string{"id"}})
	assert.Equal(t, `INSERT INTO "tags" ("id") VALUES ($1) ON CONFLICT ("id") DO NOTHING RETURNING (xmax = 0) AS inserted`, q)
}

func TestPostgresUpsertQuery_CompositeKey(t *testing.T) {
	d := &dialect.PostgresDialect{}
	q := d.UpsertQuery(dialect.Upsert{
		Table:   "article_tags",
		Columns: []string{"article_id", "tag_id", "position"},
		Key:     []string{"article_id", "tag_id"},
	})
	assert.Equal(t,
		`INSERT INTO "article_tags" ("article_id", "tag_id", "position") VALUES ($1, $2, $3) `+
			`ON CONFLICT ("article_id", "tag_id") DO UPDATE SET "position" = EXCLUDED."position" `+
			`RETURNING (xmax = 0) AS inserted`,
		q)

	q = d.UpsertQuery(dialect.Upsert{Table: "_PostToTag", Columns: []string{"A", "B"}, Key: []string{"A", "B"}})
	assert.Contains(t, q, `ON CONFLICT ("A", "B") DO NOTHING`)
}

func TestPostgresUpsertQuery_Identity(t *testing.T) {
	d := &dialect.PostgresDialect{}
	q := d.UpsertQuery(dialect.Upsert{
		Table:    "orders",
		Columns:  []string{"id", "seq", "total"},
		Key:      []string{"id"},
		Identity: []string{"seq"},
	})
	assert.Equal(t,
		`INSERT INTO "orders" ("id", "seq", "total") OVERRIDING SYSTEM VALUE VALUES ($1, $2, $3) `+
			`ON CONFLICT ("id") DO UPDATE SET "total" = EXCLUDED."total" `+
			`RETURNING (xmax = 0) AS inserted`,
		q, "identity columns are inserted but never updated")
}

func TestPostgresColumnsQuery_SkipsPartialIndexes(t *testing.T) {
	d := &dialect.PostgresDialect{}
	q, _ := d.ColumnsQuery("public", "users")
	assert.Contains(t, q, "AND i.indpred IS NULL")
	assert.Contains(t, q, "attidentity")

	q, args := d.UniqueKeysQuery("public", "users")
	assert.Contains(t, q, "i.indpred IS NULL")
	assert.Equal(t, []any{"public", "users"}, args)
}

func TestPostgresCast(t *testing.T) {
	d := &dialect.PostgresDialect{}
	assert.Equal(t, "$1", d.Cast("$1", ""))
	assert.Equal(t, `$2::"mood"`, d.Cast("$2", "mood"))
	assert.Equal(t, `$3::"mood"[]`, d.Cast("$3", "mood[]"))
}

func TestPostgresEnsureEnumQueries(t *testing.T) {
	d := &dialect.PostgresDialect{}
	qs := d.EnsureEnumQueries("user_status", []string{"active", "it's"})

	require.Len(t, qs, 3)
	assert.Contains(t, qs[0], `CREATE TYPE "user_status" AS ENUM ('active', 'it''s')`)
	assert.Contains(t, qs[0], `typname = 'user_status'`)
	assert.Equal(t, `ALTER TYPE "user_status" ADD VALUE IF NOT EXISTS 'active'`, qs[1])
	assert.Equal(t, `ALTER TYPE "user_status" ADD VALUE IF NOT EXISTS 'it''s'`, qs[2])
}

func TestPostgresBindValue(t *testing.T) {
	d := &dialect.PostgresDialect{}

	v, ok := d.BindValue([]any{"a", "b"}).(driver.Valuer)
	require.True(t, ok, "arrays must bind through a driver.Valuer")
	out, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a","b"}`, out)

	assert.Equal(t, `{"k":1}`, d.BindValue(map[string]any{"k": 1}))
	assert.Equal(t, 42, d.BindValue(42))
}

func TestMysqlUpsertQuery(t *testing.T) {
	d := &dialect.MysqlDialect{}

	q := d.UpsertQuery(dialect.Upsert{
		Table:   "users",
		Columns: []string{"id", "email"},
		Casts:   map[string]string{"email": "ignored"},
		Key:     []string{"id"},
	})
	assert.Equal(t, "INSERT INTO `users` (`id`, `email`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `email` = VALUES(`email`)", q)

	q = d.UpsertQuery(dialect.Upsert{Table: "tags", Columns: []string{"id"}, Key: []string{"id"}})
	assert.Equal(t, "INSERT INTO `tags` (`id`) VALUES (?) ON DUPLICATE KEY UPDATE `id` = `id`", q)

	q = d.UpsertQuery(dialect.Upsert{Table: "article_tags", Columns: []string{"article_id", "tag_id"}, Key: []string{"article_id", "tag_id"}})
	assert.Equal(t, "INSERT INTO `article_tags` (`article_id`, `tag_id`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `article_id` = `article_id`", q)
}

func TestMysqlClassifyWrite(t *testing.T) {
	d := &dialect.MysqlDialect{}
	assert.Equal(t, dialect.ActionUnchanged, d.ClassifyWrite(0))
	assert.Equal(t, dialect.ActionInserted, d.ClassifyWrite(1))
	assert.Equal(t, dialect.ActionUpdated, d.ClassifyWrite(2))
	assert.Equal(t, dialect.ActionUnknown, d.ClassifyWrite(7))
}

func TestMysqlBindValueEncodesSequences(t *testing.T) {
	d := &dialect.MysqlDialect{}
	assert.Equal(t, `["a","b"]`, d.BindValue([]any{"a", "b"}))
	assert.Equal(t, `[]`, d.BindValue([]any{}))
	assert.Equal(t, "plain", d.BindValue("plain"))
}

func TestMSSQLUpsertQuery(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	q := d.UpsertQuery(dialect.Upsert{Table: "users", Columns: []string{"id", "email"}, Key: []string{"id"}})
	assert.Equal(t,
		"MERGE INTO [users] AS tgt USING (SELECT @p1 AS [id], @p2 AS [email]) AS src ON tgt.[id] = src.[id] "+
			"WHEN MATCHED THEN UPDATE SET tgt.[email] = src.[email] "+
			"WHEN NOT MATCHED THEN INSERT ([id], [email]) VALUES (src.[id], src.[email]);",
		q)
}

func TestMSSQLUpsertQuery_CompositeKey(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	q := d.UpsertQuery(dialect.Upsert{Table: "article_tags", Columns: []string{"article_id", "tag_id"}, Key: []string{"article_id", "tag_id"}})
	assert.Equal(t,
		"MERGE INTO [article_tags] AS tgt USING (SELECT @p1 AS [article_id], @p2 AS [tag_id]) AS src "+
			"ON tgt.[article_id] = src.[article_id] AND tgt.[tag_id] = src.[tag_id] "+
			"WHEN NOT MATCHED THEN INSERT ([article_id], [tag_id]) VALUES (src.[article_id], src.[tag_id]);",
		q)
}

func TestMSSQLUpsertQuery_Identity(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	q := d.UpsertQuery(dialect.Upsert{
		Table:    "users",
		Columns:  []string{"id", "email"},
		Key:      []string{"id"},
		Identity: []string{"id"},
	})
	assert.Equal(t,
		"SET IDENTITY_INSERT [users] ON; "+
			"MERGE INTO [users] AS tgt USING (SELECT @p1 AS [id], @p2 AS [email]) AS src ON tgt.[id] = src.[id] "+
			"WHEN MATCHED THEN UPDATE SET tgt.[email] = src.[email] "+
			"WHEN NOT MATCHED THEN INSERT ([id], [email]) VALUES (src.[id], src.[email]); "+
			"SET IDENTITY_INSERT [users] OFF;",
		q)

	cq, _ := d.ColumnsQuery("dbo", "users")
	assert.Contains(t, cq, "sys.identity_columns")
	assert.Contains(t, cq, "idx.has_filter = 0")
}

func TestOracleUpsertQuery(t *testing.T) {
	d := &dialect.OracleDialect{}
	q := d.UpsertQuery(dialect.Upsert{Table: "USERS", Columns: []string{"ID", "EMAIL"}, Key: []string{"ID"}})
	assert.Equal(t,
		`MERGE INTO "USERS" tgt USING (SELECT :1 AS "ID", :2 AS "EMAIL" FROM dual) src ON (tgt."ID" = src."ID") `+
			`WHEN MATCHED THEN UPDATE SET tgt."EMAIL" = src."EMAIL" `+
			`WHEN NOT MATCHED THEN INSERT ("ID", "EMAIL") VALUES (src."ID", src."EMAIL")`,
		q)
	assert.Equal(t, 1, d.BindValue(true))

	q = d.UpsertQuery(dialect.Upsert{Table: "ARTICLE_TAGS", Columns: []string{"ARTICLE_ID", "TAG_ID", "POS"}, Key: []string{"ARTICLE_ID", "TAG_ID"}})
	assert.Contains(t, q, `ON (tgt."ARTICLE_ID" = src."ARTICLE_ID" AND tgt."TAG_ID" = src."TAG_ID") WHEN MATCHED THEN UPDATE SET tgt."POS" = src."POS" `)
}

func TestSqliteUpsertQuery(t *testing.T) {
	d := &dialect.SqliteDialect{}
	q := d.UpsertQuery(dialect.Upsert{
		Table:   "users",
		Columns: []string{"id", "email", "name"},
		Casts:   map[string]string{"email": "text"},
		Key:     []string{"email"},
	})
	assert.Equal(t,
		`INSERT INTO "users" ("id", "email", "name") VALUES (?, ?, ?) ON CONFLICT ("email") DO UPDATE SET "id" = excluded."id", "name" = excluded."name"`,
		q)

	q = d.UpsertQuery(dialect.Upsert{Table: "article_tags", Columns: []string{"article_id", "tag_id"}, Key: []string{"article_id", "tag_id"}})
	assert.Equal(t,
		`INSERT INTO "article_tags" ("article_id", "tag_id") VALUES (?, ?) ON CONFLICT ("article_id", "tag_id") DO NOTHING`,
		q)
	assert.Equal(t, "main", d.GetSchemaName(""))
}

func TestQuoteIdentEscapes(t *testing.T) {
	assert.Equal(t, `"we""ird"`, (&dialect.PostgresDialect{}).QuoteIdent(`we"ird`))
	assert.Equal(t, "`we``ird`", (&dialect.MysqlDialect{}).QuoteIdent("we`ird"))
	assert.Equal(t, "[we]]ird]", (&dialect.MSSQLDialect{}).QuoteIdent("we]ird"))
}

func TestSelectQuery(t *testing.T) {
	d := &dialect.PostgresDialect{}
	assert.Equal(t, `SELECT "id", "name" FROM "users" ORDER BY "id"`, d.SelectQuery("users", []string{"id", "name"}, "id"))
	assert.Equal(t, `SELECT "id" FROM "users"`, d.SelectQuery("users", []string{"id"}, ""))
}

func TestCatalogQueriesBindNames(t *testing.T) {
	for _, d := range []dialect.Dialect{
		&dialect.PostgresDialect{}, &dialect.MysqlDialect{}, &dialect.MSSQLDialect{},
		&dialect.OracleDialect{}, &dialect.SqliteDialect{},
	} {
		q, args := d.ColumnsQuery("app", "users")
		assert.NotContains(t, q, "users", d.Name())
		assert.Equal(t, []any{"app", "users"}, args, d.Name())

		q, args = d.UniqueKeysQuery("app", "users")
		assert.NotContains(t, q, "users", d.Name())
		assert.Equal(t, []any{"app", "users"}, args, d.Name())

		_, args = d.TablesQuery("app")
		assert.Equal(t, []any{"app"}, args, d.Name())
	}
}

func TestUpsertUpdatable(t *testing.T) {
	u := dialect.Upsert{
		Columns:  []string{"a", "b", "c", "d"},
		Key:      []string{"b", "a"},
		Identity: []string{"d"},
	}
	assert.Equal(t, []string{"c"}, u.Updatable())
}

func TestWriteActionString(t *testing.T) {
	assert.Equal(t, "inserted", dialect.ActionInserted.String())
	assert.Equal(t, "updated", dialect.ActionUpdated.String())
	assert.Equal(t, "unchanged", dialect.ActionUnchanged.String())
	assert.Equal(t, "unknown", dialect.ActionUnknown.String())
}
