package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestSortTablesByFKCount_ComplexCircular(t *testing.T) {
	// A -> B -> C -> D -> E -> A (순환)
	// F -> E (단순 참조)
	// G (독립)
	tables := []*schema.Table{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"C"}},
		{Name: "C", Dependencies: []string{"D"}},
		{Name: "D", Dependencies: []string{"E"}},
		{Name: "E", Dependencies: []string{"A"}},
		{Name: "F", Dependencies: []string{"E"}},
		{Name: "G", Dependencies: []string{}},
	}

	sorted := schema.SortTablesByFKCount(tables)
	require.Len(t, sorted, len(tables))

	visited := make(map[string]bool)
	for _, tbl := range sorted {
		visited[tbl.Name] = true
	}
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		assert.True(t, visited[name], "missing %s", name)
	}

	// 독립 테이블 G는 첫 패스에서 들어간다
	assert.Equal(t, "G", sorted[0].Name)
}

func TestSortTablesByFKCount_Simple(t *testing.T) {
	// Users -> Orders -> OrderItems
	tables := []*schema.Table{
		{Name: "OrderItems", Dependencies: []string{"Orders"}},
		{Name: "Orders", Dependencies: []string{"Users"}},
		{Name: "Users", Dependencies: []string{}},
	}

	sorted := schema.SortTablesByFKCount(tables)

	require.Len(t, sorted, 3)
	assert.Equal(t, "Users", sorted[0].Name)
	assert.Equal(t, "Orders", sorted[1].Name)
	assert.Equal(t, "OrderItems", sorted[2].Name)
}

// fakeQuerier answers catalog queries by matching a fragment of the SQL text.
type fakeQuerier struct {
	answers map[string]*dbexec.Rows
	err     error
	calls   []string
}

func (f *fakeQuerier) Query(_ context.Context, query string, args ...any) (*dbexec.Rows, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	for frag, rows := range f.answers {
		if strings.Contains(query, frag) {
			return rows, nil
		}
	}
	return &dbexec.Rows{}, nil
}

func TestDescribeTable_Postgres(t *testing.T) {
	q := &fakeQuerier{answers: map[string]*dbexec.Rows{
		"attnotnull": {
			Columns: []string{"attname", "nullable", "data_type", "typname", "attnum", "key", "type"},
			Values: [][]any{
				{"id", "NO", "text", "text", int64(1), "", "text"},
				{"status", "NO", "USER-DEFINED", "NewsStatus", int64(2), "", "enum"},
				{"tags", "YES", "ARRAY", "_text", int64(3), "", "text[]"},
				{"moods", "YES", "ARRAY", "_mood", int64(4), "", "enum[]"},
				{"updatedAt", "NO", "timestamp(3) without time zone", "timestamp", int64(5), "", "timestamp(3) without time zone"},
				{"email", "YES", "text", "text", int64(6), "UNI", "text"},
			},
		},
		"array_position": {Columns: []string{"attname"}, Values: [][]any{{"id"}}},
	}}

	in := schema.NewIntrospector(q, &dialect.PostgresDialect{}, "")
	assert.Equal(t, "public", in.Schema())

	tbl, err := in.DescribeTable(context.Background(), "News")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "status", "tags", "moods", "updatedAt", "email"}, tbl.ColumnNames())
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey)
	assert.True(t, tbl.Column("id").IsPK)

	status := tbl.Column("status")
	assert.Equal(t, schema.KindEnum, status.Kind)
	assert.Equal(t, "NewsStatus", status.CastType())
	assert.False(t, status.IsNullable)

	tags := tbl.Column("tags")
	assert.Equal(t, schema.KindArray, tags.Kind)
	assert.Equal(t, "text", tags.ElementType)
	assert.Equal(t, "text[]", tags.CastType())
	assert.False(t, tags.ElementEnum)

	assert.True(t, tbl.Column("moods").ElementEnum)

	updated := tbl.Column("updatedAt")
	assert.Equal(t, schema.KindTimestamp, updated.Kind)
	assert.Equal(t, "timestamp", updated.CastType())

	assert.True(t, tbl.Column("email").IsUnique)
	assert.Equal(t, 6, tbl.Column("email").Position)
}

func TestDescribeTable_IdentityAndUniqueKeys(t *testing.T) {
	q := &fakeQuerier{answers: map[string]*dbexec.Rows{
		"attnotnull": {Values: [][]any{
			{"id", "NO", "integer", "int4", int64(1), "", "integer", "YES"},
			{"tenant", "NO", "text", "text", int64(2), "", "text", "NO"},
			{"slug", "NO", "text", "text", int64(3), "", "text", "NO"},
		}},
		"array_position": {Values: [][]any{{"id"}}},
		"WITH ORDINALITY": {Values: [][]any{
			{"pages_tenant_slug_key", "tenant"},
			{"pages_tenant_slug_key", "slug"},
			{"pages_lower_slug_key", "gone"},
		}},
	}}

	tbl, err := schema.NewIntrospector(q, &dialect.PostgresDialect{}, "public").DescribeTable(context.Background(), "pages")
	require.NoError(t, err)

	assert.True(t, tbl.Column("id").IsIdentity)
	assert.False(t, tbl.Column("slug").IsIdentity)
	assert.Equal(t, []string{"id"}, tbl.IdentityColumns())
	assert.Equal(t, [][]string{{"tenant", "slug"}}, tbl.UniqueKeys, "keys over unknown columns are dropped")
}

func TestDescribeTable_MysqlInlineEnum(t *testing.T) {
	q := &fakeQuerier{answers: map[string]*dbexec.Rows{
		"information_schema.COLUMNS": {
			Values: [][]any{
				{[]byte("id"), []byte("NO"), []byte("bigint"), []byte("bigint"), int64(1), []byte("PRI"), []byte("bigint unsigned")},
				{[]byte("state"), []byte("NO"), []byte("enum"), []byte("enum"), int64(2), []byte(""), []byte("enum('on','off')")},
				{[]byte("seen"), []byte("YES"), []byte("datetime"), []byte("datetime"), int64(3), []byte(""), []byte("datetime")},
			},
		},
	}}

	tbl, err := schema.NewIntrospector(q, &dialect.MysqlDialect{}, "app").DescribeTable(context.Background(), "devices")
	require.NoError(t, err)

	// PK query answered nothing: the column key stands in.
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey)

	state := tbl.Column("state")
	assert.Equal(t, schema.KindEnum, state.Kind)
	assert.Equal(t, []string{"on", "off"}, state.EnumLabels)
	assert.Equal(t, "", state.CastType(), "inline enums have no type to cast to")

	assert.Equal(t, schema.KindTimestamp, tbl.Column("seen").Kind)
}

func TestDescribeTable_Unavailable(t *testing.T) {
	in := schema.NewIntrospector(&fakeQuerier{}, &dialect.PostgresDialect{}, "public")
	_, err := in.DescribeTable(context.Background(), "missing")
	require.ErrorIs(t, err, schema.ErrSchemaUnavailable)

	boom := errors.New("permission denied")
	in = schema.NewIntrospector(&fakeQuerier{err: boom}, &dialect.PostgresDialect{}, "public")
	_, err = in.DescribeTable(context.Background(), "users")
	require.ErrorIs(t, err, schema.ErrSchemaUnavailable)
	require.ErrorIs(t, err, boom)
}

func TestRecognizeEnums(t *testing.T) {
	q := &fakeQuerier{answers: map[string]*dbexec.Rows{
		"attnotnull": {Values: [][]any{
			{"kind", "NO", "USER-DEFINED", "legacy_kind", int64(1), "", "legacy_kind"},
		}},
	}}
	in := schema.NewIntrospector(q, &dialect.PostgresDialect{}, "public").
		RecognizeEnums(func(name string) bool { return name == "legacy_kind" })

	tbl, err := in.DescribeTable(context.Background(), "things")
	require.NoError(t, err)
	assert.Equal(t, schema.KindEnum, tbl.Column("kind").Kind)
}

func openSqlite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntrospector_Sqlite(t *testing.T) {
	ctx := context.Background()
	db := openSqlite(t)
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE, name TEXT, created_at DATETIME NOT NULL)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users(id), title TEXT)`,
		`CREATE TABLE comments (id INTEGER PRIMARY KEY, post_id INTEGER REFERENCES posts(id), body TEXT)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	d := &dialect.SqliteDialect{}
	in := schema.NewIntrospector(dbexec.New(db, d), d, "")

	names, err := in.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"comments", "posts", "users"}, names)

	users, err := in.DescribeTable(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "name", "created_at"}, users.ColumnNames())
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	assert.True(t, users.Column("email").IsUnique)
	assert.False(t, users.Column("email").IsNullable)
	assert.True(t, users.Column("name").IsNullable)
	assert.Equal(t, schema.KindTimestamp, users.Column("created_at").Kind)

	assert.Equal(t, [][]string{{"email"}}, users.UniqueKeys)

	ordered, err := in.Order(ctx, names)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "posts", "comments"}, ordered)

	tables, err := in.Analyze(ctx, names)
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, "comments", tables[2].Name)
	require.Len(t, tables[2].ForeignKeys, 1)
	assert.Equal(t, "posts", tables[2].ForeignKeys[0].RefTable)
	assert.Equal(t, "post_id", tables[2].ForeignKeys[0].Column)
}

func TestIntrospector_SqliteCompositeKeys(t *testing.T) {
	ctx := context.Background()
	db := openSqlite(t)
	for _, stmt := range []string{
		`CREATE TABLE article_tags (article_id INTEGER NOT NULL, tag_id INTEGER NOT NULL, note TEXT, PRIMARY KEY (article_id, tag_id))`,
		`CREATE TABLE slots (room TEXT NOT NULL, day TEXT NOT NULL, code TEXT, UNIQUE (room, day))`,
		`CREATE UNIQUE INDEX slots_live_code ON slots (code) WHERE code IS NOT NULL`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	d := &dialect.SqliteDialect{}
	in := schema.NewIntrospector(dbexec.New(db, d), d, "")

	tags, err := in.DescribeTable(ctx, "article_tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"article_id", "tag_id"}, tags.PrimaryKey)
	assert.Empty(t, tags.UniqueKeys)

	slots, err := in.DescribeTable(ctx, "slots")
	require.NoError(t, err)
	assert.Empty(t, slots.PrimaryKey)
	assert.Equal(t, [][]string{{"room", "day"}}, slots.UniqueKeys)
	assert.False(t, slots.Column("code").IsUnique, "a partial unique index does not make a column unique")
}
