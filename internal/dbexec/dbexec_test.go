package dbexec_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/dialect"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSqlite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_QueryAndExecute(t *testing.T) {
	ctx := context.Background()
	db := openSqlite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT UNIQUE, tags TEXT)`)
	require.NoError(t, err)

	d := &dialect.SqliteDialect{}
	x := dbexec.New(db, d)
	upsert := d.UpsertQuery(dialect.Upsert{Table: "users", Columns: []string{"id", "email", "tags"}, Key: []string{"id"}})

	res, err := x.Execute(ctx, upsert, 1, "a@example.com", []any{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	rows, err := x.Query(ctx, `SELECT id, email, tags FROM users`)
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	assert.Equal(t, []string{"id", "email", "tags"}, rows.Columns)

	m := rows.Maps()[0]
	assert.EqualValues(t, 1, m["id"])
	assert.Equal(t, "a@example.com", m["email"])
	assert.Equal(t, `["x","y"]`, m["tags"], "sequences are stored as JSON text")
}

func TestRows_Maps(t *testing.T) {
	r := &dbexec.Rows{
		Columns: []string{"a", "b"},
		Values:  [][]any{{1, "x"}, {2, nil}},
	}
	assert.Equal(t, []map[string]any{
		{"a": 1, "b": "x"},
		{"a": 2, "b": nil},
	}, r.Maps())
}

func TestRecorder(t *testing.T) {
	r := &dbexec.Recorder{}
	res, err := r.Execute(context.Background(), "INSERT 1", 1, "a")
	require.NoError(t, err)
	assert.Equal(t, dialect.ActionUnknown, res.Action)

	got := r.Statements()
	require.Len(t, got, 1)
	assert.Equal(t, "INSERT 1", got[0].Query)
	assert.Equal(t, []any{1, "a"}, got[0].Args)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", dbexec.Describe(nil))

	pqErr := &pq.Error{Code: "23505", Message: "duplicate key value", Constraint: "users_email_key", Detail: "Key (email)=(a@example.com) already exists."}
	assert.Equal(t,
		"SQLSTATE 23505: duplicate key value (constraint users_email_key): Key (email)=(a@example.com) already exists.",
		dbexec.Describe(fmt.Errorf("write: %w", pqErr)))
	assert.True(t, dbexec.IsUniqueViolation(pqErr))

	pgErr := &pgconn.PgError{Code: "22P02", Message: "invalid input value for enum"}
	assert.Equal(t, "SQLSTATE 22P02: invalid input value for enum", dbexec.Describe(pgErr))
	assert.False(t, dbexec.IsUniqueViolation(pgErr))

	myErr := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.Equal(t, "mysql 1062: Duplicate entry", dbexec.Describe(myErr))
	assert.True(t, dbexec.IsUniqueViolation(myErr))

	msErr := mssql.Error{Number: 2627, Message: "Violation of UNIQUE KEY constraint"}
	assert.Equal(t, "mssql 2627: Violation of UNIQUE KEY constraint", dbexec.Describe(msErr))
	assert.True(t, dbexec.IsUniqueViolation(msErr))

	assert.True(t, dbexec.IsUniqueViolation(&network.OracleError{ErrCode: 1, ErrMsg: "ORA-00001: unique constraint violated"}))
	assert.False(t, dbexec.IsUniqueViolation(&network.OracleError{ErrCode: 2291}))

	assert.Equal(t, "boom", dbexec.Describe(errors.New("boom")))
	assert.False(t, dbexec.IsUniqueViolation(errors.New("boom")))
}

func TestIsUniqueViolation_Sqlite(t *testing.T) {
	db := openSqlite(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users VALUES (1, 'a@example.com')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO users VALUES (2, 'a@example.com')`)
	require.Error(t, err)
	assert.True(t, dbexec.IsUniqueViolation(err))

	_, err = db.Exec(`INSERT INTO users VALUES (1, 'b@example.com')`)
	require.Error(t, err)
	assert.True(t, dbexec.IsUniqueViolation(err))
}
