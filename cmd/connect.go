package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
)

// sqlDriver maps a configured driver to the database/sql driver name it is
// registered under (see the blank imports in main.go).
func sqlDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return "postgres", nil // lib/pq
	case "pgx":
		return "pgx", nil // jackc/pgx stdlib
	case "mysql", "mariadb":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	case "oracle":
		return "oracle", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported driver %q (postgres, pgx, mysql, sqlserver, oracle, sqlite)", driver)
	}
}

// Conn is an open database together with its dialect and resolved schema.
type Conn struct {
	Config  *DBConfig
	DB      *sql.DB
	Dialect dialect.Dialect
	Schema  string
	Exec    *dbexec.DB
}

func Connect(ctx context.Context, cfg *DBConfig) (*Conn, error) {
	name, err := sqlDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", cfg.Role, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s db: %w", cfg.Role, err)
	}

	d := dialect.GetDialect(name)
	c := &Conn{Config: cfg, DB: db, Dialect: d, Schema: cfg.Schema, Exec: dbexec.New(db, d)}

	// MySQL schemas are databases; default to the one named in the DSN.
	if c.Schema == "" && name == "mysql" {
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&c.Schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to get database name: %w", err)
		}
		if c.Schema == "" {
			db.Close()
			return nil, fmt.Errorf("no database selected in %s DSN", cfg.Role)
		}
	}
	c.Schema = d.GetSchemaName(c.Schema)
	return c, nil
}

func (c *Conn) Introspector() *schema.Introspector {
	return schema.NewIntrospector(c.Exec, c.Dialect, c.Schema)
}

func (c *Conn) Close() error {
	return c.DB.Close()
}
