package dbexec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
)

// Describe renders a driver error with whatever structured detail the driver
// exposes (constraint, SQLSTATE, detail), for failure reports.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgDescription(string(pqErr.Code), pqErr.Message, pqErr.Constraint, pqErr.Detail)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgDescription(pgErr.Code, pgErr.Message, pgErr.ConstraintName, pgErr.Detail)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("mysql %d: %s", myErr.Number, myErr.Message)
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return fmt.Sprintf("mssql %d: %s", msErr.Number, msErr.Message)
	}

	return err.Error()
}

func pgDescription(code, msg, constraint, detail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SQLSTATE %s: %s", code, msg)
	if constraint != "" {
		fmt.Fprintf(&b, " (constraint %s)", constraint)
	}
	if detail != "" {
		fmt.Fprintf(&b, ": %s", detail)
	}
	return b.String()
}

// sqlite result codes for a violated UNIQUE or PRIMARY KEY constraint.
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// IsUniqueViolation reports whether err is a unique/duplicate-key violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 2627 || msErr.Number == 2601
	}
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return oraErr.ErrCode == 1
	}
	var liteErr interface{ Code() int }
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqliteConstraintUnique || liteErr.Code() == sqliteConstraintPrimaryKey
	}
	return false
}
