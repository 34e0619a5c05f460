package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/dialect"
)

// Verify counts the target rows of every completed table and flags tables
// holding fewer rows than were written successfully.
func Verify(ctx context.Context, q dbexec.QueryExecutor, d dialect.Dialect, reports []*TableReport, log *slog.Logger) {
	for _, r := range reports {
		if r.Status != StatusDone {
			continue
		}
		// Check current count again
		n, err := countRows(ctx, q, d, r.Table)
		if err != nil {
			log.Warn("verification failed", "table", r.Table, "err", err)
			continue
		}
		r.Verified = true
		r.TargetRows = n

		// Rows skipped on conflict and rows merged on a shared key do not add
		// target rows, so only a count below that of distinct writes is suspicious.
		if n < int64(r.Inserted) {
			log.Warn("target holds fewer rows than inserted", "table", r.Table, "target_rows", n, "inserted", r.Inserted)
		}
	}
}

func countRows(ctx context.Context, q dbexec.QueryExecutor, d dialect.Dialect, table string) (int64, error) {
	rows, err := q.Query(ctx, d.CountQuery(table))
	if err != nil {
		return 0, err
	}
	if len(rows.Values) == 0 || len(rows.Values[0]) == 0 {
		return 0, fmt.Errorf("count of %s returned no rows", table)
	}

	switch v := rows.Values[0][0].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("count of %s: unexpected %T", table, v)
	}
}
