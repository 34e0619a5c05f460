package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFetchFailed means the bulk read of a table failed; fatal for that table.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrWriteFailed means the target rejected a row's upsert.
	ErrWriteFailed = errors.New("write failed")
	// ErrEnumTypeCreateFailed is logged, never returned: the type may already exist.
	ErrEnumTypeCreateFailed = errors.New("enum type create failed")
	// ErrAborted is returned by Run when strict mode stops at the first failed row.
	ErrAborted = errors.New("migration aborted")
)

// Outcome is what happened to one row.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
	OutcomeUpserted // written, but the target cannot tell insert from update
	OutcomeSkipped  // conflict left the existing row as is
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUpserted:
		return "upserted"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Table statuses.
const (
	StatusDone      = "DONE"
	StatusFailed    = "FAILED"    // introspection or fetch failed
	StatusAborted   = "ABORTED"   // strict mode stopped on a row failure
	StatusCancelled = "CANCELLED" // context cancelled between rows
)

type RowFailure struct {
	Index     int    `json:"index"`
	Reason    string `json:"reason"`
	Statement string `json:"statement,omitempty"`
}

// TableReport accumulates the outcomes of one table. It is owned by the worker
// migrating that table.
type TableReport struct {
	Table         string        `json:"table"`
	Status        string        `json:"status"`
	Total         int           `json:"total"`
	Processed     int           `json:"processed"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Inserted      int           `json:"inserted"`
	Updated       int           `json:"updated"`
	Upserted      int           `json:"upserted"`
	Skipped       int           `json:"skipped"`
	Substitutions int           `json:"substitutions"`
	Failures      []RowFailure  `json:"failures,omitempty"`
	Verified      bool          `json:"verified"`
	TargetRows    int64         `json:"target_rows,omitempty"`
	Error         string        `json:"error,omitempty"`
	Elapsed       time.Duration `json:"elapsed_ns"`

	err error
}

func (r *TableReport) Err() error { return r.err }

func (r *TableReport) fail(status string, err error) {
	r.Status = status
	r.err = err
	r.Error = err.Error()
}

func (r *TableReport) record(index int, o Outcome, failure *RowFailure) {
	r.Processed++
	switch o {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUpserted:
		r.Upserted++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
		if failure != nil {
			failure.Index = index
			r.Failures = append(r.Failures, *failure)
		}
		return
	}
	r.Succeeded++
}

// Summary is the run-level result: every table report that was started, in
// the order the tables were given.
type Summary struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Now        time.Time      `json:"now"`
	Tables     []*TableReport `json:"tables"`
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	// TablesFailed counts tables that did not complete (failed, aborted, cancelled).
	TablesFailed int  `json:"tables_failed"`
	Cancelled    bool `json:"cancelled"`
	Aborted      bool `json:"aborted"`
}

func (s *Summary) add(r *TableReport) {
	s.Tables = append(s.Tables, r)
	s.Total += r.Total
	s.Succeeded += r.Succeeded
	s.Failed += r.Failed
	if r.Status != StatusDone {
		s.TablesFailed++
	}
}

// HasFailures reports whether any row or table failed.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0 || s.TablesFailed > 0 || s.Aborted
}

// FailureReasons returns up to n failure descriptions, table errors first.
func (s *Summary) FailureReasons(n int) []string {
	var out []string
	for _, r := range s.Tables {
		if r.Error != "" && len(out) < n {
			out = append(out, fmt.Sprintf("%s: %s", r.Table, r.Error))
		}
	}
	for _, r := range s.Tables {
		for _, f := range r.Failures {
			if len(out) >= n {
				return out
			}
			out = append(out, fmt.Sprintf("%s row %d: %s", r.Table, f.Index, f.Reason))
		}
	}
	return out
}
