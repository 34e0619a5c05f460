package dbexec

import (
	"context"
	"sync"

	"db-migrate/internal/dialect"
)

// Statement is a write captured by a Recorder.
type Statement struct {
	Query string
	Args  []any
}

// Recorder is a StatementExecutor that only remembers what it was asked to
// run. Used for dry runs.
type Recorder struct {
	mu         sync.Mutex
	statements []Statement
}

func (r *Recorder) Execute(_ context.Context, query string, args ...any) (ExecResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, Statement{Query: query, Args: append([]any(nil), args...)})
	return ExecResult{Action: dialect.ActionUnknown}, nil
}

func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.statements...)
}

var _ StatementExecutor = (*Recorder)(nil)
