package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/dialect"
	"db-migrate/internal/enum"
	"db-migrate/internal/normalize"
	"db-migrate/internal/planner"
	"db-migrate/internal/schema"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Now is substituted for missing timestamps. Zero means the run's start time.
	Now time.Time
	// Strict aborts the run at the first failed row.
	Strict bool
	// Workers is the number of tables migrated at once. Rows within a table are
	// always written in order by a single worker.
	Workers int
	// Verify counts target rows per table after the run.
	Verify bool
}

// Config wires a Migrator. Source, Target, SourceDialect, TargetDialect,
// SourceSchema and Normalizer are required.
type Config struct {
	Source        dbexec.QueryExecutor
	Target        dbexec.StatementExecutor
	TargetQuery   dbexec.QueryExecutor // for Verify; optional
	SourceDialect dialect.Dialect
	TargetDialect dialect.Dialect
	SourceSchema  *schema.Introspector
	// TargetSchema, when set, describes tables from the target catalog for
	// normalization and planning. Rows are still fetched with the source's columns.
	TargetSchema *schema.Introspector
	Normalizer   *normalize.Normalizer
	Registry     *enum.Registry
	Logger       *slog.Logger
	Progress     ProgressSink
	Options      Options
}

type Migrator struct {
	cfg      Config
	log      *slog.Logger
	progress ProgressSink

	enumMu  sync.Mutex
	ensured map[string]bool
}

func New(cfg Config) (*Migrator, error) {
	switch {
	case cfg.Source == nil || cfg.Target == nil:
		return nil, errors.New("migrator: source and target executors are required")
	case cfg.SourceDialect == nil || cfg.TargetDialect == nil:
		return nil, errors.New("migrator: source and target dialects are required")
	case cfg.SourceSchema == nil:
		return nil, errors.New("migrator: source introspector is required")
	case cfg.Normalizer == nil:
		return nil, errors.New("migrator: normalizer is required")
	}

	m := &Migrator{cfg: cfg, log: cfg.Logger, progress: cfg.Progress, ensured: make(map[string]bool)}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.progress == nil {
		m.progress = nopSink{}
	}
	return m, nil
}

// Run migrates tables in the given order. It always returns a summary holding
// the reports of every table that was started. The error is non-nil only when
// the run stopped early: strict mode, a broken normalizer/planner contract, or
// ctx cancellation.
func (m *Migrator) Run(ctx context.Context, tables []string) (*Summary, error) {
	now := m.cfg.Options.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	sum := &Summary{StartedAt: time.Now(), Now: now}

	workers := m.cfg.Options.Workers
	if workers < 1 {
		workers = 1
	}

	// Reports are written by index, one slot per table, and collected after Wait.
	reports := make([]*TableReport, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range tables {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rep, err := m.migrateTable(gctx, name, now)
			reports[i] = rep
			return err
		})
	}
	err := g.Wait()

	for _, r := range reports {
		if r != nil {
			sum.add(r)
		}
	}

	if m.cfg.Options.Verify && m.cfg.TargetQuery != nil {
		// a cancelled ctx would fail every count
		Verify(context.WithoutCancel(ctx), m.cfg.TargetQuery, m.cfg.TargetDialect, sum.Tables, m.log)
	}

	sum.FinishedAt = time.Now()
	sum.Cancelled = ctx.Err() != nil
	sum.Aborted = err != nil && !sum.Cancelled

	m.log.Info("migration finished",
		"tables", len(sum.Tables), "rows", sum.Total, "succeeded", sum.Succeeded, "failed", sum.Failed,
		"cancelled", sum.Cancelled, "elapsed", sum.FinishedAt.Sub(sum.StartedAt))

	if err == nil && sum.Cancelled {
		err = ctx.Err()
	}
	return sum, err
}

// migrateTable runs one table through Introspecting -> Fetching -> Writing ->
// Reporting. Table-level failures land in the report; the error is reserved
// for conditions that must stop the run.
func (m *Migrator) migrateTable(ctx context.Context, name string, now time.Time) (*TableReport, error) {
	start := time.Now()
	log := m.log.With("table", name)
	rep := &TableReport{Table: name, Status: StatusDone}
	defer func() {
		rep.Elapsed = time.Since(start)
		m.progress.OnTableDone(rep)
	}()

	// 1. Introspect
	src, err := m.cfg.SourceSchema.DescribeTable(ctx, name)
	if err != nil {
		log.Error("introspection failed", "err", err)
		rep.fail(StatusFailed, err)
		return rep, nil
	}
	tbl := src
	if m.cfg.TargetSchema != nil {
		if tbl, err = m.cfg.TargetSchema.DescribeTable(ctx, name); err != nil {
			log.Error("target introspection failed", "err", err)
			rep.fail(StatusFailed, err)
			return rep, nil
		}
	}

	// 2. Fetch
	orderBy := ""
	if len(src.PrimaryKey) > 0 {
		orderBy = src.PrimaryKey[0]
	}
	rows, err := m.cfg.Source.Query(ctx, m.cfg.SourceDialect.SelectQuery(src.Name, src.ColumnNames(), orderBy))
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFetchFailed, name, err)
		log.Error("fetch failed", "err", err)
		rep.fail(StatusFailed, err)
		return rep, nil
	}
	raws := rows.Maps()
	rep.Total = len(raws)
	log.Info("migrating table", "rows", rep.Total, "conflict_key", planner.ConflictKey(tbl))
	m.progress.OnTableStart(name, rep.Total)

	// 3. Write
	m.ensureEnums(ctx, tbl, log)

	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			rep.fail(StatusCancelled, err)
			log.Warn("table cancelled", "processed", rep.Processed, "total", rep.Total)
			return rep, nil
		}

		outcome, failure, err := m.migrateRow(ctx, tbl, i, raw, now, rep, log)
		if err != nil {
			// contract violation: the normalizer or planner is broken
			rep.fail(StatusAborted, err)
			return rep, err
		}
		if failure != nil && ctx.Err() != nil {
			// the write was interrupted, not rejected
			rep.fail(StatusCancelled, ctx.Err())
			return rep, nil
		}
		rep.record(i, outcome, failure)
		m.progress.OnRowProcessed(name, i+1, rep.Total)

		if outcome == OutcomeFailed && m.cfg.Options.Strict {
			err := fmt.Errorf("%w: %s row %d: %s", ErrAborted, name, i, failure.Reason)
			rep.fail(StatusAborted, err)
			return rep, err
		}
	}

	// 4. Report
	log.Info("table done",
		"total", rep.Total, "succeeded", rep.Succeeded, "failed", rep.Failed,
		"inserted", rep.Inserted, "updated", rep.Updated, "upserted", rep.Upserted, "skipped", rep.Skipped,
		"substitutions", rep.Substitutions)
	return rep, nil
}

// migrateRow normalizes, plans and writes one row. A non-nil error means the
// run must stop; row failures come back as OutcomeFailed with a RowFailure.
func (m *Migrator) migrateRow(ctx context.Context, t *schema.Table, index int, raw map[string]any, now time.Time, rep *TableReport, log *slog.Logger) (Outcome, *RowFailure, error) {
	res, err := m.cfg.Normalizer.Normalize(t, raw, now)
	if errors.Is(err, normalize.ErrMalformedSchema) {
		return OutcomeFailed, nil, err
	}
	if res != nil {
		rep.Substitutions += len(res.Diagnostics)
		for _, d := range res.Diagnostics {
			log.Warn("value substituted",
				"row", index, "column", d.Column, "rule", d.Rule, "original", d.Original, "replacement", d.Replacement)
		}
	}
	if err != nil {
		log.Error("row normalization failed", "row", index, "err", err, "data", raw)
		return OutcomeFailed, &RowFailure{Reason: err.Error()}, nil
	}

	st, err := planner.Plan(t, res.Row)
	if err != nil {
		return OutcomeFailed, nil, err
	}
	query := st.SQL(m.cfg.TargetDialect)

	result, err := m.cfg.Target.Execute(ctx, query, st.Values...)
	if err != nil {
		reason := dbexec.Describe(err)
		if dbexec.IsUniqueViolation(err) {
			// another unique constraint than the one the upsert targets
			reason += fmt.Sprintf(" (upsert conflict key was %s)", strings.Join(st.ConflictKey, ", "))
		}
		log.Error("row write failed",
			"row", index, "err", fmt.Errorf("%w: %w", ErrWriteFailed, err), "data", res.Row, "statement", query)
		return OutcomeFailed, &RowFailure{Reason: reason, Statement: query}, nil
	}

	switch result.Action {
	case dialect.ActionInserted:
		return OutcomeInserted, nil, nil
	case dialect.ActionUpdated:
		return OutcomeUpdated, nil, nil
	case dialect.ActionUnchanged:
		return OutcomeSkipped, nil, nil
	default:
		return OutcomeUpserted, nil, nil
	}
}

// ensureEnums creates, once per type per run, every registered enum type the
// table's columns use. Failures are warnings: the type may already exist or
// the role may lack DDL rights, in which case the writes report the problem.
func (m *Migrator) ensureEnums(ctx context.Context, t *schema.Table, log *slog.Logger) {
	reg := m.cfg.Registry
	for _, c := range t.Columns {
		typeName := ""
		switch {
		case c.Kind == schema.KindEnum:
			typeName = c.NativeType
		case c.Kind == schema.KindArray && c.ElementEnum:
			typeName = c.ElementType
		}
		if typeName == "" || !reg.Has(typeName) {
			continue
		}
		labels, _ := reg.Resolve(typeName)
		m.ensureEnum(ctx, typeName, labels, log)
	}
}

func (m *Migrator) ensureEnum(ctx context.Context, typeName string, labels []string, log *slog.Logger) {
	m.enumMu.Lock()
	defer m.enumMu.Unlock()
	if m.ensured[typeName] {
		return
	}
	m.ensured[typeName] = true

	for _, q := range m.cfg.TargetDialect.EnsureEnumQueries(typeName, labels) {
		if _, err := m.cfg.Target.Execute(ctx, q); err != nil {
			log.Warn("could not ensure enum type",
				"type", typeName, "err", fmt.Errorf("%w: %s: %w", ErrEnumTypeCreateFailed, typeName, err))
			return
		}
	}
	log.Debug("enum type ensured", "type", typeName, "labels", len(labels))
}
