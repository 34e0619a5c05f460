package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"db-migrate/internal/dbexec"
	"db-migrate/internal/engine"
	"db-migrate/internal/normalize"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tables     []string
	excludes   []string
	clean      bool
	dryRun     bool
	reportFile string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy rows from the source database into the target, normalizing them on the way",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		settings, err := LoadSettings(v)
		if err != nil {
			return err
		}
		reg, err := LoadRegistry(v)
		if err != nil {
			return err
		}
		srcCfg, err := GetDBConfig(v, RoleSource)
		if err != nil {
			return err
		}
		tgtCfg, err := GetDBConfig(v, RoleTarget)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		src, err := Connect(ctx, srcCfg)
		if err != nil {
			return err
		}
		defer src.Close()
		fmt.Printf("🚚 Source: %s via %s (schema %s)\n", srcCfg.Name, srcCfg.Driver, src.Schema)

		tgt, err := Connect(ctx, tgtCfg)
		if err != nil {
			return err
		}
		defer tgt.Close()
		fmt.Printf("🎯 Target: %s via %s (schema %s)\n", tgtCfg.Name, tgtCfg.Driver, tgt.Schema)

		// 1. Analyze
		srcSchema := src.Introspector().RecognizeEnums(reg.Has)
		names, err := SelectTables(ctx, srcSchema, settings, tables, excludes)
		if err != nil {
			return err
		}
		logger.Info("tables selected", "count", len(names), "order", settings.Order)

		// 2. Clean / Dry Run
		var target dbexec.StatementExecutor = tgt.Exec
		var recorder *dbexec.Recorder
		if dryRun {
			fmt.Println("[SIMULATION] Dry-Run Mode Active: No data will be written.")
			recorder = &dbexec.Recorder{}
			target = recorder
			settings.Verify = false
		} else if clean {
			if err := cleanTables(ctx, tgt, names); err != nil {
				return err
			}
		}

		// 3. Migrate
		bars := newBarSink()
		cfg := engine.Config{
			Source:        src.Exec,
			Target:        target,
			TargetQuery:   tgt.Exec,
			SourceDialect: src.Dialect,
			TargetDialect: tgt.Dialect,
			SourceSchema:  srcSchema,
			Normalizer: normalize.New(reg, normalize.Policy{
				StrictEnums:        settings.StrictEnums,
				KeepNullTimestamps: settings.KeepNullTimestamps,
				Aliases:            LoadAliases(v),
			}),
			Registry: reg,
			Logger:   logger,
			Progress: bars,
			Options: engine.Options{
				Strict:  settings.Strict,
				Workers: settings.Workers,
				Verify:  settings.Verify,
			},
		}
		if settings.SchemaFrom == RoleTarget {
			cfg.TargetSchema = tgt.Introspector().RecognizeEnums(reg.Has)
		}

		m, err := engine.New(cfg)
		if err != nil {
			bars.Stop()
			return err
		}
		sum, runErr := m.Run(ctx, names)
		bars.Stop()

		// 4. Final Report
		PrintSummary(os.Stdout, sum, settings.MaxFailureReasons)
		if recorder != nil {
			printDryRun(os.Stdout, recorder.Statements())
		}
		if reportFile != "" {
			if err := writeReport(reportFile, sum); err != nil {
				return err
			}
			fmt.Println("Report written to", reportFile)
		}

		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("migration interrupted")
			}
			return runErr
		}
		if sum.HasFailures() {
			return fmt.Errorf("migration finished with %d failed rows and %d failed tables", sum.Failed, sum.TablesFailed)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	// CLI Flags
	migrateCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to migrate (comma-separated)")
	migrateCmd.Flags().StringSliceVar(&excludes, "exclude", []string{}, "Tables to skip (comma-separated)")
	migrateCmd.Flags().BoolVar(&clean, "clean", false, "Clean target tables before migrating")
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan every statement without writing to the target")
	migrateCmd.Flags().StringVar(&reportFile, "report", "", "Write the run summary as JSON to this file")
	migrateCmd.Flags().Bool("strict", false, "Stop at the first failed row")
	migrateCmd.Flags().Bool("strict-enums", false, "Fail rows with unknown enum labels instead of substituting the default")
	migrateCmd.Flags().Bool("verify", true, "Count target rows after the run")
	migrateCmd.Flags().Int("workers", 1, "Tables migrated concurrently")
	migrateCmd.Flags().String("order", "catalog", "Table order: catalog or dependency")

	viper.BindPFlag("settings.strict", migrateCmd.Flags().Lookup("strict"))
	viper.BindPFlag("settings.strict_enums", migrateCmd.Flags().Lookup("strict-enums"))
	viper.BindPFlag("settings.verify", migrateCmd.Flags().Lookup("verify"))
	viper.BindPFlag("settings.workers", migrateCmd.Flags().Lookup("workers"))
	viper.BindPFlag("settings.order", migrateCmd.Flags().Lookup("order"))
}

// PrintSummary writes the human-readable run report.
func PrintSummary(w io.Writer, sum *engine.Summary, maxReasons int) {
	fmt.Fprintln(w, "\n📊 Summary Report:")
	for i, r := range sum.Tables {
		icon := "✓"
		if r.Status != engine.StatusDone || r.Failed > 0 {
			icon = "!"
		}
		fmt.Fprintf(w, "[%s] [%02d/%02d] %-20s : %d/%d rows (inserted %d, updated %d, upserted %d, skipped %d, substituted %d) - %s\n",
			icon, i+1, len(sum.Tables), r.Table, r.Succeeded, r.Total,
			r.Inserted, r.Updated, r.Upserted, r.Skipped, r.Substitutions, r.Status)
		if r.Verified {
			fmt.Fprintf(w, "    └ Target rows: %d\n", r.TargetRows)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "    └ Error: %s\n", r.Error)
		}
	}
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total Rows: %d, Succeeded: %d, Failed: %d (Elapsed: %s)\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))

	if reasons := sum.FailureReasons(maxReasons); len(reasons) > 0 {
		fmt.Fprintf(w, "First %d failure(s):\n", len(reasons))
		for _, r := range reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	switch {
	case sum.Cancelled:
		fmt.Fprintln(w, "⚠️  Run cancelled; the tables above are partial.")
	case sum.Aborted:
		fmt.Fprintln(w, "⚠️  Run aborted; later tables were not started.")
	}
}

const dryRunPreview = 10

func printDryRun(w io.Writer, stmts []dbexec.Statement) {
	fmt.Fprintf(w, "🔍 Dry run: %d statement(s) planned, nothing was written.\n", len(stmts))
	for i, s := range stmts {
		if i == dryRunPreview {
			fmt.Fprintf(w, "  ... %d more\n", len(stmts)-dryRunPreview)
			break
		}
		fmt.Fprintf(w, "  %s %v\n", s.Query, s.Args)
	}
}

func writeReport(path string, sum *engine.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
