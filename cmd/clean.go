package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cleanTablesFlag []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all rows from the target tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		settings, err := LoadSettings(v)
		if err != nil {
			return err
		}
		config, err := GetDBConfig(v, RoleTarget)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		tgt, err := Connect(ctx, config)
		if err != nil {
			return err
		}
		defer tgt.Close()
		fmt.Printf("🎯 Connected to %s (%s)\n", config.Name, config.Driver)

		// children must go before parents
		settings.Order = "dependency"
		names, err := SelectTables(ctx, tgt.Introspector(), settings, cleanTablesFlag, nil)
		if err != nil {
			return err
		}
		return cleanTables(ctx, tgt, names)
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringSliceVarP(&cleanTablesFlag, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

// cleanTables empties tables in reverse order inside one transaction, with the
// target's foreign key checks relaxed where the dialect allows it.
func cleanTables(ctx context.Context, c *Conn, tables []string) error {
	logger.Info("disabling foreign key checks")

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	if err := c.Dialect.DisableConstraints(ctx, tx); err != nil {
		logger.Warn("failed to disable constraints, continuing", "err", err)
		// postgres aborts the transaction on any error
		tx.Rollback()
		if tx, err = c.DB.BeginTx(ctx, nil); err != nil {
			return err
		}
	}

	count := 0
	total := len(tables)
	for i := len(tables) - 1; i >= 0; i-- {
		table := tables[i]
		count++
		if _, err := tx.ExecContext(ctx, c.Dialect.TruncateQuery(table)); err != nil {
			logger.Warn("failed to clean table, continuing", "table", table, "err", err)
		}
		if count%5 == 0 || count == total {
			logger.Info("cleaning tables", "done", count, "total", total)
		}
	}

	logger.Info("enabling foreign key checks")
	if err := c.Dialect.EnableConstraints(ctx, tx); err != nil {
		logger.Warn("failed to enable constraints", "err", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleaning transaction: %w", err)
	}
	tx = nil

	fmt.Printf("🧹 Cleaned %d table(s)\n", total)
	return nil
}
