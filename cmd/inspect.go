package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"db-migrate/internal/planner"
	"db-migrate/internal/schema"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	inspectRole   string
	inspectJSON   bool
	inspectTables []string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how tables are classified and in which order they would migrate",
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
		config, err := GetDBConfig(v, inspectRole)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c, err := Connect(ctx, config)
		if err != nil {
			return err
		}
		defer c.Close()

		in := c.Introspector().RecognizeEnums(reg.Has)
		names, err := SelectTables(ctx, in, settings, inspectTables, nil)
		if err != nil {
			return err
		}
		analyzed, err := in.Analyze(ctx, names)
		if err != nil {
			return err
		}

		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analyzed)
		}
		fmt.Printf("🔍 %s via %s (schema %s)\n", config.Name, config.Driver, c.Schema)
		PrintTables(os.Stdout, analyzed)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectRole, "role", RoleSource, "Database to inspect: source or target")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the analysis as JSON")
	inspectCmd.Flags().StringSliceVarP(&inspectTables, "tables", "t", []string{}, "Specific tables to inspect (comma-separated)")
}

// PrintTables lists tables in dependency order with each column's
// classification and the upsert conflict key.
func PrintTables(w io.Writer, tables []*schema.Table) {
	for i, t := range tables {
		fmt.Fprintf(w, "[%02d] %s (conflict key: %s, dependencies: %v)\n", i+1, t.Name, strings.Join(planner.ConflictKey(t), ", "), t.Dependencies)
		for _, c := range t.Columns {
			var flags []string
			if c.IsPK {
				flags = append(flags, "PK")
			}
			if c.IsUnique {
				flags = append(flags, "UNIQUE")
			}
			if c.IsIdentity {
				flags = append(flags, "IDENTITY")
			}
			if !c.IsNullable {
				flags = append(flags, "NOT NULL")
			}
			if len(c.EnumLabels) > 0 {
				flags = append(flags, "labels="+strings.Join(c.EnumLabels, "|"))
			}
			fmt.Fprintf(w, "     %-24s %-10s %-20s %s\n", c.Name, c.Kind, c.NativeType, strings.Join(flags, " "))
		}
	}
}
