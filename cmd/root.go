package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  = slog.Default()
)

var RootCmd = &cobra.Command{
	Use:   "db-migrate",
	Short: "A schema-aware database migration tool",
	Long: `
  ____  ____    __  __ ___ ____ ____      _  _____ _____
 |  _ \| __ )  |  \/  |_ _/ ___|  _ \    / \|_   _| ____|
 | | | |  _ \  | |\/| || | |  _| |_) |  / _ \ | | |  _|
 | |_| | |_) | | |  | || | |_| |  _ <  / ___ \| | | |___
 |____/|____/  |_|  |_|___\____|_| \_\/_/   \_\_| |_____|

DB MIGRATE 🚚 - Normalize rows from a legacy database and upsert them into a new one
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := NewLogger(viper.GetString("log.level"), viper.GetString("log.format"), os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-migrate.yaml)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	RootCmd.PersistentFlags().String("source-dsn", "", "source DSN (overrides config)")
	RootCmd.PersistentFlags().String("source-driver", "", "source driver (overrides config)")
	RootCmd.PersistentFlags().String("target-dsn", "", "target DSN (overrides config)")
	RootCmd.PersistentFlags().String("target-driver", "", "target driver (overrides config)")

	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("source.dsn", RootCmd.PersistentFlags().Lookup("source-dsn"))
	viper.BindPFlag("source.driver", RootCmd.PersistentFlags().Lookup("source-driver"))
	viper.BindPFlag("target.dsn", RootCmd.PersistentFlags().Lookup("target-dsn"))
	viper.BindPFlag("target.driver", RootCmd.PersistentFlags().Lookup("target-driver"))

	SetDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-migrate")
		viper.SetConfigType("yaml")
	}

	// DB_MIGRATE_SOURCE_DSN stands in for --source-dsn
	viper.SetEnvPrefix("db_migrate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// NewLogger builds the run's logger. Logs go to w (stderr in the CLI) so they
// do not tear the progress bars drawn on stdout.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}
