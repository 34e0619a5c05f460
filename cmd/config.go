package cmd

import (
	"fmt"
	"strings"

	"db-migrate/internal/enum"

	"github.com/spf13/viper"
)

const (
	RoleSource = "source"
	RoleTarget = "target"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
	Role   string `mapstructure:"role"`
}

// Settings is the `settings:` block of the config file.
type Settings struct {
	Tables             []string
	ExcludeTables      []string
	Order              string // catalog | dependency
	Workers            int
	Strict             bool
	StrictEnums        bool
	KeepNullTimestamps bool
	Verify             bool
	MaxFailureReasons  int
	SchemaFrom         string // source | target
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("settings.order", "catalog")
	v.SetDefault("settings.workers", 1)
	v.SetDefault("settings.verify", true)
	v.SetDefault("settings.max_failure_reasons", 5)
	v.SetDefault("settings.schema_from", RoleSource)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// GetDBConfig returns the database configured for role. Exactly one entry of
// `databases` may carry the role; --<role>-dsn and --<role>-driver override it,
// or stand in for it when the file has none.
func GetDBConfig(v *viper.Viper, role string) (*DBConfig, error) {
	var configs []DBConfig
	if err := v.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var found *DBConfig
	count := 0
	for i := range configs {
		if strings.EqualFold(configs[i].Role, role) {
			found = &configs[i]
			count++
		}
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple %s databases found (only one can have role: %s)", role, role)
	}

	dsn, driver := v.GetString(role+".dsn"), v.GetString(role+".driver")
	if found == nil {
		if dsn == "" {
			return nil, fmt.Errorf("no %s database found in config (set role: %s or --%s-dsn)", role, role, role)
		}
		found = &DBConfig{Name: role + " (flags)", Role: role}
	}
	if dsn != "" {
		found.DSN = dsn
	}
	if driver != "" {
		found.Driver = driver
	}

	if found.Driver == "" {
		return nil, fmt.Errorf("%s database %q has no driver", role, found.Name)
	}
	if found.DSN == "" {
		return nil, fmt.Errorf("%s database %q has no dsn", role, found.Name)
	}
	if _, err := sqlDriver(found.Driver); err != nil {
		return nil, err
	}
	return found, nil
}

// LoadSettings reads key by key so that flags bound to settings.* win over the file.
func LoadSettings(v *viper.Viper) (Settings, error) {
	s := Settings{
		Tables:             v.GetStringSlice("settings.tables"),
		ExcludeTables:      v.GetStringSlice("settings.exclude_tables"),
		Order:              strings.ToLower(v.GetString("settings.order")),
		Workers:            v.GetInt("settings.workers"),
		Strict:             v.GetBool("settings.strict"),
		StrictEnums:        v.GetBool("settings.strict_enums"),
		KeepNullTimestamps: v.GetBool("settings.keep_null_timestamps"),
		Verify:             v.GetBool("settings.verify"),
		MaxFailureReasons:  v.GetInt("settings.max_failure_reasons"),
		SchemaFrom:         strings.ToLower(v.GetString("settings.schema_from")),
	}

	if s.Order != "catalog" && s.Order != "dependency" {
		return s, fmt.Errorf("settings.order must be catalog or dependency, got %q", s.Order)
	}
	if s.SchemaFrom != RoleSource && s.SchemaFrom != RoleTarget {
		return s, fmt.Errorf("settings.schema_from must be source or target, got %q", s.SchemaFrom)
	}
	if s.Workers < 1 {
		s.Workers = 1
	}
	if s.MaxFailureReasons < 1 {
		s.MaxFailureReasons = 5
	}
	return s, nil
}

// LoadRegistry builds the enum registry from the `enums:` map. Viper folds
// keys to lower case; the registry resolves type names case-insensitively.
func LoadRegistry(v *viper.Viper) (*enum.Registry, error) {
	return enum.FromConfig(v.GetStringMap("enums"))
}

func LoadAliases(v *viper.Viper) map[string]string {
	return v.GetStringMapString("column_aliases")
}
