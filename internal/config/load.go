package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefineFlags registers the configuration flags on fs.
func DefineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("database.driver", defaultDriver, "Database driver (sqlite3, sqlite, postgres)")
	fs.String("database.dsn", defaultDSN, "Database data source name")
	fs.Int("database.max_open_conns", 1, "Maximum open connections")
	fs.Duration("database.conn_max_lifetime", 0, "Maximum connection lifetime (0 keeps connections open)")
	fs.String("dialect", "", "SQL dialect (sqlite, postgres); derived from the driver when empty")
	fs.Bool("escape_literals", false, "Double single quotes inside text literals")
	fs.String("logging.level", "info", "Log level (debug, info, warn, error)")
	fs.String("logging.format", "text", "Log format (json, text)")
}

// Load loads configuration with the following precedence:
// 1. Command line flags set on fs
// 2. Environment variables (FORGE_DATABASE_DSN)
// 3. Config file
// 4. Default values
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	cfgPath := ""
	if fs != nil {
		cfgPath, _ = fs.GetString("config")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("forge")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.forge")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		bindChangedFlags(v, fs)
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if result := cfg.Validate(); result.HasErrors() {
		return nil, result
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", defaultDriver)
	v.SetDefault("database.dsn", defaultDSN)
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "0s")
	v.SetDefault("dialect", "")
	v.SetDefault("escape_literals", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// bindChangedFlags copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		switch f.Value.Type() {
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// normalize lower-cases enumerated settings so "SQLite3" and "sqlite3"
// are equivalent. The DSN is left untouched.
func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Dialect = strings.ToLower(strings.TrimSpace(c.Dialect))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}
