// Package config loads filterspec settings from defaults, an optional config
// file and FILTERSPEC_* environment variables, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/matthewbaird/filterspec/internal/logging"
	"github.com/matthewbaird/filterspec/internal/repl"
)

// EnvPrefix prefixes every environment variable, e.g. FILTERSPEC_SERVER_PORT.
const EnvPrefix = "FILTERSPEC"

// Config is the full filterspec configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Log      LogConfig      `mapstructure:"log"`
	REPL     REPLConfig     `mapstructure:"repl"`
	Query    QueryConfig    `mapstructure:"query"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SchemaConfig points at the entity schema, CUE or YAML by extension.
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type REPLConfig struct {
	MaxAge      time.Duration `mapstructure:"max_age"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type QueryConfig struct {
	// DefaultLimit caps find queries that set no limit. Zero disables it.
	DefaultLimit int `mapstructure:"default_limit"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "file:filterspec.db?_pragma=foreign_keys(1)")
	v.SetDefault("schema.path", "schema.cue")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("repl.max_age", repl.DefaultConfig.MaxAge)
	v.SetDefault("repl.idle_timeout", repl.DefaultConfig.IdleTimeout)
	v.SetDefault("query.default_limit", 100)
}

// New returns a viper instance with defaults and environment binding. When
// path is non-empty the file is read; its format follows the extension.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The unprefixed names are honored after the prefixed ones.
	if err := v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL"); err != nil {
		return nil, errors.Wrap(err, "bind database.dsn")
	}
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, errors.Wrap(err, "bind server.port")
	}

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return v, nil
}

// Load reads the configuration. See New for the sources consulted.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port: %d is out of range", c.Server.Port)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Schema.Path == "" {
		return errors.New("schema.path is required")
	}
	if c.Query.DefaultLimit < 0 {
		return errors.Newf("query.default_limit: %d is negative", c.Query.DefaultLimit)
	}
	return nil
}

// Logging converts the log section for the logging package.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Pretty: c.Log.Pretty}
}

// REPLSessions converts the repl section for the REPL routes.
func (c *Config) REPLSessions() repl.Config {
	return repl.Config{MaxAge: c.REPL.MaxAge, IdleTimeout: c.REPL.IdleTimeout}
}
