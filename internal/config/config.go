// Package config provides Viper-based configuration loading for the Montauban engine
// and its tooling.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Event sink kinds accepted by EventsConfig.Sink.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkNone     = "none"
)

// DatabaseConfig holds PostgreSQL connection settings for the event sink.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ContentConfig locates the inert content files consumed by the engine.
type ContentConfig struct {
	// CharactersDir holds one YAML file per playable character.
	CharactersDir string `mapstructure:"characters_dir"`
	// CouncilFile is the YAML file listing the Council deliberations.
	CouncilFile string `mapstructure:"council_file"`
	// PatchRulesFile is the YAML table of policy patch rules.
	PatchRulesFile string `mapstructure:"patch_rules_file"`
	// ScriptsDir holds Lua condition scripts. Empty disables scripted conditions.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// SceneCount is the number of scenes every character must declare. 0 = any.
	SceneCount int `mapstructure:"scene_count"`
}

// EventsConfig controls the best-effort record dispatcher.
type EventsConfig struct {
	// Sink selects the event store: "postgres", "sqlite" or "none".
	Sink string `mapstructure:"sink"`
	// SQLitePath is the database file used when Sink is "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
	// QueueSize bounds the number of pending events; overflow is dropped.
	QueueSize int `mapstructure:"queue_size"`
	// SendTimeout bounds a single sink write.
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	// RatePerSecond throttles sink writes. 0 disables throttling.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// ScriptingConfig holds Lua sandbox settings.
type ScriptingConfig struct {
	// InstructionLimit caps opcodes per condition call. 0 uses the sandbox default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Content   ContentConfig   `mapstructure:"content"`
	Events    EventsConfig    `mapstructure:"events"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEvents(c.Events); err != nil {
		errs = append(errs, err.Error())
	}
	// The database section only matters when postgres receives events.
	if c.Events.Sink == SinkPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.CharactersDir == "" {
		errs = append(errs, "content.characters_dir must not be empty")
	}
	if c.CouncilFile == "" {
		errs = append(errs, "content.council_file must not be empty")
	}
	if c.PatchRulesFile == "" {
		errs = append(errs, "content.patch_rules_file must not be empty")
	}
	if c.SceneCount < 0 {
		errs = append(errs, fmt.Sprintf("content.scene_count must be >= 0, got %d", c.SceneCount))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateEvents(e EventsConfig) error {
	var errs []string
	switch e.Sink {
	case SinkPostgres, SinkNone:
	case SinkSQLite:
		if e.SQLitePath == "" {
			errs = append(errs, "events.sqlite_path must not be empty when events.sink is sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("events.sink must be one of [postgres, sqlite, none], got %q", e.Sink))
	}
	if e.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("events.queue_size must be >= 1, got %d", e.QueueSize))
	}
	if e.SendTimeout <= 0 {
		errs = append(errs, "events.send_timeout must be positive")
	}
	if e.RatePerSecond < 0 {
		errs = append(errs, "events.rate_per_second must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MONTAUBAN_ prefix
	v.SetEnvPrefix("MONTAUBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance carrying only the built-in defaults.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "montauban")
	v.SetDefault("database.password", "montauban")
	v.SetDefault("database.name", "montauban")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("content.characters_dir", "content/characters")
	v.SetDefault("content.council_file", "content/council.yaml")
	v.SetDefault("content.patch_rules_file", "content/patches.yaml")
	v.SetDefault("content.scripts_dir", "content/scripts")
	v.SetDefault("content.scene_count", 8)

	v.SetDefault("events.sink", SinkNone)
	v.SetDefault("events.sqlite_path", "data/events.db")
	v.SetDefault("events.queue_size", 256)
	v.SetDefault("events.send_timeout", "3s")
	v.SetDefault("events.rate_per_second", 50)

	v.SetDefault("scripting.instruction_limit", 10000)
}
