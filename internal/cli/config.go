package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	errors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"

	"github.com/goliatone/go-document-config/cache"
	"github.com/goliatone/go-document-config/document/sqlstore"
	"github.com/goliatone/go-document-config/reference"
)

const (
	envPrefix  = "WIKICONF"
	configName = "wikiconf"

	// DefaultsPrefix holds fallback values served beneath the stored ones.
	DefaultsPrefix = "defaults"
)

// Config is the CLI configuration. Every field can come from wikiconf.yaml,
// a WIKICONF_ environment variable (dots become underscores) or a flag.
type Config struct {
	DB    DBConfig    `mapstructure:"db"`
	Wiki  string      `mapstructure:"wiki"`
	Log   LogConfig   `mapstructure:"log"`
	Cache CacheConfig `mapstructure:"cache"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Validate checks the settings needed to reach the store.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Wiki, validation.Required),
		validation.Field(&c.DB),
		validation.Field(&c.Log),
		validation.Field(&c.Cache),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid wikiconf configuration")
	}
	return nil
}

func (c DBConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(sqlstore.DriverSQLite, sqlstore.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.Required, validation.In("text", "json")),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
	)
}

// CacheSettings returns the cache configuration with the configured TTL.
func (c Config) CacheSettings() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.TTL = c.Cache.TTL
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", sqlstore.DriverSQLite)
	v.SetDefault("db.dsn", "wikiconf.db")
	v.SetDefault("wiki", reference.DefaultWiki)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("cache.ttl", cache.DefaultConfig().TTL)
}

// loadConfig reads the configuration file, if any, then environment variables
// and flags already bound to v. An explicitly named file must exist.
func loadConfig(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, errors.CategoryBadInput, "read configuration file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
