// Package config loads reqtrace settings from .reqtrace.yaml, REQTRACE_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StoreConfig selects where project documents come from.
type StoreConfig struct {
	// Driver is "dir" (one directory per project) or "sqlite".
	Driver string `mapstructure:"driver" validate:"oneof=dir sqlite"`
	// Path is the store root directory or the SQLite database file.
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig configures `reqtrace serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// WatchConfig configures `reqtrace watch`.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gt=0"`
}

// Config holds all runtime configuration.
type Config struct {
	Store    StoreConfig  `mapstructure:"store"`
	Ordering string       `mapstructure:"ordering" validate:"oneof=provider hierarchy"`
	Redact   bool         `mapstructure:"redact"`
	Server   ServerConfig `mapstructure:"server"`
	Log      LogConfig    `mapstructure:"log"`
	Watch    WatchConfig  `mapstructure:"watch"`
}

var validate = validator.New()

// Init points viper at cfgFile, or at .reqtrace.yaml in the working or home
// directory, and enables REQTRACE_* environment overrides such as
// REQTRACE_STORE_PATH. A missing default config file is not an error.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".reqtrace")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("REQTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile == "" && errors.Is(err, fs.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags, and validates it.
func Load() (Config, error) {
	viper.SetDefault("store.driver", "dir")
	viper.SetDefault("store.path", "./projects")
	viper.SetDefault("ordering", "provider")
	viper.SetDefault("redact", false)
	viper.SetDefault("server.addr", "127.0.0.1:8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("watch.debounce", "500ms")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Ordering = strings.ToLower(cfg.Ordering)
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
