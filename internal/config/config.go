// Package config loads rlsnotes configuration from defaults, an optional
// config file, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// Config holds the application configuration.
type Config struct {
	// URL is the backend project URL, e.g. https://xyz.supabase.co
	URL string `mapstructure:"url"`

	// AnonKey is the project's public API key.
	AnonKey string `mapstructure:"anon_key"`

	// Table holds the notes.
	Table string `mapstructure:"table"`

	// Columns is the column list requested when listing notes.
	Columns string `mapstructure:"columns"`

	// SessionFile persists the signed-in session between runs.
	SessionFile string `mapstructure:"session_file"`

	// Timeout bounds each request to the backend.
	Timeout time.Duration `mapstructure:"timeout"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// ErrMissingBackend is returned by Validate when the backend URL or key is unset.
var ErrMissingBackend = errors.New("backend not configured: set SUPABASE_URL and SUPABASE_ANON_KEY (or url/anon_key in config.yaml)")

// Dir returns ~/.rlsnotes, the default home for config, session and logs.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".rlsnotes"), nil
}

// envAliases maps config keys to the extra environment variables a
// Supabase project usually already defines.
var envAliases = map[string][]string{
	"url":      {"RLSNOTES_URL", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"},
	"anon_key": {"RLSNOTES_ANON_KEY", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"},
}

// Load loads configuration from file and environment. configPath may be
// empty to search ~/.rlsnotes and the working directory for config.yaml.
func Load(configPath string) (*Config, error) {
	// .env files are optional; the environment wins over them.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	v := viper.New()

	dir, dirErr := Dir()
	setDefaults(v, dir)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if dirErr == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RLSNOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("url", "")
	v.SetDefault("anon_key", "")
	v.SetDefault("table", "notes")
	v.SetDefault("columns", domain.DefaultNoteColumns)
	v.SetDefault("timeout", "30s")
	v.SetDefault("log.level", "info")
	if dir != "" {
		v.SetDefault("session_file", filepath.Join(dir, "session.json"))
		v.SetDefault("log.file", filepath.Join(dir, "rlsnotes.log"))
	}
}

// Validate reports whether the backend connection settings are present.
func (c *Config) Validate() error {
	if c.URL == "" || c.AnonKey == "" {
		return ErrMissingBackend
	}
	if c.Table == "" {
		return fmt.Errorf("config: table must not be empty")
	}
	return nil
}
