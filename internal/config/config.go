// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	DB struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"db" yaml:"db"`

	Server struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
		URL  string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"server" yaml:"server"`

	Reconcile struct {
		Tolerance string `mapstructure:"tolerance" yaml:"tolerance"`
		Workers   int    `mapstructure:"workers" yaml:"workers"`
	} `mapstructure:"reconcile" yaml:"reconcile"`

	Budget struct {
		RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
		Periods         int           `mapstructure:"periods" yaml:"periods"`
		Timezone        string        `mapstructure:"timezone" yaml:"timezone"`
	} `mapstructure:"budget" yaml:"budget"`
}

// Load reads defaults, an optional .env file, an optional config.yaml and
// LEDGERBOOK_* environment variables, in that order of precedence. An
// explicit file path must exist.
func Load(file string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.ledgerbook")
		v.AddConfigPath(".ledgerbook")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEDGERBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied and no
// file or environment lookups.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("db.path", "ledgerbook.db")

	v.SetDefault("server.addr", ":8888")
	v.SetDefault("server.url", "http://localhost:8888")

	v.SetDefault("reconcile.tolerance", "0.01")
	v.SetDefault("reconcile.workers", runtime.NumCPU())

	v.SetDefault("budget.refresh_interval", time.Hour)
	v.SetDefault("budget.periods", 12)
	v.SetDefault("budget.timezone", "UTC")
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}

	tol, err := c.ToleranceDecimal()
	if err != nil {
		return err
	}
	if tol.IsNegative() {
		return fmt.Errorf("reconcile.tolerance must be non-negative, got: %s", c.Reconcile.Tolerance)
	}
	if c.Reconcile.Workers < 1 {
		return fmt.Errorf("reconcile.workers must be at least 1, got: %d", c.Reconcile.Workers)
	}

	if c.Budget.RefreshInterval < 0 {
		return fmt.Errorf("budget.refresh_interval must be non-negative, got: %s", c.Budget.RefreshInterval)
	}
	if c.Budget.Periods < 1 {
		return fmt.Errorf("budget.periods must be at least 1, got: %d", c.Budget.Periods)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ToleranceDecimal parses the reconciliation tolerance.
func (c *Config) ToleranceDecimal() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(c.Reconcile.Tolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid reconcile.tolerance %q: %w", c.Reconcile.Tolerance, err)
	}
	return tol, nil
}

// Location resolves the timezone used to turn calendar dates into instants.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Budget.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid budget.timezone %q: %w", c.Budget.Timezone, err)
	}
	return loc, nil
}
