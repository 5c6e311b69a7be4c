// Package config loads process settings from the environment and an
// optional config.yaml. Every key can be set as SAKINAH_<KEY> or <KEY>.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SAKINAH"

var validBackends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP change feed for the sqlite backend; empty disables it
	AMQPURL      string
	AMQPExchange string

	// Identity
	AuthJWTSecret string

	// Sync
	LoadTimeout  time.Duration
	WriteTimeout time.Duration
	CutoffDay    int

	// Logging
	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"port":            "8081",
	"data_backend":    "memory",
	"sqlite_db_path":  "./data/sakinah.db",
	"database_url":    "",
	"amqp_url":        "",
	"amqp_exchange":   "sakinah.changes",
	"auth_jwt_secret": "",
	"load_timeout":    5 * time.Second,
	"write_timeout":   10 * time.Second,
	"cutoff_day":      21,
	"log_level":       "info",
	"log_format":      "text",
}

// Load reads the environment and ./config.yaml when present.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), "")
}

// LoadFrom reads into v, using configFile instead of ./config.yaml when set.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		upper := strings.ToUpper(key)
		if err := v.BindEnv(key, EnvPrefix+"_"+upper, upper); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", upper, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		Port:          v.GetString("port"),
		DataBackend:   strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath:  v.GetString("sqlite_db_path"),
		DatabaseURL:   v.GetString("database_url"),
		AMQPURL:       v.GetString("amqp_url"),
		AMQPExchange:  v.GetString("amqp_exchange"),
		AuthJWTSecret: v.GetString("auth_jwt_secret"),
		LoadTimeout:   v.GetDuration("load_timeout"),
		WriteTimeout:  v.GetDuration("write_timeout"),
		CutoffDay:     v.GetInt("cutoff_day"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     strings.ToLower(v.GetString("log_format")),
	}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid database URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errs = append(errs, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LoadTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid load timeout %v: must be positive", c.LoadTimeout))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid write timeout %v: must be positive", c.WriteTimeout))
	}

	if c.CutoffDay < 2 || c.CutoffDay > 28 {
		errs = append(errs, fmt.Sprintf("invalid cutoff day %d: must be between 2 and 28", c.CutoffDay))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
