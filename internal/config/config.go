// Package config loads client and server settings from flags, environment
// variables and an optional stranger.toml file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STRANGER_ENDPOINT.
const EnvPrefix = "STRANGER"

// Keys shared by flags, env and the config file.
const (
	KeyEndpoint        = "endpoint"
	KeyListen          = "listen"
	KeyLogFile         = "log.file"
	KeyLogLevel        = "log.level"
	KeyMetricsFile     = "metrics.file"
	KeyMetricsInterval = "metrics.interval"
)

const (
	configName = "stranger"
	configType = "toml"
)

// Client holds the chat client configuration.
type Client struct {
	Endpoint string
	Log      Log
	Metrics  Metrics
}

// Server holds the development matching service configuration.
type Server struct {
	Listen string
	Log    Log
}

// Log controls where logs go and how verbose they are.
type Log struct {
	File  string
	Level slog.Level
}

// Metrics controls the periodic metrics export. An empty File disables it.
type Metrics struct {
	File     string
	Interval time.Duration
}

// NewViper returns a viper instance wired for env overrides and defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "stranger"))
	}

	v.SetDefault(KeyEndpoint, "ws://localhost:3000/ws")
	v.SetDefault(KeyListen, ":3000")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsInterval, 30*time.Second)
	return v
}

// ReadFile reads the config file if there is one.
func ReadFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// LoadClient builds and validates the client configuration.
func LoadClient(v *viper.Viper) (*Client, error) {
	level, err := parseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}
	cfg := &Client{
		Endpoint: v.GetString(KeyEndpoint),
		Log: Log{
			File:  v.GetString(KeyLogFile),
			Level: level,
		},
		Metrics: Metrics{
			File:     v.GetString(KeyMetricsFile),
			Interval: v.GetDuration(KeyMetricsInterval),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadServer builds and validates the server configuration.
func LoadServer(v *viper.Viper) (*Server, error) {
	level, err := parseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}
	cfg := &Server{
		Listen: v.GetString(KeyListen),
		Log: Log{
			File:  v.GetString(KeyLogFile),
			Level: level,
		},
	}
	if cfg.Listen == "" {
		return nil, errors.New("invalid configuration: listen address is required")
	}
	return cfg, nil
}

// Validate checks the endpoint and metrics settings.
func (c *Client) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint %q: scheme must be ws or wss", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: host is required", c.Endpoint)
	}
	if c.Metrics.File != "" && c.Metrics.Interval <= 0 {
		return fmt.Errorf("metrics interval must be positive, got %s", c.Metrics.Interval)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
