package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the sessionkeeper client.
//
// Durations are time.Duration values; the JSON file spells them as "5s"
// or integer nanoseconds, flags as whole seconds. A flag only overrides the
// file when it is given.
type Config struct {
	APIBaseURL     string
	AuthPathPrefix string
	SignInPath     string
	RefreshLeeway  time.Duration
	RequestTimeout time.Duration
	StateDBPath    string
	LogBackend     string
	LogLevel       string
	// MetricsAddr is the listen address of the prometheus endpoint. Empty
	// disables it.
	MetricsAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:1000/api/v1"
	c.AuthPathPrefix = "/auth/"
	c.SignInPath = "/auth/signin"
	c.RefreshLeeway = 5 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.StateDBPath = "session.db"
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.MetricsAddr = ""
}

// LoadConfig builds a Config from the process arguments: defaults, then the
// JSON file named by -c/-config, then flags. It panics on unreadable or
// malformed input.
func LoadConfig() *Config {
	return Load(os.Args[1:])
}

// Load is LoadConfig over an explicit argument list.
func Load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
