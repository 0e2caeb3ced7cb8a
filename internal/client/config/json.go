package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. Absent fields keep the value
// loaded before the file.
type JsonConfig struct {
	APIBaseURL     string         `json:"api_base_url"`
	AuthPathPrefix string         `json:"auth_path_prefix"`
	SignInPath     string         `json:"sign_in_path"`
	RefreshLeeway  timex.Duration `json:"refresh_leeway"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	StateDBPath    string         `json:"state_db_path"`
	LogBackend     string         `json:"log_backend"`
	LogLevel       string         `json:"log_level"`
	MetricsAddr    string         `json:"metrics_addr"`
}

// parseJson overlays cfg with the file given by -c or -config, if any.
// Read and decode errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.AuthPathPrefix, jc.AuthPathPrefix)
	setString(&cfg.SignInPath, jc.SignInPath)
	setString(&cfg.StateDBPath, jc.StateDBPath)
	setString(&cfg.LogBackend, jc.LogBackend)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	if jc.RefreshLeeway.Duration != 0 {
		cfg.RefreshLeeway = jc.RefreshLeeway.Duration
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
