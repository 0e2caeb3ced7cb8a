// Package config loads runtime configuration for the sessionkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-u string   API base URL
//	-t int      request timeout (seconds)
//	-d string   session state database path
//	-m string   metrics listen address
//	-l string   log level
//
// # JSON schema
//
// Durations accept strings like "5s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://localhost:1000/api/v1",
//	  "auth_path_prefix": "/auth/",
//	  "sign_in_path": "/auth/signin",
//	  "refresh_leeway": "5s",
//	  "request_timeout": "30s",
//	  "state_db_path": "session.db",
//	  "log_backend": "slog",
//	  "log_level": "info",
//	  "metrics_addr": ":9100"
//	}
//
// Environment variables are not read.
package config
