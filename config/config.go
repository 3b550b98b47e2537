// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the on-disk service configuration and the
// environment variables that govern logging, debug dumps, and backend
// device selection.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	defaultHost     = "0.0.0.0"
	defaultPort     = 8000
	defaultLogLevel = "INFO"
)

var validLogLevels = map[string]bool{
	"DEBUG":   true,
	"INFO":    true,
	"WARNING": true,
	"ERROR":   true,
}

// Config is the persisted service configuration at <base>/config.json.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`

	// Auth gates the websocket handshake. Not part of the spec's
	// required three-field schema, but round-trips through the same
	// file when present.
	Auth AuthConfig `json:"auth,omitempty"`
}

// AuthConfig controls the optional bearer-token gate on /ws.
type AuthConfig struct {
	Enabled  bool           `json:"enabled,omitempty"`
	Tokens   []string       `json:"tokens,omitempty"`
	Redis    RedisConfig    `json:"redis,omitempty"`
	Postgres PostgresConfig `json:"postgres,omitempty"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	DB       int    `json:"db,omitempty"`
	Password string `json:"password,omitempty"`
	KeyTTL   int    `json:"key_ttl,omitempty"`
}

type PostgresConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"dbname,omitempty"`
	Table    string `json:"table,omitempty"`
	Query    string `json:"query,omitempty"`
}

// Default returns the configuration applied when no file is present or
// when the file fails to parse.
func Default() *Config {
	return &Config{
		Host:     defaultHost,
		Port:     defaultPort,
		LogLevel: defaultLogLevel,
	}
}

// Load reads <base>/config.json. A missing file, unparseable JSON, or
// an out-of-range field falls back to the default for that field
// rather than failing the whole load — the service must always start
// with some configuration. For unparseable JSON or an unreadable file
// the returned config is Default() and the error is returned alongside
// it for the caller to report.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var parsed Config
	if err := json.Unmarshal(data, &parsed); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if parsed.Host != "" {
		cfg.Host = parsed.Host
	}
	if parsed.Port >= 1 && parsed.Port <= 65535 {
		cfg.Port = parsed.Port
	}
	if validLogLevels[parsed.LogLevel] {
		cfg.LogLevel = parsed.LogLevel
	}
	cfg.Auth = parsed.Auth

	return cfg, nil
}

// Save writes cfg as pretty-printed JSON with a trailing newline.
func Save(filename string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(filename, data, 0o644)
}
