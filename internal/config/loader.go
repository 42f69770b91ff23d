// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for construct.hjson first, then construct.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"construct.hjson",
		"construct.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for construct.hjson, construct.json)")
}

// applyDefaults sets default values for missing config fields. All sections
// are optional, per spec §6.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 2300
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}

	if cfg.Terminal.Width == 0 {
		cfg.Terminal.Width = 80
	}
	if cfg.Terminal.Height == 0 {
		cfg.Terminal.Height = 24
	}

	if cfg.Nodes.Count == 0 {
		cfg.Nodes.Count = 4
	}

	if cfg.Auth.SessionExpiry == "" {
		cfg.Auth.SessionExpiry = "12h"
	}
	if cfg.Auth.LockoutMaxAttempts == 0 {
		cfg.Auth.LockoutMaxAttempts = 3
	}
	if cfg.Auth.LockoutWindow == "" {
		cfg.Auth.LockoutWindow = "15m"
	}
	if cfg.Auth.VerificationExpiry == "" {
		cfg.Auth.VerificationExpiry = "10m"
	}
	if cfg.Auth.ArgonMemoryKiB == 0 {
		cfg.Auth.ArgonMemoryKiB = 19 * 1024
	}
	if cfg.Auth.ArgonIterations == 0 {
		cfg.Auth.ArgonIterations = 2
	}
	if cfg.Auth.ArgonParallelism == 0 {
		cfg.Auth.ArgonParallelism = 1
	}

	if len(cfg.Levels) == 0 {
		cfg.Levels = []LevelConfig{
			{Name: "Guest", DailyMinutes: 30, BankCap: 0},
			{Name: "User", DailyMinutes: 60, BankCap: 180},
			{Name: "Sysop", DailyMinutes: 0, BankCap: 0}, // 0 == unlimited
		}
	}

	if cfg.Chat.Capacity == 0 {
		cfg.Chat.Capacity = 64
	}
	if cfg.Chat.BufferSize == 0 {
		cfg.Chat.BufferSize = 32
	}

	if cfg.Mail.PageSize == 0 {
		cfg.Mail.PageSize = 10
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "construct.db"
	}
	if cfg.Storage.SweepInterval == "" {
		cfg.Storage.SweepInterval = "5m"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
