// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "construct.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func TestLoader_Load_ValidConfig(t *testing.T) {
	content := `{
		version: "1.0"
		server: { port: 2300, host: "0.0.0.0" }
		nodes: { count: 8 }
		services: [
			{ id: "tradewars", name: "TradeWars", min_level: "User" }
		]
	}`

	cfg := loadFromString(t, content)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, 2300, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Nodes.Count)
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, "tradewars", cfg.Services[0].ID)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	content := `{
		// comment
		version: "1.0"
		server: {
			port: 2300,
			host: 0.0.0.0,
		}
	}`

	cfg := loadFromString(t, content)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, 2300, cfg.Server.Port)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	content := `{ version: "1.0" }`
	dir := t.TempDir()
	path := filepath.Join(dir, "construct.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2300, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Nodes.Count)
	assert.Equal(t, "12h", cfg.Auth.SessionExpiry)
	assert.Len(t, cfg.Levels, 3)
	assert.Equal(t, uint32(19*1024), cfg.Auth.ArgonMemoryKiB)
}

func TestLoader_LoadWithDefaults_InvalidMenuServiceRef(t *testing.T) {
	content := `{
		version: "1.0"
		menu: { items: [ { type: "service", hotkey: "T", name: "Trade", service_id: "nonexistent" } ] }
	}`
	dir := t.TempDir()
	path := filepath.Join(dir, "construct.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader()
	_, err := loader.LoadWithDefaults(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service id")
}

func TestLoader_Load_MissingFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/construct.hjson")
	require.Error(t, err)
}

func TestLoader_FindConfig_NotFound(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.Chdir(dir))

	loader := NewLoader()
	_, err = loader.FindConfig()
	assert.Error(t, err)
}
