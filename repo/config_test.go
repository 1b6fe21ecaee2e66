// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDefaultConfigFile(t *testing.T) {
	testpath := filepath.Join(t.TempDir(), "nested", "test.conf")

	err := createDefaultConfigFile(testpath)
	require.NoError(t, err)

	got, err := os.ReadFile(testpath)
	require.NoError(t, err)
	want, err := configFS.ReadFile("sample-emxd.conf")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig([]string{"--datadir=" + dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, defaultConfigFilename), cfg.ConfigFile)
	assert.FileExists(t, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "logs"), cfg.LogDir)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, filepath.Join(dir, DefaultSqliteFilename))
	assert.Equal(t, DefaultStatusListener, cfg.StatusListener)
	assert.Equal(t, DefaultGateways, cfg.Metadata.Gateways)
	assert.Equal(t, 10*time.Second, cfg.Metadata.FetchTimeout)
	assert.Equal(t, int64(100), cfg.Indexer.RevertDepth)
	assert.Equal(t, int64(1), cfg.Chain.StartBlock)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "custom.conf")
	require.NoError(t, os.WriteFile(conf, []byte(`
[Chain Options]
startblock=500
maxblocks=20

[Indexer Options]
revertdepth=50
`), 0600))

	cfg, err := loadConfig([]string{"--datadir=" + dir, "--configfile=" + conf, "--maxblocks=7"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), cfg.Chain.StartBlock)
	assert.Equal(t, 7, cfg.Chain.MaxBlocks)
	assert.Equal(t, int64(50), cfg.Indexer.RevertDepth)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"postgres without dsn", []string{"--dbdriver=postgres"}},
		{"unknown driver", []string{"--dbdriver=mysql"}},
		{"bad listener", []string{"--statuslisten=localhost:80"}},
		{"bad contract", []string{"--contract=0x1234"}},
		{"lock shorter than interval", []string{"--interval=1m", "--lockttl=30s"}},
		{"zero revert depth", []string{"--revertdepth=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--datadir=" + t.TempDir()}, tt.args...)
			_, err := loadConfig(args)
			assert.Error(t, err)
		})
	}
}

func TestAppDataDir(t *testing.T) {
	t.Setenv("HOME", "/home/emx")
	assert.Equal(t, ".", appDataDir("linux", "", false))
	assert.Contains(t, appDataDir("linux", "emxd", false), ".emxd")
	assert.Contains(t, appDataDir("darwin", ".emxd", false), filepath.Join("Application Support", "Emxd"))
}
