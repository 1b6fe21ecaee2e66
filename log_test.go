// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/project-illium/emxd/repo"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	defer func() { log = pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo) }()

	_, err := setupLogging("", "verbose", false)
	assert.Error(t, err)

	dir := t.TempDir()
	closer, err := setupLogging(dir, "DEBUG", true)
	require.NoError(t, err)
	require.NotNil(t, closer)

	log.Debug("hello", log.Args("k", "v"))
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(filepath.Join(dir, repo.DefaultLogFilename))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "hello")
	assert.Contains(t, string(raw), `"k":"v"`)
}
