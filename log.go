// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/project-illium/emxd/addrbook"
	"github.com/project-illium/emxd/chain"
	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/entitymanager"
	"github.com/project-illium/emxd/indexer"
	"github.com/project-illium/emxd/locker"
	"github.com/project-illium/emxd/metadata"
	"github.com/project-illium/emxd/repo"
	"github.com/project-illium/emxd/status"
	"github.com/project-illium/emxd/store"
	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)

var logLevelMap = map[string]pterm.LogLevel{
	"trace":   pterm.LogLevelTrace,
	"debug":   pterm.LogLevelDebug,
	"info":    pterm.LogLevelInfo,
	"warning": pterm.LogLevelWarn,
	"error":   pterm.LogLevelError,
	"fatal":   pterm.LogLevelFatal,
}

// setupLogging builds the daemon logger and hands it to every package.
// When logDir is set output is also written to a rotating file there; the
// returned closer, when not nil,
// closes it.
func setupLogging(logDir, level string, jsonFormat bool) (io.Closer, error) {
	logLevel, ok := logLevelMap[strings.ToLower(level)]
	if !ok {
		return nil, errors.New("invalid log level")
	}

	var (
		writer io.Writer = os.Stdout
		closer io.Closer
	)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, err
		}
		logRotator := &lumberjack.Logger{
			Filename:   path.Join(logDir, repo.DefaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		writer = io.MultiWriter(os.Stdout, logRotator)
		closer = logRotator
	}

	logger := pterm.DefaultLogger.
		WithLevel(logLevel).
		WithWriter(writer).
		WithTime(true)
	if jsonFormat {
		logger = logger.WithFormatter(pterm.LogFormatterJSON)
	}

	log = logger
	repo.UseLogger(logger)
	store.UseLogger(logger)
	challenges.UseLogger(logger)
	addrbook.UseLogger(logger)
	entitymanager.UseLogger(logger)
	indexer.UseLogger(logger)
	locker.UseLogger(logger)
	metadata.UseLogger(logger)
	chain.UseLogger(logger)
	status.UseLogger(logger)
	return closer, nil
}
