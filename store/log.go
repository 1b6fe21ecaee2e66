// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var log = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger *pterm.Logger) {
	log = logger
}

const slowQueryThreshold = 500 * time.Millisecond

// gormLogger routes gorm's logging through the package logger. SQL
// statements are logged at trace level.
type gormLogger struct {
	level logger.LogLevel
}

func newGormLogger() logger.Interface {
	return &gormLogger{level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		log.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		log.Error("Query failed", log.Args("sql", sql, "rows", rows, "elapsed", elapsed, "error", err))
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		log.Warn("Slow query", log.Args("sql", sql, "rows", rows, "elapsed", elapsed))
	default:
		sql, rows := fc()
		log.Trace("Query", log.Args("sql", sql, "rows", rows, "elapsed", elapsed))
	}
}
