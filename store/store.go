// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/project-illium/emxd/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the relational store holding the versioned entity tables and
// the pipeline tables that gate them.
type Store struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// Open connects to the database, runs migrations and returns a Store.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	cfg := &gorm.Config{Logger: newGormLogger()}

	var (
		db   *gorm.DB
		pool *pgxpool.Pool
		err  error
	)
	switch driver {
	case DriverPostgres:
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db, err = gorm.Open(postgres.New(postgres.Config{
			Conn: stdlib.OpenDBFromPool(pool),
		}), cfg)
	case DriverSqlite:
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	s := &Store{db: db, pool: pool}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	log.Info("Database opened", log.Args("driver", driver))
	return s, nil
}

// New wraps an already open gorm connection. Migrations are not run.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate brings the schema up to date.
func (s *Store) Migrate() error {
	return models.AutoMigrate(s.db)
}

// DB returns the underlying connection for read-only queries.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Tx is an open atomic unit. Every write to the pipeline tables goes
// through a Tx and a Tx only exists inside Atomic, so data, revert
// snapshots and checkpoints can only be committed together.
type Tx struct {
	db *gorm.DB
}

// DB returns the transaction handle.
func (tx *Tx) DB() *gorm.DB {
	return tx.db
}

// Atomic runs fn inside a single database transaction. If fn returns an
// error, or the commit fails, nothing fn wrote is visible.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
