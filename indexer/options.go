// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package indexer

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/project-illium/emxd/entitymanager"
	"github.com/project-illium/emxd/locker"
	"github.com/project-illium/emxd/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultInterval    = time.Second
	DefaultLockTTL     = 30 * time.Second
	DefaultMaxBlocks   = 100
	DefaultStartBlock  = 1
	DefaultMaxRetry    = 2 * time.Minute
	DefaultReorgWindow = entitymanager.DefaultRevertDepth
)

// Option is configuration option function for the Indexer
type Option func(cfg *config) error

// Source sets the chain blocks are read from.
//
// This cannot be nil.
func Source(src BlockSource) Option {
	return func(cfg *config) error {
		cfg.source = src
		return nil
	}
}

// EntityManager sets the pipeline blocks are handed to.
//
// This cannot be nil.
func EntityManager(em Pipeline) Option {
	return func(cfg *config) error {
		cfg.em = em
		return nil
	}
}

// Blocks sets where the hashes of indexed blocks are read from for reorg
// detection.
//
// This cannot be nil.
func Blocks(b IndexedBlocks) Option {
	return func(cfg *config) error {
		cfg.blocks = b
		return nil
	}
}

// Locker sets the locker used to take the indexing lease.
//
// This cannot be nil.
func Locker(l *locker.Locker) Option {
	return func(cfg *config) error {
		cfg.locker = l
		return nil
	}
}

// StartBlock sets the first block indexed when there is no checkpoint.
func StartBlock(n int64) Option {
	return func(cfg *config) error {
		cfg.startBlock = n
		return nil
	}
}

// MaxBlocks caps the blocks indexed per cycle.
func MaxBlocks(n int) Option {
	return func(cfg *config) error {
		cfg.maxBlocks = n
		return nil
	}
}

// Confirmations keeps the indexer n blocks behind the chain tip.
func Confirmations(n int64) Option {
	return func(cfg *config) error {
		cfg.confirmations = n
		return nil
	}
}

// Interval sets the time between cycles.
func Interval(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.interval = d
		return nil
	}
}

// LockTTL sets the lifetime of the indexing lease.
func LockTTL(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.lockTTL = d
		return nil
	}
}

// ReorgWindow sets how far back a reorg is searched for. It should not
// exceed the entity manager's revert depth.
func ReorgWindow(n int64) Option {
	return func(cfg *config) error {
		cfg.reorgWindow = n
		return nil
	}
}

// BackOff sets the retry policy for storage failures. The function is
// called once per retried operation.
func BackOff(fn func() backoff.BackOff) Option {
	return func(cfg *config) error {
		cfg.backoff = fn
		return nil
	}
}

// Metrics sets the collectors the indexer reports to.
func Metrics(m *metrics.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// DefaultOptions returns an indexer configuration with default limits.
func DefaultOptions() Option {
	return func(cfg *config) error {
		cfg.startBlock = DefaultStartBlock
		cfg.maxBlocks = DefaultMaxBlocks
		cfg.interval = DefaultInterval
		cfg.lockTTL = DefaultLockTTL
		cfg.reorgWindow = DefaultReorgWindow
		cfg.backoff = func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.MaxElapsedTime = DefaultMaxRetry
			return eb
		}
		cfg.metrics = metrics.New(prometheus.NewRegistry())
		return nil
	}
}

type config struct {
	source        BlockSource
	em            Pipeline
	blocks        IndexedBlocks
	locker        *locker.Locker
	startBlock    int64
	maxBlocks     int
	confirmations int64
	interval      time.Duration
	lockTTL       time.Duration
	reorgWindow   int64
	backoff       func() backoff.BackOff
	metrics       *metrics.Metrics
}

func (cfg *config) validate() error {
	if cfg == nil {
		return entitymanager.AssertError("NewIndexer: config cannot be nil")
	}
	if cfg.source == nil {
		return entitymanager.AssertError("NewIndexer: source cannot be nil")
	}
	if cfg.em == nil {
		return entitymanager.AssertError("NewIndexer: entity manager cannot be nil")
	}
	if cfg.blocks == nil {
		return entitymanager.AssertError("NewIndexer: blocks cannot be nil")
	}
	if cfg.locker == nil {
		return entitymanager.AssertError("NewIndexer: locker cannot be nil")
	}
	if cfg.backoff == nil {
		return entitymanager.AssertError("NewIndexer: backoff cannot be nil")
	}
	if cfg.metrics == nil {
		return entitymanager.AssertError("NewIndexer: metrics cannot be nil")
	}
	if cfg.startBlock < 1 || cfg.maxBlocks < 1 || cfg.reorgWindow < 1 || cfg.confirmations < 0 {
		return entitymanager.AssertError("NewIndexer: invalid block limits")
	}
	if cfg.interval <= 0 || cfg.lockTTL <= 0 {
		return entitymanager.AssertError("NewIndexer: interval and lock ttl must be positive")
	}
	return nil
}
