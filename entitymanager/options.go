// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"context"
	"time"

	"github.com/project-illium/emxd/addrbook"
	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/metrics"
	"github.com/project-illium/emxd/store"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultJobName          = "entity_manager"
	DefaultRevertDepth      = 100
	DefaultFetchTimeout     = 10 * time.Second
	DefaultFetchConcurrency = 16
)

// MetadataFetcher resolves a metadata CID to its JSON document.
type MetadataFetcher interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// DefaultOptions returns an entity manager configure option that fills in
// the default settings. The store must always be provided.
func DefaultOptions() Option {
	return func(cfg *config) error {
		cfg.limits = DefaultLimits()
		cfg.bus = challenges.NewBus(challenges.DefaultQueueSize)
		cfg.book = addrbook.NewHolder(nil)
		cfg.fetchTimeout = DefaultFetchTimeout
		cfg.fetchConcurrency = DefaultFetchConcurrency
		cfg.revertDepth = DefaultRevertDepth
		cfg.jobName = DefaultJobName
		cfg.metrics = metrics.New(prometheus.NewRegistry())
		return nil
	}
}

// Option is configuration option function for the entity manager.
type Option func(cfg *config) error

// Store is the relational store the entity tables live in.
//
// This option is required.
func Store(s *store.Store) Option {
	return func(cfg *config) error {
		cfg.store = s
		return nil
	}
}

// WithLimits sets the field and id limits enforced by the handlers.
func WithLimits(l Limits) Option {
	return func(cfg *config) error {
		cfg.limits = l
		return nil
	}
}

// ChallengeBus is the bus challenge events are flushed to when a block
// commits. The default bus has no challenges registered.
func ChallengeBus(bus *challenges.Bus) Option {
	return func(cfg *config) error {
		cfg.bus = bus
		return nil
	}
}

// AddressBook holds the verifier and contract addresses. The snapshot it
// holds when a block starts is used for the whole block.
func AddressBook(h *addrbook.Holder) Option {
	return func(cfg *config) error {
		cfg.book = h
		return nil
	}
}

// Fetcher resolves metadata CIDs. If this is not provided every
// instruction carrying a bare CID is indexed as pending.
func Fetcher(f MetadataFetcher) Option {
	return func(cfg *config) error {
		cfg.fetcher = f
		return nil
	}
}

// FetchTimeout bounds how long one metadata fetch may take before the
// instruction is indexed as pending.
func FetchTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.fetchTimeout = d
		return nil
	}
}

// FetchConcurrency is the maximum number of metadata fetches in flight
// for one block.
func FetchConcurrency(n int) Option {
	return func(cfg *config) error {
		cfg.fetchConcurrency = n
		return nil
	}
}

// RevertDepth is the number of revert snapshots kept. Blocks deeper than
// this can no longer be reverted.
func RevertDepth(n int64) Option {
	return func(cfg *config) error {
		cfg.revertDepth = n
		return nil
	}
}

// JobName is the checkpoint name the manager records progress under.
func JobName(name string) Option {
	return func(cfg *config) error {
		cfg.jobName = name
		return nil
	}
}

// Metrics is where the manager reports block and instruction counts.
func Metrics(m *metrics.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

type config struct {
	store            *store.Store
	limits           Limits
	bus              *challenges.Bus
	book             *addrbook.Holder
	fetcher          MetadataFetcher
	fetchTimeout     time.Duration
	fetchConcurrency int
	revertDepth      int64
	jobName          string
	metrics          *metrics.Metrics
}

func (cfg *config) validate() error {
	if cfg == nil {
		return AssertError("NewEntityManager: config cannot be nil")
	}
	if cfg.store == nil {
		return AssertError("NewEntityManager: store cannot be nil")
	}
	if cfg.bus == nil {
		return AssertError("NewEntityManager: challenge bus cannot be nil")
	}
	if cfg.book == nil {
		return AssertError("NewEntityManager: address book cannot be nil")
	}
	if cfg.metrics == nil {
		return AssertError("NewEntityManager: metrics cannot be nil")
	}
	if cfg.jobName == "" {
		return AssertError("NewEntityManager: job name cannot be empty")
	}
	if cfg.revertDepth <= 0 {
		return AssertError("NewEntityManager: revert depth must be positive")
	}
	if cfg.fetchConcurrency <= 0 {
		return AssertError("NewEntityManager: fetch concurrency must be positive")
	}
	return nil
}
