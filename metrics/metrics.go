// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package metrics defines the prometheus collectors exported by emxd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "emxd"

// Metrics groups the indexing collectors.
type Metrics struct {
	BlocksProcessed prometheus.Counter
	Instructions    *prometheus.CounterVec
	BlockDuration   prometheus.Histogram
	Reverts         prometheus.Counter
	RevertedBlocks  prometheus.Counter
	IndexedHeight   prometheus.Gauge
	ChainHeight     prometheus.Gauge
	ChallengeRows   prometheus.Counter
	MetadataFetches *prometheus.CounterVec
	GatewayRequests *prometheus.CounterVec
	CacheHits       prometheus.Counter
	Retries         prometheus.Counter
	LockSkips       prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entity_manager",
			Name:      "blocks_processed_total",
			Help:      "Total blocks committed by the entity manager.",
		}),
		Instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entity_manager",
			Name:      "instructions_total",
			Help:      "Total ManageEntity instructions processed, by outcome.",
		}, []string{"outcome"}),
		BlockDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "entity_manager",
			Name:      "block_duration_seconds",
			Help:      "Time taken to process and commit one block.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		Reverts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entity_manager",
			Name:      "reverts_total",
			Help:      "Total reorg reverts applied.",
		}),
		RevertedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entity_manager",
			Name:      "reverted_blocks_total",
			Help:      "Total blocks undone by reorg reverts.",
		}),
		IndexedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "indexed_height",
			Help:      "Last block committed by the indexer.",
		}),
		ChainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "chain_height",
			Help:      "Latest block reported by the chain client.",
		}),
		ChallengeRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "challenges",
			Name:      "progress_rows_total",
			Help:      "Total challenge progress rows written.",
		}),
		MetadataFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetches_total",
			Help:      "Total metadata fetches, by result.",
		}, []string{"result"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "gateway_requests_total",
			Help:      "Total requests sent to IPFS gateways, by gateway and result.",
		}, []string{"gateway", "result"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "cache_hits_total",
			Help:      "Total metadata fetches served from the datastore cache.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "block_retries_total",
			Help:      "Total block attempts retried after a storage error.",
		}),
		LockSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "lock_skips_total",
			Help:      "Total cycles skipped because another owner held the lock.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.BlocksProcessed,
			m.Instructions,
			m.BlockDuration,
			m.Reverts,
			m.RevertedBlocks,
			m.IndexedHeight,
			m.ChainHeight,
			m.ChallengeRows,
			m.MetadataFetches,
			m.GatewayRequests,
			m.CacheHits,
			m.Retries,
			m.LockSkips,
		)
	}
	return m
}
