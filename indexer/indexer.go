// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package indexer drives the entity manager from a chain. Each cycle
// takes the indexing lease, checks the indexed tip against the chain for
// a reorg, and then commits blocks in order from the checkpoint.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/project-illium/emxd/entitymanager"
	"github.com/project-illium/emxd/locker"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store"
	"github.com/project-illium/emxd/types"
)

// BlockSource is the chain.
type BlockSource interface {
	// BlockNumber returns the chain tip.
	BlockNumber(ctx context.Context) (int64, error)
	// BlockHash returns the canonical hash of block n.
	BlockHash(ctx context.Context, n int64) (string, error)
	// Block returns block n with its instructions.
	Block(ctx context.Context, n int64) (*types.Block, error)
}

// Pipeline is the part of the entity manager the indexer drives.
type Pipeline interface {
	JobName() string
	LastIndexed(ctx context.Context) (int64, error)
	ProcessBlock(ctx context.Context, blk *types.Block) (*entitymanager.BlockSummary, error)
	RevertToBefore(ctx context.Context, target int64) (*entitymanager.RevertSummary, error)
}

// IndexedBlocks returns stored blocks by number.
type IndexedBlocks interface {
	Block(ctx context.Context, n int64) (*models.Block, error)
}

// ReorgError reports that the indexed chain diverged from the canonical
// chain after Ancestor.
type ReorgError struct {
	Tip      int64
	Ancestor int64
}

func (e ReorgError) Error() string {
	return fmt.Sprintf("reorg detected: indexed tip %d, common ancestor %d", e.Tip, e.Ancestor)
}

// CycleResult describes one indexing cycle.
type CycleResult struct {
	Skipped  bool
	Reorg    *ReorgError
	Indexed  int
	Tip      int64
	ChainTip int64
}

// Indexer runs indexing cycles.
type Indexer struct {
	cfg *config
}

// NewIndexer returns an Indexer. DefaultOptions should be passed first.
func NewIndexer(opts ...Option) (*Indexer, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Indexer{cfg: &cfg}, nil
}

// Run runs cycles every interval until ctx is done or a fatal error is
// hit. Other errors are logged and the cycle is tried again.
func (ix *Indexer) Run(ctx context.Context) error {
	ticker := time.NewTicker(ix.cfg.interval)
	defer ticker.Stop()
	for {
		res, err := ix.RunOnce(ctx)
		if err != nil {
			if entitymanager.IsFatal(err) {
				log.Error("Indexing halted", log.Args("error", err))
				return err
			}
			if ctx.Err() == nil {
				log.Warn("Indexing cycle failed", log.Args("error", err))
			}
		}
		// Keep going without waiting while there are blocks to catch up on.
		behind := err == nil && res != nil && !res.Skipped && res.Indexed > 0 && res.Tip < res.ChainTip-ix.cfg.confirmations
		if !behind {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}
	}
}

// RunOnce runs a single cycle. If the lease is held elsewhere the cycle
// is skipped without error.
func (ix *Indexer) RunOnce(ctx context.Context) (*CycleResult, error) {
	job := ix.cfg.em.JobName()
	lease, ok, err := ix.cfg.locker.TryAcquire(ctx, job, ix.cfg.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		ix.cfg.metrics.LockSkips.Inc()
		log.Debug("Indexing lock held elsewhere", log.Args("job", job))
		return &CycleResult{Skipped: true}, nil
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil && !errors.Is(err, locker.ErrNotHeld) {
			log.Warn("Failed to release indexing lock", log.Args("error", err))
		}
	}()

	chainTip, err := ix.cfg.source.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain tip: %w", err)
	}
	ix.cfg.metrics.ChainHeight.Set(float64(chainTip))

	last, err := ix.cfg.em.LastIndexed(ctx)
	if err != nil {
		return nil, err
	}
	res := &CycleResult{Tip: last, ChainTip: chainTip}

	if last > 0 {
		ancestor, err := ix.commonAncestor(ctx, last, chainTip)
		if err != nil {
			return res, err
		}
		if ancestor < last {
			reorg := &ReorgError{Tip: last, Ancestor: ancestor}
			res.Reorg = reorg
			log.Warn("Chain reorganization", log.Args("tip", last, "ancestor", ancestor))
			if err := ix.revert(ctx, ancestor+1); err != nil {
				return res, err
			}
			last = ancestor
			res.Tip = last
		}
	}

	next := last + 1
	if last == 0 && ix.cfg.startBlock > next {
		next = ix.cfg.startBlock
	}
	target := chainTip - ix.cfg.confirmations
	for n := next; n <= target && res.Indexed < ix.cfg.maxBlocks; n++ {
		if ctx.Err() != nil {
			return res, nil
		}
		blk, err := ix.cfg.source.Block(ctx, n)
		if err != nil {
			return res, fmt.Errorf("fetch block %d: %w", n, err)
		}
		if res.Tip > 0 {
			prev, err := ix.cfg.blocks.Block(ctx, res.Tip)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return res, err
			}
			if prev != nil && prev.Hash != blk.ParentHash {
				// The chain moved under us. The next cycle walks back.
				log.Info("Block does not extend indexed tip", log.Args("block", blk.String(), "tip", res.Tip))
				return res, nil
			}
		}
		if err := ix.process(ctx, blk); err != nil {
			return res, err
		}
		res.Indexed++
		res.Tip = n
		ix.cfg.metrics.IndexedHeight.Set(float64(n))

		if err := lease.Refresh(ctx, ix.cfg.lockTTL); err != nil {
			log.Warn("Lost indexing lock", log.Args("error", err))
			return res, nil
		}
	}
	if res.Indexed > 0 {
		log.Info("Indexed blocks", log.Args("count", res.Indexed, "tip", res.Tip, "chain_tip", chainTip))
	}
	return res, nil
}

// commonAncestor walks back from tip to the highest indexed block whose
// hash matches the chain. Indexed blocks above the chain tip have been
// reorganized away.
func (ix *Indexer) commonAncestor(ctx context.Context, tip, chainTip int64) (int64, error) {
	floor := tip - ix.cfg.reorgWindow
	start := tip
	if chainTip < start {
		start = chainTip
	}
	for n := start; n > 0; n-- {
		if n <= floor {
			return 0, entitymanager.AssertError(fmt.Sprintf("reorg deeper than %d blocks at %d", ix.cfg.reorgWindow, tip))
		}
		stored, err := ix.cfg.blocks.Block(ctx, n)
		if errors.Is(err, store.ErrNotFound) {
			// Nothing to compare against below the first indexed block.
			return n, nil
		} else if err != nil {
			return 0, entitymanager.StorageError{Op: "load block", Err: err}
		}
		hash, err := ix.cfg.source.BlockHash(ctx, n)
		if err != nil {
			return 0, fmt.Errorf("chain hash of %d: %w", n, err)
		}
		if hash == stored.Hash {
			return n, nil
		}
	}
	return 0, nil
}

func (ix *Indexer) process(ctx context.Context, blk *types.Block) error {
	return ix.retry(ctx, "block "+blk.String(), func() error {
		summary, err := ix.cfg.em.ProcessBlock(ctx, blk)
		if err != nil {
			return err
		}
		log.Debug("Block committed", log.Args("block", blk.String(), "applied", summary.Applied, "rejected", summary.Rejected))
		return nil
	})
}

func (ix *Indexer) revert(ctx context.Context, target int64) error {
	return ix.retry(ctx, fmt.Sprintf("revert to %d", target), func() error {
		_, err := ix.cfg.em.RevertToBefore(ctx, target)
		return err
	})
}

// retry runs op until it succeeds or fails with something other than a
// StorageError.
func (ix *Indexer) retry(ctx context.Context, what string, op func() error) error {
	b := backoff.WithContext(ix.cfg.backoff(), ctx)
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !entitymanager.IsStorageError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		ix.cfg.metrics.Retries.Inc()
		log.Warn("Retrying after storage error", log.Args("op", what, "error", err, "wait", wait))
	})
}
