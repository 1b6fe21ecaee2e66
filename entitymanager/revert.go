// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"context"
	"fmt"

	"github.com/project-illium/emxd/store"
)

// RevertSummary describes one applied revert.
type RevertSummary struct {
	// Target is the first block that was undone.
	Target int64
	// Tip is the last indexed block before the revert.
	Tip int64

	Blocks       int
	RowsDeleted  int64
	RowsRestored int
}

// RevertToBefore undoes every indexed block at or above target so that
// the entity tables are exactly as they were after block target-1. The
// revert commits as a whole or not at all. Challenge progress is not
// touched.
func (em *EntityManager) RevertToBefore(ctx context.Context, target int64) (*RevertSummary, error) {
	if target <= 0 {
		return nil, AssertError(fmt.Sprintf("RevertToBefore: invalid target block %d", target))
	}

	em.mtx.Lock()
	defer em.mtx.Unlock()

	summary := &RevertSummary{Target: target}
	err := em.cfg.store.Atomic(ctx, func(tx *store.Tx) error {
		tip, err := tx.GetCheckpoint(em.cfg.jobName)
		if err != nil {
			return err
		}
		summary.Tip = tip
		if target > tip {
			return nil
		}

		snaps, err := tx.RevertBlocksFrom(target)
		if err != nil {
			return err
		}
		if int64(len(snaps)) != tip-target+1 {
			return AssertError(fmt.Sprintf("cannot revert to before %d: have %d snapshots for %d blocks",
				target, len(snaps), tip-target+1))
		}

		for i, snap := range snaps {
			if want := tip - int64(i); snap.BlockNumber != want {
				return AssertError(fmt.Sprintf("missing revert snapshot for block %d", want))
			}
			rows, err := decodeSnapshot(snap.PrevRecords)
			if err != nil {
				return AssertError(fmt.Sprintf("revert snapshot of block %d: %s", snap.BlockNumber, err))
			}
			for _, t := range store.Tables() {
				n, err := tx.DeleteFrom(t.Kind, snap.BlockNumber)
				if err != nil {
					return err
				}
				summary.RowsDeleted += n
			}
			for _, row := range rows {
				row.Version().IsCurrent = true
				if err := tx.Restore(row); err != nil {
					return err
				}
			}
			summary.RowsRestored += len(rows)
			if err := tx.DeleteRevertBlock(snap.BlockNumber); err != nil {
				return err
			}
			summary.Blocks++
		}

		if err := tx.DeletePendingMetadataFrom(target); err != nil {
			return err
		}
		if err := tx.DeleteBlocksFrom(target); err != nil {
			return err
		}
		return tx.SaveCheckpoint(em.cfg.jobName, target-1)
	})
	if err != nil {
		return nil, storageOrAssert(fmt.Sprintf("revert to before %d", target), err)
	}
	if summary.Blocks == 0 {
		return summary, nil
	}

	em.cfg.metrics.Reverts.Inc()
	em.cfg.metrics.RevertedBlocks.Add(float64(summary.Blocks))
	em.cfg.metrics.IndexedHeight.Set(float64(target - 1))

	log.Info("Reverted blocks", log.Args(
		"from", summary.Tip,
		"to", target-1,
		"rows_deleted", summary.RowsDeleted,
		"rows_restored", summary.RowsRestored,
	))
	em.sendNotification(NTBlockReverted, summary)
	return summary, nil
}
