// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"

	"github.com/project-illium/emxd/models"
)

// Block returns the indexed block at height n.
func (s *Store) Block(ctx context.Context, n int64) (*models.Block, error) {
	var blk models.Block
	if err := s.db.WithContext(ctx).Where("blocknumber = ?", n).Take(&blk).Error; err != nil {
		return nil, notFound(err)
	}
	return &blk, nil
}

// LatestBlock returns the current tip of the indexed chain.
func (s *Store) LatestBlock(ctx context.Context) (*models.Block, error) {
	var blk models.Block
	if err := s.db.WithContext(ctx).Order("blocknumber desc").Take(&blk).Error; err != nil {
		return nil, notFound(err)
	}
	return &blk, nil
}

// PutBlock records blk as the new tip.
func (tx *Tx) PutBlock(blk *models.Block) error {
	if err := tx.db.Model(&models.Block{}).
		Where("is_current = ?", true).
		Update("is_current", false).Error; err != nil {
		return err
	}
	blk.IsCurrent = true
	return tx.db.Create(blk).Error
}

// DeleteBlocksFrom removes every block at or above n and makes n-1 the tip.
func (tx *Tx) DeleteBlocksFrom(n int64) error {
	if err := tx.db.Where("blocknumber >= ?", n).Delete(&models.Block{}).Error; err != nil {
		return err
	}
	return tx.db.Model(&models.Block{}).
		Where("blocknumber = ?", n-1).
		Update("is_current", true).Error
}

// PutRevertBlock stores the revert snapshot of a block.
func (tx *Tx) PutRevertBlock(rb *models.RevertBlock) error {
	return tx.db.Create(rb).Error
}

// RevertBlocksFrom returns the snapshots at or above n, highest first.
func (tx *Tx) RevertBlocksFrom(n int64) ([]models.RevertBlock, error) {
	var out []models.RevertBlock
	err := tx.db.Where("blocknumber >= ?", n).Order("blocknumber desc").Find(&out).Error
	return out, err
}

// DeleteRevertBlock removes one applied snapshot.
func (tx *Tx) DeleteRevertBlock(n int64) error {
	return tx.db.Where("blocknumber = ?", n).Delete(&models.RevertBlock{}).Error
}

// PruneRevertBlocks drops snapshots below n. Blocks below n can no longer
// be reverted.
func (tx *Tx) PruneRevertBlocks(n int64) error {
	return tx.db.Where("blocknumber < ?", n).Delete(&models.RevertBlock{}).Error
}

// AppendAudit writes audit log entries.
func (tx *Tx) AppendAudit(entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.db.Create(&entries).Error
}

// AuditLogs returns the audit entries of one block height in write order.
// The log is append only, so a height that was reverted and indexed again
// holds the entries of every version of the block.
func (s *Store) AuditLogs(ctx context.Context, blockNumber int64) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := s.db.WithContext(ctx).Where("blocknumber = ?", blockNumber).Order("id").Find(&out).Error
	return out, err
}

// AddPendingMetadata records rows awaiting a metadata backfill.
func (tx *Tx) AddPendingMetadata(rows []models.PendingMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.db.Create(&rows).Error
}

// DeletePendingMetadataFrom drops pending entries of reverted blocks.
func (tx *Tx) DeletePendingMetadataFrom(n int64) error {
	return tx.db.Where("blocknumber >= ?", n).Delete(&models.PendingMetadata{}).Error
}

// PendingMetadata returns up to limit entries awaiting backfill, oldest
// first.
func (s *Store) PendingMetadata(ctx context.Context, limit int) ([]models.PendingMetadata, error) {
	var out []models.PendingMetadata
	err := s.db.WithContext(ctx).Order("id").Limit(limit).Find(&out).Error
	return out, err
}
