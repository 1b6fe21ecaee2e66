// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"

	"github.com/project-illium/emxd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCheckpoint returns the last position processed by job, or zero if the
// job has never checkpointed.
func (s *Store) GetCheckpoint(ctx context.Context, job string) (int64, error) {
	return getCheckpoint(s.db.WithContext(ctx), job)
}

// GetCheckpoint reads the checkpoint as seen by the open transaction.
func (tx *Tx) GetCheckpoint(job string) (int64, error) {
	return getCheckpoint(tx.db, job)
}

// SaveCheckpoint sets the last position processed by job. It is only
// reachable through a Tx so it commits with the data it marks complete.
func (tx *Tx) SaveCheckpoint(job string, position int64) error {
	cp := models.IndexingCheckpoint{JobName: job, LastCheckpoint: position}
	return tx.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tablename"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_checkpoint"}),
	}).Create(&cp).Error
}

func getCheckpoint(db *gorm.DB, job string) (int64, error) {
	var cp models.IndexingCheckpoint
	err := db.Where("tablename = ?", job).Take(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return cp.LastCheckpoint, nil
}
