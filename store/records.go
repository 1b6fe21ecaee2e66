// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"fmt"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityKeyColumn is the column holding every row's logical id.
const EntityKeyColumn = "entity_key"

// LoadCurrent returns the current rows of kind whose column matches any
// of values.
func (s *Store) LoadCurrent(ctx context.Context, kind types.EntityKind, column string, values []string) ([]models.Row, error) {
	return load(s.db.WithContext(ctx), kind, column, values, true)
}

// LoadHistory returns every row, current or not, of kind whose column
// matches any of values.
func (s *Store) LoadHistory(ctx context.Context, kind types.EntityKind, column string, values []string) ([]models.Row, error) {
	return load(s.db.WithContext(ctx), kind, column, values, false)
}

func load(db *gorm.DB, kind types.EntityKind, column string, values []string, currentOnly bool) ([]models.Row, error) {
	t, err := TableFor(kind)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	q := db.Model(t.New()).Where(clause.IN{Column: clause.Column{Name: column}, Values: args})
	if currentOnly {
		q = q.Where("is_current = ?", true)
	}
	rows, err := t.find(q)
	if err != nil {
		return nil, fmt.Errorf("load %s by %s: %w", kind, column, err)
	}
	return rows, nil
}

// CurrentRows returns every current row of kind.
func (s *Store) CurrentRows(ctx context.Context, kind types.EntityKind) ([]models.Row, error) {
	t, err := TableFor(kind)
	if err != nil {
		return nil, err
	}
	return t.find(s.db.WithContext(ctx).Model(t.New()).Where("is_current = ?", true))
}

// AllRows returns every row of kind, historical rows included.
func (s *Store) AllRows(ctx context.Context, kind types.EntityKind) ([]models.Row, error) {
	t, err := TableFor(kind)
	if err != nil {
		return nil, err
	}
	return t.find(s.db.WithContext(ctx).Model(t.New()))
}

// Invalidate clears the current flag on the current rows of the given
// logical ids.
func (tx *Tx) Invalidate(kind types.EntityKind, keys []string) error {
	t, err := TableFor(kind)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return tx.db.Model(t.New()).
		Where("entity_key IN ? AND is_current = ?", keys, true).
		Update("is_current", false).Error
}

// Insert appends new row versions.
func (tx *Tx) Insert(rows ...models.Row) error {
	for _, row := range rows {
		if err := tx.db.Create(row).Error; err != nil {
			return fmt.Errorf("insert %s %s: %w", row.Kind(), row.Key(), err)
		}
	}
	return nil
}

// DeleteFrom removes every row of kind written at or after blockNumber.
func (tx *Tx) DeleteFrom(kind types.EntityKind, blockNumber int64) (int64, error) {
	t, err := TableFor(kind)
	if err != nil {
		return 0, err
	}
	res := tx.db.Where("blocknumber >= ?", blockNumber).Delete(t.New())
	return res.RowsAffected, res.Error
}

// Restore writes row back verbatim, primary key included, replacing any
// row already stored under that key.
func (tx *Tx) Restore(row models.Row) error {
	err := tx.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("restore %s %s: %w", row.Kind(), row.Key(), err)
	}
	return nil
}
