// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package models

import (
	"errors"
	"time"

	"github.com/project-illium/emxd/types"
)

// Versioned holds the columns every versioned entity table shares. A logical
// entity is a sequence of immutable rows sharing one EntityKey. At most one
// of them has IsCurrent set.
type Versioned struct {
	RowID       uint64    `gorm:"column:row_id;primaryKey;autoIncrement" json:"row_id"`
	EntityKey   string    `gorm:"column:entity_key;index;not null" json:"entity_key"`
	BlockNumber int64     `gorm:"column:blocknumber;index;not null" json:"blocknumber"`
	BlockHash   string    `gorm:"column:blockhash" json:"blockhash"`
	TxHash      string    `gorm:"column:txhash" json:"txhash"`
	IsCurrent   bool      `gorm:"column:is_current;index;not null" json:"is_current"`
	IsDelete    bool      `gorm:"column:is_delete;not null" json:"is_delete"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

// Key returns the logical id of the entity.
func (v *Versioned) Key() string { return v.EntityKey }

// Version returns the shared versioning columns.
func (v *Versioned) Version() *Versioned { return v }

// Row is implemented by every versioned entity model.
type Row interface {
	Kind() types.EntityKind
	Key() string
	Version() *Versioned
	// Clone returns a copy of the row with a zero RowID, ready to be
	// stamped and inserted as the next version.
	Clone() Row
}

// Indexed is implemented by rows that can be looked up by a column other
// than their entity key, for example a user's lowercased handle.
type Indexed interface {
	IndexValue(column string) (string, bool)
}

// Completer is implemented by rows with kind specific required fields.
type Completer interface {
	Complete() error
}

// Stamp sets the chain position of a new row version.
func Stamp(row Row, blockNumber int64, blockHash, txHash string, blockTime time.Time) {
	v := row.Version()
	v.RowID = 0
	v.BlockNumber = blockNumber
	v.BlockHash = blockHash
	v.TxHash = txHash
	v.UpdatedAt = blockTime
	if v.CreatedAt.IsZero() {
		v.CreatedAt = blockTime
	}
}

// CheckComplete reports whether a row a handler produced is fit to be
// written.
func CheckComplete(row Row) error {
	v := row.Version()
	switch {
	case v.EntityKey == "":
		return errors.New("entity key is empty")
	case v.BlockNumber <= 0:
		return errors.New("block number is unset")
	case v.TxHash == "":
		return errors.New("tx hash is unset")
	case v.CreatedAt.IsZero() || v.UpdatedAt.IsZero():
		return errors.New("timestamps are unset")
	}
	if c, ok := row.(Completer); ok {
		return c.Complete()
	}
	return nil
}
