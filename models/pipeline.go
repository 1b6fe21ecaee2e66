// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package models

// Block is an indexed chain block. Its hash is compared against the
// canonical chain to detect reorgs.
type Block struct {
	Number     int64  `gorm:"column:blocknumber;primaryKey;autoIncrement:false"`
	Hash       string `gorm:"column:blockhash;uniqueIndex;not null"`
	ParentHash string `gorm:"column:parenthash;not null"`
	IsCurrent  bool   `gorm:"column:is_current;not null"`
	Timestamp  int64  `gorm:"column:timestamp;not null"`
}

func (Block) TableName() string { return "blocks" }

// RevertBlock holds the rows that were current before a block mutated
// them, keyed by entity kind.
type RevertBlock struct {
	BlockNumber int64  `gorm:"column:blocknumber;primaryKey;autoIncrement:false"`
	PrevRecords string `gorm:"column:prev_records;type:text;not null"`
}

func (RevertBlock) TableName() string { return "revert_blocks" }

// Audit outcomes.
const (
	OutcomeOK                 = "ok"
	OutcomeDecodeError        = "decode_error"
	OutcomeValidationError    = "validation_error"
	OutcomeAuthorizationError = "authorization_error"
)

// AuditLog is the write-once record of one processed instruction.
type AuditLog struct {
	ID          uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	TxHash      string  `gorm:"column:txhash;index;not null"`
	LogIndex    uint    `gorm:"column:log_index;not null"`
	EntityType  string  `gorm:"column:entity_type;not null"`
	EntityID    int64   `gorm:"column:entity_id"`
	UserID      int64   `gorm:"column:user_id"`
	Action      string  `gorm:"column:action"`
	Signer      string  `gorm:"column:signer"`
	BlockNumber int64   `gorm:"column:blocknumber;index;not null"`
	BlockHash   string  `gorm:"column:blockhash;not null"`
	PrevRecord  *string `gorm:"column:prev_record;type:text"`
	Outcome     string  `gorm:"column:outcome;not null"`
	Reason      string  `gorm:"column:reason"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// IndexingCheckpoint is the last position processed by a named job.
type IndexingCheckpoint struct {
	JobName        string `gorm:"column:tablename;primaryKey"`
	LastCheckpoint int64  `gorm:"column:last_checkpoint;not null"`
}

func (IndexingCheckpoint) TableName() string { return "indexing_checkpoints" }

// PendingMetadata marks a row that was written before its metadata could
// be fetched.
type PendingMetadata struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	CID         string `gorm:"column:cid;index;not null"`
	EntityType  string `gorm:"column:entity_type;not null"`
	EntityKey   string `gorm:"column:entity_key;not null"`
	BlockNumber int64  `gorm:"column:blocknumber;index;not null"`
}

func (PendingMetadata) TableName() string { return "pending_metadata" }
