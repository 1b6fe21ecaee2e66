// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package models

import "time"

// Challenge types.
const (
	ChallengeBoolean   = "boolean"
	ChallengeNumeric   = "numeric"
	ChallengeAggregate = "aggregate"
)

// Challenge is a reward challenge definition.
type Challenge struct {
	ID            string `gorm:"column:id;primaryKey" yaml:"id"`
	Type          string `gorm:"column:type;not null" yaml:"type"`
	Amount        int64  `gorm:"column:amount;not null" yaml:"amount"`
	StepCount     int    `gorm:"column:step_count" yaml:"step_count"`
	Active        bool   `gorm:"column:active;not null" yaml:"active"`
	StartingBlock int64  `gorm:"column:starting_block" yaml:"starting_block"`

	// Events lists the event types that progress the challenge.
	Events []string `gorm:"-" yaml:"events"`
}

func (Challenge) TableName() string { return "challenges" }

// UserChallenge is one user's progress toward a challenge, identified by
// a deterministic specifier.
type UserChallenge struct {
	ChallengeID          string     `gorm:"column:challenge_id;primaryKey"`
	Specifier            string     `gorm:"column:specifier;primaryKey"`
	UserID               int64      `gorm:"column:user_id;index;not null"`
	IsComplete           bool       `gorm:"column:is_complete;not null"`
	CurrentStepCount     *int       `gorm:"column:current_step_count"`
	CompletedBlockNumber *int64     `gorm:"column:completed_blocknumber"`
	CompletedAt          *time.Time `gorm:"column:completed_at"`
	Amount               int64      `gorm:"column:amount;not null"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime:false"`
}

func (UserChallenge) TableName() string { return "user_challenges" }

// ChallengeEvent records that an event contributed to a user challenge.
// Numeric progress is the count of distinct event keys, so replaying an
// event cannot count it twice.
type ChallengeEvent struct {
	ChallengeID string `gorm:"column:challenge_id;primaryKey"`
	EventKey    string `gorm:"column:event_key;primaryKey"`
	Specifier   string `gorm:"column:specifier;index;not null"`
	UserID      int64  `gorm:"column:user_id;not null"`
	BlockNumber int64  `gorm:"column:blocknumber;not null"`
}

func (ChallengeEvent) TableName() string { return "challenge_events" }
