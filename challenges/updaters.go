// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package challenges

import (
	"fmt"

	"github.com/project-illium/emxd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Updater holds the challenge specific part of progress tracking.
type Updater interface {
	// Specifier returns the deterministic id of the progress row ev
	// contributes to.
	Specifier(ev Event) string

	// ShouldCreateNewChallenge reports whether ev may open a progress row
	// that does not exist yet.
	ShouldCreateNewChallenge(db *gorm.DB, ev Event) (bool, error)

	// UpdateUserChallenges advances progress rows given the events that
	// touched each of them, keyed by specifier.
	UpdateUserChallenges(db *gorm.DB, ch *models.Challenge, rows []*models.UserChallenge, events map[string][]Event) error
}

func userSpecifier(userID int64) string {
	return fmt.Sprintf("%x", userID)
}

// BooleanUpdater completes a challenge the first time one of its events
// happens.
type BooleanUpdater struct{}

func (BooleanUpdater) Specifier(ev Event) string {
	return userSpecifier(ev.UserID)
}

func (BooleanUpdater) ShouldCreateNewChallenge(*gorm.DB, Event) (bool, error) {
	return true, nil
}

func (BooleanUpdater) UpdateUserChallenges(_ *gorm.DB, _ *models.Challenge, rows []*models.UserChallenge, _ map[string][]Event) error {
	for _, row := range rows {
		row.IsComplete = true
	}
	return nil
}

// CountUpdater completes a challenge once StepCount distinct events have
// been seen. Each event is recorded by key so that replays are no-ops.
type CountUpdater struct{}

func (CountUpdater) Specifier(ev Event) string {
	return userSpecifier(ev.UserID)
}

func (CountUpdater) ShouldCreateNewChallenge(*gorm.DB, Event) (bool, error) {
	return true, nil
}

func (CountUpdater) UpdateUserChallenges(db *gorm.DB, ch *models.Challenge, rows []*models.UserChallenge, events map[string][]Event) error {
	for _, row := range rows {
		for _, ev := range events[row.Specifier] {
			if ev.Key == "" {
				return fmt.Errorf("%s event for user %d has no key", ev.Type, ev.UserID)
			}
			rec := models.ChallengeEvent{
				ChallengeID: ch.ID,
				EventKey:    ev.Key,
				Specifier:   row.Specifier,
				UserID:      ev.UserID,
				BlockNumber: ev.BlockNumber,
			}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
				return err
			}
		}
		var count int64
		err := db.Model(&models.ChallengeEvent{}).
			Where("challenge_id = ? AND specifier = ?", ch.ID, row.Specifier).
			Count(&count).Error
		if err != nil {
			return err
		}
		steps := int(count)
		if steps > ch.StepCount {
			steps = ch.StepCount
		}
		row.CurrentStepCount = &steps
		row.IsComplete = steps >= ch.StepCount
	}
	return nil
}

// AggregateUpdater gives every occurrence of an event its own completed
// row, up to StepCount rows per user.
type AggregateUpdater struct{}

func (AggregateUpdater) Specifier(ev Event) string {
	return userSpecifier(ev.UserID) + ":" + ev.Key
}

func (AggregateUpdater) ShouldCreateNewChallenge(*gorm.DB, Event) (bool, error) {
	return true, nil
}

func (AggregateUpdater) UpdateUserChallenges(_ *gorm.DB, _ *models.Challenge, rows []*models.UserChallenge, _ map[string][]Event) error {
	for _, row := range rows {
		row.IsComplete = true
	}
	return nil
}

// UpdaterFor returns the stock updater for a challenge type.
func UpdaterFor(challengeType string) (Updater, error) {
	switch challengeType {
	case models.ChallengeBoolean:
		return BooleanUpdater{}, nil
	case models.ChallengeNumeric:
		return CountUpdater{}, nil
	case models.ChallengeAggregate:
		return AggregateUpdater{}, nil
	}
	return nil, fmt.Errorf("unknown challenge type %q", challengeType)
}
