// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package challenges

import (
	"errors"

	"github.com/project-illium/emxd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager tracks progress for one challenge.
type Manager struct {
	challengeID string
	updater     Updater
}

// NewManager returns a manager for the challenge with the given id.
func NewManager(challengeID string, updater Updater) *Manager {
	return &Manager{challengeID: challengeID, updater: updater}
}

// ChallengeID returns the id of the managed challenge.
func (m *Manager) ChallengeID() string {
	return m.challengeID
}

// Process applies events to the challenge's progress rows and returns
// the number of rows written.
func (m *Manager) Process(db *gorm.DB, events []Event) (int, error) {
	var ch models.Challenge
	err := db.Where("id = ?", m.challengeID).Take(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug("Challenge is not defined", log.Args("challenge", m.challengeID))
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	if !ch.Active {
		return 0, nil
	}

	var (
		bySpecifier = make(map[string][]Event)
		specifiers  []string
		firstEvent  = make(map[string]Event)
	)
	for _, ev := range events {
		if ev.BlockNumber < ch.StartingBlock {
			continue
		}
		spec := m.updater.Specifier(ev)
		if _, ok := bySpecifier[spec]; !ok {
			specifiers = append(specifiers, spec)
			firstEvent[spec] = ev
		}
		bySpecifier[spec] = append(bySpecifier[spec], ev)
	}
	if len(specifiers) == 0 {
		return 0, nil
	}

	var stored []models.UserChallenge
	if err := db.Where("challenge_id = ? AND specifier IN ?", ch.ID, specifiers).Find(&stored).Error; err != nil {
		return 0, err
	}
	existing := make(map[string]*models.UserChallenge, len(stored))
	for i := range stored {
		existing[stored[i].Specifier] = &stored[i]
	}

	// Aggregate challenges cap the number of rows per user.
	perUser := make(map[int64]int64)
	if ch.Type == models.ChallengeAggregate {
		for _, spec := range specifiers {
			uid := firstEvent[spec].UserID
			if _, ok := perUser[uid]; ok {
				continue
			}
			var n int64
			if err := db.Model(&models.UserChallenge{}).
				Where("challenge_id = ? AND user_id = ?", ch.ID, uid).
				Count(&n).Error; err != nil {
				return 0, err
			}
			perUser[uid] = n
		}
	}

	var toUpdate []*models.UserChallenge
	for _, spec := range specifiers {
		if row, ok := existing[spec]; ok {
			if !row.IsComplete {
				toUpdate = append(toUpdate, row)
			}
			continue
		}
		ev := firstEvent[spec]
		if ch.Type == models.ChallengeAggregate {
			if perUser[ev.UserID] >= int64(ch.StepCount) {
				continue
			}
			perUser[ev.UserID]++
		}
		ok, err := m.updater.ShouldCreateNewChallenge(db, ev)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		row := &models.UserChallenge{
			ChallengeID: ch.ID,
			Specifier:   spec,
			UserID:      ev.UserID,
			Amount:      ch.Amount,
			CreatedAt:   ev.BlockTime,
		}
		if ch.Type == models.ChallengeNumeric {
			zero := 0
			row.CurrentStepCount = &zero
		}
		toUpdate = append(toUpdate, row)
	}
	if len(toUpdate) == 0 {
		return 0, nil
	}

	if err := m.updater.UpdateUserChallenges(db, &ch, toUpdate, bySpecifier); err != nil {
		return 0, err
	}

	for _, row := range toUpdate {
		if row.IsComplete && row.CompletedBlockNumber == nil {
			evs := bySpecifier[row.Specifier]
			last := evs[len(evs)-1]
			n, at := last.BlockNumber, last.BlockTime
			row.CompletedBlockNumber = &n
			row.CompletedAt = &at
		}
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&toUpdate).Error; err != nil {
		return 0, err
	}
	return len(toUpdate), nil
}
