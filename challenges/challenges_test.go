// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package challenges_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	s := storetest.New(t)
	db := s.DB(context.Background())
	defs, err := challenges.DefaultDefinitions()
	require.NoError(t, err)
	require.NoError(t, challenges.Seed(db, defs))
	return db
}

func defaultBus(t *testing.T) *challenges.Bus {
	defs, err := challenges.DefaultDefinitions()
	require.NoError(t, err)
	bus, err := challenges.NewBusFromDefinitions(defs, 0)
	require.NoError(t, err)
	return bus
}

func event(typ challenges.EventType, block, user int64, key string) challenges.Event {
	return challenges.Event{
		Type:        typ,
		BlockNumber: block,
		BlockTime:   time.Unix(1700000000+block, 0).UTC(),
		UserID:      user,
		Key:         key,
	}
}

func userChallenge(t *testing.T, db *gorm.DB, id string, user int64) *models.UserChallenge {
	var rows []models.UserChallenge
	require.NoError(t, db.Where("challenge_id = ? AND user_id = ?", id, user).Find(&rows).Error)
	if len(rows) == 0 {
		return nil
	}
	require.Len(t, rows, 1)
	return &rows[0]
}

func TestQueue(t *testing.T) {
	q := challenges.NewQueue(2)
	require.NoError(t, q.Dispatch(event(challenges.EventFollow, 1, 1, "a")))
	require.NoError(t, q.Dispatch(event(challenges.EventFollow, 0, 1, "dropped")))
	require.NoError(t, q.Dispatch(event(challenges.EventFollow, 1, 0, "dropped")))
	require.NoError(t, q.Dispatch(event(challenges.EventFollow, 1, 1, "b")))
	assert.Equal(t, 2, q.Len())
	assert.ErrorIs(t, q.Dispatch(event(challenges.EventFollow, 1, 1, "c")), challenges.ErrQueueFull)
}

func TestScopeDiscardsEventsOnError(t *testing.T) {
	bus := defaultBus(t)
	boom := errors.New("boom")
	q, err := bus.Scope(func(q *challenges.Queue) error {
		require.NoError(t, q.Dispatch(event(challenges.EventTrackUpload, 1, 1, "track:1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, q)

	q, err = bus.Scope(func(q *challenges.Queue) error {
		return q.Dispatch(event(challenges.EventTrackUpload, 1, 1, "track:1"))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

func TestNumericChallengeCountsDistinctEvents(t *testing.T) {
	db := newDB(t)
	bus := defaultBus(t)

	run := func(evs ...challenges.Event) {
		q, err := bus.Scope(func(q *challenges.Queue) error {
			for _, ev := range evs {
				if err := q.Dispatch(ev); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
		_, err = bus.ProcessEvents(db, q)
		require.NoError(t, err)
	}

	run(event(challenges.EventTrackUpload, 10, 7, "track:1"), event(challenges.EventTrackUpload, 10, 7, "track:2"))
	uc := userChallenge(t, db, "track-upload", 7)
	require.NotNil(t, uc)
	assert.Equal(t, 2, *uc.CurrentStepCount)
	assert.False(t, uc.IsComplete)

	// Replaying block 10 must not count the same uploads again.
	run(event(challenges.EventTrackUpload, 10, 7, "track:1"), event(challenges.EventTrackUpload, 10, 7, "track:2"))
	uc = userChallenge(t, db, "track-upload", 7)
	assert.Equal(t, 2, *uc.CurrentStepCount)

	run(event(challenges.EventTrackUpload, 12, 7, "track:3"))
	uc = userChallenge(t, db, "track-upload", 7)
	assert.Equal(t, 3, *uc.CurrentStepCount)
	assert.True(t, uc.IsComplete)
	require.NotNil(t, uc.CompletedBlockNumber)
	assert.Equal(t, int64(12), *uc.CompletedBlockNumber)
	assert.Equal(t, time.Unix(1700000012, 0).UTC(), uc.CompletedAt.UTC())
}

func TestBooleanChallenge(t *testing.T) {
	db := newDB(t)
	bus := defaultBus(t)
	q := challenges.NewQueue(10)
	require.NoError(t, q.Dispatch(event(challenges.EventFirstPlaylist, 5, 3, "playlist:1")))
	require.NoError(t, q.Dispatch(event(challenges.EventFirstPlaylist, 5, 3, "playlist:2")))
	n, err := bus.ProcessEvents(db, q)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	uc := userChallenge(t, db, "first-playlist", 3)
	require.NotNil(t, uc)
	assert.True(t, uc.IsComplete)
	assert.Equal(t, int64(2), uc.Amount)
	assert.Equal(t, fmt.Sprintf("%x", 3), uc.Specifier)
}

func TestAggregateChallengeIsCapped(t *testing.T) {
	db := newDB(t)
	bus := defaultBus(t)
	q := challenges.NewQueue(100)
	for i := 0; i < 7; i++ {
		require.NoError(t, q.Dispatch(event(challenges.EventReferralSignup, 5, 3, fmt.Sprintf("user:%d", 100+i))))
	}
	_, err := bus.ProcessEvents(db, q)
	require.NoError(t, err)

	var rows []models.UserChallenge
	require.NoError(t, db.Where("challenge_id = ?", "referrals").Find(&rows).Error)
	assert.Len(t, rows, 5)
	for _, r := range rows {
		assert.True(t, r.IsComplete)
	}
}

func TestInactiveAndEarlyEventsAreIgnored(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Model(&models.Challenge{}).Where("id = ?", "first-playlist").Update("active", false).Error)
	require.NoError(t, db.Model(&models.Challenge{}).Where("id = ?", "referred").Update("starting_block", 100).Error)

	bus := defaultBus(t)
	q := challenges.NewQueue(10)
	require.NoError(t, q.Dispatch(event(challenges.EventFirstPlaylist, 5, 3, "playlist:1")))
	require.NoError(t, q.Dispatch(event(challenges.EventReferredSignup, 99, 3, "user:3")))
	n, err := bus.ProcessEvents(db, q)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

type failingUpdater struct {
	challenges.BooleanUpdater
}

func (failingUpdater) UpdateUserChallenges(*gorm.DB, *models.Challenge, []*models.UserChallenge, map[string][]challenges.Event) error {
	return errors.New("updater failed")
}

func TestFailingManagerIsIsolated(t *testing.T) {
	db := newDB(t)
	require.NoError(t, challenges.Seed(db, []models.Challenge{{
		ID: "broken", Type: models.ChallengeBoolean, Amount: 1, Active: true, Events: []string{"follow"},
	}}))

	bus := challenges.NewBus(10)
	bus.Register(challenges.EventFollow, challenges.NewManager("broken", failingUpdater{}))
	bus.Register(challenges.EventFollow, challenges.NewManager("social-starter", challenges.CountUpdater{}))

	q := challenges.NewQueue(10)
	require.NoError(t, q.Dispatch(event(challenges.EventFollow, 5, 3, "follow:3:4")))

	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := bus.ProcessEvents(tx, q)
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)

	assert.Nil(t, userChallenge(t, db, "broken", 3))
	uc := userChallenge(t, db, "social-starter", 3)
	require.NotNil(t, uc)
	assert.Equal(t, 1, *uc.CurrentStepCount)
}

func TestParseDefinitions(t *testing.T) {
	defs, err := challenges.DefaultDefinitions()
	require.NoError(t, err)
	assert.Len(t, defs, 5)

	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", "- type: boolean\n  events: [follow]\n"},
		{"bad type", "- id: x\n  type: weird\n  events: [follow]\n"},
		{"no steps", "- id: x\n  type: numeric\n  events: [follow]\n"},
		{"no events", "- id: x\n  type: boolean\n"},
		{"unknown field", "- id: x\n  type: boolean\n  events: [follow]\n  color: red\n"},
		{"duplicate", "- id: x\n  type: boolean\n  events: [a]\n- id: x\n  type: boolean\n  events: [a]\n"},
	}
	for _, test := range tests {
		_, err := challenges.ParseDefinitions(strings.NewReader(test.doc))
		assert.Error(t, err, test.name)
	}
}
