// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package challenges

import (
	"errors"
	"time"
)

// EventType names something that happened which may progress a challenge.
type EventType string

const (
	EventTrackUpload    EventType = "track_upload"
	EventFirstPlaylist  EventType = "first_playlist"
	EventReferralSignup EventType = "referral_signup"
	EventReferredSignup EventType = "referred_signup"
	EventFollow         EventType = "follow"
	EventFavorite       EventType = "favorite"
	EventRepost         EventType = "repost"
)

// Event is one occurrence of an EventType.
type Event struct {
	Type        EventType
	BlockNumber int64
	BlockTime   time.Time
	UserID      int64

	// Key identifies what caused the event, for example "track:2000001".
	// Replaying the same instruction produces the same key.
	Key   string
	Extra map[string]string
}

// ErrQueueFull is returned by Dispatch when the queue is at capacity.
var ErrQueueFull = errors.New("challenge event queue is full")

// Queue buffers the events of one block. It belongs to the scope that
// created it and is never shared between blocks.
type Queue struct {
	events []Event
	max    int
}

// NewQueue returns an empty queue holding at most max events.
func NewQueue(max int) *Queue {
	return &Queue{max: max}
}

// Dispatch appends ev. Events without a block number or user are dropped.
func (q *Queue) Dispatch(ev Event) error {
	if ev.BlockNumber <= 0 || ev.UserID <= 0 {
		log.Warn("Dropping invalid challenge event", log.Args("type", ev.Type, "block", ev.BlockNumber, "user", ev.UserID))
		return nil
	}
	if len(q.events) >= q.max {
		return ErrQueueFull
	}
	q.events = append(q.events, ev)
	return nil
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Events returns the queued events in dispatch order.
func (q *Queue) Events() []Event {
	return q.events
}
