// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package challenges

import (
	"gorm.io/gorm"
)

// DefaultQueueSize is the number of events one block may dispatch.
const DefaultQueueSize = 100_000

// Bus routes the events of a block to the challenge managers that listen
// for them.
type Bus struct {
	managers  map[EventType][]*Manager
	queueSize int
}

// NewBus returns a bus with no registered managers whose queues hold at
// most queueSize events.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		managers:  make(map[EventType][]*Manager),
		queueSize: queueSize,
	}
}

// Register subscribes a manager to an event type.
func (b *Bus) Register(typ EventType, m *Manager) {
	b.managers[typ] = append(b.managers[typ], m)
}

// Scope runs fn with a fresh queue. The queue is returned only if fn
// succeeds; otherwise the events it dispatched are discarded.
func (b *Bus) Scope(fn func(q *Queue) error) (*Queue, error) {
	q := NewQueue(b.queueSize)
	if err := fn(q); err != nil {
		return nil, err
	}
	return q, nil
}

// ProcessEvents applies the queued events using db, which should be the
// transaction committing the block that produced them. Each manager runs
// in its own savepoint. A failing manager is rolled back and logged
// without affecting the others. It returns the number of progress rows
// written.
func (b *Bus) ProcessEvents(db *gorm.DB, q *Queue) (int, error) {
	if q == nil || q.Len() == 0 {
		return 0, nil
	}

	var (
		byType = make(map[EventType][]Event)
		order  []EventType
	)
	for _, ev := range q.Events() {
		if _, ok := byType[ev.Type]; !ok {
			order = append(order, ev.Type)
		}
		byType[ev.Type] = append(byType[ev.Type], ev)
	}

	written := 0
	for _, typ := range order {
		managers := b.managers[typ]
		if len(managers) == 0 {
			log.Debug("No challenge listens for event", log.Args("type", typ))
			continue
		}
		for _, m := range managers {
			var n int
			err := db.Transaction(func(tx *gorm.DB) error {
				var err error
				n, err = m.Process(tx, byType[typ])
				return err
			})
			if err != nil {
				log.WithCaller(true).Error("Challenge update failed",
					log.Args("challenge", m.ChallengeID(), "type", typ, "error", err))
				continue
			}
			written += n
		}
	}
	return written, nil
}
