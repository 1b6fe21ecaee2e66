// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package store

import (
	"encoding/json"
	"fmt"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
	"gorm.io/gorm"
)

// Table gives kind-agnostic access to one versioned entity table.
type Table struct {
	Kind types.EntityKind

	newRow func() models.Row
	find   func(q *gorm.DB) ([]models.Row, error)
	decode func(raw []byte) (models.Row, error)
}

// New returns a zero value row of the table's model.
func (t *Table) New() models.Row {
	return t.newRow()
}

// Decode parses a row previously encoded with encoding/json.
func (t *Table) Decode(raw []byte) (models.Row, error) {
	return t.decode(raw)
}

func newTable[T any, PT interface {
	*T
	models.Row
}]() *Table {
	var zero PT = new(T)
	return &Table{
		Kind:   zero.Kind(),
		newRow: func() models.Row { return PT(new(T)) },
		find: func(q *gorm.DB) ([]models.Row, error) {
			var out []T
			if err := q.Order("row_id").Find(&out).Error; err != nil {
				return nil, err
			}
			rows := make([]models.Row, len(out))
			for i := range out {
				rows[i] = PT(&out[i])
			}
			return rows, nil
		},
		decode: func(raw []byte) (models.Row, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return PT(&v), nil
		},
	}
}

var (
	tableList = []*Table{
		newTable[models.User](),
		newTable[models.Track](),
		newTable[models.Playlist](),
		newTable[models.TrackRoute](),
		newTable[models.PlaylistRoute](),
		newTable[models.Grant](),
		newTable[models.DeveloperApp](),
		newTable[models.Follow](),
		newTable[models.Save](),
		newTable[models.Repost](),
		newTable[models.Subscription](),
		newTable[models.Comment](),
		newTable[models.NotificationSeen](),
		newTable[models.CommentReaction](),
		newTable[models.MutedUser](),
		newTable[models.CommentNotificationSetting](),
	}
	tablesByKind = make(map[types.EntityKind]*Table)
)

func init() {
	for _, t := range tableList {
		tablesByKind[t.Kind] = t
	}
}

// Tables returns every versioned table in a fixed order.
func Tables() []*Table {
	return tableList
}

// TableFor returns the table storing the given kind.
func TableFor(kind types.EntityKind) (*Table, error) {
	t, ok := tablesByKind[kind]
	if !ok {
		return nil, fmt.Errorf("no table for entity kind %s", kind)
	}
	return t, nil
}
