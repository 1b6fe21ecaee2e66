// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"context"
	"sort"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store"
	"github.com/project-illium/emxd/types"
)

type indexKey struct {
	kind    types.EntityKind
	column  string
	value   string
	history bool
}

type groupKey struct {
	kind    types.EntityKind
	column  string
	history bool
}

// WorkingSet holds the rows one block reads and writes. Rows written
// earlier in the block shadow the stored rows they supersede so that a
// later instruction observes them exactly as if they had been committed.
type WorkingSet struct {
	// existing holds the current stored row of every preloaded key. A
	// preloaded key with no stored row maps to nil.
	existing map[types.EntityKind]map[string]models.Row

	// indexed holds the stored rows matching each secondary lookup.
	indexed map[indexKey][]models.Row

	// added holds the rows produced by this block in order per key.
	added    map[types.EntityKind]map[string][]models.Row
	keyOrder map[types.EntityKind][]string
}

func newWorkingSet() *WorkingSet {
	return &WorkingSet{
		existing: make(map[types.EntityKind]map[string]models.Row),
		indexed:  make(map[indexKey][]models.Row),
		added:    make(map[types.EntityKind]map[string][]models.Row),
		keyOrder: make(map[types.EntityKind][]string),
	}
}

// preload reads every referenced row with one query per kind, column and
// history flag. Refs that were already loaded are skipped.
func (ws *WorkingSet) preload(ctx context.Context, s *store.Store, refs []Ref) error {
	groups := make(map[groupKey][]string)
	var order []groupKey
	for _, ref := range refs {
		if ref.Value == "" {
			continue
		}
		if ws.hasLoaded(ref) {
			continue
		}
		g := groupKey{kind: ref.Kind, column: ref.Column, history: ref.History}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], ref.Value)
	}

	for _, g := range order {
		values := dedupe(groups[g])
		var (
			rows []models.Row
			err  error
		)
		if g.history {
			rows, err = s.LoadHistory(ctx, g.kind, g.column, values)
		} else {
			rows, err = s.LoadCurrent(ctx, g.kind, g.column, values)
		}
		if err != nil {
			return StorageError{Op: "preload", Err: err}
		}

		if g.column == store.EntityKeyColumn && !g.history {
			for _, v := range values {
				ws.setExisting(g.kind, v, nil)
			}
			for _, row := range rows {
				ws.setExisting(g.kind, row.Key(), row)
			}
			continue
		}

		for _, v := range values {
			ik := indexKey{kind: g.kind, column: g.column, value: v, history: g.history}
			if _, ok := ws.indexed[ik]; !ok {
				ws.indexed[ik] = []models.Row{}
			}
		}
		for _, row := range rows {
			v, ok := indexValue(row, g.column)
			if !ok {
				continue
			}
			ik := indexKey{kind: g.kind, column: g.column, value: v, history: g.history}
			ws.indexed[ik] = append(ws.indexed[ik], row)
			if row.Version().IsCurrent {
				ws.setExisting(g.kind, row.Key(), row)
			}
		}
	}
	return nil
}

func (ws *WorkingSet) hasLoaded(ref Ref) bool {
	if ref.Column == store.EntityKeyColumn && !ref.History {
		_, ok := ws.existing[ref.Kind][ref.Value]
		return ok
	}
	_, ok := ws.indexed[indexKey{kind: ref.Kind, column: ref.Column, value: ref.Value, history: ref.History}]
	return ok
}

func (ws *WorkingSet) setExisting(kind types.EntityKind, key string, row models.Row) {
	m, ok := ws.existing[kind]
	if !ok {
		m = make(map[string]models.Row)
		ws.existing[kind] = m
	}
	if prev, ok := m[key]; ok && prev != nil && row == nil {
		return
	}
	m[key] = row
}

func (ws *WorkingSet) loaded(kind types.EntityKind, key string) bool {
	if _, ok := ws.existing[kind][key]; ok {
		return true
	}
	_, ok := ws.added[kind][key]
	return ok
}

// Get returns the latest version of an entity as seen by the next
// instruction, or nil if it does not exist.
func (ws *WorkingSet) Get(kind types.EntityKind, key string) models.Row {
	if rows := ws.added[kind][key]; len(rows) > 0 {
		return rows[len(rows)-1]
	}
	return ws.existing[kind][key]
}

// Lookup resolves a secondary lookup against the working set. Without
// History only the latest version of each matching entity is returned.
func (ws *WorkingSet) Lookup(ref Ref) []models.Row {
	if ref.Column == store.EntityKeyColumn && !ref.History {
		if row := ws.Get(ref.Kind, ref.Value); row != nil {
			return []models.Row{row}
		}
		return nil
	}

	stored := ws.indexed[indexKey{kind: ref.Kind, column: ref.Column, value: ref.Value, history: ref.History}]
	if ref.History {
		out := append([]models.Row{}, stored...)
		for _, key := range ws.keyOrder[ref.Kind] {
			for _, row := range ws.added[ref.Kind][key] {
				if v, ok := indexValue(row, ref.Column); ok && v == ref.Value {
					out = append(out, row)
				}
			}
		}
		return out
	}

	var (
		out  []models.Row
		seen = make(map[string]bool)
	)
	check := func(key string) {
		if seen[key] {
			return
		}
		seen[key] = true
		row := ws.Get(ref.Kind, key)
		if row == nil {
			return
		}
		if v, ok := indexValue(row, ref.Column); ok && v == ref.Value {
			out = append(out, row)
		}
	}
	for _, row := range stored {
		check(row.Key())
	}
	for _, key := range ws.keyOrder[ref.Kind] {
		check(key)
	}
	return out
}

func (ws *WorkingSet) add(row models.Row) {
	kind, key := row.Kind(), row.Key()
	m, ok := ws.added[kind]
	if !ok {
		m = make(map[string][]models.Row)
		ws.added[kind] = m
	}
	if _, ok := m[key]; !ok {
		ws.keyOrder[kind] = append(ws.keyOrder[kind], key)
	}
	m[key] = append(m[key], row)
}

// prior returns the stored current rows of every key this block
// mutated, by kind.
func (ws *WorkingSet) prior() map[types.EntityKind][]models.Row {
	out := make(map[types.EntityKind][]models.Row)
	for kind, keys := range ws.keyOrder {
		for _, key := range keys {
			if row := ws.existing[kind][key]; row != nil {
				out[kind] = append(out[kind], row)
			}
		}
	}
	return out
}

// mutatedKinds returns the kinds with new rows in table order.
func (ws *WorkingSet) mutatedKinds() []types.EntityKind {
	var kinds []types.EntityKind
	for _, t := range store.Tables() {
		if len(ws.keyOrder[t.Kind]) > 0 {
			kinds = append(kinds, t.Kind)
		}
	}
	return kinds
}

func indexValue(row models.Row, column string) (string, bool) {
	if column == store.EntityKeyColumn {
		return row.Key(), true
	}
	if ix, ok := row.(models.Indexed); ok {
		return ix.IndexValue(column)
	}
	return "", false
}

func dedupe(values []string) []string {
	sort.Strings(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			out = append(out, v)
		}
	}
	return out
}
