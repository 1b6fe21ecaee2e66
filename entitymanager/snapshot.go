// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"encoding/json"
	"fmt"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// encodeSnapshot serializes the rows that were current before the block
// mutated them as a JSON object keyed by entity kind. Every mutated kind
// is present, with an empty list if the block only created entities of
// that kind.
func encodeSnapshot(ws *WorkingSet) (string, error) {
	var (
		doc   = "{}"
		prior = ws.prior()
		err   error
	)
	for _, kind := range ws.mutatedKinds() {
		doc, err = sjson.SetRaw(doc, string(kind), "[]")
		if err != nil {
			return "", err
		}
		for _, row := range prior[kind] {
			raw, err := json.Marshal(row)
			if err != nil {
				return "", fmt.Errorf("encode %s %s: %w", kind, row.Key(), err)
			}
			doc, err = sjson.SetRaw(doc, string(kind)+".-1", string(raw))
			if err != nil {
				return "", err
			}
		}
	}
	return doc, nil
}

// decodeSnapshot parses a snapshot back into rows in table order.
func decodeSnapshot(doc string) ([]models.Row, error) {
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("snapshot is not valid json")
	}
	parsed := gjson.Parse(doc)

	known := make(map[string]bool)
	var rows []models.Row
	for _, t := range store.Tables() {
		known[string(t.Kind)] = true
		list := parsed.Get(string(t.Kind))
		if !list.Exists() {
			continue
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("snapshot entry %s is not a list", t.Kind)
		}
		var err error
		list.ForEach(func(_, value gjson.Result) bool {
			var row models.Row
			row, err = t.Decode([]byte(value.Raw))
			if err != nil {
				err = fmt.Errorf("decode %s row: %w", t.Kind, err)
				return false
			}
			rows = append(rows, row)
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	var unknown error
	parsed.ForEach(func(key, _ gjson.Result) bool {
		if !known[key.String()] {
			unknown = fmt.Errorf("snapshot holds unknown kind %s", key.String())
			return false
		}
		return true
	})
	if unknown != nil {
		return nil, unknown
	}
	return rows, nil
}
