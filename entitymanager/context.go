// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"fmt"

	"github.com/project-illium/emxd/addrbook"
	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

// HandlerContext is what a handler sees while applying one request. Rows,
// events and metadata fetches it stages only take effect if the handler
// returns nil.
type HandlerContext struct {
	ws   *WorkingSet
	req  *Request
	book *addrbook.Book

	staged  []models.Row
	events  []challenges.Event
	pending []models.PendingMetadata
}

func newHandlerContext(ws *WorkingSet, req *Request, book *addrbook.Book) *HandlerContext {
	return &HandlerContext{ws: ws, req: req, book: book}
}

// Get returns the latest version of an entity, including rows staged by
// the running handler.
func (hc *HandlerContext) Get(kind types.EntityKind, key string) models.Row {
	for i := len(hc.staged) - 1; i >= 0; i-- {
		if row := hc.staged[i]; row.Kind() == kind && row.Key() == key {
			return row
		}
	}
	return hc.ws.Get(kind, key)
}

// Lookup resolves a secondary lookup. Staged rows are not consulted.
func (hc *HandlerContext) Lookup(ref Ref) []models.Row {
	return hc.ws.Lookup(ref)
}

// Book returns the address book snapshot of the block.
func (hc *HandlerContext) Book() *addrbook.Book {
	return hc.book
}

// Put stages row as the next version of its entity, stamped with the
// request's chain position.
func (hc *HandlerContext) Put(row models.Row) {
	models.Stamp(row, hc.req.BlockNumber, hc.req.BlockHash, hc.req.TxHash, hc.req.BlockTime)
	row.Version().IsCurrent = true
	hc.staged = append(hc.staged, row)
}

// Dispatch stages a challenge event attributed to the request.
func (hc *HandlerContext) Dispatch(typ challenges.EventType, userID int64, key string, extra map[string]string) {
	hc.events = append(hc.events, challenges.Event{
		Type:        typ,
		BlockNumber: hc.req.BlockNumber,
		BlockTime:   hc.req.BlockTime,
		UserID:      userID,
		Key:         key,
		Extra:       extra,
	})
}

// RequestMetadata records that row was written without its metadata and
// must be backfilled once cid resolves.
func (hc *HandlerContext) RequestMetadata(kind types.EntityKind, key, cid string) {
	hc.pending = append(hc.pending, models.PendingMetadata{
		CID:         cid,
		EntityType:  string(kind),
		EntityKey:   key,
		BlockNumber: hc.req.BlockNumber,
	})
}

// commit moves the staged rows into the working set and the events into
// q. Incomplete rows and rows whose prior version was never loaded are
// programming errors.
func (hc *HandlerContext) commit(q *challenges.Queue) error {
	for _, row := range hc.staged {
		if err := models.CheckComplete(row); err != nil {
			return AssertError(fmt.Sprintf("%s %s handler produced an incomplete %s row: %s",
				hc.req.Kind, hc.req.Action, row.Kind(), err))
		}
		if !hc.ws.loaded(row.Kind(), row.Key()) {
			return AssertError(fmt.Sprintf("%s %s handler wrote %s %s without loading it",
				hc.req.Kind, hc.req.Action, row.Kind(), row.Key()))
		}
	}
	for _, ev := range hc.events {
		if err := q.Dispatch(ev); err != nil {
			return AssertError(fmt.Sprintf("dispatching %s: %s", ev.Type, err))
		}
	}
	for _, row := range hc.staged {
		hc.ws.add(row)
	}
	return nil
}
