// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"context"
	"fmt"
	"testing"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store"
	"github.com/project-illium/emxd/store/storetest"
	"github.com/project-illium/emxd/types"
	"github.com/stretchr/testify/require"
)

const (
	wallet1  = "0x1000000000000000000000000000000000000001"
	wallet2  = "0x2000000000000000000000000000000000000002"
	wallet3  = "0x3000000000000000000000000000000000000003"
	appAddr  = "0xa000000000000000000000000000000000000aaa"
	verifier = "0x9000000000000000000000000000000000000009"
)

// testLimits disables the id offsets so tests can use small ids.
func testLimits() Limits {
	l := DefaultLimits()
	l.UserIDOffset = 0
	l.TrackIDOffset = 0
	l.PlaylistIDOffset = 0
	return l
}

func newTestManager(t *testing.T, opts ...Option) (*EntityManager, *store.Store) {
	t.Helper()
	s := storetest.New(t)
	opts = append([]Option{DefaultOptions(), Store(s), WithLimits(testLimits())}, opts...)
	em, err := NewEntityManager(opts...)
	require.NoError(t, err)
	return em, s
}

// blockBuilder assembles a chain block one instruction per transaction.
type blockBuilder struct {
	number       int64
	instructions []types.ManageEntity
}

func newBlock(number int64) *blockBuilder {
	return &blockBuilder{number: number}
}

func (b *blockBuilder) add(kind types.EntityKind, action types.Action, entityID, userID int64, signer, metadata string) *blockBuilder {
	i := len(b.instructions)
	b.instructions = append(b.instructions, types.ManageEntity{
		EntityID:   entityID,
		EntityType: string(kind),
		UserID:     userID,
		Action:     string(action),
		Metadata:   metadata,
		Signer:     signer,
		TxHash:     fmt.Sprintf("0x%04x%04x", b.number, i),
		TxIndex:    uint(i),
	})
	return b
}

func (b *blockBuilder) build() *types.Block {
	return &types.Block{
		Number:       b.number,
		Hash:         blockHash(b.number),
		ParentHash:   blockHash(b.number - 1),
		Timestamp:    1_700_000_000 + b.number*2,
		Instructions: b.instructions,
	}
}

func blockHash(n int64) string {
	return fmt.Sprintf("0x%064x", n)
}

func mustProcess(t *testing.T, em *EntityManager, blk *types.Block) *BlockSummary {
	t.Helper()
	summary, err := em.ProcessBlock(context.Background(), blk)
	require.NoError(t, err)
	return summary
}

func currentRows(t *testing.T, s *store.Store, kind types.EntityKind) []models.Row {
	t.Helper()
	rows, err := s.CurrentRows(context.Background(), kind)
	require.NoError(t, err)
	return rows
}

func allRows(t *testing.T, s *store.Store, kind types.EntityKind) []models.Row {
	t.Helper()
	rows, err := s.AllRows(context.Background(), kind)
	require.NoError(t, err)
	return rows
}

// state returns every stored row of every table.
func state(t *testing.T, s *store.Store) map[types.EntityKind][]models.Row {
	t.Helper()
	out := make(map[types.EntityKind][]models.Row)
	for _, tbl := range store.Tables() {
		out[tbl.Kind] = allRows(t, s, tbl.Kind)
	}
	return out
}

func currentTrack(t *testing.T, s *store.Store, id int64) *models.Track {
	t.Helper()
	rows, err := s.LoadCurrent(context.Background(), types.KindTrack, store.EntityKeyColumn, []string{models.IDKey(id)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0].(*models.Track)
}

func currentUser(t *testing.T, s *store.Store, id int64) *models.User {
	t.Helper()
	rows, err := s.LoadCurrent(context.Background(), types.KindUser, store.EntityKeyColumn, []string{models.IDKey(id)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0].(*models.User)
}

func auditOutcomes(t *testing.T, s *store.Store, n int64) []string {
	t.Helper()
	entries, err := s.AuditLogs(context.Background(), n)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Outcome
	}
	return out
}
