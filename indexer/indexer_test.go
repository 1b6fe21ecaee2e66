// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/project-illium/emxd/entitymanager"
	"github.com/project-illium/emxd/locker"
	"github.com/project-illium/emxd/metrics"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/repo/mock"
	"github.com/project-illium/emxd/store"
	"github.com/project-illium/emxd/store/storetest"
	"github.com/project-illium/emxd/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0x1000000000000000000000000000000000000001"

// fakeChain is an in-memory chain. Blocks on a fork get a different hash
// and create a different track.
type fakeChain struct {
	mtx    sync.Mutex
	blocks map[int64]*types.Block
	tip    int64
}

func newFakeChain(tip int64) *fakeChain {
	c := &fakeChain{blocks: make(map[int64]*types.Block)}
	for n := int64(1); n <= tip; n++ {
		c.set(n, "")
	}
	c.tip = tip
	return c
}

// set puts block n on the given fork. Block 1 creates the user and every
// later block creates track n*10 (or n*10+1 on a fork).
func (c *fakeChain) set(n int64, fork string) {
	trackID := n * 10
	if fork != "" {
		trackID++
	}
	ins := types.ManageEntity{
		EntityID:   trackID,
		EntityType: string(types.KindTrack),
		UserID:     1,
		Action:     string(types.ActionCreate),
		Metadata:   fmt.Sprintf(`{"title":"track %d"}`, trackID),
		Signer:     wallet,
		TxHash:     fmt.Sprintf("0x%s%04x", fork, n),
	}
	if n == 1 {
		ins = types.ManageEntity{
			EntityID:   1,
			EntityType: string(types.KindUser),
			UserID:     1,
			Action:     string(types.ActionCreate),
			Metadata:   `{"handle":"alice"}`,
			Signer:     wallet,
			TxHash:     "0x0001",
		}
	}
	c.blocks[n] = &types.Block{
		Number:       n,
		Hash:         hash(n, fork),
		Timestamp:    1_700_000_000 + n,
		Instructions: []types.ManageEntity{ins},
	}
	if prev, ok := c.blocks[n-1]; ok {
		c.blocks[n].ParentHash = prev.Hash
	}
}

func (c *fakeChain) fork(from, tip int64, name string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for n := range c.blocks {
		if n >= from {
			delete(c.blocks, n)
		}
	}
	for n := from; n <= tip; n++ {
		c.set(n, name)
	}
	c.tip = tip
}

func (c *fakeChain) extend(tip int64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for n := c.tip + 1; n <= tip; n++ {
		c.set(n, "")
	}
	c.tip = tip
}

func hash(n int64, fork string) string {
	return fmt.Sprintf("0x%s%062x", fork, n)
}

func (c *fakeChain) BlockNumber(context.Context) (int64, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.tip, nil
}

func (c *fakeChain) BlockHash(_ context.Context, n int64) (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	blk, ok := c.blocks[n]
	if !ok {
		return "", errors.New("no such block")
	}
	return blk.Hash, nil
}

func (c *fakeChain) Block(_ context.Context, n int64) (*types.Block, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	blk, ok := c.blocks[n]
	if !ok {
		return nil, errors.New("no such block")
	}
	cpy := *blk
	return &cpy, nil
}

// flaky fails ProcessBlock with the queued errors before passing through.
type flaky struct {
	Pipeline
	errs []error
}

func (f *flaky) ProcessBlock(ctx context.Context, blk *types.Block) (*entitymanager.BlockSummary, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.Pipeline.ProcessBlock(ctx, blk)
}

type harness struct {
	ix      *Indexer
	em      *entitymanager.EntityManager
	store   *store.Store
	chain   *fakeChain
	ds      *mock.MapDatastore
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, chain *fakeChain, wrap func(Pipeline) Pipeline, opts ...Option) *harness {
	t.Helper()
	s := storetest.New(t)
	limits := entitymanager.DefaultLimits()
	limits.UserIDOffset = 0
	limits.TrackIDOffset = 0
	em, err := entitymanager.NewEntityManager(
		entitymanager.DefaultOptions(),
		entitymanager.Store(s),
		entitymanager.WithLimits(limits),
	)
	require.NoError(t, err)

	var p Pipeline = em
	if wrap != nil {
		p = wrap(em)
	}
	ds := mock.NewMapDatastore()
	m := metrics.New(nil)
	base := []Option{
		DefaultOptions(),
		Source(chain),
		EntityManager(p),
		Blocks(s),
		Locker(locker.New(ds)),
		Metrics(m),
		Interval(10 * time.Millisecond),
		BackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5)
		}),
	}
	ix, err := NewIndexer(append(base, opts...)...)
	require.NoError(t, err)
	return &harness{ix: ix, em: em, store: s, chain: chain, ds: ds, metrics: m}
}

func (h *harness) runOnce(t *testing.T) *CycleResult {
	t.Helper()
	res, err := h.ix.RunOnce(context.Background())
	require.NoError(t, err)
	return res
}

func (h *harness) trackIDs(t *testing.T) []int64 {
	t.Helper()
	rows, err := h.store.CurrentRows(context.Background(), types.KindTrack)
	require.NoError(t, err)
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.(*models.Track).TrackID)
	}
	return ids
}

func TestRunOnceIndexesToTip(t *testing.T) {
	h := newHarness(t, newFakeChain(5), nil, MaxBlocks(3))

	res := h.runOnce(t)
	assert.Equal(t, 3, res.Indexed)
	assert.Equal(t, int64(3), res.Tip)
	assert.Equal(t, int64(5), res.ChainTip)

	res = h.runOnce(t)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, int64(5), res.Tip)

	res = h.runOnce(t)
	assert.Equal(t, 0, res.Indexed)

	n, err := h.em.LastIndexed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.ElementsMatch(t, []int64{20, 30, 40, 50}, h.trackIDs(t))
	assert.Equal(t, float64(5), testutil.ToFloat64(h.metrics.IndexedHeight))
	assert.Equal(t, float64(5), testutil.ToFloat64(h.metrics.ChainHeight))
}

func TestConfirmationsAndStartBlock(t *testing.T) {
	h := newHarness(t, newFakeChain(6), nil, Confirmations(2), StartBlock(3))
	res := h.runOnce(t)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, int64(4), res.Tip)
	_, err := h.store.Block(context.Background(), 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLockHeldElsewhereSkips(t *testing.T) {
	h := newHarness(t, newFakeChain(3), nil)
	other := locker.New(h.ds)
	_, ok, err := other.TryAcquire(context.Background(), h.em.JobName(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res := h.runOnce(t)
	assert.True(t, res.Skipped)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.LockSkips))
	n, err := h.em.LastIndexed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReorgRevertsAndReindexes(t *testing.T) {
	chain := newFakeChain(5)
	h := newHarness(t, chain, nil)
	h.runOnce(t)
	assert.ElementsMatch(t, []int64{20, 30, 40, 50}, h.trackIDs(t))

	chain.fork(4, 6, "b")
	res := h.runOnce(t)
	require.NotNil(t, res.Reorg)
	assert.Equal(t, ReorgError{Tip: 5, Ancestor: 3}, *res.Reorg)
	assert.Equal(t, 3, res.Indexed)
	assert.Equal(t, int64(6), res.Tip)
	assert.ElementsMatch(t, []int64{20, 30, 41, 51, 61}, h.trackIDs(t))

	blk, err := h.store.Block(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, hash(4, "b"), blk.Hash)
}

func TestReorgToShorterChain(t *testing.T) {
	chain := newFakeChain(5)
	h := newHarness(t, chain, nil)
	h.runOnce(t)

	chain.fork(4, 4, "c")
	res := h.runOnce(t)
	require.NotNil(t, res.Reorg)
	assert.Equal(t, int64(3), res.Reorg.Ancestor)
	assert.Equal(t, int64(4), res.Tip)
	assert.ElementsMatch(t, []int64{20, 30, 41}, h.trackIDs(t))
}

func TestReorgDeeperThanWindowIsFatal(t *testing.T) {
	chain := newFakeChain(5)
	h := newHarness(t, chain, nil, ReorgWindow(2))
	h.runOnce(t)

	chain.fork(2, 5, "d")
	_, err := h.ix.RunOnce(context.Background())
	assert.True(t, entitymanager.IsFatal(err))
}

func TestStorageErrorsAreRetried(t *testing.T) {
	var fl *flaky
	h := newHarness(t, newFakeChain(2), func(p Pipeline) Pipeline {
		storageErr := entitymanager.StorageError{Op: "commit", Err: errors.New("connection reset")}
		fl = &flaky{Pipeline: p, errs: []error{storageErr, storageErr}}
		return fl
	})
	res := h.runOnce(t)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Retries))
}

func TestFatalErrorStopsRun(t *testing.T) {
	h := newHarness(t, newFakeChain(2), func(p Pipeline) Pipeline {
		return &flaky{Pipeline: p, errs: []error{entitymanager.AssertError("broken invariant")}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.ix.Run(ctx)
	assert.True(t, entitymanager.IsFatal(err))
	assert.Zero(t, testutil.ToFloat64(h.metrics.Retries))
}

func TestRunFollowsChain(t *testing.T) {
	chain := newFakeChain(2)
	h := newHarness(t, chain, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ix.Run(ctx) }()

	chain.extend(4)
	assert.Eventually(t, func() bool {
		n, err := h.em.LastIndexed(context.Background())
		return err == nil && n == 4
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewIndexerValidation(t *testing.T) {
	_, err := NewIndexer(DefaultOptions())
	assert.True(t, entitymanager.IsFatal(err))
}
