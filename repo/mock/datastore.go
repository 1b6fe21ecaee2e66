// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"errors"
	"sync"

	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/project-illium/emxd/repo"
)

var _ repo.Datastore = (*MapDatastore)(nil)

// MapDatastore is an in-memory repo.Datastore for tests. Transactions are
// applied under a single lock on commit so concurrent committers observe
// each other's writes in order.
type MapDatastore struct {
	*datastore.MapDatastore

	mtx     sync.Mutex
	putErr  error
	commits int
}

func NewMapDatastore() *MapDatastore {
	return &MapDatastore{MapDatastore: datastore.NewMapDatastore()}
}

// FailPuts makes every following Put, direct or transactional, return err.
// A nil err restores normal writes.
func (ds *MapDatastore) FailPuts(err error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	ds.putErr = err
}

// Commits returns the number of committed transactions.
func (ds *MapDatastore) Commits() int {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	return ds.commits
}

func (ds *MapDatastore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	if ds.putErr != nil {
		return ds.putErr
	}
	return ds.MapDatastore.Put(ctx, key, value)
}

func (ds *MapDatastore) Get(ctx context.Context, key datastore.Key) ([]byte, error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	return ds.MapDatastore.Get(ctx, key)
}

func (ds *MapDatastore) Has(ctx context.Context, key datastore.Key) (bool, error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	return ds.MapDatastore.Has(ctx, key)
}

func (ds *MapDatastore) Delete(ctx context.Context, key datastore.Key) error {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	return ds.MapDatastore.Delete(ctx, key)
}

func (ds *MapDatastore) DiskUsage(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (ds *MapDatastore) NewTransaction(ctx context.Context, readOnly bool) (datastore.Txn, error) {
	return &txn{
		readOnly: readOnly,
		ds:       ds,
		puts:     make(map[datastore.Key][]byte),
		deletes:  make(map[datastore.Key]struct{}),
	}, nil
}

type txn struct {
	readOnly bool
	ds       *MapDatastore
	puts     map[datastore.Key][]byte
	deletes  map[datastore.Key]struct{}
}

func (t *txn) Get(ctx context.Context, key datastore.Key) (value []byte, err error) {
	if _, ok := t.deletes[key]; ok {
		return nil, datastore.ErrNotFound
	}
	if v, ok := t.puts[key]; ok {
		return v, nil
	}
	return t.ds.Get(ctx, key)
}

func (t *txn) Has(ctx context.Context, key datastore.Key) (exists bool, err error) {
	if _, ok := t.deletes[key]; ok {
		return false, nil
	}
	if _, ok := t.puts[key]; ok {
		return true, nil
	}
	return t.ds.Has(ctx, key)
}

func (t *txn) GetSize(ctx context.Context, key datastore.Key) (size int, err error) {
	return t.ds.GetSize(ctx, key)
}

func (t *txn) Query(ctx context.Context, q query.Query) (query.Results, error) {
	return t.ds.Query(ctx, q)
}

func (t *txn) Put(ctx context.Context, key datastore.Key, value []byte) error {
	if t.readOnly {
		return errors.New("transaction is read only")
	}
	delete(t.deletes, key)
	t.puts[key] = value
	return nil
}

func (t *txn) Delete(ctx context.Context, key datastore.Key) error {
	if t.readOnly {
		return errors.New("transaction is read only")
	}
	delete(t.puts, key)
	t.deletes[key] = struct{}{}
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	t.ds.mtx.Lock()
	defer t.ds.mtx.Unlock()
	if t.ds.putErr != nil && len(t.puts) > 0 {
		return t.ds.putErr
	}
	for k, v := range t.puts {
		if err := t.ds.MapDatastore.Put(ctx, k, v); err != nil {
			return err
		}
	}
	for k := range t.deletes {
		if err := t.ds.MapDatastore.Delete(ctx, k); err != nil {
			return err
		}
	}
	t.ds.commits++
	return nil
}

func (t *txn) Discard(ctx context.Context) {
	t.puts = make(map[datastore.Key][]byte)
	t.deletes = make(map[datastore.Key]struct{})
}
