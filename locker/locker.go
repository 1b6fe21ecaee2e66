// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package locker provides named, time bounded leases stored in the node's
// datastore. A lease is never waited on. If it is held by someone else the
// caller skips its work and tries again later.
package locker

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-datastore"
	"github.com/project-illium/emxd/repo"
)

// ErrNotHeld is returned when refreshing or releasing a lease that has
// expired or been taken over by another owner.
var ErrNotHeld = errors.New("lease not held")

// Locker hands out leases. Each Locker has its own owner token so two
// lockers on the same datastore exclude each other.
type Locker struct {
	ds    datastore.TxnDatastore
	owner uuid.UUID
	now   func() time.Time

	// Serializes the read-check-write in this process. Datastores with
	// optimistic transactions also catch concurrent writers on commit.
	mtx sync.Mutex
}

// New returns a Locker with a fresh owner token.
func New(ds repo.Datastore) *Locker {
	return &Locker{
		ds:    ds,
		owner: uuid.New(),
		now:   time.Now,
	}
}

// Owner returns the locker's owner token.
func (l *Locker) Owner() uuid.UUID {
	return l.owner
}

// Lease is a held lock.
type Lease struct {
	name    string
	expires time.Time
	l       *Locker
}

// Name returns the lock name.
func (lease *Lease) Name() string {
	return lease.name
}

// Expires returns the time the lease lapses unless refreshed.
func (lease *Lease) Expires() time.Time {
	return lease.expires
}

// TryAcquire takes the named lock for ttl. It returns false, without
// error, if another owner holds an unexpired lease. Acquiring a lock this
// locker already holds extends it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, bool, error) {
	if ttl <= 0 {
		return nil, false, errors.New("lease ttl must be positive")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()

	expires := l.now().Add(ttl)
	ok, err := l.update(ctx, name, func(r *record, found bool) (*record, error) {
		if found && r.owner != l.owner && l.now().Before(r.expires) {
			return nil, nil
		}
		return &record{owner: l.owner, expires: expires}, nil
	})
	if err != nil || !ok {
		return nil, false, err
	}
	log.Trace("Lock acquired", log.Args("name", name, "expires", expires))
	return &Lease{name: name, expires: expires, l: l}, true, nil
}

// Refresh extends the lease to ttl from now.
func (lease *Lease) Refresh(ctx context.Context, ttl time.Duration) error {
	l := lease.l
	l.mtx.Lock()
	defer l.mtx.Unlock()

	expires := l.now().Add(ttl)
	ok, err := l.update(ctx, lease.name, func(r *record, found bool) (*record, error) {
		if !lease.heldBy(r, found) {
			return nil, ErrNotHeld
		}
		return &record{owner: l.owner, expires: expires}, nil
	})
	if err != nil {
		return err
	}
	if ok {
		lease.expires = expires
	}
	return nil
}

// Release gives the lock up. Releasing a lease that was already lost
// returns ErrNotHeld and leaves the new owner's lease in place.
func (lease *Lease) Release(ctx context.Context) error {
	l := lease.l
	l.mtx.Lock()
	defer l.mtx.Unlock()

	txn, err := l.ds.NewTransaction(ctx, false)
	if err != nil {
		return err
	}
	defer txn.Discard(ctx)

	key := lockKey(lease.name)
	r, found, err := get(ctx, txn, key)
	if err != nil {
		return err
	}
	if !lease.heldBy(r, found) {
		return ErrNotHeld
	}
	if err := txn.Delete(ctx, key); err != nil {
		return err
	}
	if err := txn.Commit(ctx); err != nil {
		return err
	}
	log.Trace("Lock released", log.Args("name", lease.name))
	return nil
}

func (lease *Lease) heldBy(r *record, found bool) bool {
	return found && r.owner == lease.l.owner && lease.l.now().Before(r.expires)
}

// update runs fn against the stored record in one transaction. A nil
// record from fn means no write and reports false.
func (l *Locker) update(ctx context.Context, name string, fn func(r *record, found bool) (*record, error)) (bool, error) {
	txn, err := l.ds.NewTransaction(ctx, false)
	if err != nil {
		return false, err
	}
	defer txn.Discard(ctx)

	key := lockKey(name)
	cur, found, err := get(ctx, txn, key)
	if err != nil {
		return false, err
	}
	next, err := fn(cur, found)
	if err != nil || next == nil {
		return false, err
	}
	if err := txn.Put(ctx, key, next.encode()); err != nil {
		return false, err
	}
	if err := txn.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func lockKey(name string) datastore.Key {
	return datastore.NewKey(repo.LockKeyPrefix + name)
}

// record is the stored lease: an 8 byte big endian unix nano expiry
// followed by the 16 byte owner token.
type record struct {
	owner   uuid.UUID
	expires time.Time
}

func (r *record) encode() []byte {
	b := make([]byte, 8, 24)
	binary.BigEndian.PutUint64(b, uint64(r.expires.UnixNano()))
	return append(b, r.owner[:]...)
}

func decodeRecord(b []byte) (*record, error) {
	if len(b) != 24 {
		return nil, errors.New("invalid lease record")
	}
	owner, err := uuid.FromBytes(b[8:])
	if err != nil {
		return nil, err
	}
	return &record{
		owner:   owner,
		expires: time.Unix(0, int64(binary.BigEndian.Uint64(b[:8]))),
	}, nil
}

func get(ctx context.Context, txn datastore.Txn, key datastore.Key) (*record, bool, error) {
	b, err := txn.Get(ctx, key)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	r, err := decodeRecord(b)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}
