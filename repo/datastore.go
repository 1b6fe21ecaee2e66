// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/options"
	"github.com/ipfs/go-datastore"
	badger "github.com/ipfs/go-ds-badger"
)

// Datastore is the node-local key value store. It holds state that belongs
// to this node rather than to the indexed chain: lock leases and the
// metadata cache.
type Datastore interface {
	datastore.Datastore
	datastore.Batching
	datastore.PersistentDatastore
	datastore.TxnDatastore
}

// DatastoreDirName is the subdirectory of the data directory the badger
// files live in.
const DatastoreDirName = "datastore"

// OpenDatastore opens, or creates, the badger datastore under dataDir.
func OpenDatastore(dataDir string) (Datastore, error) {
	dir := filepath.Join(dataDir, DatastoreDirName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	badgerOpts := badger.DefaultOptions
	badgerOpts.MaxTableSize = 64 << 20
	badgerOpts.ValueLogLoadingMode = options.FileIO
	ds, err := badger.NewDatastore(dir, &badgerOpts)
	if err != nil {
		return nil, err
	}
	log.Debug("Datastore opened", log.Args("path", dir))
	return ds, nil
}
