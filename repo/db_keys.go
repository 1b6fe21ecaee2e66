// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

const (
	// LockKeyPrefix is the datastore key prefix for lock leases. The lock
	// name is appended.
	LockKeyPrefix = "/emxd/lock/"
	// MetadataCacheKeyPrefix is the datastore key prefix for cached
	// metadata bodies, keyed by CID.
	MetadataCacheKeyPrefix = "/emxd/metadata/"
	// VersionKey stores the version of the binary that last opened the
	// datastore.
	VersionKey = "/emxd/version/"
)
