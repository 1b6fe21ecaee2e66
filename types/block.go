// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"fmt"
	"strings"
)

// ManageEntity is one raw, undecoded instruction emitted by the
// EntityManager contract. A transaction may carry several of them.
type ManageEntity struct {
	EntityID   int64
	EntityType string
	UserID     int64
	Action     string
	Metadata   string
	Signer     string

	TxHash   string
	TxIndex  uint
	LogIndex uint

	// Invalid holds the reason a ManageEntity log could not be decoded.
	// Such an instruction keeps its place in the block and is rejected
	// on its own.
	Invalid string
}

// Block is a chain block reduced to the fields the indexer needs and the
// ordered ManageEntity instructions it contains.
type Block struct {
	Number     int64
	Hash       string
	ParentHash string
	Timestamp  int64

	Instructions []ManageEntity
}

// Less reports whether instruction a comes before b in on-chain order.
func Less(a, b ManageEntity) bool {
	if a.TxIndex != b.TxIndex {
		return a.TxIndex < b.TxIndex
	} else {
		return a.LogIndex < b.LogIndex
	}
}

// String returns a short human-readable form of the block.
func (b *Block) String() string {
	return fmt.Sprintf("%d (%s)", b.Number, shortHash(b.Hash))
}

// NormalizeAddress lowercases a hex address so that comparisons between
// signers, wallets and grantee addresses are case insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
