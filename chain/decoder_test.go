// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/project-illium/emxd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contract = common.HexToAddress("0x5000000000000000000000000000000000000005")
	signer   = common.HexToAddress("0x1000000000000000000000000000000000000AbC")
)

func newManageEntityLog(t *testing.T, d *Decoder, block uint64, txIndex, logIndex uint, userID, entityID int64, kind, action, metadata string) ethtypes.Log {
	t.Helper()
	data, err := d.event.Inputs.Pack(big.NewInt(userID), signer, kind, big.NewInt(entityID), metadata, action)
	require.NoError(t, err)
	return ethtypes.Log{
		Address:     contract,
		Topics:      []common.Hash{d.Topic()},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block*1000) + int64(txIndex))),
		TxIndex:     txIndex,
		BlockHash:   common.BigToHash(big.NewInt(int64(block))),
		Index:       logIndex,
	}
}

func TestTopicIsEventSignature(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	want := crypto.Keccak256Hash([]byte("ManageEntity(uint256,address,string,uint256,string,string)"))
	assert.Equal(t, want, d.Topic())
}

func TestDecodeLog(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	l := newManageEntityLog(t, d, 10, 2, 7, 3, 42, "Track", "Create", `{"title":"x"}`)
	ins, err := d.DecodeLog(l)
	require.NoError(t, err)
	assert.Equal(t, types.ManageEntity{
		EntityID:   42,
		EntityType: "Track",
		UserID:     3,
		Action:     "Create",
		Metadata:   `{"title":"x"}`,
		Signer:     "0x1000000000000000000000000000000000000abc",
		TxHash:     l.TxHash.Hex(),
		TxIndex:    2,
		LogIndex:   7,
	}, ins)

	_, err = d.DecodeLog(ethtypes.Log{Topics: []common.Hash{{0x01}}})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	bad := l
	bad.Data = bad.Data[:32]
	_, err = d.DecodeLog(bad)
	assert.Error(t, err)

	huge, err := d.event.Inputs.Pack(new(big.Int).Lsh(big.NewInt(1), 70), signer, "User", big.NewInt(1), "", "Create")
	require.NoError(t, err)
	l.Data = huge
	_, err = d.DecodeLog(l)
	assert.Error(t, err)
}

func TestBuildBlockOrdersAndFilters(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	removed := newManageEntityLog(t, d, 10, 0, 0, 1, 1, "User", "Create", "")
	removed.Removed = true
	logs := []ethtypes.Log{
		newManageEntityLog(t, d, 10, 3, 9, 1, 30, "Track", "Create", ""),
		newManageEntityLog(t, d, 10, 1, 4, 1, 11, "Track", "Create", ""),
		newManageEntityLog(t, d, 10, 1, 2, 1, 10, "Track", "Create", ""),
		newManageEntityLog(t, d, 11, 0, 0, 1, 99, "Track", "Create", ""),
		removed,
		{Topics: []common.Hash{{0x02}}, BlockNumber: 10},
	}
	h := Header{Number: 10, Hash: "0x0a", ParentHash: "0x09", Timestamp: 1_700_000_000}
	blk, err := d.BuildBlock(h, logs)
	require.NoError(t, err)

	assert.Equal(t, int64(10), blk.Number)
	assert.Equal(t, "0x09", blk.ParentHash)
	ids := make([]int64, 0, len(blk.Instructions))
	for _, ins := range blk.Instructions {
		ids = append(ids, ins.EntityID)
	}
	assert.Equal(t, []int64{10, 11, 30}, ids)
}

func TestBuildBlockKeepsUndecodableLogs(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	overflow := newManageEntityLog(t, d, 10, 1, 0, 1, 1, "Track", "Create", "")
	overflow.Data, err = d.event.Inputs.Pack(big.NewInt(1), signer, "Track", new(big.Int).Lsh(big.NewInt(1), 70), "", "Create")
	require.NoError(t, err)
	truncated := newManageEntityLog(t, d, 10, 2, 0, 1, 1, "Track", "Create", "")
	truncated.Data = truncated.Data[:32]

	logs := []ethtypes.Log{
		newManageEntityLog(t, d, 10, 0, 0, 1, 1, "User", "Create", ""),
		overflow,
		truncated,
		newManageEntityLog(t, d, 10, 3, 0, 1, 30, "Track", "Create", ""),
	}
	blk, err := d.BuildBlock(Header{Number: 10, Hash: "0x0a", ParentHash: "0x09"}, logs)
	require.NoError(t, err)
	require.Len(t, blk.Instructions, 4)

	assert.Empty(t, blk.Instructions[0].Invalid)
	assert.Contains(t, blk.Instructions[1].Invalid, "entity id out of range")
	assert.Equal(t, "Track", blk.Instructions[1].EntityType)
	assert.Equal(t, overflow.TxHash.Hex(), blk.Instructions[1].TxHash)
	assert.NotEmpty(t, blk.Instructions[2].Invalid)
	assert.Equal(t, uint(2), blk.Instructions[2].TxIndex)
	assert.Empty(t, blk.Instructions[3].Invalid)
	assert.Equal(t, int64(30), blk.Instructions[3].EntityID)
}
