// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/project-illium/emxd/types"
)

// EntityManagerABI holds the events of the EntityManager contract the
// indexer consumes.
const EntityManagerABI = `[{"anonymous":false,"inputs":[` +
	`{"indexed":false,"internalType":"uint256","name":"_userId","type":"uint256"},` +
	`{"indexed":false,"internalType":"address","name":"_signer","type":"address"},` +
	`{"indexed":false,"internalType":"string","name":"_entityType","type":"string"},` +
	`{"indexed":false,"internalType":"uint256","name":"_entityId","type":"uint256"},` +
	`{"indexed":false,"internalType":"string","name":"_metadata","type":"string"},` +
	`{"indexed":false,"internalType":"string","name":"_action","type":"string"}` +
	`],"name":"ManageEntity","type":"event"}]`

const manageEntityEvent = "ManageEntity"

// ErrUnknownEvent is returned for logs that are not ManageEntity events.
var ErrUnknownEvent = errors.New("log is not a ManageEntity event")

// manageEntityLog is the unpacked event. Field names follow the abi
// package's mapping of the solidity argument names.
type manageEntityLog struct {
	UserId     *big.Int
	Signer     common.Address
	EntityType string
	EntityId   *big.Int
	Metadata   string
	Action     string
}

// Decoder turns EntityManager logs into indexer instructions.
type Decoder struct {
	abi   abi.ABI
	event abi.Event
}

// NewDecoder parses the EntityManager ABI.
func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(EntityManagerABI))
	if err != nil {
		return nil, err
	}
	ev, ok := parsed.Events[manageEntityEvent]
	if !ok {
		return nil, errors.New("abi has no ManageEntity event")
	}
	return &Decoder{abi: parsed, event: ev}, nil
}

// Topic returns the ManageEntity event signature hash.
func (d *Decoder) Topic() common.Hash {
	return d.event.ID
}

// DecodeLog unpacks one ManageEntity log. When the log is a ManageEntity
// event that cannot be decoded the returned instruction still carries the
// log's position and whatever fields were unpacked.
func (d *Decoder) DecodeLog(l ethtypes.Log) (types.ManageEntity, error) {
	if len(l.Topics) == 0 || l.Topics[0] != d.event.ID {
		return types.ManageEntity{}, ErrUnknownEvent
	}
	ins := types.ManageEntity{
		TxHash:   l.TxHash.Hex(),
		TxIndex:  l.TxIndex,
		LogIndex: l.Index,
	}
	var ev manageEntityLog
	if err := d.abi.UnpackIntoInterface(&ev, manageEntityEvent, l.Data); err != nil {
		return ins, fmt.Errorf("unpack ManageEntity in tx %s: %w", l.TxHash.Hex(), err)
	}
	ins.EntityType = ev.EntityType
	ins.Action = ev.Action
	ins.Metadata = ev.Metadata
	ins.Signer = types.NormalizeAddress(ev.Signer.Hex())

	userID, err := toInt64(ev.UserId, "user id")
	if err != nil {
		return ins, err
	}
	entityID, err := toInt64(ev.EntityId, "entity id")
	if err != nil {
		return ins, err
	}
	ins.UserID = userID
	ins.EntityID = entityID
	return ins, nil
}

// Header is the part of a chain header the indexer keeps.
type Header struct {
	Number     int64
	Hash       string
	ParentHash string
	Timestamp  int64
}

// BuildBlock decodes the logs of the block described by h. Removed logs,
// logs of other blocks and foreign events are skipped. A ManageEntity log
// that fails to decode is kept as an Invalid instruction so that it is
// audited without holding up the rest of the block.
func (d *Decoder) BuildBlock(h Header, logs []ethtypes.Log) (*types.Block, error) {
	blk := &types.Block{
		Number:     h.Number,
		Hash:       h.Hash,
		ParentHash: h.ParentHash,
		Timestamp:  h.Timestamp,
	}
	for _, l := range logs {
		if l.Removed || int64(l.BlockNumber) != h.Number {
			continue
		}
		ins, err := d.DecodeLog(l)
		if errors.Is(err, ErrUnknownEvent) {
			continue
		} else if err != nil {
			log.Warn("Undecodable ManageEntity log", log.Args("block", h.Number, "tx", ins.TxHash, "log_index", ins.LogIndex, "error", err))
			ins.Invalid = err.Error()
		}
		blk.Instructions = append(blk.Instructions, ins)
	}
	sort.SliceStable(blk.Instructions, func(i, j int) bool {
		return types.Less(blk.Instructions[i], blk.Instructions[j])
	})
	return blk, nil
}

func toInt64(n *big.Int, field string) (int64, error) {
	if n == nil || !n.IsInt64() {
		return 0, fmt.Errorf("%s out of range", field)
	}
	return n.Int64(), nil
}
