// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package chain reads EntityManager blocks from a JSON-RPC node.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/project-illium/emxd/types"
)

// ErrBlockNotFound is returned for blocks past the chain tip.
var ErrBlockNotFound = errors.New("block not found")

// rpcHeader is read straight from eth_getBlockByNumber. Nodes of some
// chains report hashes the go-ethereum header type does not reproduce, so
// the node's own hash is used.
type rpcHeader struct {
	Number     *hexutil.Big   `json:"number"`
	Hash       common.Hash    `json:"hash"`
	ParentHash common.Hash    `json:"parentHash"`
	Time       hexutil.Uint64 `json:"timestamp"`
}

// Client is a block source backed by a JSON-RPC node.
type Client struct {
	raw      *rpc.Client
	eth      *ethclient.Client
	contract common.Address
	dec      *Decoder
}

// Dial connects to the node at url. Only logs emitted by contract are
// read.
func Dial(ctx context.Context, url string, contract string) (*Client, error) {
	raw, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewClient(raw, contract)
}

// NewClient wraps an open rpc connection.
func NewClient(raw *rpc.Client, contract string) (*Client, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address %q", contract)
	}
	dec, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Client{
		raw:      raw,
		eth:      ethclient.NewClient(raw),
		contract: common.HexToAddress(contract),
		dec:      dec,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() {
	c.raw.Close()
}

// BlockNumber returns the chain tip.
func (c *Client) BlockNumber(ctx context.Context) (int64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// Header returns the header of block n.
func (c *Client) Header(ctx context.Context, n int64) (Header, error) {
	var head *rpcHeader
	err := c.raw.CallContext(ctx, &head, "eth_getBlockByNumber", hexutil.EncodeBig(big.NewInt(n)), false)
	if err != nil {
		return Header{}, err
	}
	if head == nil || head.Number == nil {
		return Header{}, fmt.Errorf("%w: %d", ErrBlockNotFound, n)
	}
	return Header{
		Number:     head.Number.ToInt().Int64(),
		Hash:       head.Hash.Hex(),
		ParentHash: head.ParentHash.Hex(),
		Timestamp:  int64(head.Time),
	}, nil
}

// BlockHash returns the hash of block n.
func (c *Client) BlockHash(ctx context.Context, n int64) (string, error) {
	h, err := c.Header(ctx, n)
	if err != nil {
		return "", err
	}
	return h.Hash, nil
}

// Block returns block n with its ManageEntity instructions in chain
// order. Logs are selected by block hash so they always belong to the
// returned header.
func (c *Client) Block(ctx context.Context, n int64) (*types.Block, error) {
	h, err := c.Header(ctx, n)
	if err != nil {
		return nil, err
	}
	hash := common.HexToHash(h.Hash)
	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		BlockHash: &hash,
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{c.dec.Topic()}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs of block %d: %w", n, err)
	}
	blk, err := c.dec.BuildBlock(h, logs)
	if err != nil {
		return nil, err
	}
	log.Trace("Fetched block", log.Args("number", n, "instructions", len(blk.Instructions)))
	return blk, nil
}
