// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/project-illium/emxd/addrbook"
	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/entitymanager"
	"github.com/project-illium/emxd/locker"
	"github.com/project-illium/emxd/metadata"
	"github.com/project-illium/emxd/metrics"
	"github.com/project-illium/emxd/repo"
	"github.com/project-illium/emxd/status"
	"github.com/project-illium/emxd/store"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	requestTimeout = 10 * time.Second
	revertLockTTL  = 5 * time.Minute
)

type GetStatus struct {
	opts *options
}

func (x *GetStatus) Execute(args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return getStatus(ctx, x.opts.StatusAddr, os.Stdout)
}

func getStatus(ctx context.Context, addr string, w io.Writer) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	netAddr, err := manet.ToNetAddr(ma)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+netAddr.String()+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var h status.Health
	if err := decodeJSON(resp.Body, &h); err != nil {
		return err
	}
	if err := printJSON(w, h); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer is %s", h.Status)
	}
	return nil
}

type GetCheckpoint struct {
	opts *options
	Job  string `short:"j" long:"job" description:"The checkpoint name" default:"entity_manager"`
}

type checkpointInfo struct {
	Job         string `json:"job"`
	LastIndexed int64  `json:"last_indexed"`
	BlockHash   string `json:"blockhash,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

func (x *GetCheckpoint) Execute(args []string) error {
	ctx := context.Background()
	s, err := openStore(ctx, x.opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return getCheckpoint(ctx, s, x.Job, os.Stdout)
}

func getCheckpoint(ctx context.Context, s *store.Store, job string, w io.Writer) error {
	n, err := s.GetCheckpoint(ctx, job)
	if err != nil {
		return err
	}
	info := checkpointInfo{Job: job, LastIndexed: n}
	if n > 0 {
		blk, err := s.Block(ctx, n)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if blk != nil {
			info.BlockHash = blk.Hash
			info.Timestamp = blk.Timestamp
		}
	}
	return printJSON(w, info)
}

type GetBlock struct {
	opts   *options
	Height int64 `short:"n" long:"height" description:"The block height" required:"true"`
}

func (x *GetBlock) Execute(args []string) error {
	ctx := context.Background()
	s, err := openStore(ctx, x.opts)
	if err != nil {
		return err
	}
	defer s.Close()
	blk, err := s.Block(ctx, x.Height)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, blk)
}

type GetAuditLog struct {
	opts   *options
	Height int64 `short:"n" long:"height" description:"The block height" required:"true"`
}

func (x *GetAuditLog) Execute(args []string) error {
	ctx := context.Background()
	s, err := openStore(ctx, x.opts)
	if err != nil {
		return err
	}
	defer s.Close()
	entries, err := s.AuditLogs(ctx, x.Height)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, entries)
}

type GetPendingMetadata struct {
	opts  *options
	Limit int `short:"l" long:"limit" description:"The maximum number of entries to return" default:"100"`
}

func (x *GetPendingMetadata) Execute(args []string) error {
	ctx := context.Background()
	s, err := openStore(ctx, x.opts)
	if err != nil {
		return err
	}
	defer s.Close()
	rows, err := s.PendingMetadata(ctx, x.Limit)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, rows)
}

type RevertTo struct {
	opts   *options
	Height int64  `short:"n" long:"height" description:"The first block to undo" required:"true"`
	Job    string `short:"j" long:"job" description:"The checkpoint name" default:"entity_manager"`
	Depth  int64  `long:"depth" description:"The maximum number of blocks to undo" default:"100"`
}

func (x *RevertTo) Execute(args []string) error {
	ctx := context.Background()

	// The datastore directory lock fails if emxd is still running.
	ds, err := repo.OpenDatastore(repo.CleanAndExpandPath(x.opts.DataDir))
	if err != nil {
		return fmt.Errorf("open datastore (is emxd still running?): %w", err)
	}
	defer ds.Close()

	s, err := openStore(ctx, x.opts)
	if err != nil {
		return err
	}
	defer s.Close()

	return revertTo(ctx, s, ds, x.Job, x.Height, x.Depth, os.Stdout)
}

func revertTo(ctx context.Context, s *store.Store, ds repo.Datastore, job string, height, depth int64, w io.Writer) error {
	lease, ok, err := locker.New(ds).TryAcquire(ctx, job, revertLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is locked by another process", job)
	}
	defer lease.Release(context.Background())

	// Reverting never touches challenges or the address book but the
	// manager requires both.
	defs, err := challenges.DefaultDefinitions()
	if err != nil {
		return err
	}
	bus, err := challenges.NewBusFromDefinitions(defs, challenges.DefaultQueueSize)
	if err != nil {
		return err
	}
	book, err := addrbook.New("", "")
	if err != nil {
		return err
	}

	em, err := entitymanager.NewEntityManager(
		entitymanager.DefaultOptions(),
		entitymanager.Store(s),
		entitymanager.ChallengeBus(bus),
		entitymanager.AddressBook(addrbook.NewHolder(book)),
		entitymanager.JobName(job),
		entitymanager.RevertDepth(depth),
		entitymanager.Metrics(metrics.New(prometheus.NewRegistry())),
	)
	if err != nil {
		return err
	}
	summary, err := em.RevertToBefore(ctx, height)
	if err != nil {
		return err
	}
	return printJSON(w, summary)
}

type CIDForJSON struct {
	File string `short:"f" long:"file" description:"The json document. Reads stdin if omitted."`
}

func (x *CIDForJSON) Execute(args []string) error {
	r := io.Reader(os.Stdin)
	if x.File != "" {
		f, err := os.Open(repo.CleanAndExpandPath(x.File))
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return cidForJSON(r, os.Stdout)
}

func cidForJSON(r io.Reader, w io.Writer) error {
	doc, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c, err := metadata.CIDForJSON(doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, c.String())
	return err
}

type CheckChallenges struct {
	File string `short:"f" long:"file" description:"The yaml definitions file. Checks the built in definitions if omitted."`
}

func (x *CheckChallenges) Execute(args []string) error {
	return checkChallenges(x.File, os.Stdout)
}

func checkChallenges(path string, w io.Writer) error {
	defs, err := challenges.DefaultDefinitions()
	if path != "" {
		defs, err = challenges.LoadDefinitions(repo.CleanAndExpandPath(path))
	}
	if err != nil {
		return err
	}
	return printJSON(w, defs)
}
