// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store"
	"github.com/project-illium/emxd/types"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// testHookBeforeCheckpoint runs inside the commit transaction right before
// the checkpoint is saved. A non-nil error aborts the commit.
var testHookBeforeCheckpoint func() error

// Failure describes one instruction that was rejected.
type Failure struct {
	TxHash   string
	LogIndex uint
	Outcome  string
	Err      error
}

// BlockSummary describes one committed block.
type BlockSummary struct {
	Number        int64
	Hash          string
	Applied       int
	Rejected      int
	Rows          int
	ChallengeRows int
	Pending       int
	Failures      []Failure
}

// EntityManager replays the ManageEntity instructions of a block against
// the versioned entity tables. Blocks are processed one at a time by a
// single writer.
type EntityManager struct {
	cfg      *config
	registry *Registry

	// mtx serializes ProcessBlock and RevertToBefore.
	mtx sync.Mutex

	notifications     []NotificationCallback
	notificationsLock sync.RWMutex
}

// NewEntityManager returns a new entity manager. Callers normally pass
// DefaultOptions() first.
func NewEntityManager(opts ...Option) (*EntityManager, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &EntityManager{
		cfg:      &cfg,
		registry: NewRegistry(cfg.limits),
	}, nil
}

// JobName returns the checkpoint name the manager advances.
func (em *EntityManager) JobName() string {
	return em.cfg.jobName
}

// LastIndexed returns the number of the last committed block, or zero.
func (em *EntityManager) LastIndexed(ctx context.Context) (int64, error) {
	n, err := em.cfg.store.GetCheckpoint(ctx, em.cfg.jobName)
	if err != nil {
		return 0, StorageError{Op: "get checkpoint", Err: err}
	}
	return n, nil
}

type plan struct {
	raw     types.ManageEntity
	req     *Request
	env     envelope
	handler Handler
	meta    any
	err     error
}

// ProcessBlock indexes one block. Every row it produces, its revert
// snapshot, its audit entries, the challenge progress of its events and
// the advanced checkpoint are committed in a single transaction.
//
// Rejected instructions never fail the block. The returned error is a
// StorageError if the block should be retried or an AssertError if
// indexing must stop.
func (em *EntityManager) ProcessBlock(ctx context.Context, blk *types.Block) (*BlockSummary, error) {
	if blk == nil {
		return nil, AssertError("ProcessBlock: block cannot be nil")
	}

	em.mtx.Lock()
	defer em.mtx.Unlock()

	start := time.Now()
	book := em.cfg.book.Load()

	instructions := append([]types.ManageEntity(nil), blk.Instructions...)
	sort.SliceStable(instructions, func(i, j int) bool {
		return types.Less(instructions[i], instructions[j])
	})

	plans := make([]*plan, len(instructions))
	for i, in := range instructions {
		p := &plan{raw: in}
		p.req, p.env, p.err = newRequest(blk, in)
		if p.err == nil {
			h, ok := em.registry.Lookup(p.req.Kind, p.req.Action)
			if !ok {
				p.err = decodeError(nil, "unsupported action %s on %s", p.req.Action, p.req.Kind)
			}
			p.handler = h
		}
		plans[i] = p
	}

	if err := em.resolveMetadata(ctx, plans); err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.err != nil {
			continue
		}
		p.meta, p.err = p.handler.Decode(p.req)
	}

	ws := newWorkingSet()
	var refs []Ref
	for _, p := range plans {
		if p.err == nil {
			refs = append(refs, p.handler.Refs(p.req, p.meta)...)
		}
	}
	if err := ws.preload(ctx, em.cfg.store, refs); err != nil {
		return nil, err
	}
	refs = refs[:0]
	for _, p := range plans {
		if p.err != nil {
			continue
		}
		if dh, ok := p.handler.(DependentHandler); ok {
			refs = append(refs, dh.DependentRefs(ws, p.req, p.meta)...)
		}
	}
	if err := ws.preload(ctx, em.cfg.store, refs); err != nil {
		return nil, err
	}

	var (
		summary = &BlockSummary{Number: blk.Number, Hash: blk.Hash}
		audits  = make([]models.AuditLog, 0, len(plans))
		pending []models.PendingMetadata
	)
	q, err := em.cfg.bus.Scope(func(q *challenges.Queue) error {
		for _, p := range plans {
			entry := newAuditEntry(blk, p)
			if p.err == nil {
				kind, key := p.handler.Target(ws, p.req, p.meta)
				entry.PrevRecord, p.err = encodeRow(ws.Get(kind, key))
				if p.err != nil {
					return AssertError(fmt.Sprintf("encoding audit record: %s", p.err))
				}
			}
			if p.err == nil {
				hc := newHandlerContext(ws, p.req, book)
				p.err = p.handler.Apply(hc, p.req, p.meta)
				if p.err == nil {
					if err := hc.commit(q); err != nil {
						return err
					}
					pending = append(pending, hc.pending...)
				}
			}

			outcome, err := classify(p.err)
			if err != nil {
				return err
			}
			entry.Outcome = outcome
			if outcome == models.OutcomeOK {
				summary.Applied++
			} else {
				entry.Reason = storableText(p.err.Error())
				summary.Rejected++
				summary.Failures = append(summary.Failures, Failure{
					TxHash:   p.raw.TxHash,
					LogIndex: p.raw.LogIndex,
					Outcome:  outcome,
					Err:      p.err,
				})
				log.Debug("Instruction rejected", log.Args(
					"block", blk.Number,
					"tx", p.raw.TxHash,
					"log_index", p.raw.LogIndex,
					"outcome", outcome,
					"reason", p.err,
				))
			}
			em.cfg.metrics.Instructions.WithLabelValues(outcome).Inc()
			audits = append(audits, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snapshot, err := encodeSnapshot(ws)
	if err != nil {
		return nil, AssertError(fmt.Sprintf("encoding revert snapshot of block %d: %s", blk.Number, err))
	}

	err = em.cfg.store.Atomic(ctx, func(tx *store.Tx) error {
		prev, err := tx.GetCheckpoint(em.cfg.jobName)
		if err != nil {
			return err
		}
		if prev != 0 && blk.Number != prev+1 {
			return AssertError(fmt.Sprintf("block %d does not follow checkpoint %d", blk.Number, prev))
		}

		for _, kind := range ws.mutatedKinds() {
			keys := ws.keyOrder[kind]
			if err := tx.Invalidate(kind, keys); err != nil {
				return err
			}
			for _, key := range keys {
				versions := ws.added[kind][key]
				for i, row := range versions {
					row.Version().IsCurrent = i == len(versions)-1
				}
				if err := tx.Insert(versions...); err != nil {
					return err
				}
				summary.Rows += len(versions)
			}
		}

		if err := tx.PutRevertBlock(&models.RevertBlock{BlockNumber: blk.Number, PrevRecords: snapshot}); err != nil {
			return err
		}
		if err := tx.PruneRevertBlocks(blk.Number - em.cfg.revertDepth + 1); err != nil {
			return err
		}
		if err := tx.AppendAudit(audits); err != nil {
			return err
		}
		if err := tx.AddPendingMetadata(pending); err != nil {
			return err
		}
		if err := tx.PutBlock(&models.Block{
			Number:     blk.Number,
			Hash:       blk.Hash,
			ParentHash: blk.ParentHash,
			Timestamp:  blk.Timestamp,
		}); err != nil {
			return err
		}

		summary.ChallengeRows, err = em.cfg.bus.ProcessEvents(tx.DB(), q)
		if err != nil {
			return err
		}

		if testHookBeforeCheckpoint != nil {
			if err := testHookBeforeCheckpoint(); err != nil {
				return err
			}
		}
		return tx.SaveCheckpoint(em.cfg.jobName, blk.Number)
	})
	if err != nil {
		return nil, storageOrAssert(fmt.Sprintf("commit block %d", blk.Number), err)
	}
	summary.Pending = len(pending)

	em.cfg.metrics.BlocksProcessed.Inc()
	em.cfg.metrics.BlockDuration.Observe(time.Since(start).Seconds())
	em.cfg.metrics.ChallengeRows.Add(float64(summary.ChallengeRows))
	em.cfg.metrics.IndexedHeight.Set(float64(blk.Number))

	log.Debug("Block committed", log.Args(
		"block", blk.String(),
		"applied", summary.Applied,
		"rejected", summary.Rejected,
		"rows", summary.Rows,
	))
	em.sendNotification(NTBlockCommitted, summary)
	return summary, nil
}

// resolveMetadata fetches the metadata of every instruction carrying a
// bare CID. Fetches that fail or time out leave the request pending.
func (em *EntityManager) resolveMetadata(ctx context.Context, plans []*plan) error {
	var g errgroup.Group
	g.SetLimit(em.cfg.fetchConcurrency)
	for _, p := range plans {
		if p.err != nil || !p.env.needsFetch() {
			continue
		}
		if em.cfg.fetcher == nil {
			p.req.Pending = true
			continue
		}
		p := p
		g.Go(func() error {
			fctx, cancel := ctx, context.CancelFunc(func() {})
			if em.cfg.fetchTimeout > 0 {
				fctx, cancel = context.WithTimeout(ctx, em.cfg.fetchTimeout)
			}
			defer cancel()

			data, err := em.cfg.fetcher.Fetch(fctx, p.env.cid)
			if err != nil {
				log.Warn("Metadata fetch failed, indexing as pending", log.Args("cid", p.env.cid, "error", err))
				em.cfg.metrics.MetadataFetches.WithLabelValues("pending").Inc()
				p.req.Pending = true
				return nil
			}
			if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
				em.cfg.metrics.MetadataFetches.WithLabelValues("invalid").Inc()
				p.err = decodeError(nil, "metadata %s is not a json object", p.env.cid)
				return nil
			}
			em.cfg.metrics.MetadataFetches.WithLabelValues("ok").Inc()
			p.req.Metadata = data
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return StorageError{Op: "fetch metadata", Err: err}
	}
	return nil
}

func newAuditEntry(blk *types.Block, p *plan) models.AuditLog {
	return models.AuditLog{
		TxHash:      storableText(p.raw.TxHash),
		LogIndex:    p.raw.LogIndex,
		EntityType:  storableText(p.raw.EntityType),
		EntityID:    p.raw.EntityID,
		UserID:      p.raw.UserID,
		Action:      storableText(p.raw.Action),
		Signer:      storableText(types.NormalizeAddress(p.raw.Signer)),
		BlockNumber: blk.Number,
		BlockHash:   blk.Hash,
	}
}

func encodeRow(row models.Row) (*string, error) {
	if row == nil {
		return nil, nil
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

// classify maps the result of one instruction to its audit outcome.
// Anything other than a rejection is returned as a fatal error.
func classify(err error) (string, error) {
	if err == nil {
		return models.OutcomeOK, nil
	}
	var (
		ae AuthorizationError
		ve ValidationError
		de DecodeError
	)
	switch {
	case IsFatal(err):
		return "", err
	case errors.As(err, &ae):
		return models.OutcomeAuthorizationError, nil
	case errors.As(err, &ve):
		return models.OutcomeValidationError, nil
	case errors.As(err, &de):
		return models.OutcomeDecodeError, nil
	}
	return "", AssertError(fmt.Sprintf("handler returned an unclassified error: %s", err))
}
