// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package metadata fetches entity metadata documents by CID from IPFS
// gateways.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	"github.com/project-illium/emxd/repo"
	"golang.org/x/time/rate"
)

// ErrHashMismatch is returned by a gateway whose response does not hash to
// the requested CID.
var ErrHashMismatch = errors.New("metadata does not match cid")

// Fetcher races a set of gateways for a CID and returns the first
// response that verifies.
type Fetcher struct {
	cfg      *config
	limiters map[string]*rate.Limiter
}

// NewFetcher returns a Fetcher. DefaultOptions should be passed first.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	f := &Fetcher{
		cfg:      &cfg,
		limiters: make(map[string]*rate.Limiter, len(cfg.gateways)),
	}
	for _, g := range cfg.gateways {
		f.limiters[g] = rate.NewLimiter(cfg.limit, cfg.burst)
	}
	return f, nil
}

type result struct {
	gateway string
	body    []byte
	err     error
}

// Fetch returns the document addressed by id. Cached documents are returned
// without a request. Otherwise every gateway is asked at once; the first
// verified body wins and the other requests are cancelled.
func (f *Fetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	c, err := cid.Decode(id)
	if err != nil {
		return nil, err
	}

	if body, ok := f.cached(ctx, c); ok {
		f.cfg.metrics.CacheHits.Inc()
		return body, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(f.cfg.gateways))
	for _, g := range f.cfg.gateways {
		go func(gateway string) {
			body, err := f.fetchFrom(ctx, gateway, c)
			results <- result{gateway: gateway, body: body, err: err}
		}(g)
	}

	var errs []error
	for range f.cfg.gateways {
		r := <-results
		if r.err != nil {
			if ctx.Err() == nil {
				log.Debug("Gateway fetch failed", log.Args("gateway", r.gateway, "cid", id, "error", r.err))
			}
			f.cfg.metrics.GatewayRequests.WithLabelValues(r.gateway, "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", r.gateway, r.err))
			continue
		}
		f.cfg.metrics.GatewayRequests.WithLabelValues(r.gateway, "ok").Inc()
		f.store(ctx, c, r.body)
		return r.body, nil
	}
	return nil, fmt.Errorf("fetch %s: %w", id, errors.Join(errs...))
}

func (f *Fetcher) fetchFrom(ctx context.Context, gateway string, c cid.Cid) ([]byte, error) {
	if err := f.limiters[gateway].Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+"/ipfs/"+c.String(), nil)
	if err != nil {
		return nil, err
	}
	verify := addressesBytes(c)
	if verify {
		req.Header.Set("Accept", "application/vnd.ipld.raw")
	}
	resp, err := f.cfg.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.cfg.maxSize {
		return nil, fmt.Errorf("metadata larger than %d bytes", f.cfg.maxSize)
	}
	if verify {
		if err := Verify(c, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Verify checks that body hashes to the multihash in c.
func Verify(c cid.Cid, body []byte) error {
	got, err := c.Prefix().Sum(body)
	if err != nil {
		return err
	}
	if !got.Equals(c) {
		return ErrHashMismatch
	}
	return nil
}

// addressesBytes reports whether the CID's codec addresses the document
// bytes directly. Gateways return UnixFS files decoded, so dag-pb bodies
// cannot be checked against their CID.
func addressesBytes(c cid.Cid) bool {
	switch c.Type() {
	case cid.Raw, cid.DagJSON:
		return true
	default:
		return false
	}
}

func cacheKey(c cid.Cid) datastore.Key {
	return datastore.NewKey(repo.MetadataCacheKeyPrefix + c.String())
}

func (f *Fetcher) cached(ctx context.Context, c cid.Cid) ([]byte, bool) {
	if f.cfg.cache == nil {
		return nil, false
	}
	body, err := f.cfg.cache.Get(ctx, cacheKey(c))
	if err != nil {
		if !errors.Is(err, datastore.ErrNotFound) {
			log.Warn("Metadata cache read failed", log.Args("cid", c.String(), "error", err))
		}
		return nil, false
	}
	return body, true
}

func (f *Fetcher) store(ctx context.Context, c cid.Cid, body []byte) {
	if f.cfg.cache == nil {
		return
	}
	if err := f.cfg.cache.Put(ctx, cacheKey(c), body); err != nil {
		log.Warn("Metadata cache write failed", log.Args("cid", c.String(), "error", err))
	}
}
