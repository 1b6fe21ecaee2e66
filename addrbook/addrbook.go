// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package addrbook holds the chain addresses the handlers treat
// specially. The book is an immutable snapshot that is swapped as a whole
// when it is refreshed, so one block always sees a single consistent
// version.
package addrbook

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/project-illium/emxd/types"
	"gopkg.in/yaml.v3"
)

// Book is one version of the address book.
type Book struct {
	verifier string
	contract string
}

// New returns a book. Addresses are normalized.
func New(verifier, contract string) (*Book, error) {
	b := &Book{}
	for _, a := range []struct {
		in  string
		out *string
	}{{verifier, &b.verifier}, {contract, &b.contract}} {
		if a.in == "" {
			continue
		}
		if !common.IsHexAddress(a.in) {
			return nil, errors.New("invalid address " + a.in)
		}
		*a.out = types.NormalizeAddress(a.in)
	}
	return b, nil
}

// Verifier returns the address allowed to verify users, or an empty
// string if verification is disabled.
func (b *Book) Verifier() string {
	if b == nil {
		return ""
	}
	return b.verifier
}

// EntityManager returns the address of the EntityManager contract.
func (b *Book) EntityManager() string {
	if b == nil {
		return ""
	}
	return b.contract
}

// Source produces fresh versions of the book.
type Source interface {
	Fetch(ctx context.Context) (*Book, error)
}

// StaticSource always returns the same book.
type StaticSource struct {
	Book *Book
}

func (s StaticSource) Fetch(context.Context) (*Book, error) {
	return s.Book, nil
}

type fileContents struct {
	Verifier      string `yaml:"verifier"`
	EntityManager string `yaml:"entity_manager"`
}

// FileSource reads the book from a yaml file on every fetch.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(context.Context) (*Book, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var c fileContents
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return New(c.Verifier, c.EntityManager)
}

// Holder hands out the current book.
type Holder struct {
	book atomic.Pointer[Book]
}

// NewHolder returns a holder initialized with b.
func NewHolder(b *Book) *Holder {
	h := &Holder{}
	h.book.Store(b)
	return h
}

// Load returns the current book.
func (h *Holder) Load() *Book {
	return h.book.Load()
}

// Refresher periodically replaces the book held by a Holder.
type Refresher struct {
	holder   *Holder
	source   Source
	interval time.Duration
}

// NewRefresher returns a refresher which polls source every interval.
func NewRefresher(holder *Holder, source Source, interval time.Duration) *Refresher {
	return &Refresher{holder: holder, source: source, interval: interval}
}

// Refresh fetches and installs one new version of the book.
func (r *Refresher) Refresh(ctx context.Context) error {
	b, err := r.source.Fetch(ctx)
	if err != nil {
		return err
	}
	r.holder.book.Store(b)
	return nil
}

// Run refreshes the book until ctx is cancelled. Failed refreshes keep
// the previous book.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				log.Warn("Address book refresh failed", log.Args("error", err))
			}
		}
	}
}
