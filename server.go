// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"io"
	stdsync "sync"
	"time"

	"github.com/project-illium/emxd/addrbook"
	"github.com/project-illium/emxd/chain"
	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/entitymanager"
	"github.com/project-illium/emxd/indexer"
	"github.com/project-illium/emxd/locker"
	"github.com/project-illium/emxd/metadata"
	"github.com/project-illium/emxd/metrics"
	"github.com/project-illium/emxd/repo"
	"github.com/project-illium/emxd/status"
	"github.com/project-illium/emxd/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// Server is the main class that brings all the constituent parts together
// into the indexing daemon.
type Server struct {
	cancelFunc context.CancelFunc
	ctx        context.Context
	config     *repo.Config

	logCloser io.Closer
	ds        repo.Datastore
	store     *store.Store
	chain     *chain.Client
	em        *entitymanager.EntityManager
	indexer   *indexer.Indexer
	status    *status.Server

	wg   stdsync.WaitGroup
	done chan error
}

// BuildServer is the constructor for the server. We pass in the config file here
// and use it to configure all the various parts of the Server.
func BuildServer(config *repo.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cancelFunc: cancel,
		ctx:        ctx,
		config:     config,
		done:       make(chan error, 1),
	}
	if err := s.build(); err != nil {
		s.Close()
		return nil, err
	}
	s.start()
	return s, nil
}

func (s *Server) build() error {
	var (
		config = s.config
		ctx    = s.ctx
		err    error
	)

	// Logging
	s.logCloser, err = setupLogging(config.LogDir, config.LogLevel, config.LogJSON)
	if err != nil {
		return err
	}
	log.Info("Starting emxd", log.Args("version", repo.VersionString(), "datadir", config.DataDir))

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Node datastore
	s.ds, err = repo.OpenDatastore(config.DataDir)
	if err != nil {
		return err
	}

	// Relational store
	s.store, err = store.Open(ctx, config.DB.Driver, config.DB.DSN)
	if err != nil {
		return err
	}

	// Challenges
	defs, err := challenges.DefaultDefinitions()
	if config.Indexer.ChallengesFile != "" {
		defs, err = challenges.LoadDefinitions(config.Indexer.ChallengesFile)
	}
	if err != nil {
		return err
	}
	if err := challenges.Seed(s.store.DB(ctx), defs); err != nil {
		return err
	}
	bus, err := challenges.NewBusFromDefinitions(defs, challenges.DefaultQueueSize)
	if err != nil {
		return err
	}

	// Address book
	book, err := addrbook.New(config.Indexer.Verifier, config.Chain.ContractAddress)
	if err != nil {
		return err
	}
	holder := addrbook.NewHolder(book)
	if config.Indexer.AddressBookFile != "" {
		refresher := addrbook.NewRefresher(holder, addrbook.FileSource{Path: config.Indexer.AddressBookFile}, config.Indexer.AddressBookInterval)
		if err := refresher.Refresh(ctx); err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			refresher.Run(ctx)
		}()
	}

	// Entity manager
	emOpts := []entitymanager.Option{
		entitymanager.DefaultOptions(),
		entitymanager.Store(s.store),
		entitymanager.ChallengeBus(bus),
		entitymanager.AddressBook(holder),
		entitymanager.FetchTimeout(config.Metadata.FetchTimeout),
		entitymanager.RevertDepth(config.Indexer.RevertDepth),
		entitymanager.Metrics(m),
	}
	if !config.Metadata.NoFetch {
		fetcherOpts := []metadata.Option{
			metadata.DefaultOptions(),
			metadata.Gateways(config.Metadata.Gateways),
			metadata.RateLimit(rate.Limit(config.Metadata.RateLimit), 1),
			metadata.Metrics(m),
		}
		if !config.Metadata.NoCache {
			fetcherOpts = append(fetcherOpts, metadata.Cache(s.ds))
		}
		fetcher, err := metadata.NewFetcher(fetcherOpts...)
		if err != nil {
			return err
		}
		emOpts = append(emOpts, entitymanager.Fetcher(fetcher))
	}
	s.em, err = entitymanager.NewEntityManager(emOpts...)
	if err != nil {
		return err
	}
	s.em.Subscribe(logNotification)

	// Chain
	if config.Chain.RPCURL == "" {
		return errors.New("chainrpc is required")
	}
	contract := holder.Load().EntityManager()
	if contract == "" {
		return errors.New("contract is required")
	}
	s.chain, err = chain.Dial(ctx, config.Chain.RPCURL, contract)
	if err != nil {
		return err
	}

	// Indexer
	s.indexer, err = indexer.NewIndexer(
		indexer.DefaultOptions(),
		indexer.Source(s.chain),
		indexer.EntityManager(s.em),
		indexer.Blocks(s.store),
		indexer.Locker(locker.New(s.ds)),
		indexer.StartBlock(config.Chain.StartBlock),
		indexer.MaxBlocks(config.Chain.MaxBlocks),
		indexer.Confirmations(config.Chain.Confirmations),
		indexer.Interval(config.Indexer.Interval),
		indexer.LockTTL(config.Indexer.LockTTL),
		indexer.ReorgWindow(config.Indexer.RevertDepth),
		indexer.Metrics(m),
	)
	if err != nil {
		return err
	}

	// Status server
	if !config.NoStatus {
		s.status, err = status.NewServer(config.StatusListener, status.NewHandler(s.em, registry))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.indexer.Run(s.ctx); err != nil {
			s.done <- err
		}
	}()
}

// Done receives the error that stopped the indexer.
func (s *Server) Done() <-chan error {
	return s.done
}

// Close stops the indexer and releases every resource the server holds.
func (s *Server) Close() error {
	s.cancelFunc()
	s.wg.Wait()

	var errs []error
	if s.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, s.status.Close(ctx))
		cancel()
	}
	if s.chain != nil {
		s.chain.Close()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.ds != nil {
		errs = append(errs, s.ds.Close())
	}
	if s.logCloser != nil {
		errs = append(errs, s.logCloser.Close())
	}
	return errors.Join(errs...)
}

func logNotification(n *entitymanager.Notification) {
	switch n.Type {
	case entitymanager.NTBlockCommitted:
		summary := n.Data.(*entitymanager.BlockSummary)
		if len(summary.Failures) > 0 {
			log.Debug("Block had rejected instructions", log.Args("block", summary.Number, "rejected", summary.Rejected))
		}
	case entitymanager.NTBlockReverted:
		summary := n.Data.(*entitymanager.RevertSummary)
		log.Debug("Revert committed", log.Args("target", summary.Target, "blocks", summary.Blocks))
	}
}
