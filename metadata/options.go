// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package metadata

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/project-illium/emxd/metrics"
	"github.com/project-illium/emxd/repo"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the default number of requests per second sent
	// to one gateway.
	DefaultRateLimit = rate.Limit(10)

	// DefaultMaxSize is the largest metadata document accepted.
	DefaultMaxSize = 1 << 20

	// DefaultRequestTimeout bounds one gateway request.
	DefaultRequestTimeout = 30 * time.Second
)

// Option is configuration option function for the Fetcher
type Option func(cfg *config) error

// Gateways sets the gateway base urls, for example https://ipfs.io. Every
// fetch races all of them.
func Gateways(gateways []string) Option {
	return func(cfg *config) error {
		cfg.gateways = nil
		for _, g := range gateways {
			u, err := url.Parse(strings.TrimSuffix(g, "/"))
			if err != nil {
				return err
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return errors.New("gateway url must be http or https: " + g)
			}
			cfg.gateways = append(cfg.gateways, u.String())
		}
		return nil
	}
}

// Cache sets the datastore bodies are cached in. Without it nothing is
// cached.
func Cache(ds repo.Datastore) Option {
	return func(cfg *config) error {
		cfg.cache = ds
		return nil
	}
}

// RateLimit sets the per gateway request rate and burst.
func RateLimit(limit rate.Limit, burst int) Option {
	return func(cfg *config) error {
		cfg.limit = limit
		cfg.burst = burst
		return nil
	}
}

// HTTPClient sets the client used for gateway requests.
func HTTPClient(client *http.Client) Option {
	return func(cfg *config) error {
		cfg.client = client
		return nil
	}
}

// MaxSize sets the largest body accepted from a gateway.
func MaxSize(n int64) Option {
	return func(cfg *config) error {
		cfg.maxSize = n
		return nil
	}
}

// Metrics sets the collectors the fetcher reports to.
func Metrics(m *metrics.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// DefaultOptions returns a fetcher configuration with the default
// rate limit, size limit and client. Gateways must still be set.
func DefaultOptions() Option {
	return func(cfg *config) error {
		cfg.limit = DefaultRateLimit
		cfg.burst = 1
		cfg.maxSize = DefaultMaxSize
		cfg.client = &http.Client{Timeout: DefaultRequestTimeout}
		cfg.metrics = metrics.New(prometheus.NewRegistry())
		return nil
	}
}

type config struct {
	gateways []string
	cache    repo.Datastore
	limit    rate.Limit
	burst    int
	client   *http.Client
	maxSize  int64
	metrics  *metrics.Metrics
}

func (cfg *config) validate() error {
	if cfg == nil {
		return errors.New("NewFetcher: config cannot be nil")
	}
	if len(cfg.gateways) == 0 {
		return errors.New("NewFetcher: at least one gateway is required")
	}
	if cfg.client == nil {
		return errors.New("NewFetcher: http client cannot be nil")
	}
	if cfg.metrics == nil {
		return errors.New("NewFetcher: metrics cannot be nil")
	}
	if cfg.limit <= 0 || cfg.burst <= 0 {
		return errors.New("NewFetcher: rate limit must be positive")
	}
	if cfg.maxSize <= 0 {
		return errors.New("NewFetcher: max size must be positive")
	}
	return nil
}
