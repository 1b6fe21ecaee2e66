// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package status serves the daemon's health check and prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 5 * time.Second

// Checkpoint reports indexing progress.
type Checkpoint interface {
	JobName() string
	LastIndexed(ctx context.Context) (int64, error)
}

// Health is the /healthz response body.
type Health struct {
	Status      string `json:"status"`
	Job         string `json:"job"`
	LastIndexed int64  `json:"last_indexed"`
	Error       string `json:"error,omitempty"`
}

// Server is the status http server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewHandler returns the status routes.
func NewHandler(cp Checkpoint, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		h := Health{Status: "ok", Job: cp.JobName()}
		code := http.StatusOK
		n, err := cp.LastIndexed(ctx)
		if err != nil {
			h.Status = "unavailable"
			h.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		h.LastIndexed = n

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(h)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Listen opens a tcp listener for a multiaddr such as
// /ip4/127.0.0.1/tcp/9464.
func Listen(addr string) (net.Listener, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}
	netAddr, err := manet.ToNetAddr(ma)
	if err != nil {
		return nil, err
	}
	return net.Listen(netAddr.Network(), netAddr.String())
}

// NewServer listens on addr and serves handler until Close.
func NewServer(addr string, handler http.Handler) (*Server, error) {
	lis, err := Listen(addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: lis,
	}
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Status server stopped", log.Args("error", err))
		}
	}()
	log.Info("Status server listening", log.Args("addr", lis.Addr().String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close shuts the server down.
func (s *Server) Close(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
