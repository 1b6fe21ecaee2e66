// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/project-illium/emxd/repo"
)

func main() {
	// Load the config file. There are three steps to this:
	// 1. Start with a config populated with default values.
	// 2. Override the default values with any provided config file options.
	// 3. Override the first two with any provided command line options.
	cfg, err := repo.LoadConfig()
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatal("Failed to load config", log.Args("error", err))
	}

	// Build and start the server.
	server, err := BuildServer(cfg)
	if err != nil {
		log.Fatal("Failed to start emxd", log.Args("error", err))
	}

	// Listen for an exit signal or a fatal indexing error and close.
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-c:
		log.Info("emxd gracefully shutting down")
	case err := <-server.Done():
		log.Error("Indexer stopped", log.Args("error", err))
	}
	if err := server.Close(); err != nil {
		log.Error("Shutdown error", log.Args("error", err))
		os.Exit(1)
	}
}
