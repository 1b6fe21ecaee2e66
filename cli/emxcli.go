// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/project-illium/emxd/repo"
	"github.com/project-illium/emxd/store"
)

const defaultConfigFilename = "emxcli.conf"

type options struct {
	ShowVersion bool   `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	StatusAddr  string `short:"a" long:"statusaddr" description:"The address of the emxd status server (in multiaddr format)" default:"/ip4/127.0.0.1/tcp/9464"`
	DataDir     string `short:"d" long:"datadir" description:"The emxd data directory" default:"~/.emxd"`
	DBDriver    string `long:"dbdriver" description:"The database driver (sqlite or postgres)" default:"sqlite"`
	DBDSN       string `long:"dbdsn" description:"The database connection string. Defaults to the sqlite database in the data directory."`
}

func main() {

	var configFile string
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, "--configfile=") {
			configFile = strings.Split(arg, "--configfile=")[1]
		} else if arg == "-C" && len(os.Args) > i+1 {
			configFile = os.Args[i+1]
		}
	}
	if configFile == "" {
		configFile = filepath.Join(repo.DefaultHomeDir, defaultConfigFilename)
	}

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			usageMessage := "Use emxcli -h to show usage"
			fmt.Fprintln(os.Stderr, usageMessage)
			log.Fatal(err)
		}
	}
	if len(os.Args) == 2 && os.Args[1] == "-v" {
		fmt.Println(repo.VersionString())
		return
	}

	parser = flags.NewNamedParser("emxcli", flags.HelpFlag)
	parser.AddGroup("Connection options", "Configuration options for connecting to emxd", &opts)

	// Status server
	parser.AddCommand("getstatus", "Returns the health of the running indexer", "Returns the health of the running indexer as reported by the emxd status server", &GetStatus{opts: &opts})

	// Database
	parser.AddCommand("getcheckpoint", "Returns the last indexed block", "Returns the last indexed block and its checkpoint position", &GetCheckpoint{opts: &opts})
	parser.AddCommand("getblock", "Returns an indexed block", "Returns the indexed block at the given height", &GetBlock{opts: &opts})
	parser.AddCommand("getauditlog", "Returns the audit log for a block", "Returns one audit entry per instruction in the given block, in processing order", &GetAuditLog{opts: &opts})
	parser.AddCommand("getpendingmetadata", "Returns the instructions waiting on metadata", "Returns the instructions whose metadata could not be fetched when their block was indexed", &GetPendingMetadata{opts: &opts})
	parser.AddCommand("revertto", "Undoes every block from the given height", "Undoes every indexed block at or above the given height. emxd must be stopped first.", &RevertTo{opts: &opts})

	// Offline tools
	parser.AddCommand("cidforjson", "Computes the metadata CID of a json document", "Computes the dag-json CIDv1 a gateway would serve for the given json document", &CIDForJSON{})
	parser.AddCommand("checkchallenges", "Validates a challenge definitions file", "Parses a yaml challenge definitions file and prints the resulting challenges", &CheckChallenges{})

	if _, err := parser.Parse(); err != nil {
		log.Fatal(err)
	}
}

func (opts *options) dsn() string {
	if opts.DBDSN != "" {
		return opts.DBDSN
	}
	return repo.SqliteDSN(repo.CleanAndExpandPath(opts.DataDir))
}

func openStore(ctx context.Context, opts *options) (*store.Store, error) {
	return store.Open(ctx, opts.DBDriver, opts.dsn())
}

func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
