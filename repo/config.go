// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jessevdk/go-flags"
	"github.com/multiformats/go-multiaddr"
)

//go:embed sample-emxd.conf
var configFS embed.FS

const (
	DefaultLogFilename    = "emxd.log"
	defaultConfigFilename = "emxd.conf"

	DefaultStatusListener = "/ip4/127.0.0.1/tcp/9464"
	DefaultSqliteFilename = "emxd.db"
)

var (
	DefaultHomeDir    = AppDataDir("emxd", false)
	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)

	// DefaultGateways are used when no gateway is configured.
	DefaultGateways = []string{"https://ipfs.io", "https://dweb.link"}
)

// Config defines the configuration options for the daemon.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion    bool   `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir        string `short:"d" long:"datadir" description:"Directory to store data"`
	LogDir         string `long:"logdir" description:"Directory to log output"`
	LogLevel       string `short:"l" long:"loglevel" description:"Set the logging level [trace, debug, info, warning, error, fatal]." default:"info"`
	LogJSON        bool   `long:"logjson" description:"Format log output as JSON"`
	StatusListener string `long:"statuslisten" description:"Interface/port for the status server (/healthz, /metrics) in multiaddr format (default:/ip4/127.0.0.1/tcp/9464)"`
	NoStatus       bool   `long:"nostatus" description:"Disable the status server"`

	DB       DBOptions       `group:"Database Options"`
	Chain    ChainOptions    `group:"Chain Options"`
	Metadata MetadataOptions `group:"Metadata Options"`
	Indexer  IndexerOptions  `group:"Indexer Options"`
}

type DBOptions struct {
	Driver string `long:"dbdriver" description:"The relational database driver [postgres, sqlite]" default:"sqlite"`
	DSN    string `long:"dbdsn" description:"The database connection string. For sqlite this defaults to a file in the data directory."`
}

type ChainOptions struct {
	RPCURL          string `long:"chainrpc" description:"The URL of the chain's JSON-RPC endpoint"`
	ContractAddress string `long:"contract" description:"The address of the EntityManager contract"`
	StartBlock      int64  `long:"startblock" description:"The first block to index when no checkpoint exists" default:"1"`
	MaxBlocks       int    `long:"maxblocks" description:"The maximum number of blocks indexed per cycle" default:"100"`
	Confirmations   int64  `long:"confirmations" description:"Only index blocks this many blocks behind the chain tip" default:"0"`
}

type MetadataOptions struct {
	Gateways     []string      `long:"gateway" description:"An IPFS gateway to fetch metadata from. May be repeated."`
	FetchTimeout time.Duration `long:"fetchtimeout" description:"The time allowed for one metadata fetch before the instruction is marked pending" default:"10s"`
	RateLimit    float64       `long:"gatewayrate" description:"The maximum requests per second sent to each gateway" default:"10"`
	NoFetch      bool          `long:"nofetch" description:"Do not fetch metadata by CID. Every CID instruction is marked pending."`
	NoCache      bool          `long:"nocache" description:"Do not cache fetched metadata in the datastore"`
}

type IndexerOptions struct {
	Interval            time.Duration `long:"interval" description:"The time between indexing cycles" default:"1s"`
	LockTTL             time.Duration `long:"lockttl" description:"The lifetime of the indexing lock lease" default:"30s"`
	RevertDepth         int64         `long:"revertdepth" description:"The number of revert snapshots to keep" default:"100"`
	ChallengesFile      string        `long:"challenges" description:"A yaml file of challenge definitions overriding the built in ones"`
	Verifier            string        `long:"verifier" description:"The address allowed to verify users"`
	AddressBookFile     string        `long:"addrbook" description:"A yaml file holding the address book. It is re-read every addrbookinterval."`
	AddressBookInterval time.Duration `long:"addrbookinterval" description:"The time between address book refreshes" default:"5m"`
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in proper functionality without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	// Default config.
	cfg := Config{
		DataDir:    DefaultHomeDir,
		ConfigFile: defaultConfigFile,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
	}
	if preCfg.DataDir != cfg.DataDir && preCfg.ConfigFile == cfg.ConfigFile {
		preCfg.ConfigFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", VersionString())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)

	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		err := createDefaultConfigFile(preCfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a "+
				"default config file: %v\n", err)
		}
	}

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	// Reparse command-line arguments to override config file settings
	_, err = parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		} else {
			fmt.Fprintf(os.Stderr, "Error parsing command line arguments: %v\n", err)
			return nil, err
		}
	}
	cfg.ConfigFile = preCfg.ConfigFile

	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	if cfg.LogDir == "" {
		cfg.LogDir = CleanAndExpandPath(path.Join(cfg.DataDir, "logs"))
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.WithCaller(true).Error("Bad config file", log.Args("error", configFileError))
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SqliteDSN returns the dsn of the default sqlite database in dataDir.
func SqliteDSN(dataDir string) string {
	return "file:" + filepath.Join(dataDir, DefaultSqliteFilename) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (cfg *Config) setDefaults() error {
	if cfg.StatusListener == "" {
		cfg.StatusListener = DefaultStatusListener
	}
	if cfg.DB.Driver == "sqlite" && cfg.DB.DSN == "" {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return err
		}
		cfg.DB.DSN = SqliteDSN(cfg.DataDir)
	}
	if len(cfg.Metadata.Gateways) == 0 {
		cfg.Metadata.Gateways = append([]string(nil), DefaultGateways...)
	}
	return nil
}

func (cfg *Config) validate() error {
	switch cfg.DB.Driver {
	case "postgres":
		if cfg.DB.DSN == "" {
			return errors.New("dbdsn is required with the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", cfg.DB.Driver)
	}
	if _, err := multiaddr.NewMultiaddr(cfg.StatusListener); err != nil {
		return fmt.Errorf("invalid statuslisten address: %w", err)
	}
	if cfg.Chain.ContractAddress != "" && !common.IsHexAddress(cfg.Chain.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", cfg.Chain.ContractAddress)
	}
	if cfg.Indexer.Verifier != "" && !common.IsHexAddress(cfg.Indexer.Verifier) {
		return fmt.Errorf("invalid verifier address %q", cfg.Indexer.Verifier)
	}
	if cfg.Chain.StartBlock < 1 {
		return errors.New("startblock must be at least 1")
	}
	if cfg.Chain.MaxBlocks < 1 {
		return errors.New("maxblocks must be at least 1")
	}
	if cfg.Chain.Confirmations < 0 {
		return errors.New("confirmations cannot be negative")
	}
	if cfg.Indexer.RevertDepth < 1 {
		return errors.New("revertdepth must be at least 1")
	}
	if cfg.Indexer.Interval <= 0 || cfg.Indexer.LockTTL <= 0 {
		return errors.New("interval and lockttl must be positive")
	}
	if cfg.Indexer.LockTTL <= cfg.Indexer.Interval {
		return errors.New("lockttl must be longer than interval")
	}
	if cfg.Metadata.RateLimit <= 0 {
		return errors.New("gatewayrate must be positive")
	}
	return nil
}

// createDefaultConfig copies the sample-emxd.conf content to the given
// destination path.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	sampleBytes, err := fs.ReadFile(configFS, "sample-emxd.conf")
	if err != nil {
		return err
	}
	src := bytes.NewReader(sampleBytes)

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	reader := bufio.NewReader(src)
	for err != io.EOF {
		var line string
		line, err = reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}

		if _, err := dest.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
