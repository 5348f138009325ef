// Package config parses the node's CLI/file configuration into a resolved
// set of dagconfig.Params plus the ambient daemon options (data directory,
// log files, log level). Grounded on the teacher's cmd/kaspawallet/config.go
// and kasparov/kasparovd/config/config.go: a flags-tagged struct parsed with
// github.com/jessevdk/go-flags and a Parse entry point building the log rotators via logger.InitLogRotators.
package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/logger"
)

const (
	defaultLogFilename    = "tos.log"
	defaultErrLogFilename = "tos_err.log"
	defaultLogLevel       = "info"
	defaultDataDirname    = "data"
)

// NetworkFlags selects which registered dagconfig.Params a run uses.
// Grounded on the teacher's config.NetworkFlags (mainnet/testnet/devnet
// mutually exclusive boolean switches).
type NetworkFlags struct {
	TestNet bool `long:"testnet" description:"Use the test network"`
	DevNet  bool `long:"devnet" description:"Use the development network"`
}

// ResolveParams maps the network selection flags to a registered
// dagconfig.Params, defaulting to mainnet when neither switch is set.
func (n *NetworkFlags) ResolveParams() (*dagconfig.Params, error) {
	switch {
	case n.TestNet && n.DevNet:
		return nil, errors.New("--testnet and --devnet are mutually exclusive")
	case n.TestNet:
		return &dagconfig.TestNetParams, nil
	case n.DevNet:
		return &dagconfig.DevNetParams, nil
	default:
		return &dagconfig.MainNetParams, nil
	}
}

// Config is the node daemon's resolved configuration.
type Config struct {
	NetworkFlags

	DataDir    string `long:"datadir" description:"Directory to store chain state in"`
	LogDir     string `long:"logdir" description:"Directory to log output files in"`
	LogLevel   string `long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}" default:"info"`
	Profile    string `long:"profile" description:"Enable HTTP profiling on the given address:port"`
	Listeners  []string `long:"listen" description:"Add an address:port to listen for connections (may be given multiple times)"`

	// Params is resolved from NetworkFlags once parsing completes; it is
	// not itself a flag.
	Params *dagconfig.Params
}

// Parse parses args (typically os.Args[1:]) into a Config, resolving the
// network parameters and initializing log rotation as a side effect —
// mirroring the teacher's kasparovd/config.Parse.
func Parse(appName string, args []string) (*Config, error) {
	defaultDataDir := filepath.Join(".", appName+"-"+defaultDataDirname)
	defaultLogDir := filepath.Join(".", appName+"-logs")

	cfg := &Config{
		DataDir:  defaultDataDir,
		LogDir:   defaultLogDir,
		LogLevel: defaultLogLevel,
	}

	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	params, err := cfg.NetworkFlags.ResolveParams()
	if err != nil {
		return nil, err
	}
	cfg.Params = params

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating data directory %s", cfg.DataDir)
	}

	logger.InitLogRotators(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		filepath.Join(cfg.LogDir, defaultErrLogFilename),
	)
	logger.SetLogLevels(cfg.LogLevel)

	return cfg, nil
}

// ChainStoreDir returns the directory a Consensus built from cfg should
// open its ChainStore in, namespaced by network so mainnet/testnet/devnet
// data never collide under the same DataDir.
func (cfg *Config) ChainStoreDir() string {
	return filepath.Join(cfg.DataDir, cfg.Params.Name)
}
