// Package node wires the ethfacade service together: it builds the ledger
// backend, the JSON-RPC facade, the HTTP servers and the metrics endpoint,
// and manages their lifecycle.
package node

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/rpc"
)

// Backend modes.
const (
	BackendDev    = "dev"
	BackendRemote = "remote"
)

// Config holds all configuration for an ethfacade node.
type Config struct {
	// RPCHost and RPCPort are the JSON-RPC HTTP listen address.
	RPCHost string
	RPCPort int

	// MetricsEnabled turns on the Prometheus endpoint on MetricsHost:MetricsPort.
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string
	// LogFormat selects the log encoding (json, text).
	LogFormat string

	// Backend selects the ledger the facade fronts: the built-in
	// development ledger or a remote one reached over gRPC.
	Backend string
	// RemoteAddr is the ledger service address in remote mode.
	RemoteAddr string

	// DataDir is the development ledger's LevelDB directory. Empty keeps
	// the chain in memory.
	DataDir string
	// ChainID and GasPrice configure the development chain.
	ChainID  uint64
	GasPrice uint64
	// BlockPeriod is the development ledger's sealing interval. Zero
	// disables periodic sealing.
	BlockPeriod time.Duration
	// Author is the development chain's block author.
	Author common.Address
	// Prefund lists accounts credited with PrefundBalance at genesis.
	Prefund []common.Address
	// LedgerListen, if set, exposes the development ledger over gRPC.
	LedgerListen string

	// MaxBatchSize, MaxRequestSize and BatchParallelism bound the HTTP
	// transport.
	MaxBatchSize     int
	MaxRequestSize   int64
	BatchParallelism int

	// ClientVersion is reported by web3_clientVersion.
	ClientVersion string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RPCHost:          "127.0.0.1",
		RPCPort:          8545,
		MetricsEnabled:   false,
		MetricsHost:      "127.0.0.1",
		MetricsPort:      6060,
		LogLevel:         "info",
		LogFormat:        "json",
		Backend:          BackendDev,
		ChainID:          1337,
		GasPrice:         1_000_000_000,
		BlockPeriod:      2 * time.Second,
		MaxBatchSize:     rpc.DefaultMaxBatchSize,
		MaxRequestSize:   rpc.DefaultMaxRequestSize,
		BatchParallelism: rpc.DefaultParallelism,
		ClientVersion:    rpc.DefaultClientVersion,
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", c.RPCPort)
	}
	if c.MetricsEnabled && (c.MetricsPort < 0 || c.MetricsPort > 65535) {
		return fmt.Errorf("config: invalid metrics port: %d", c.MetricsPort)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	switch c.Backend {
	case BackendDev:
		if c.ChainID == 0 {
			return errors.New("config: chain id must be non-zero")
		}
		if c.BlockPeriod < 0 {
			return fmt.Errorf("config: invalid block period: %s", c.BlockPeriod)
		}
	case BackendRemote:
		if c.RemoteAddr == "" {
			return errors.New("config: remote backend requires a ledger address")
		}
		if c.LedgerListen != "" {
			return errors.New("config: only the dev backend can be served over gRPC")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("config: invalid max batch size: %d", c.MaxBatchSize)
	}
	if c.MaxRequestSize < 1 {
		return fmt.Errorf("config: invalid max request size: %d", c.MaxRequestSize)
	}
	if c.BatchParallelism < 1 {
		return fmt.Errorf("config: invalid batch parallelism: %d", c.BatchParallelism)
	}
	return nil
}

// RPCAddr returns the RPC listen address string.
func (c *Config) RPCAddr() string {
	return net.JoinHostPort(c.RPCHost, strconv.Itoa(c.RPCPort))
}

// MetricsAddr returns the metrics listen address string.
func (c *Config) MetricsAddr() string {
	return net.JoinHostPort(c.MetricsHost, strconv.Itoa(c.MetricsPort))
}
