package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/ethfacade/node"
)

// Flag names.
const (
	rpcHostFlag        = "rpc.host"
	rpcPortFlag        = "rpc.port"
	rpcBatchFlag       = "rpc.batch"
	rpcMaxSizeFlag     = "rpc.maxsize"
	rpcParallelismFlag = "rpc.parallelism"
	metricsFlag        = "metrics"
	metricsHostFlag    = "metrics.host"
	metricsPortFlag    = "metrics.port"
	logLevelFlag       = "log.level"
	logFormatFlag      = "log.format"
	backendFlag        = "backend"
	remoteAddrFlag     = "remote.addr"
	dataDirFlag        = "datadir"
	chainIDFlag        = "dev.chainid"
	gasPriceFlag       = "dev.gasprice"
	periodFlag         = "dev.period"
	authorFlag         = "dev.author"
	prefundFlag        = "dev.prefund"
	ledgerListenFlag   = "ledger.listen"
)

// newFlags returns a fresh flag set. urfave/cli writes environment values
// back into the flag structs, so each App needs its own.
func newFlags() []cli.Flag {
	defaults := node.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    rpcHostFlag,
			Usage:   "JSON-RPC listening interface",
			Value:   defaults.RPCHost,
			EnvVars: []string{"ETHFACADE_RPC_HOST"},
		},
		&cli.IntFlag{
			Name:    rpcPortFlag,
			Usage:   "JSON-RPC listening port",
			Value:   defaults.RPCPort,
			EnvVars: []string{"ETHFACADE_RPC_PORT"},
		},
		&cli.IntFlag{
			Name:    rpcBatchFlag,
			Usage:   "maximum number of requests in one batch",
			Value:   defaults.MaxBatchSize,
			EnvVars: []string{"ETHFACADE_RPC_BATCH"},
		},
		&cli.Int64Flag{
			Name:    rpcMaxSizeFlag,
			Usage:   "maximum request body size in bytes",
			Value:   defaults.MaxRequestSize,
			EnvVars: []string{"ETHFACADE_RPC_MAXSIZE"},
		},
		&cli.IntFlag{
			Name:    rpcParallelismFlag,
			Usage:   "concurrent requests executed per batch",
			Value:   defaults.BatchParallelism,
			EnvVars: []string{"ETHFACADE_RPC_PARALLELISM"},
		},
		&cli.BoolFlag{
			Name:    metricsFlag,
			Usage:   "serve Prometheus metrics",
			EnvVars: []string{"ETHFACADE_METRICS"},
		},
		&cli.StringFlag{
			Name:    metricsHostFlag,
			Usage:   "metrics listening interface",
			Value:   defaults.MetricsHost,
			EnvVars: []string{"ETHFACADE_METRICS_HOST"},
		},
		&cli.IntFlag{
			Name:    metricsPortFlag,
			Usage:   "metrics listening port",
			Value:   defaults.MetricsPort,
			EnvVars: []string{"ETHFACADE_METRICS_PORT"},
		},
		&cli.StringFlag{
			Name:    logLevelFlag,
			Usage:   "log level (debug, info, warn, error)",
			Value:   defaults.LogLevel,
			EnvVars: []string{"ETHFACADE_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    logFormatFlag,
			Usage:   "log format (json, text)",
			Value:   defaults.LogFormat,
			EnvVars: []string{"ETHFACADE_LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    backendFlag,
			Usage:   "ledger backend (dev, remote)",
			Value:   defaults.Backend,
			EnvVars: []string{"ETHFACADE_BACKEND"},
		},
		&cli.StringFlag{
			Name:    remoteAddrFlag,
			Usage:   "address of a remote ledger service",
			EnvVars: []string{"ETHFACADE_REMOTE_ADDR"},
		},
		&cli.StringFlag{
			Name:    dataDirFlag,
			Usage:   "dev ledger data directory (in-memory when empty)",
			EnvVars: []string{"ETHFACADE_DATADIR"},
		},
		&cli.Uint64Flag{
			Name:    chainIDFlag,
			Usage:   "dev ledger chain id",
			Value:   defaults.ChainID,
			EnvVars: []string{"ETHFACADE_DEV_CHAINID"},
		},
		&cli.Uint64Flag{
			Name:    gasPriceFlag,
			Usage:   "dev ledger gas price in wei",
			Value:   defaults.GasPrice,
			EnvVars: []string{"ETHFACADE_DEV_GASPRICE"},
		},
		&cli.DurationFlag{
			Name:    periodFlag,
			Usage:   "dev ledger block period (0 disables sealing)",
			Value:   defaults.BlockPeriod,
			EnvVars: []string{"ETHFACADE_DEV_PERIOD"},
		},
		&cli.StringFlag{
			Name:    authorFlag,
			Usage:   "dev ledger block author",
			EnvVars: []string{"ETHFACADE_DEV_AUTHOR"},
		},
		&cli.StringSliceFlag{
			Name:    prefundFlag,
			Usage:   "accounts credited at genesis",
			EnvVars: []string{"ETHFACADE_DEV_PREFUND"},
		},
		&cli.StringFlag{
			Name:    ledgerListenFlag,
			Usage:   "expose the dev ledger over gRPC on this address",
			EnvVars: []string{"ETHFACADE_LEDGER_LISTEN"},
		},
	}
}

// configFromContext resolves the node configuration from flags and the
// environment.
func configFromContext(ctx *cli.Context) (*node.Config, error) {
	cfg := node.DefaultConfig()
	cfg.RPCHost = ctx.String(rpcHostFlag)
	cfg.RPCPort = ctx.Int(rpcPortFlag)
	cfg.MaxBatchSize = ctx.Int(rpcBatchFlag)
	cfg.MaxRequestSize = ctx.Int64(rpcMaxSizeFlag)
	cfg.BatchParallelism = ctx.Int(rpcParallelismFlag)
	cfg.MetricsEnabled = ctx.Bool(metricsFlag)
	cfg.MetricsHost = ctx.String(metricsHostFlag)
	cfg.MetricsPort = ctx.Int(metricsPortFlag)
	cfg.LogLevel = ctx.String(logLevelFlag)
	cfg.LogFormat = ctx.String(logFormatFlag)
	cfg.Backend = ctx.String(backendFlag)
	cfg.RemoteAddr = ctx.String(remoteAddrFlag)
	cfg.DataDir = ctx.String(dataDirFlag)
	cfg.ChainID = ctx.Uint64(chainIDFlag)
	cfg.GasPrice = ctx.Uint64(gasPriceFlag)
	cfg.BlockPeriod = ctx.Duration(periodFlag)
	cfg.LedgerListen = ctx.String(ledgerListenFlag)
	cfg.ClientVersion = "ethfacade/" + version

	if author := ctx.String(authorFlag); author != "" {
		addrs, err := node.ParseAddresses([]string{author})
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", authorFlag, err)
		}
		cfg.Author = addrs[0]
	}
	prefund, err := node.ParseAddresses(ctx.StringSlice(prefundFlag))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", prefundFlag, err)
	}
	cfg.Prefund = prefund

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
