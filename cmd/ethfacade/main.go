// Command ethfacade serves the Ethereum JSON-RPC facade over a dev ledger or
// a remote ledger service.
//
// Usage:
//
//	ethfacade [flags]
//
// Every flag can also be set through an ETHFACADE_* environment variable,
// e.g. ETHFACADE_RPC_PORT=8546.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ethfacade",
		Usage:   "Ethereum JSON-RPC facade",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags:   newFlags(),
		Action:  run,
	}
}

func run(ctx *cli.Context) error {
	cfg, err := configFromContext(ctx)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.NewWithFormat(os.Stderr, level, cfg.LogFormat)
	log.SetDefault(logger)

	logger.Info("ethfacade starting",
		"version", version,
		"backend", cfg.Backend,
		"rpc", cfg.RPCAddr(),
		"metrics", cfg.MetricsEnabled,
	)

	n, err := node.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if err := n.Start(); err != nil {
		n.Stop()
		return fmt.Errorf("start node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := n.Stop(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
