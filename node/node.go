package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eth2030/ethfacade/ledger"
	"github.com/eth2030/ethfacade/ledgerlink"
	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/metrics"
	"github.com/eth2030/ethfacade/rpc"
)

// PrefundBalance is credited to every Config.Prefund account: 1000 ether.
var PrefundBalance = new(uint256.Int).Mul(uint256.NewInt(1000), uint256.NewInt(1_000_000_000_000_000_000))

// Node is the top-level ethfacade service.
type Node struct {
	config *Config
	log    *log.Logger

	metrics *metrics.Metrics
	ledger  *ledger.Ledger     // dev backend
	client  *ledgerlink.Client // remote backend
	link    *ledgerlink.Server // dev ledger exposed over gRPC
	api     *rpc.EthAPI
	handler *rpc.Server

	rpcServer     *http.Server
	metricsServer *http.Server
	rpcAddr       net.Addr
	metricsAddr   net.Addr
	linkAddr      net.Addr
	cancelSealer  context.CancelFunc

	mu      sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
}

// New creates a Node with the given configuration. It opens the backend
// but does not start any network services.
func New(config *Config, logger *log.Logger) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Discard()
	}

	n := &Node{
		config: config,
		log:    logger.Module("node"),
		stop:   make(chan struct{}),
	}
	if config.MetricsEnabled {
		n.metrics = metrics.New("ethfacade")
	}

	var backend rpc.Backend
	switch config.Backend {
	case BackendDev:
		l, err := ledger.Open(ledger.Config{
			Genesis: devGenesis(config),
			DataDir: config.DataDir,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		n.ledger = l
		backend = l.Backend()
		if config.LedgerListen != "" {
			n.link = ledgerlink.NewServer(backend, logger)
		}
	case BackendRemote:
		client, err := ledgerlink.Dial(config.RemoteAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, err
		}
		n.client = client
		backend = client.Backend()
	}

	n.api = rpc.NewEthAPI(backend,
		rpc.WithLogger(logger),
		rpc.WithMetrics(n.metrics),
		rpc.WithClientVersion(config.ClientVersion),
	)
	n.handler = rpc.NewServer(n.api, rpc.ServerConfig{
		MaxBatchSize:   config.MaxBatchSize,
		MaxRequestSize: config.MaxRequestSize,
		Parallelism:    config.BatchParallelism,
	})
	return n, nil
}

func devGenesis(config *Config) *ledger.Genesis {
	g := ledger.DefaultGenesis()
	g.ChainID = config.ChainID
	g.GasPrice = uint256.NewInt(config.GasPrice)
	g.Author = config.Author
	for _, addr := range config.Prefund {
		g.Alloc[addr] = ledger.GenesisAccount{Balance: new(uint256.Int).Set(PrefundBalance)}
	}
	return g
}

// Start opens the listeners and starts serving.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node already running")
	}
	if n.stopped {
		return errors.New("node already stopped")
	}

	n.log.Info("starting ethfacade node", "backend", n.config.Backend)

	rpcLis, err := net.Listen("tcp", n.config.RPCAddr())
	if err != nil {
		return fmt.Errorf("start rpc: %w", err)
	}
	n.rpcAddr = rpcLis.Addr()
	n.rpcServer = &http.Server{Handler: n.handler.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go n.serveHTTP("rpc", n.rpcServer, rpcLis)

	if n.metrics != nil {
		metricsLis, err := net.Listen("tcp", n.config.MetricsAddr())
		if err != nil {
			rpcLis.Close()
			return fmt.Errorf("start metrics: %w", err)
		}
		n.metricsAddr = metricsLis.Addr()
		mux := http.NewServeMux()
		mux.Handle("/metrics", n.metrics.Handler())
		n.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go n.serveHTTP("metrics", n.metricsServer, metricsLis)
	}

	if n.link != nil {
		linkLis, err := net.Listen("tcp", n.config.LedgerListen)
		if err != nil {
			n.shutdownHTTP()
			return fmt.Errorf("start ledger service: %w", err)
		}
		n.linkAddr = linkLis.Addr()
		go func() {
			if err := n.link.Serve(linkLis); err != nil {
				n.log.Error("ledger service failed", "err", err)
			}
		}()
	}

	if n.ledger != nil && n.config.BlockPeriod > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		n.cancelSealer = cancel
		go func() {
			if err := n.ledger.Run(ctx, n.config.BlockPeriod); err != nil && !errors.Is(err, context.Canceled) {
				n.log.Warn("sealer stopped", "err", err)
			}
		}()
	}

	n.running = true
	n.log.Info("node started", "rpc", n.rpcAddr.String())
	return nil
}

func (n *Node) serveHTTP(name string, srv *http.Server, lis net.Listener) {
	n.log.Info("http server listening", "server", name, "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		n.log.Error("http server failed", "server", name, "err", err)
	}
}

func (n *Node) shutdownHTTP() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{n.rpcServer, n.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			n.log.Warn("http server shutdown failed", "err", err)
		}
	}
}

// Stop shuts all services down and closes the backend. It is safe to call
// more than once.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		return nil
	}
	n.log.Info("stopping ethfacade node")

	if n.cancelSealer != nil {
		n.cancelSealer()
	}
	n.shutdownHTTP()
	if n.link != nil {
		n.link.Stop()
	}

	var err error
	if n.ledger != nil {
		err = errors.Join(err, n.ledger.Close())
	}
	if n.client != nil {
		err = errors.Join(err, n.client.Close())
	}

	n.running = false
	n.stopped = true
	close(n.stop)
	n.log.Info("node stopped")
	return err
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Config returns the node configuration.
func (n *Node) Config() *Config {
	return n.config
}

// Running reports whether the node is serving.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// API returns the JSON-RPC service.
func (n *Node) API() *rpc.EthAPI {
	return n.api
}

// Ledger returns the development ledger, or nil in remote mode.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// RPCEndpoint returns the URL of the running JSON-RPC server.
func (n *Node) RPCEndpoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rpcAddr == nil {
		return ""
	}
	return "http://" + n.rpcAddr.String()
}

// MetricsEndpoint returns the URL of the metrics endpoint, if enabled.
func (n *Node) MetricsEndpoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.metricsAddr == nil {
		return ""
	}
	return "http://" + n.metricsAddr.String() + "/metrics"
}

// LedgerAddr returns the address the ledger service listens on, if any.
func (n *Node) LedgerAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.linkAddr == nil {
		return ""
	}
	return n.linkAddr.String()
}

// ParseAddresses parses hex account addresses.
func ParseAddresses(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, v := range values {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid address %q", v)
		}
		out = append(out, common.HexToAddress(v))
	}
	return out, nil
}
