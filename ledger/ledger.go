package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/rpc"
)

var (
	// ErrStateUnavailable is returned for state queries at any block but
	// the head and its parent.
	ErrStateUnavailable = errors.New("ledger: state is only available at the head and its parent")
	// ErrUnknownBlock is returned for queries anchored at a block the
	// ledger has never produced.
	ErrUnknownBlock = errors.New("ledger: unknown block")
	// ErrClosed is returned by operations on a closed ledger.
	ErrClosed = errors.New("ledger: closed")
	// ErrChainIDMismatch means the data directory belongs to another chain.
	ErrChainIDMismatch = errors.New("ledger: stored chain id does not match genesis")
)

// Config configures a Ledger.
type Config struct {
	Genesis *Genesis
	// DataDir is the LevelDB directory. Empty keeps everything in memory.
	DataDir string
	// PoolQueue is the capacity of the submission queue.
	PoolQueue int
	Logger    *log.Logger
}

// Ledger is a single-author chain sealed on demand. It is safe for
// concurrent use.
type Ledger struct {
	genesis *Genesis
	signer  types.Signer
	store   *store
	log     *log.Logger

	mu      sync.RWMutex
	head    *types.Block
	state   stateDB
	parent  stateDB // state of head's parent, nil until the first seal
	pending []*pendingTx
	known   map[common.Hash]struct{}

	// sendMu guards sends on commands against Close.
	sendMu   sync.RWMutex
	closed   bool
	commands chan<- command
	quit     chan struct{}
	done     <-chan struct{}
	closing  sync.Once
}

// Open creates a ledger from cfg. An existing data directory is resumed at
// its stored head; an empty one is initialised with the genesis block.
func Open(cfg Config) (*Ledger, error) {
	g := cfg.Genesis
	if g == nil {
		g = DefaultGenesis()
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	queue := cfg.PoolQueue
	if queue <= 0 {
		queue = 1024
	}

	st, err := openStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		genesis: g,
		signer:  types.LatestSignerForChainID(new(big.Int).SetUint64(g.ChainID)),
		store:   st,
		log:     logger.Module("ledger"),
		known:   make(map[common.Hash]struct{}),
		quit:    make(chan struct{}),
	}
	if err := l.init(); err != nil {
		st.close()
		return nil, err
	}

	commands := make(chan command, queue)
	done := make(chan struct{})
	l.commands = commands
	l.done = done
	go l.loop(commands, done)

	l.log.Info("ledger opened", "chainID", g.ChainID, "head", l.head.NumberU64(), "hash", l.head.Hash(), "persistent", cfg.DataDir != "")
	return l, nil
}

func (l *Ledger) init() error {
	id, ok, err := l.store.chainID()
	if err != nil {
		return err
	}
	if ok {
		if id != l.genesis.ChainID {
			return fmt.Errorf("%w: have %d, want %d", ErrChainIDMismatch, id, l.genesis.ChainID)
		}
		head, state, err := l.store.head()
		if err != nil {
			return err
		}
		if head != nil {
			l.head, l.state = head, state
			return nil
		}
	}

	state := l.genesis.state()
	header := &types.Header{
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   l.genesis.Author,
		Root:       state.fingerprint(),
		Number:     new(big.Int),
		GasLimit:   l.genesis.GasLimit,
		Time:       l.genesis.Timestamp,
		Difficulty: new(big.Int),
	}
	genesis := types.NewBlock(header, &types.Body{}, nil, trie.NewStackTrie(nil))
	if err := l.store.putChainID(l.genesis.ChainID); err != nil {
		return err
	}
	if err := l.store.commit(genesis, nil, state); err != nil {
		return err
	}
	l.head, l.state = genesis, state
	return nil
}

// Close stops the pool worker and closes the store. Submissions still
// queued are rejected with ErrClosed.
func (l *Ledger) Close() error {
	var err error
	l.closing.Do(func() {
		l.sendMu.Lock()
		l.closed = true
		l.sendMu.Unlock()
		close(l.quit)
		<-l.done
		l.mu.Lock()
		defer l.mu.Unlock()
		err = l.store.close()
	})
	return err
}

// Backend bundles the ledger as the facade's collaborator set.
func (l *Ledger) Backend() rpc.Backend {
	return rpc.Backend{Selector: l, Runtime: l, Pool: l, Converter: l}
}

// ConvertTransaction encodes tx as a pool extrinsic: its canonical binary
// encoding.
func (l *Ledger) ConvertTransaction(tx *types.Transaction) rpc.Extrinsic {
	return ConvertTransaction(tx)
}

// ConvertTransaction is the ledger's extrinsic encoding.
func ConvertTransaction(tx *types.Transaction) rpc.Extrinsic {
	enc, err := tx.MarshalBinary()
	if err != nil {
		return nil
	}
	return enc
}

// Head returns the current head block.
func (l *Ledger) Head() *types.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// BestHeader implements rpc.ChainSelector.
func (l *Ledger) BestHeader(ctx context.Context) (*types.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Head().Header(), nil
}

// knownBlock checks that at names a block of this chain.
func (l *Ledger) knownBlock(at common.Hash) error {
	l.mu.RLock()
	head := l.head.Hash()
	l.mu.RUnlock()
	if at == head {
		return nil
	}
	block, err := l.store.block(at)
	if err != nil {
		return err
	}
	if block == nil {
		return fmt.Errorf("%w: %x", ErrUnknownBlock, at)
	}
	return nil
}

// headState runs fn on the state at at, which must be the head or its
// parent. The parent is kept so a query anchored just before a seal still
// succeeds.
func (l *Ledger) headState(at common.Hash, fn func(stateDB)) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case at == l.head.Hash():
		fn(l.state)
	case l.parent != nil && at == l.head.ParentHash():
		fn(l.parent)
	default:
		return fmt.Errorf("%w: queried %x, head %x", ErrStateUnavailable, at, l.head.Hash())
	}
	return nil
}

// ChainID implements rpc.RuntimeAPI.
func (l *Ledger) ChainID(_ context.Context, at common.Hash) (uint64, error) {
	if err := l.knownBlock(at); err != nil {
		return 0, err
	}
	return l.genesis.ChainID, nil
}

// GasPrice implements rpc.RuntimeAPI.
func (l *Ledger) GasPrice(_ context.Context, at common.Hash) (*uint256.Int, error) {
	if err := l.knownBlock(at); err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(l.genesis.GasPrice), nil
}

// Author implements rpc.RuntimeAPI.
func (l *Ledger) Author(_ context.Context, at common.Hash) (common.Address, error) {
	if err := l.knownBlock(at); err != nil {
		return common.Address{}, err
	}
	return l.genesis.Author, nil
}

// AccountBasic implements rpc.RuntimeAPI.
func (l *Ledger) AccountBasic(_ context.Context, at common.Hash, addr common.Address) (rpc.AccountBasic, error) {
	var acc account
	if err := l.headState(at, func(s stateDB) { acc = s.lookup(addr) }); err != nil {
		return rpc.AccountBasic{}, err
	}
	return rpc.AccountBasic{Balance: acc.Balance, Nonce: acc.Nonce}, nil
}

// AccountCode implements rpc.RuntimeAPI.
func (l *Ledger) AccountCode(_ context.Context, at common.Hash, addr common.Address) ([]byte, error) {
	var code []byte
	if err := l.headState(at, func(s stateDB) { code = common.CopyBytes(s.lookup(addr).Code) }); err != nil {
		return nil, err
	}
	return code, nil
}

// BlockByHash implements rpc.RuntimeAPI.
func (l *Ledger) BlockByHash(_ context.Context, at common.Hash, hash common.Hash) (*types.Block, error) {
	if err := l.knownBlock(at); err != nil {
		return nil, err
	}
	return l.store.block(hash)
}

// BlockByNumber implements rpc.RuntimeAPI.
func (l *Ledger) BlockByNumber(_ context.Context, at common.Hash, number uint64) (*types.Block, error) {
	if err := l.knownBlock(at); err != nil {
		return nil, err
	}
	return l.store.blockByNumber(number)
}

// BlockTransactionCount implements rpc.RuntimeAPI.
func (l *Ledger) BlockTransactionCount(ctx context.Context, at common.Hash, number uint64) (uint64, bool, error) {
	block, err := l.BlockByNumber(ctx, at, number)
	if err != nil || block == nil {
		return 0, false, err
	}
	return uint64(len(block.Transactions())), true, nil
}

// TransactionStatus implements rpc.RuntimeAPI.
func (l *Ledger) TransactionStatus(_ context.Context, at common.Hash, hash common.Hash) (*rpc.TransactionStatus, error) {
	if err := l.knownBlock(at); err != nil {
		return nil, err
	}
	st, err := l.store.status(hash)
	if err != nil || st == nil {
		return nil, err
	}
	return &rpc.TransactionStatus{
		TransactionHash:  st.Hash,
		TransactionIndex: st.Index,
		From:             st.From,
		To:               st.To,
		ContractAddress:  st.ContractAddress,
	}, nil
}
