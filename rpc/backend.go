package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethfacade/common/future"
)

// The facade never owns chain data. Everything it answers comes from the
// four node capabilities below, injected once through Backend and shared
// read-only by all requests.

// ChainSelector reports the node's current canonical head.
type ChainSelector interface {
	BestHeader(ctx context.Context) (*types.Header, error)
}

// AccountBasic is the balance and nonce of an account.
type AccountBasic struct {
	Balance *uint256.Int
	Nonce   uint64
}

// TransactionStatus is the node's record of an included transaction.
type TransactionStatus struct {
	TransactionHash  common.Hash
	TransactionIndex uint32
	From             common.Address
	To               *common.Address
	ContractAddress  *common.Address
}

// RuntimeAPI answers read-only queries against the node's execution engine
// at the block identified by at. Lookups of things that do not exist return
// a nil result and a nil error.
type RuntimeAPI interface {
	ChainID(ctx context.Context, at common.Hash) (uint64, error)
	GasPrice(ctx context.Context, at common.Hash) (*uint256.Int, error)
	Author(ctx context.Context, at common.Hash) (common.Address, error)
	AccountBasic(ctx context.Context, at common.Hash, addr common.Address) (AccountBasic, error)
	AccountCode(ctx context.Context, at common.Hash, addr common.Address) ([]byte, error)
	BlockByHash(ctx context.Context, at common.Hash, hash common.Hash) (*types.Block, error)
	BlockByNumber(ctx context.Context, at common.Hash, number uint64) (*types.Block, error)
	// BlockTransactionCount reports ok=false when the block does not exist.
	BlockTransactionCount(ctx context.Context, at common.Hash, number uint64) (count uint64, ok bool, err error)
	TransactionStatus(ctx context.Context, at common.Hash, hash common.Hash) (*TransactionStatus, error)
}

// TxSource tags where a pool submission originated.
type TxSource int

const (
	TxSourceLocal TxSource = iota
	TxSourceExternal
)

func (s TxSource) String() string {
	if s == TxSourceLocal {
		return "local"
	}
	return "external"
}

// Extrinsic is a transaction in the pool's native submittable encoding.
type Extrinsic []byte

// TxPool accepts converted transactions. SubmitOne must not block on
// validation; the returned future resolves exactly once with the pool's
// verdict.
type TxPool interface {
	SubmitOne(ctx context.Context, at ChainPosition, source TxSource, xt Extrinsic) future.Future[future.Result[common.Hash]]
}

// TxConverter turns a decoded Ethereum transaction into the pool's unit.
type TxConverter interface {
	ConvertTransaction(tx *types.Transaction) Extrinsic
}

// ConverterFunc adapts a plain function to TxConverter.
type ConverterFunc func(tx *types.Transaction) Extrinsic

func (f ConverterFunc) ConvertTransaction(tx *types.Transaction) Extrinsic { return f(tx) }

// Backend bundles the node capabilities the facade is built on.
type Backend struct {
	Selector  ChainSelector
	Runtime   RuntimeAPI
	Pool      TxPool
	Converter TxConverter
}
