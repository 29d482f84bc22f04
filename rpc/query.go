package rpc

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// AccountView is an account's balance, nonce and code at one position.
type AccountView struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
}

// QueryFacade runs read-only queries against the node runtime at resolved
// chain positions. It keeps no state between calls.
type QueryFacade struct {
	resolver *Resolver
	runtime  RuntimeAPI
}

// NewQueryFacade creates a facade over the runtime, resolving positions
// through resolver.
func NewQueryFacade(resolver *Resolver, runtime RuntimeAPI) *QueryFacade {
	return &QueryFacade{resolver: resolver, runtime: runtime}
}

// BlockNumber returns the height of the canonical head.
func (q *QueryFacade) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := q.resolver.Head(ctx)
	if err != nil {
		return 0, err
	}
	return head.Number, nil
}

// ChainID returns the chain id reported by the runtime at the head.
func (q *QueryFacade) ChainID(ctx context.Context) (uint64, error) {
	head, err := q.resolver.Head(ctx)
	if err != nil {
		return 0, err
	}
	id, err := q.runtime.ChainID(ctx, head.Hash)
	if err != nil {
		return 0, queryFailed(msgChainID, err)
	}
	return id, nil
}

// GasPrice returns the runtime's gas price at the head.
func (q *QueryFacade) GasPrice(ctx context.Context) (*uint256.Int, error) {
	head, err := q.resolver.Head(ctx)
	if err != nil {
		return nil, err
	}
	price, err := q.runtime.GasPrice(ctx, head.Hash)
	if err == nil && price == nil {
		err = errors.New("runtime returned no gas price")
	}
	if err != nil {
		return nil, queryFailed(msgGasPrice, err)
	}
	return price, nil
}

// Author returns the block author the runtime reports at the head.
func (q *QueryFacade) Author(ctx context.Context) (common.Address, error) {
	head, err := q.resolver.Head(ctx)
	if err != nil {
		return common.Address{}, err
	}
	author, err := q.runtime.Author(ctx, head.Hash)
	if err != nil {
		return common.Address{}, queryFailed(msgAuthor, err)
	}
	return author, nil
}

func (q *QueryFacade) accountBasic(ctx context.Context, at common.Hash, addr common.Address) (AccountBasic, error) {
	basic, err := q.runtime.AccountBasic(ctx, at, addr)
	if err == nil && basic.Balance == nil {
		err = errors.New("runtime returned no balance")
	}
	if err != nil {
		return AccountBasic{}, queryFailed(msgAccount, err)
	}
	return basic, nil
}

// Balance returns the balance of addr. ref must be nil or latest.
func (q *QueryFacade) Balance(ctx context.Context, addr common.Address, ref *BlockNumber) (*uint256.Int, error) {
	pos, err := q.resolver.ResolveState(ctx, ref)
	if err != nil {
		return nil, err
	}
	basic, err := q.accountBasic(ctx, pos.Hash, addr)
	if err != nil {
		return nil, err
	}
	return basic.Balance, nil
}

// Nonce returns the nonce of addr. ref must be nil or latest.
func (q *QueryFacade) Nonce(ctx context.Context, addr common.Address, ref *BlockNumber) (uint64, error) {
	pos, err := q.resolver.ResolveState(ctx, ref)
	if err != nil {
		return 0, err
	}
	basic, err := q.accountBasic(ctx, pos.Hash, addr)
	if err != nil {
		return 0, err
	}
	return basic.Nonce, nil
}

// Code returns the code deployed at addr. ref must be nil or latest.
func (q *QueryFacade) Code(ctx context.Context, addr common.Address, ref *BlockNumber) ([]byte, error) {
	pos, err := q.resolver.ResolveState(ctx, ref)
	if err != nil {
		return nil, err
	}
	code, err := q.runtime.AccountCode(ctx, pos.Hash, addr)
	if err != nil {
		return nil, queryFailed(msgAccountCode, err)
	}
	return code, nil
}

// AccountView returns balance, nonce and code of addr from a single
// resolved position. Any failing sub-query fails the whole view.
func (q *QueryFacade) AccountView(ctx context.Context, addr common.Address, ref *BlockNumber) (AccountView, error) {
	pos, err := q.resolver.ResolveState(ctx, ref)
	if err != nil {
		return AccountView{}, err
	}
	basic, err := q.accountBasic(ctx, pos.Hash, addr)
	if err != nil {
		return AccountView{}, err
	}
	code, err := q.runtime.AccountCode(ctx, pos.Hash, addr)
	if err != nil {
		return AccountView{}, queryFailed(msgAccountCode, err)
	}
	return AccountView{Balance: basic.Balance, Nonce: basic.Nonce, Code: code}, nil
}

// BlockByHash looks a block up by hash in the head's context. A missing
// block yields (nil, nil).
func (q *QueryFacade) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	head, err := q.resolver.Head(ctx)
	if err != nil {
		return nil, err
	}
	block, err := q.runtime.BlockByHash(ctx, head.Hash, hash)
	if err != nil {
		return nil, queryFailed(msgBlock, err)
	}
	return block, nil
}

// BlockByNumber looks a block up by height; latest means the head's
// height. A missing block yields (nil, nil).
func (q *QueryFacade) BlockByNumber(ctx context.Context, ref BlockNumber) (*types.Block, error) {
	head, number, err := q.resolver.ResolveHeight(ctx, ref)
	if err != nil {
		return nil, err
	}
	block, err := q.runtime.BlockByNumber(ctx, head.Hash, number)
	if err != nil {
		return nil, queryFailed(msgBlock, err)
	}
	return block, nil
}

// BlockTransactionCount returns the number of transactions in the block at
// ref, with ok=false when there is no such block.
func (q *QueryFacade) BlockTransactionCount(ctx context.Context, ref BlockNumber) (uint64, bool, error) {
	head, number, err := q.resolver.ResolveHeight(ctx, ref)
	if err != nil {
		return 0, false, err
	}
	count, ok, err := q.runtime.BlockTransactionCount(ctx, head.Hash, number)
	if err != nil {
		return 0, false, queryFailed(msgBlockTxCount, err)
	}
	return count, ok, nil
}

// TransactionStatus returns the node's status record for hash, or nil when
// the transaction is not (yet) included.
func (q *QueryFacade) TransactionStatus(ctx context.Context, hash common.Hash) (*TransactionStatus, error) {
	head, err := q.resolver.Head(ctx)
	if err != nil {
		return nil, err
	}
	status, err := q.runtime.TransactionStatus(ctx, head.Hash, hash)
	if err != nil {
		return nil, queryFailed(msgTxStatus, err)
	}
	return status, nil
}
