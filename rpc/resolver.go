package rpc

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ChainPosition identifies a canonical block. It is only meaningful for
// the request that obtained it: the head may move on at any time.
type ChainPosition struct {
	Hash   common.Hash
	Number uint64
}

// Resolver maps block references onto canonical chain positions.
type Resolver struct {
	selector ChainSelector
}

// NewResolver creates a resolver over the node's chain selector.
func NewResolver(selector ChainSelector) *Resolver {
	return &Resolver{selector: selector}
}

// Head returns the current canonical head.
func (r *Resolver) Head(ctx context.Context) (ChainPosition, error) {
	header, err := r.selector.BestHeader(ctx)
	if err == nil && (header == nil || header.Number == nil) {
		err = errors.New("no canonical head")
	}
	if err != nil {
		return ChainPosition{}, &Error{Kind: KindResolution, Msg: msgFetchHeader, Err: err}
	}
	return ChainPosition{Hash: header.Hash(), Number: header.Number.Uint64()}, nil
}

// Resolve maps ref onto a chain position. Only latest has a position of its
// own; the other tags are not implemented and concrete heights are only
// meaningful to lookups that take a height directly (see ResolveHeight).
func (r *Resolver) Resolve(ctx context.Context, ref BlockNumber) (ChainPosition, error) {
	switch {
	case ref == LatestBlockNumber:
		return r.Head(ctx)
	case ref.IsTag():
		return ChainPosition{}, unsupportedTag(ref)
	default:
		return ChainPosition{}, unsupported(msgHistoricalState)
	}
}

// ResolveState resolves the block parameter of a state query (balance,
// nonce, code). A missing parameter means latest; every other reference is
// historical state, which is not served.
func (r *Resolver) ResolveState(ctx context.Context, ref *BlockNumber) (ChainPosition, error) {
	if ref == nil || *ref == LatestBlockNumber {
		return r.Head(ctx)
	}
	if ref.IsTag() {
		return ChainPosition{}, unsupportedTag(*ref)
	}
	return ChainPosition{}, unsupported(msgHistoricalState)
}

// ResolveHeight returns the current head together with the height ref
// names: the height itself, or the head's height for latest.
func (r *Resolver) ResolveHeight(ctx context.Context, ref BlockNumber) (ChainPosition, uint64, error) {
	if ref.IsTag() && ref != LatestBlockNumber {
		return ChainPosition{}, 0, unsupportedTag(ref)
	}
	head, err := r.Head(ctx)
	if err != nil {
		return ChainPosition{}, 0, err
	}
	if ref == LatestBlockNumber {
		return head, head.Number, nil
	}
	return head, uint64(ref), nil
}
