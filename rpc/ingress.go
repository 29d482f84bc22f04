package rpc

import (
	"bytes"
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"

	"github.com/eth2030/ethfacade/common/future"
	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/metrics"
)

var errNonCanonical = errors.New("non-canonical transaction encoding")

// DecodeTransaction parses raw as a signed transaction in its canonical
// binary form (RLP list for legacy, type byte plus RLP payload for typed
// transactions). Encodings that do not re-encode to the same bytes are
// rejected.
func DecodeTransaction(raw []byte) (*types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, &Error{Kind: KindDecode, Msg: msgDecodeTx, Err: err}
	}
	enc, err := tx.MarshalBinary()
	if err != nil {
		return nil, &Error{Kind: KindDecode, Msg: msgDecodeTx, Err: err}
	}
	if !bytes.Equal(enc, raw) {
		return nil, &Error{Kind: KindDecode, Msg: msgDecodeTx, Err: errNonCanonical}
	}
	return tx, nil
}

// TransactionHash returns the Keccak-256 hash of the canonical encoding of
// tx. It depends on nothing but the transaction itself.
func TransactionHash(tx *types.Transaction) (common.Hash, error) {
	enc, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}
	d := sha3.NewLegacyKeccak256()
	d.Write(enc)
	return common.BytesToHash(d.Sum(nil)), nil
}

// Ingress feeds raw signed transactions into the node's pool.
type Ingress struct {
	resolver  *Resolver
	pool      TxPool
	converter TxConverter
	log       *log.Logger
	metrics   *metrics.Metrics
}

// NewIngress creates the submission pipeline. logger and m may be nil.
func NewIngress(resolver *Resolver, pool TxPool, converter TxConverter, logger *log.Logger, m *metrics.Metrics) *Ingress {
	if logger == nil {
		logger = log.Discard()
	}
	return &Ingress{
		resolver:  resolver,
		pool:      pool,
		converter: converter,
		log:       logger.Module("ingress"),
		metrics:   m,
	}
}

// SubmitRaw decodes raw, hashes it, resolves the head, converts the
// transaction and hands it to the pool as a local submission. Failures
// before the pool is reached resolve the returned future immediately. On
// acceptance the future carries the hash computed from raw, never a hash
// reported by the pool. Nothing is retried.
func (in *Ingress) SubmitRaw(ctx context.Context, raw []byte) future.Future[future.Result[common.Hash]] {
	tx, err := DecodeTransaction(raw)
	if err != nil {
		in.log.Debug("rejected raw transaction", "err", err, "size", len(raw))
		in.metrics.ObserveSubmission(metrics.OutcomeDecode)
		return future.Immediate(future.Err[common.Hash](err))
	}
	hash, err := TransactionHash(tx)
	if err != nil {
		in.metrics.ObserveSubmission(metrics.OutcomeDecode)
		return future.Immediate(future.Err[common.Hash](&Error{Kind: KindDecode, Msg: msgDecodeTx, Err: err}))
	}
	head, err := in.resolver.Head(ctx)
	if err != nil {
		in.log.Warn("cannot submit transaction without head", "hash", hash, "err", err)
		in.metrics.ObserveSubmission(metrics.OutcomeAborted)
		return future.Immediate(future.Err[common.Hash](err))
	}

	xt := in.converter.ConvertTransaction(tx)
	verdict := in.pool.SubmitOne(ctx, head, TxSourceLocal, xt)

	return future.Then(verdict, func(res future.Result[common.Hash]) future.Result[common.Hash] {
		if res.Error != nil {
			in.log.Debug("pool rejected transaction", "hash", hash, "err", res.Error)
			in.metrics.ObserveSubmission(metrics.OutcomeRejected)
			return future.Err[common.Hash](&Error{Kind: KindSubmission, Msg: msgSubmitTx, Err: res.Error})
		}
		in.log.Debug("transaction submitted", "hash", hash, "head", head.Number)
		in.metrics.ObserveSubmission(metrics.OutcomeAccepted)
		return future.Ok(hash)
	})
}
