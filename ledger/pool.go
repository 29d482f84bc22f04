package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/eth2030/ethfacade/common/future"
	"github.com/eth2030/ethfacade/rpc"
)

// Pool validation errors.
var (
	ErrInvalidExtrinsic = errors.New("ledger: extrinsic is not a transaction")
	ErrInvalidSender    = errors.New("ledger: invalid transaction sender")
	ErrNonceTooLow      = errors.New("ledger: nonce too low")
	ErrKnownTransaction = errors.New("ledger: already known")
	ErrGasLimit         = errors.New("ledger: transaction gas below intrinsic cost")
)

// TxGas is the gas charged per transaction.
const TxGas = 21_000

type pendingTx struct {
	tx     *types.Transaction
	hash   common.Hash
	from   common.Address
	source rpc.TxSource
}

type command struct {
	xt     rpc.Extrinsic
	at     rpc.ChainPosition
	source rpc.TxSource
	result future.Promise[future.Result[common.Hash]]
}

// SubmitOne implements rpc.TxPool. Validation happens on the pool worker;
// the returned future carries its verdict.
func (l *Ledger) SubmitOne(ctx context.Context, at rpc.ChainPosition, source rpc.TxSource, xt rpc.Extrinsic) future.Future[future.Result[common.Hash]] {
	promise, f := future.Create[future.Result[common.Hash]]()
	cmd := command{xt: xt, at: at, source: source, result: promise}

	// Close waits for in-flight sends, so every queued command is seen by
	// the worker's drain.
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed {
		promise.Fulfill(future.Err[common.Hash](ErrClosed))
		return f
	}
	select {
	case l.commands <- cmd:
	case <-ctx.Done():
		promise.Fulfill(future.Err[common.Hash](ctx.Err()))
	}
	return f
}

// Pending returns the transactions waiting to be sealed, in arrival order.
func (l *Ledger) Pending() []*types.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*types.Transaction, len(l.pending))
	for i, p := range l.pending {
		out[i] = p.tx
	}
	return out
}

func (l *Ledger) loop(commands <-chan command, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case cmd := <-commands:
			hash, err := l.add(cmd)
			if err != nil {
				l.log.Debug("transaction rejected", "source", cmd.source, "err", err)
				cmd.result.Fulfill(future.Err[common.Hash](err))
				continue
			}
			l.log.Debug("transaction queued", "hash", hash, "source", cmd.source, "anchor", cmd.at.Number)
			cmd.result.Fulfill(future.Ok(hash))
		case <-l.quit:
			for {
				select {
				case cmd := <-commands:
					cmd.result.Fulfill(future.Err[common.Hash](ErrClosed))
				default:
					return
				}
			}
		}
	}
}

// add validates one submission and queues it for sealing.
func (l *Ledger) add(cmd command) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(cmd.xt); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidExtrinsic, err)
	}
	from, err := types.Sender(l.signer, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	if tx.Gas() < TxGas {
		return common.Hash{}, fmt.Errorf("%w: have %d, want %d", ErrGasLimit, tx.Gas(), TxGas)
	}
	hash := tx.Hash()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.known[hash]; ok {
		return common.Hash{}, fmt.Errorf("%w: %x", ErrKnownTransaction, hash)
	}
	if next := l.state.lookup(from).Nonce; tx.Nonce() < next {
		return common.Hash{}, fmt.Errorf("%w: address %x, tx %d, state %d", ErrNonceTooLow, from, tx.Nonce(), next)
	}
	l.known[hash] = struct{}{}
	l.pending = append(l.pending, &pendingTx{tx: tx, hash: hash, from: from, source: cmd.source})
	return hash, nil
}
