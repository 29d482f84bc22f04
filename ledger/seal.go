package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
)

// Seal produces the next block from the pending transactions in arrival
// order and makes it the head. Transactions whose nonce is ahead of their
// sender's stay pending; stale or unfunded ones are dropped.
func (l *Ledger) Seal() (*types.Block, error) {
	select {
	case <-l.quit:
		return nil, ErrClosed
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	parent := l.head
	state := l.state.copy()

	var (
		included  []*types.Transaction
		receipts  []*types.Receipt
		statuses  []storedStatus
		remaining []*pendingTx
		gasUsed   uint64
	)
	for _, p := range l.pending {
		sender := state.get(p.from)
		switch {
		case p.tx.Nonce() > sender.Nonce:
			remaining = append(remaining, p)
			continue
		case p.tx.Nonce() < sender.Nonce:
			l.log.Debug("dropping stale transaction", "hash", p.hash, "nonce", p.tx.Nonce(), "want", sender.Nonce)
			delete(l.known, p.hash)
			continue
		}
		if gasUsed+TxGas > l.genesis.GasLimit {
			remaining = append(remaining, p)
			continue
		}
		value, overflow := uint256.FromBig(p.tx.Value())
		if overflow || sender.Balance.Lt(value) {
			l.log.Debug("dropping unfunded transaction", "hash", p.hash, "from", p.from)
			delete(l.known, p.hash)
			continue
		}

		sender.Balance.Sub(sender.Balance, value)
		sender.Nonce++

		status := storedStatus{
			Hash:  p.hash,
			Index: uint32(len(included)),
			From:  p.from,
		}
		if to := p.tx.To(); to != nil {
			recipient := state.get(*to)
			recipient.Balance.Add(recipient.Balance, value)
			status.To = to
		} else {
			addr := crypto.CreateAddress(p.from, p.tx.Nonce())
			contract := state.get(addr)
			contract.Balance.Add(contract.Balance, value)
			contract.Code = common.CopyBytes(p.tx.Data())
			status.ContractAddress = &addr
		}
		gasUsed += TxGas

		receipt := &types.Receipt{
			Type:              p.tx.Type(),
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: gasUsed,
			Logs:              []*types.Log{},
			TxHash:            p.hash,
			ContractAddress:   derefAddress(status.ContractAddress),
			GasUsed:           TxGas,
			TransactionIndex:  uint(status.Index),
		}
		included = append(included, p.tx)
		receipts = append(receipts, receipt)
		statuses = append(statuses, status)
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   l.genesis.Author,
		Root:       state.fingerprint(),
		Number:     new(big.Int).Add(parent.Number(), common.Big1),
		GasLimit:   l.genesis.GasLimit,
		GasUsed:    gasUsed,
		Time:       nextTimestamp(parent.Time()),
		Difficulty: new(big.Int),
	}
	block := types.NewBlock(header, &types.Body{Transactions: included}, receipts, trie.NewStackTrie(nil))

	if err := l.store.commit(block, statuses, state); err != nil {
		return nil, err
	}
	l.head = block
	l.parent = l.state
	l.state = state
	l.pending = remaining

	l.log.Info("sealed block", "number", block.NumberU64(), "hash", block.Hash(), "txs", len(included), "pending", len(remaining))
	return block, nil
}

// Run seals a block every period while transactions are pending, until
// ctx ends or the ledger is closed.
func (l *Ledger) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return ErrClosed
		case <-ticker.C:
			if len(l.Pending()) == 0 {
				continue
			}
			if _, err := l.Seal(); err != nil {
				l.log.Error("sealing failed", "err", err)
			}
		}
	}
}

func nextTimestamp(parent uint64) uint64 {
	now := uint64(time.Now().Unix())
	if now <= parent {
		return parent + 1
	}
	return now
}

func derefAddress(a *common.Address) common.Address {
	if a == nil {
		return common.Address{}
	}
	return *a
}
