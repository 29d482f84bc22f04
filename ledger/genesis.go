// Package ledger is a small in-process ledger node for development and
// testing. It implements every collaborator the rpc facade needs: a chain
// selector, a runtime query API, a transaction pool and the conversion
// strategy between Ethereum transactions and pool extrinsics.
package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Defaults for DefaultGenesis.
const (
	DefaultChainID  = 1337
	DefaultGasLimit = 30_000_000
	DefaultGasPrice = 1_000_000_000
)

// GenesisAccount is the initial state of one account.
type GenesisAccount struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
}

// Genesis describes the chain a ledger starts from.
type Genesis struct {
	ChainID   uint64
	GasPrice  *uint256.Int
	GasLimit  uint64
	Author    common.Address
	Timestamp uint64
	Alloc     map[common.Address]GenesisAccount
}

// DefaultGenesis returns an empty development chain.
func DefaultGenesis() *Genesis {
	return &Genesis{
		ChainID:  DefaultChainID,
		GasPrice: uint256.NewInt(DefaultGasPrice),
		GasLimit: DefaultGasLimit,
		Alloc:    make(map[common.Address]GenesisAccount),
	}
}

// Validate checks the genesis for values the ledger cannot work with.
func (g *Genesis) Validate() error {
	if g.ChainID == 0 {
		return errors.New("ledger: chain id must be non-zero")
	}
	if g.GasPrice == nil {
		return errors.New("ledger: gas price is required")
	}
	if g.GasLimit < TxGas {
		return errors.New("ledger: gas limit below the cost of one transaction")
	}
	return nil
}

func (g *Genesis) state() stateDB {
	s := make(stateDB, len(g.Alloc))
	for addr, acc := range g.Alloc {
		balance := new(uint256.Int)
		if acc.Balance != nil {
			balance.Set(acc.Balance)
		}
		s[addr] = &account{
			Balance: balance,
			Nonce:   acc.Nonce,
			Code:    common.CopyBytes(acc.Code),
		}
	}
	return s
}
