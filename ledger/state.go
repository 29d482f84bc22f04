package ledger

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

type account struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
}

func (a *account) copy() *account {
	return &account{
		Balance: new(uint256.Int).Set(a.Balance),
		Nonce:   a.Nonce,
		Code:    a.Code,
	}
}

// stateDB is the world state at one block. Accounts are never shared
// between two stateDBs, code slices are immutable and may be.
type stateDB map[common.Address]*account

func (s stateDB) get(addr common.Address) *account {
	if acc, ok := s[addr]; ok {
		return acc
	}
	acc := &account{Balance: new(uint256.Int)}
	s[addr] = acc
	return acc
}

// lookup returns a copy of the account at addr, or an empty account.
func (s stateDB) lookup(addr common.Address) account {
	if acc, ok := s[addr]; ok {
		return *acc.copy()
	}
	return account{Balance: new(uint256.Int)}
}

func (s stateDB) copy() stateDB {
	cpy := make(stateDB, len(s))
	for addr, acc := range s {
		cpy[addr] = acc.copy()
	}
	return cpy
}

func (s stateDB) sortedAddresses() []common.Address {
	addrs := make([]common.Address, 0, len(s))
	for addr := range s {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}

// fingerprint is a Keccak-256 commitment over the sorted account set. It
// stands in for a state root: equal states have equal fingerprints.
func (s stateDB) fingerprint() common.Hash {
	d := sha3.NewLegacyKeccak256()
	var nonce [8]byte
	for _, addr := range s.sortedAddresses() {
		acc := s[addr]
		balance := acc.Balance.Bytes32()
		binary.BigEndian.PutUint64(nonce[:], acc.Nonce)
		d.Write(addr[:])
		d.Write(balance[:])
		d.Write(nonce[:])
		d.Write(crypto.Keccak256(acc.Code))
	}
	return common.BytesToHash(d.Sum(nil))
}

// storedAccount is the persisted form of one account.
type storedAccount struct {
	Address common.Address
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
}

func (s stateDB) export() []storedAccount {
	out := make([]storedAccount, 0, len(s))
	for _, addr := range s.sortedAddresses() {
		acc := s[addr]
		out = append(out, storedAccount{Address: addr, Balance: acc.Balance, Nonce: acc.Nonce, Code: acc.Code})
	}
	return out
}

func importState(accounts []storedAccount) stateDB {
	s := make(stateDB, len(accounts))
	for _, acc := range accounts {
		balance := acc.Balance
		if balance == nil {
			balance = new(uint256.Int)
		}
		s[acc.Address] = &account{Balance: balance, Nonce: acc.Nonce, Code: acc.Code}
	}
	return s
}
