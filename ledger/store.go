package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Key layout:
//
//	"b" + hash     -> RLP block
//	"n" + number   -> canonical block hash
//	"t" + tx hash  -> RLP transaction status
//	"h"            -> head block hash
//	"s"            -> RLP account list of the head state
//	"c"            -> chain id
var (
	blockPrefix  = []byte("b")
	numberPrefix = []byte("n")
	statusPrefix = []byte("t")
	headKey      = []byte("h")
	stateKey     = []byte("s")
	chainIDKey   = []byte("c")
)

// storedStatus is the persisted transaction status record.
type storedStatus struct {
	Hash            common.Hash
	Index           uint32
	From            common.Address
	To              *common.Address `rlp:"nil"`
	ContractAddress *common.Address `rlp:"nil"`
}

// store persists blocks, the canonical index, transaction statuses and the
// head state in LevelDB.
type store struct {
	db *leveldb.DB
}

// openStore opens the store in dir, or an in-memory store if dir is empty.
func openStore(dir string) (*store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if dir == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: open store: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error {
	return s.db.Close()
}

func key(prefix []byte, suffix []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(suffix))
	return append(append(k, prefix...), suffix...)
}

func numberKey(n uint64) []byte {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], n)
	return key(numberPrefix, enc[:])
}

// get returns nil, nil for missing keys.
func (s *store) get(k []byte) ([]byte, error) {
	data, err := s.db.Get(k, &opt.ReadOptions{})
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// commit writes block as the new head together with its statuses and the
// resulting state, atomically.
func (s *store) commit(block *types.Block, statuses []storedStatus, state stateDB) error {
	enc, err := rlp.EncodeToBytes(block)
	if err != nil {
		return fmt.Errorf("ledger: encode block: %w", err)
	}
	stateEnc, err := rlp.EncodeToBytes(state.export())
	if err != nil {
		return fmt.Errorf("ledger: encode state: %w", err)
	}
	hash := block.Hash()

	batch := new(leveldb.Batch)
	batch.Put(key(blockPrefix, hash[:]), enc)
	batch.Put(numberKey(block.NumberU64()), hash[:])
	for _, st := range statuses {
		stEnc, err := rlp.EncodeToBytes(&st)
		if err != nil {
			return fmt.Errorf("ledger: encode status: %w", err)
		}
		batch.Put(key(statusPrefix, st.Hash[:]), stEnc)
	}
	batch.Put(headKey, hash[:])
	batch.Put(stateKey, stateEnc)
	return s.db.Write(batch, &opt.WriteOptions{Sync: false})
}

func (s *store) block(hash common.Hash) (*types.Block, error) {
	data, err := s.get(key(blockPrefix, hash[:]))
	if err != nil || data == nil {
		return nil, err
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(data, block); err != nil {
		return nil, fmt.Errorf("ledger: decode block %x: %w", hash, err)
	}
	return block, nil
}

func (s *store) canonicalHash(n uint64) (common.Hash, bool, error) {
	data, err := s.get(numberKey(n))
	if err != nil || data == nil {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(data), true, nil
}

func (s *store) blockByNumber(n uint64) (*types.Block, error) {
	hash, ok, err := s.canonicalHash(n)
	if err != nil || !ok {
		return nil, err
	}
	return s.block(hash)
}

func (s *store) status(hash common.Hash) (*storedStatus, error) {
	data, err := s.get(key(statusPrefix, hash[:]))
	if err != nil || data == nil {
		return nil, err
	}
	st := new(storedStatus)
	if err := rlp.DecodeBytes(data, st); err != nil {
		return nil, fmt.Errorf("ledger: decode status %x: %w", hash, err)
	}
	return st, nil
}

// head loads the head block and its state. It returns a nil block for an
// empty store.
func (s *store) head() (*types.Block, stateDB, error) {
	data, err := s.get(headKey)
	if err != nil || data == nil {
		return nil, nil, err
	}
	block, err := s.block(common.BytesToHash(data))
	if err != nil {
		return nil, nil, err
	}
	if block == nil {
		return nil, nil, errors.New("ledger: head block missing from store")
	}
	stateEnc, err := s.get(stateKey)
	if err != nil {
		return nil, nil, err
	}
	var accounts []storedAccount
	if stateEnc != nil {
		if err := rlp.DecodeBytes(stateEnc, &accounts); err != nil {
			return nil, nil, fmt.Errorf("ledger: decode state: %w", err)
		}
	}
	return block, importState(accounts), nil
}

func (s *store) chainID() (uint64, bool, error) {
	data, err := s.get(chainIDKey)
	if err != nil || data == nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, errors.New("ledger: corrupt chain id")
	}
	return binary.BigEndian.Uint64(data), true, nil
}

func (s *store) putChainID(id uint64) error {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], id)
	return s.db.Put(chainIDKey, enc[:], &opt.WriteOptions{})
}
