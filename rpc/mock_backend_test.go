package rpc

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethfacade/common/future"
)

const testChainID = 1337

var (
	testKey, _  = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	testAddr    = crypto.PubkeyToAddress(testKey.PublicKey)
	testAuthor  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testRecv    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	errBackend  = errors.New("backend exploded")
	errRejected = errors.New("nonce too low")
)

// mockSelector reports a fixed head.
type mockSelector struct {
	mu     sync.Mutex
	header *types.Header
	err    error
	calls  int
}

func (m *mockSelector) BestHeader(context.Context) (*types.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.header, m.err
}

func (m *mockSelector) setHead(h *types.Header) {
	m.mu.Lock()
	m.header = h
	m.mu.Unlock()
}

// mockRuntime serves canned answers and records the positions it was
// queried at.
type mockRuntime struct {
	mu       sync.Mutex
	chainID  uint64
	gasPrice *uint256.Int
	author   common.Address
	accounts map[common.Address]AccountBasic
	code     map[common.Address][]byte
	blocks   []*types.Block
	statuses map[common.Hash]*TransactionStatus
	err      error
	at       []common.Hash
}

func (m *mockRuntime) record(at common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at = append(m.at, at)
	return m.err
}

func (m *mockRuntime) ChainID(_ context.Context, at common.Hash) (uint64, error) {
	if err := m.record(at); err != nil {
		return 0, err
	}
	return m.chainID, nil
}

func (m *mockRuntime) GasPrice(_ context.Context, at common.Hash) (*uint256.Int, error) {
	if err := m.record(at); err != nil {
		return nil, err
	}
	return m.gasPrice, nil
}

func (m *mockRuntime) Author(_ context.Context, at common.Hash) (common.Address, error) {
	if err := m.record(at); err != nil {
		return common.Address{}, err
	}
	return m.author, nil
}

func (m *mockRuntime) AccountBasic(_ context.Context, at common.Hash, addr common.Address) (AccountBasic, error) {
	if err := m.record(at); err != nil {
		return AccountBasic{}, err
	}
	if acc, ok := m.accounts[addr]; ok {
		return acc, nil
	}
	return AccountBasic{Balance: new(uint256.Int)}, nil
}

func (m *mockRuntime) AccountCode(_ context.Context, at common.Hash, addr common.Address) ([]byte, error) {
	if err := m.record(at); err != nil {
		return nil, err
	}
	return m.code[addr], nil
}

func (m *mockRuntime) BlockByHash(_ context.Context, at common.Hash, hash common.Hash) (*types.Block, error) {
	if err := m.record(at); err != nil {
		return nil, err
	}
	for _, b := range m.blocks {
		if b.Hash() == hash {
			return b, nil
		}
	}
	return nil, nil
}

func (m *mockRuntime) BlockByNumber(_ context.Context, at common.Hash, number uint64) (*types.Block, error) {
	if err := m.record(at); err != nil {
		return nil, err
	}
	if number < uint64(len(m.blocks)) {
		return m.blocks[number], nil
	}
	return nil, nil
}

func (m *mockRuntime) BlockTransactionCount(_ context.Context, at common.Hash, number uint64) (uint64, bool, error) {
	if err := m.record(at); err != nil {
		return 0, false, err
	}
	if number < uint64(len(m.blocks)) {
		return uint64(len(m.blocks[number].Transactions())), true, nil
	}
	return 0, false, nil
}

func (m *mockRuntime) TransactionStatus(_ context.Context, at common.Hash, hash common.Hash) (*TransactionStatus, error) {
	if err := m.record(at); err != nil {
		return nil, err
	}
	return m.statuses[hash], nil
}

// mockPool records submissions. With hold set, verdicts are never
// delivered; with reject set, every submission is refused.
type mockPool struct {
	mu         sync.Mutex
	submitted  []Extrinsic
	positions  []ChainPosition
	sources    []TxSource
	reject     error
	hold       bool
	reportHash common.Hash
}

func (m *mockPool) SubmitOne(_ context.Context, at ChainPosition, source TxSource, xt Extrinsic) future.Future[future.Result[common.Hash]] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, append(Extrinsic(nil), xt...))
	m.positions = append(m.positions, at)
	m.sources = append(m.sources, source)

	promise, f := future.Create[future.Result[common.Hash]]()
	if m.hold {
		return f
	}
	if m.reject != nil {
		promise.Fulfill(future.Err[common.Hash](m.reject))
	} else {
		promise.Fulfill(future.Ok(m.reportHash))
	}
	return f
}

func (m *mockPool) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

func identityConverter() TxConverter {
	return ConverterFunc(func(tx *types.Transaction) Extrinsic {
		enc, _ := tx.MarshalBinary()
		return enc
	})
}

type testEnv struct {
	selector *mockSelector
	runtime  *mockRuntime
	pool     *mockPool
	blocks   []*types.Block
}

func (e *testEnv) backend() Backend {
	return Backend{Selector: e.selector, Runtime: e.runtime, Pool: e.pool, Converter: identityConverter()}
}

func (e *testEnv) head() *types.Block { return e.blocks[len(e.blocks)-1] }

// newTestEnv builds a three block chain whose last block holds one
// transfer from testAddr.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tx := signLegacy(t, testKey, 0, &testRecv, big.NewInt(1000))

	genesis := types.NewBlockWithHeader(&types.Header{
		Number:     big.NewInt(0),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		Coinbase:   testAuthor,
	})
	b1 := types.NewBlockWithHeader(&types.Header{
		ParentHash: genesis.Hash(),
		Number:     big.NewInt(1),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		Time:       12,
		Coinbase:   testAuthor,
	})
	b2 := types.NewBlock(&types.Header{
		ParentHash: b1.Hash(),
		Number:     big.NewInt(2),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		GasUsed:    21_000,
		Time:       24,
		Coinbase:   testAuthor,
	}, &types.Body{Transactions: []*types.Transaction{tx}}, nil, trie.NewStackTrie(nil))
	blocks := []*types.Block{genesis, b1, b2}

	txHash := tx.Hash()
	env := &testEnv{
		selector: &mockSelector{header: b2.Header()},
		runtime: &mockRuntime{
			chainID:  testChainID,
			gasPrice: uint256.NewInt(1_000_000_000),
			author:   testAuthor,
			accounts: map[common.Address]AccountBasic{
				testAddr: {Balance: uint256.NewInt(0xde0b6b3a7640000), Nonce: 1},
			},
			code: map[common.Address][]byte{
				testRecv: {0x60, 0x00},
			},
			blocks: blocks,
			statuses: map[common.Hash]*TransactionStatus{
				txHash: {TransactionHash: txHash, TransactionIndex: 0, From: testAddr, To: &testRecv},
			},
		},
		pool:   &mockPool{},
		blocks: blocks,
	}
	return env
}

func signLegacy(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to *common.Address, value *big.Int) *types.Transaction {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      21_000,
		GasPrice: big.NewInt(1_000_000_000),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(testChainID)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func signDynamic(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to *common.Address) *types.Transaction {
	t.Helper()
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(testChainID),
		Nonce:     nonce,
		To:        to,
		Value:     big.NewInt(1),
		Gas:       21_000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2_000_000_000),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(testChainID)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func encodeTx(t *testing.T, tx *types.Transaction) []byte {
	t.Helper()
	enc, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return enc
}

// callRPC is a test helper that dispatches a request through HandleRequest.
func callRPC(t *testing.T, api *EthAPI, method string, params ...interface{}) *Response {
	t.Helper()
	var rawParams []json.RawMessage
	for _, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		rawParams = append(rawParams, json.RawMessage(b))
	}
	req := &Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  rawParams,
		ID:      json.RawMessage(`1`),
	}
	return api.HandleRequest(context.Background(), req)
}

// resultJSON returns the wire form of a successful response's result.
func resultJSON(t *testing.T, resp *Response) string {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %d %s (%v)", resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}
	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	return string(b)
}

// decodeResult unmarshals a successful response's result into v.
func decodeResult(t *testing.T, resp *Response, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(resultJSON(t, resp)), v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}
