package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wire objects are built fresh for every call. Fields the node does not
// give this facade enough data to compute are pointers left nil, so they
// encode as null instead of a zero value a client could mistake for real
// data. Each such field is marked "not derivable" below.

// RPCBlock is the JSON representation of a block.
type RPCBlock struct {
	Hash            common.Hash      `json:"hash"`
	ParentHash      common.Hash      `json:"parentHash"`
	UncleHash       common.Hash      `json:"sha3Uncles"`
	Author          common.Address   `json:"author"`
	Miner           common.Address   `json:"miner"`
	StateRoot       common.Hash      `json:"stateRoot"`
	TxRoot          common.Hash      `json:"transactionsRoot"`
	ReceiptsRoot    common.Hash      `json:"receiptsRoot"`
	Number          *hexutil.Big     `json:"number"`
	GasUsed         hexutil.Uint64   `json:"gasUsed"`
	GasLimit        hexutil.Uint64   `json:"gasLimit"`
	ExtraData       hexutil.Bytes    `json:"extraData"`
	LogsBloom       types.Bloom      `json:"logsBloom"`
	Timestamp       hexutil.Uint64   `json:"timestamp"`
	Difficulty      *hexutil.Big     `json:"difficulty"`
	TotalDifficulty *hexutil.Big     `json:"totalDifficulty"` // not derivable
	MixHash         common.Hash      `json:"mixHash"`
	Nonce           types.BlockNonce `json:"nonce"`
	BaseFeePerGas   *hexutil.Big     `json:"baseFeePerGas,omitempty"`
	SealFields      []hexutil.Bytes  `json:"sealFields"` // not derivable
	Uncles          []common.Hash    `json:"uncles"`     // uncles are not supported
	Transactions    []interface{}    `json:"transactions"`
	Size            hexutil.Uint64   `json:"size"`
}

// RPCTransaction is the JSON representation of a transaction.
type RPCTransaction struct {
	Hash             common.Hash     `json:"hash"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	BlockHash        *common.Hash    `json:"blockHash"`
	BlockNumber      *hexutil.Big    `json:"blockNumber"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	From             *common.Address `json:"from"`
	To               *common.Address `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	Gas              hexutil.Uint64  `json:"gas"`
	Input            hexutil.Bytes   `json:"input"`
	Type             hexutil.Uint64  `json:"type"`
	ChainID          *hexutil.Big    `json:"chainId,omitempty"`
	V                *hexutil.Big    `json:"v"`
	R                *hexutil.Big    `json:"r"`
	S                *hexutil.Big    `json:"s"`
}

// RPCReceipt is the JSON representation of a transaction receipt.
type RPCReceipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64  `json:"transactionIndex"`
	BlockHash         *common.Hash    `json:"blockHash"`   // not derivable
	BlockNumber       *hexutil.Big    `json:"blockNumber"` // not derivable
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	CumulativeGasUsed *hexutil.Uint64 `json:"cumulativeGasUsed"` // not derivable
	GasUsed           *hexutil.Uint64 `json:"gasUsed"`           // not derivable
	ContractAddress   *common.Address `json:"contractAddress"`
	Logs              []*types.Log    `json:"logs"`      // not derivable, always empty
	LogsBloom         *types.Bloom    `json:"logsBloom"` // not derivable
	Status            *hexutil.Uint64 `json:"status"`    // not derivable
}

// BuildRichBlock maps a node block onto its wire form. With fullTx the
// transactions are full objects, otherwise their hashes. A nil block maps
// to nil.
func BuildRichBlock(block *types.Block, fullTx bool) *RPCBlock {
	if block == nil {
		return nil
	}
	header := block.Header()
	rb := &RPCBlock{
		Hash:         block.Hash(),
		ParentHash:   header.ParentHash,
		UncleHash:    header.UncleHash,
		Author:       header.Coinbase,
		Miner:        header.Coinbase,
		StateRoot:    header.Root,
		TxRoot:       header.TxHash,
		ReceiptsRoot: header.ReceiptHash,
		Number:       toHexBig(header.Number),
		GasUsed:      hexutil.Uint64(header.GasUsed),
		GasLimit:     hexutil.Uint64(header.GasLimit),
		ExtraData:    hexutil.Bytes(common.CopyBytes(header.Extra)),
		LogsBloom:    header.Bloom,
		Timestamp:    hexutil.Uint64(header.Time),
		Difficulty:   toHexBig(header.Difficulty),
		MixHash:      header.MixDigest,
		Nonce:        header.Nonce,
		SealFields:   []hexutil.Bytes{},
		Uncles:       []common.Hash{},
		Transactions: []interface{}{},
		Size:         hexutil.Uint64(block.Size()),
	}
	if rb.ExtraData == nil {
		rb.ExtraData = hexutil.Bytes{}
	}
	if header.BaseFee != nil {
		rb.BaseFeePerGas = toHexBig(header.BaseFee)
	}
	for i, tx := range block.Transactions() {
		if fullTx {
			rb.Transactions = append(rb.Transactions, BuildTransaction(tx, rb.Hash, header.Number, uint64(i)))
		} else {
			rb.Transactions = append(rb.Transactions, tx.Hash())
		}
	}
	return rb
}

// BuildTransaction maps a transaction included at index of the block with
// the given hash and number onto its wire form. The sender is recovered
// from the signature; it is null if recovery fails.
func BuildTransaction(tx *types.Transaction, blockHash common.Hash, blockNumber *big.Int, index uint64) *RPCTransaction {
	v, r, s := tx.RawSignatureValues()
	idx := hexutil.Uint64(index)
	rt := &RPCTransaction{
		Hash:             tx.Hash(),
		Nonce:            hexutil.Uint64(tx.Nonce()),
		BlockHash:        &blockHash,
		BlockNumber:      toHexBig(blockNumber),
		TransactionIndex: &idx,
		From:             txSender(tx),
		To:               tx.To(),
		Value:            toHexBig(tx.Value()),
		GasPrice:         toHexBig(tx.GasPrice()),
		Gas:              hexutil.Uint64(tx.Gas()),
		Input:            hexutil.Bytes(tx.Data()),
		Type:             hexutil.Uint64(tx.Type()),
		V:                toHexBig(v),
		R:                toHexBig(r),
		S:                toHexBig(s),
	}
	if tx.Protected() {
		rt.ChainID = toHexBig(tx.ChainId())
	}
	return rt
}

// BuildReceipt maps a transaction status record onto the receipt shape. A
// nil status maps to nil.
func BuildReceipt(status *TransactionStatus) *RPCReceipt {
	if status == nil {
		return nil
	}
	return &RPCReceipt{
		TransactionHash:  status.TransactionHash,
		TransactionIndex: hexutil.Uint64(status.TransactionIndex),
		From:             status.From,
		To:               copyAddress(status.To),
		ContractAddress:  copyAddress(status.ContractAddress),
		Logs:             []*types.Log{},
	}
}

func txSender(tx *types.Transaction) *common.Address {
	var signer types.Signer = types.HomesteadSigner{}
	if tx.Protected() {
		signer = types.LatestSignerForChainID(tx.ChainId())
	}
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil
	}
	return &from
}

func toHexBig(n *big.Int) *hexutil.Big {
	if n == nil {
		return nil
	}
	return (*hexutil.Big)(new(big.Int).Set(n))
}

func copyAddress(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}
