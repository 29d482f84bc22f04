// Package rpc implements an Ethereum-compatible JSON-RPC facade in front of
// a ledger node. It resolves block references against the node's canonical
// head, delegates read queries to the node's runtime, feeds raw signed
// transactions into the node's pool and assembles the standard Ethereum
// wire objects from the results.
package rpc

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockNumber is a block reference parameter: either a concrete height or
// one of the negative tag values below.
type BlockNumber int64

const (
	LatestBlockNumber    BlockNumber = -1
	PendingBlockNumber   BlockNumber = -2
	EarliestBlockNumber  BlockNumber = -3
	SafeBlockNumber      BlockNumber = -4
	FinalizedBlockNumber BlockNumber = -5
)

// UnmarshalJSON accepts a tag name, a hex quantity or a JSON integer.
func (bn *BlockNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Try as integer.
		var n uint64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid block number: %s", string(data))
		}
		if n > math.MaxInt64 {
			return fmt.Errorf("block number too large: %d", n)
		}
		*bn = BlockNumber(n)
		return nil
	}
	switch strings.TrimSpace(s) {
	case "latest":
		*bn = LatestBlockNumber
	case "pending":
		*bn = PendingBlockNumber
	case "earliest":
		*bn = EarliestBlockNumber
	case "safe":
		*bn = SafeBlockNumber
	case "finalized":
		*bn = FinalizedBlockNumber
	default:
		n, err := hexutil.DecodeUint64(s)
		if err != nil {
			return fmt.Errorf("invalid block number %q: %v", s, err)
		}
		if n > math.MaxInt64 {
			return fmt.Errorf("block number too large: %s", s)
		}
		*bn = BlockNumber(n)
	}
	return nil
}

// MarshalJSON encodes tags by name and heights as hex quantities.
func (bn BlockNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(bn.String())
}

// IsTag reports whether bn is a symbolic tag rather than a height.
func (bn BlockNumber) IsTag() bool { return bn < 0 }

func (bn BlockNumber) String() string {
	switch bn {
	case LatestBlockNumber:
		return "latest"
	case PendingBlockNumber:
		return "pending"
	case EarliestBlockNumber:
		return "earliest"
	case SafeBlockNumber:
		return "safe"
	case FinalizedBlockNumber:
		return "finalized"
	}
	if bn < 0 {
		return fmt.Sprintf("tag(%d)", int64(bn))
	}
	return hexutil.EncodeUint64(uint64(bn))
}

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// serialized; a nil Result on success is encoded as "result": null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// MarshalJSON omits the result member from error responses.
func (r *Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			Error   *RPCError       `json:"error"`
			ID      json.RawMessage `json:"id"`
		}{r.JSONRPC, r.Error, id})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  interface{}     `json:"result"`
		ID      json.RawMessage `json:"id"`
	}{r.JSONRPC, r.Result, id})
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

func successResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

func errorResponse(id json.RawMessage, rpcErr *RPCError) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   rpcErr,
		ID:      id,
	}
}
