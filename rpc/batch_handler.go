package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Batch processing errors.
var (
	ErrBatchEmpty    = errors.New("rpc: empty batch")
	ErrBatchTooLarge = errors.New("rpc: batch too large")
	ErrNotBatch      = errors.New("rpc: request is not a JSON array")
)

const (
	// DefaultMaxBatchSize is the default maximum number of requests in one batch.
	DefaultMaxBatchSize = 100

	// DefaultParallelism is the default number of goroutines for batch execution.
	DefaultParallelism = 16
)

// BatchHandler executes JSON-RPC batches with bounded parallelism and
// returns the responses in request order.
type BatchHandler struct {
	api          *EthAPI
	maxBatchSize int
	parallelism  int
}

// NewBatchHandler creates a batch handler that dispatches to api.
func NewBatchHandler(api *EthAPI) *BatchHandler {
	return &BatchHandler{
		api:          api,
		maxBatchSize: DefaultMaxBatchSize,
		parallelism:  DefaultParallelism,
	}
}

// SetParallelism sets the number of requests executed concurrently. Values
// below 1 are raised to 1.
func (bh *BatchHandler) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	bh.parallelism = n
}

// SetMaxBatchSize limits the number of requests per batch. Values below 1
// are raised to 1.
func (bh *BatchHandler) SetMaxBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	bh.maxBatchSize = n
}

// HandleBatch parses body as a batch and executes it. Elements that are not
// request objects yield an invalid-request response in their slot.
func (bh *BatchHandler) HandleBatch(ctx context.Context, body []byte) ([]*Response, error) {
	if !IsBatchRequest(body) {
		return nil, ErrNotBatch
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, ErrBatchEmpty
	}
	if len(elems) > bh.maxBatchSize {
		return nil, ErrBatchTooLarge
	}
	return bh.execute(ctx, elems), nil
}

func (bh *BatchHandler) execute(ctx context.Context, elems []json.RawMessage) []*Response {
	responses := make([]*Response, len(elems))

	sem := make(chan struct{}, bh.parallelism)
	var wg sync.WaitGroup

	for i, elem := range elems {
		var req Request
		if err := json.Unmarshal(elem, &req); err != nil {
			responses[i] = errorResponse(nil, &RPCError{Code: ErrCodeInvalidRequest, Message: "invalid request"})
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, r *Request) {
			defer wg.Done()
			defer func() { <-sem }()
			responses[idx] = bh.api.HandleRequest(ctx, r)
		}(i, &req)
	}
	wg.Wait()
	return responses
}

func trimWhitespace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n') {
		b = b[1:]
	}
	return b
}

// IsBatchRequest reports whether body is a JSON array.
func IsBatchRequest(body []byte) bool {
	trimmed := trimWhitespace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}
