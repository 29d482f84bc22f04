package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/metrics"
)

// DefaultClientVersion is reported by web3_clientVersion.
const DefaultClientVersion = "ethfacade/v0.1.0"

// unknownMethodLabel is the metrics label for methods that do not exist,
// keeping label cardinality independent of client input.
const unknownMethodLabel = "unknown"

type handlerFunc func(ctx context.Context, params []json.RawMessage) (interface{}, error)

// Option configures an EthAPI.
type Option func(*EthAPI)

// WithLogger sets the logger. Internal causes of failures are logged here
// and never sent to clients.
func WithLogger(l *log.Logger) Option {
	return func(api *EthAPI) { api.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(api *EthAPI) { api.metrics = m }
}

// WithClientVersion overrides the web3_clientVersion string.
func WithClientVersion(v string) Option {
	return func(api *EthAPI) { api.clientVersion = v }
}

// EthAPI serves the eth_, net_ and web3_ namespaces over the injected
// backend. It is safe for concurrent use.
type EthAPI struct {
	resolver      *Resolver
	query         *QueryFacade
	ingress       *Ingress
	log           *log.Logger
	metrics       *metrics.Metrics
	clientVersion string
}

// NewEthAPI creates the API service for the given backend.
func NewEthAPI(b Backend, opts ...Option) *EthAPI {
	api := &EthAPI{clientVersion: DefaultClientVersion}
	for _, opt := range opts {
		opt(api)
	}
	if api.log == nil {
		api.log = log.Discard()
	}
	api.log = api.log.Module("rpc")
	api.resolver = NewResolver(b.Selector)
	api.query = NewQueryFacade(api.resolver, b.Runtime)
	api.ingress = NewIngress(api.resolver, b.Pool, b.Converter, api.log, api.metrics)
	return api
}

// Query exposes the read facade used by the API.
func (api *EthAPI) Query() *QueryFacade { return api.query }

// Ingress exposes the transaction submission pipeline used by the API.
func (api *EthAPI) Ingress() *Ingress { return api.ingress }

// HandleRequest dispatches one JSON-RPC request and returns its response.
func (api *EthAPI) HandleRequest(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, &RPCError{Code: ErrCodeInvalidRequest, Message: "invalid jsonrpc version"})
	}
	if req.Method == "" {
		return errorResponse(req.ID, &RPCError{Code: ErrCodeInvalidRequest, Message: "method is required"})
	}

	label := req.Method
	handler := api.handler(req.Method)
	if handler == nil {
		if IsUnsupported(req.Method) {
			handler = func(context.Context, []json.RawMessage) (interface{}, error) {
				return nil, unsupportedMethod(req.Method)
			}
		} else {
			label = unknownMethodLabel
		}
	}

	start := time.Now()
	defer func() { api.metrics.ObserveRequest(label, time.Since(start)) }()

	if handler == nil {
		api.metrics.ObserveError(label, "method_not_found")
		return errorResponse(req.ID, &RPCError{
			Code:    ErrCodeMethodNotFound,
			Message: "the method " + req.Method + " does not exist/is not available",
		})
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		api.observeFailure(req.Method, err)
		return errorResponse(req.ID, toRPCError(err))
	}
	return successResponse(req.ID, result)
}

func (api *EthAPI) observeFailure(method string, err error) {
	var pe *paramError
	if errors.As(err, &pe) {
		api.metrics.ObserveError(method, "invalid_params")
		api.log.Debug("invalid params", "method", method, "err", err)
		return
	}
	kind := KindOf(err)
	switch kind {
	case 0:
		api.metrics.ObserveError(method, "internal")
		api.log.Error("request failed", "method", method, "err", err)
	case KindUnsupported, KindDecode:
		api.metrics.ObserveError(method, kind.String())
		api.log.Debug("request failed", "method", method, "kind", kind.String(), "err", err)
	default:
		api.metrics.ObserveError(method, kind.String())
		api.log.Warn("request failed", "method", method, "kind", kind.String(), "err", err)
	}
}

func (api *EthAPI) handler(method string) handlerFunc {
	switch method {
	case "eth_chainId":
		return api.chainID
	case "eth_blockNumber":
		return api.blockNumber
	case "eth_gasPrice":
		return api.gasPrice
	case "eth_coinbase":
		return api.coinbase
	case "eth_getBalance":
		return api.getBalance
	case "eth_getTransactionCount":
		return api.getTransactionCount
	case "eth_getCode":
		return api.getCode
	case "eth_getBlockByHash":
		return api.getBlockByHash
	case "eth_getBlockByNumber":
		return api.getBlockByNumber
	case "eth_getBlockTransactionCountByNumber":
		return api.getBlockTransactionCountByNumber
	case "eth_sendRawTransaction":
		return api.sendRawTransaction
	case "eth_getTransactionReceipt":
		return api.getTransactionReceipt
	case "eth_accounts":
		return api.accounts
	case "eth_mining":
		return api.mining
	case "eth_hashrate":
		return api.hashrate
	case "net_version":
		return api.netVersion
	case "net_listening":
		return api.netListening
	case "web3_clientVersion":
		return api.clientVersionHandler
	case "web3_sha3":
		return api.sha3
	}
	return nil
}

func (api *EthAPI) chainID(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	id, err := api.query.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return hexutil.Uint64(id), nil
}

func (api *EthAPI) blockNumber(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	n, err := api.query.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return hexutil.Uint64(n), nil
}

func (api *EthAPI) gasPrice(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	price, err := api.query.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(price.ToBig()), nil
}

func (api *EthAPI) coinbase(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	return api.query.Author(ctx)
}

func (api *EthAPI) getBalance(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	addr, err := parseAddress(params[0])
	if err != nil {
		return nil, err
	}
	ref, err := optionalBlockNumber(params, 1)
	if err != nil {
		return nil, err
	}
	bal, err := api.query.Balance(ctx, addr, ref)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bal.ToBig()), nil
}

func (api *EthAPI) getTransactionCount(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	addr, err := parseAddress(params[0])
	if err != nil {
		return nil, err
	}
	ref, err := optionalBlockNumber(params, 1)
	if err != nil {
		return nil, err
	}
	nonce, err := api.query.Nonce(ctx, addr, ref)
	if err != nil {
		return nil, err
	}
	return hexutil.Uint64(nonce), nil
}

func (api *EthAPI) getCode(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	addr, err := parseAddress(params[0])
	if err != nil {
		return nil, err
	}
	ref, err := optionalBlockNumber(params, 1)
	if err != nil {
		return nil, err
	}
	code, err := api.query.Code(ctx, addr, ref)
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(code), nil
}

func (api *EthAPI) getBlockByHash(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	hash, err := parseHash(params[0])
	if err != nil {
		return nil, err
	}
	fullTx, err := optionalBool(params, 1)
	if err != nil {
		return nil, err
	}
	block, err := api.query.BlockByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return BuildRichBlock(block, fullTx), nil
}

func (api *EthAPI) getBlockByNumber(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	ref, err := parseBlockNumber(params[0])
	if err != nil {
		return nil, err
	}
	fullTx, err := optionalBool(params, 1)
	if err != nil {
		return nil, err
	}
	block, err := api.query.BlockByNumber(ctx, ref)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return BuildRichBlock(block, fullTx), nil
}

func (api *EthAPI) getBlockTransactionCountByNumber(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	ref, err := parseBlockNumber(params[0])
	if err != nil {
		return nil, err
	}
	count, ok, err := api.query.BlockTransactionCount(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return hexutil.Uint64(count), nil
}

func (api *EthAPI) sendRawTransaction(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	raw, err := parseBytes(params[0])
	if err != nil {
		return nil, err
	}
	res, err := api.ingress.SubmitRaw(ctx, raw).AwaitContext(ctx)
	if err != nil {
		return nil, &Error{Kind: KindSubmission, Msg: msgSubmitAbandoned, Err: err}
	}
	hash, err := res.Get()
	if err != nil {
		return nil, err
	}
	return hash, nil
}

func (api *EthAPI) getTransactionReceipt(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	hash, err := parseHash(params[0])
	if err != nil {
		return nil, err
	}
	status, err := api.query.TransactionStatus(ctx, hash)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, nil
	}
	return BuildReceipt(status), nil
}

func (api *EthAPI) accounts(context.Context, []json.RawMessage) (interface{}, error) {
	return []common.Address{}, nil
}

func (api *EthAPI) mining(context.Context, []json.RawMessage) (interface{}, error) {
	return false, nil
}

func (api *EthAPI) hashrate(context.Context, []json.RawMessage) (interface{}, error) {
	return hexutil.Uint64(0), nil
}

// netVersion reports the chain id in decimal, as net_version always has.
func (api *EthAPI) netVersion(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	id, err := api.query.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return strconv.FormatUint(id, 10), nil
}

func (api *EthAPI) netListening(context.Context, []json.RawMessage) (interface{}, error) {
	return true, nil
}

func (api *EthAPI) clientVersionHandler(context.Context, []json.RawMessage) (interface{}, error) {
	return api.clientVersion, nil
}

func (api *EthAPI) sha3(_ context.Context, params []json.RawMessage) (interface{}, error) {
	if err := requireParams(params, 1); err != nil {
		return nil, err
	}
	data, err := parseBytes(params[0])
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(crypto.Keccak256(data)), nil
}
