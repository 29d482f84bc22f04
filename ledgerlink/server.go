package ledgerlink

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/rpc"
)

var _ LedgerServer = (*Server)(nil)

// Server exposes a local collaborator set over gRPC.
type Server struct {
	backend rpc.Backend
	log     *log.Logger

	mu sync.Mutex
	gs *grpc.Server
}

// NewServer creates a server for backend. logger may be nil.
func NewServer(backend rpc.Backend, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	return &Server{backend: backend, log: logger.Module("ledgerlink")}
}

// Register adds the ledger service to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	RegisterLedgerServer(gs, s)
}

// Serve serves the ledger service on lis until Stop is called.
func (s *Server) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	s.mu.Lock()
	s.gs = gs
	s.mu.Unlock()
	s.log.Info("ledger service listening", "addr", lis.Addr().String())
	err := gs.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop gracefully stops a server started with Serve.
func (s *Server) Stop() {
	s.mu.Lock()
	gs := s.gs
	s.mu.Unlock()
	if gs != nil {
		gs.GracefulStop()
	}
}

func (s *Server) fail(method string, err error) error {
	s.log.Debug("ledger call failed", "method", method, "err", err)
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func hashArg(name string, b []byte) (common.Hash, error) {
	if len(b) != common.HashLength {
		return common.Hash{}, status.Errorf(codes.InvalidArgument, "%s: want %d bytes, got %d", name, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func addressArg(name string, b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, status.Errorf(codes.InvalidArgument, "%s: want %d bytes, got %d", name, common.AddressLength, len(b))
	}
	return common.BytesToAddress(b), nil
}

func (s *Server) BestHeader(ctx context.Context, _ *Empty) (*HeaderResponse, error) {
	header, err := s.backend.Selector.BestHeader(ctx)
	if err != nil {
		return nil, s.fail("BestHeader", err)
	}
	if header == nil {
		return &HeaderResponse{}, nil
	}
	enc, err := rlp.EncodeToBytes(header)
	if err != nil {
		return nil, s.fail("BestHeader", err)
	}
	return &HeaderResponse{Found: true, Header: enc}, nil
}

func (s *Server) ChainID(ctx context.Context, req *PositionRequest) (*Uint64Response, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	id, err := s.backend.Runtime.ChainID(ctx, at)
	if err != nil {
		return nil, s.fail("ChainID", err)
	}
	return &Uint64Response{Value: id}, nil
}

func (s *Server) GasPrice(ctx context.Context, req *PositionRequest) (*BytesResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	price, err := s.backend.Runtime.GasPrice(ctx, at)
	if err != nil {
		return nil, s.fail("GasPrice", err)
	}
	if price == nil {
		return &BytesResponse{}, nil
	}
	enc := price.Bytes32()
	return &BytesResponse{Value: enc[:]}, nil
}

func (s *Server) Author(ctx context.Context, req *PositionRequest) (*BytesResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	author, err := s.backend.Runtime.Author(ctx, at)
	if err != nil {
		return nil, s.fail("Author", err)
	}
	return &BytesResponse{Value: author.Bytes()}, nil
}

func (s *Server) AccountBasic(ctx context.Context, req *AccountRequest) (*AccountBasicResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	addr, err := addressArg("address", req.Address)
	if err != nil {
		return nil, err
	}
	basic, err := s.backend.Runtime.AccountBasic(ctx, at, addr)
	if err != nil {
		return nil, s.fail("AccountBasic", err)
	}
	resp := &AccountBasicResponse{Nonce: basic.Nonce}
	if basic.Balance != nil {
		enc := basic.Balance.Bytes32()
		resp.Balance = enc[:]
	}
	return resp, nil
}

func (s *Server) AccountCode(ctx context.Context, req *AccountRequest) (*BytesResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	addr, err := addressArg("address", req.Address)
	if err != nil {
		return nil, err
	}
	code, err := s.backend.Runtime.AccountCode(ctx, at, addr)
	if err != nil {
		return nil, s.fail("AccountCode", err)
	}
	return &BytesResponse{Value: code}, nil
}

func (s *Server) BlockByHash(ctx context.Context, req *BlockByHashRequest) (*BlockResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	hash, err := hashArg("hash", req.Hash)
	if err != nil {
		return nil, err
	}
	block, err := s.backend.Runtime.BlockByHash(ctx, at, hash)
	if err != nil {
		return nil, s.fail("BlockByHash", err)
	}
	return s.blockResponse("BlockByHash", block)
}

func (s *Server) BlockByNumber(ctx context.Context, req *BlockByNumberRequest) (*BlockResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	block, err := s.backend.Runtime.BlockByNumber(ctx, at, req.Number)
	if err != nil {
		return nil, s.fail("BlockByNumber", err)
	}
	return s.blockResponse("BlockByNumber", block)
}

func (s *Server) blockResponse(method string, block *types.Block) (*BlockResponse, error) {
	if block == nil {
		return &BlockResponse{}, nil
	}
	enc, err := rlp.EncodeToBytes(block)
	if err != nil {
		return nil, s.fail(method, err)
	}
	return &BlockResponse{Found: true, Block: enc}, nil
}

func (s *Server) BlockTransactionCount(ctx context.Context, req *BlockByNumberRequest) (*BlockTransactionCountResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	count, ok, err := s.backend.Runtime.BlockTransactionCount(ctx, at, req.Number)
	if err != nil {
		return nil, s.fail("BlockTransactionCount", err)
	}
	return &BlockTransactionCountResponse{Found: ok, Count: count}, nil
}

func (s *Server) TransactionStatus(ctx context.Context, req *TransactionStatusRequest) (*TransactionStatusResponse, error) {
	at, err := hashArg("at", req.At)
	if err != nil {
		return nil, err
	}
	hash, err := hashArg("hash", req.Hash)
	if err != nil {
		return nil, err
	}
	st, err := s.backend.Runtime.TransactionStatus(ctx, at, hash)
	if err != nil {
		return nil, s.fail("TransactionStatus", err)
	}
	if st == nil {
		return &TransactionStatusResponse{}, nil
	}
	resp := &TransactionStatusResponse{
		Found: true,
		Hash:  st.TransactionHash.Bytes(),
		Index: st.TransactionIndex,
		From:  st.From.Bytes(),
	}
	if st.To != nil {
		resp.To = st.To.Bytes()
	}
	if st.ContractAddress != nil {
		resp.ContractAddress = st.ContractAddress.Bytes()
	}
	return resp, nil
}

// Submit hands the extrinsic to the local pool and waits for its verdict.
func (s *Server) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	at, err := hashArg("at", req.AtHash)
	if err != nil {
		return nil, err
	}
	pos := rpc.ChainPosition{Hash: at, Number: req.AtNumber}
	res, err := s.backend.Pool.SubmitOne(ctx, pos, rpc.TxSource(req.Source), rpc.Extrinsic(req.Extrinsic)).AwaitContext(ctx)
	if err != nil {
		return nil, s.fail("Submit", err)
	}
	hash, err := res.Get()
	if err != nil {
		s.log.Debug("remote submission rejected", "err", err)
		return &SubmitResponse{Reason: err.Error()}, nil
	}
	return &SubmitResponse{Accepted: true, Hash: hash.Bytes()}, nil
}
