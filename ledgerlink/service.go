package ledgerlink

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "ethfacade.ledger.v1.Ledger"

// LedgerServer is the server side of the ledger service.
type LedgerServer interface {
	BestHeader(context.Context, *Empty) (*HeaderResponse, error)
	ChainID(context.Context, *PositionRequest) (*Uint64Response, error)
	GasPrice(context.Context, *PositionRequest) (*BytesResponse, error)
	Author(context.Context, *PositionRequest) (*BytesResponse, error)
	AccountBasic(context.Context, *AccountRequest) (*AccountBasicResponse, error)
	AccountCode(context.Context, *AccountRequest) (*BytesResponse, error)
	BlockByHash(context.Context, *BlockByHashRequest) (*BlockResponse, error)
	BlockByNumber(context.Context, *BlockByNumberRequest) (*BlockResponse, error)
	BlockTransactionCount(context.Context, *BlockByNumberRequest) (*BlockTransactionCountResponse, error)
	TransactionStatus(context.Context, *TransactionStatusRequest) (*TransactionStatusResponse, error)
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
}

// RegisterLedgerServer registers srv on a gRPC server.
func RegisterLedgerServer(s *grpc.Server, srv LedgerServer) {
	s.RegisterService(&serviceDesc, srv)
}

func handlerBestHeader(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).BestHeader(ctx, req)
}

func handlerChainID(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PositionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).ChainID(ctx, req)
}

func handlerGasPrice(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PositionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).GasPrice(ctx, req)
}

func handlerAuthor(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PositionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).Author(ctx, req)
}

func handlerAccountBasic(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(AccountRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).AccountBasic(ctx, req)
}

func handlerAccountCode(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(AccountRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).AccountCode(ctx, req)
}

func handlerBlockByHash(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(BlockByHashRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).BlockByHash(ctx, req)
}

func handlerBlockByNumber(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(BlockByNumberRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).BlockByNumber(ctx, req)
}

func handlerBlockTransactionCount(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(BlockByNumberRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).BlockTransactionCount(ctx, req)
}

func handlerTransactionStatus(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(TransactionStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).TransactionStatus(ctx, req)
}

func handlerSubmit(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SubmitRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServer).Submit(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor of the ledger service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BestHeader", Handler: handlerBestHeader},
		{MethodName: "ChainID", Handler: handlerChainID},
		{MethodName: "GasPrice", Handler: handlerGasPrice},
		{MethodName: "Author", Handler: handlerAuthor},
		{MethodName: "AccountBasic", Handler: handlerAccountBasic},
		{MethodName: "AccountCode", Handler: handlerAccountCode},
		{MethodName: "BlockByHash", Handler: handlerBlockByHash},
		{MethodName: "BlockByNumber", Handler: handlerBlockByNumber},
		{MethodName: "BlockTransactionCount", Handler: handlerBlockTransactionCount},
		{MethodName: "TransactionStatus", Handler: handlerTransactionStatus},
		{MethodName: "Submit", Handler: handlerSubmit},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ethfacade/ledger/v1/ledger.cram",
}
