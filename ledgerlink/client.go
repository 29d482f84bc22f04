package ledgerlink

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"google.golang.org/grpc"

	"github.com/eth2030/ethfacade/common/future"
	"github.com/eth2030/ethfacade/rpc"
)

// ErrRejected wraps the reason a remote pool gave for refusing a
// transaction.
var ErrRejected = errors.New("ledgerlink: transaction rejected")

// Compile-time interface checks.
var (
	_ rpc.ChainSelector = (*Client)(nil)
	_ rpc.RuntimeAPI    = (*Client)(nil)
	_ rpc.TxPool        = (*Client)(nil)
	_ rpc.TxConverter   = (*Client)(nil)
)

// Client implements the facade's collaborators against a remote ledger
// service.
type Client struct {
	cc *grpc.ClientConn
}

// Dial creates a client for the ledger service at addr. The connection is
// established lazily on first use.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(Codec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("ledgerlink: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.cc.Close()
}

// Backend bundles the client as the facade's collaborator set.
func (c *Client) Backend() rpc.Backend {
	return rpc.Backend{Selector: c, Runtime: c, Pool: c, Converter: c}
}

// ConvertTransaction encodes tx in its canonical binary form, the
// extrinsic format of the remote pool.
func (c *Client) ConvertTransaction(tx *types.Transaction) rpc.Extrinsic {
	enc, err := tx.MarshalBinary()
	if err != nil {
		return nil
	}
	return enc
}

func (c *Client) BestHeader(ctx context.Context) (*types.Header, error) {
	resp := new(HeaderResponse)
	if err := c.cc.Invoke(ctx, fullMethod("BestHeader"), &Empty{}, resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(resp.Header, header); err != nil {
		return nil, fmt.Errorf("ledgerlink: decode header: %w", err)
	}
	return header, nil
}

func (c *Client) ChainID(ctx context.Context, at common.Hash) (uint64, error) {
	resp := new(Uint64Response)
	if err := c.cc.Invoke(ctx, fullMethod("ChainID"), &PositionRequest{At: at.Bytes()}, resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func (c *Client) GasPrice(ctx context.Context, at common.Hash) (*uint256.Int, error) {
	resp := new(BytesResponse)
	if err := c.cc.Invoke(ctx, fullMethod("GasPrice"), &PositionRequest{At: at.Bytes()}, resp); err != nil {
		return nil, err
	}
	if len(resp.Value) == 0 {
		return nil, nil
	}
	return new(uint256.Int).SetBytes(resp.Value), nil
}

func (c *Client) Author(ctx context.Context, at common.Hash) (common.Address, error) {
	resp := new(BytesResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Author"), &PositionRequest{At: at.Bytes()}, resp); err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(resp.Value), nil
}

func (c *Client) AccountBasic(ctx context.Context, at common.Hash, addr common.Address) (rpc.AccountBasic, error) {
	resp := new(AccountBasicResponse)
	req := &AccountRequest{At: at.Bytes(), Address: addr.Bytes()}
	if err := c.cc.Invoke(ctx, fullMethod("AccountBasic"), req, resp); err != nil {
		return rpc.AccountBasic{}, err
	}
	basic := rpc.AccountBasic{Nonce: resp.Nonce}
	if len(resp.Balance) > 0 {
		basic.Balance = new(uint256.Int).SetBytes(resp.Balance)
	}
	return basic, nil
}

func (c *Client) AccountCode(ctx context.Context, at common.Hash, addr common.Address) ([]byte, error) {
	resp := new(BytesResponse)
	req := &AccountRequest{At: at.Bytes(), Address: addr.Bytes()}
	if err := c.cc.Invoke(ctx, fullMethod("AccountCode"), req, resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func decodeBlock(resp *BlockResponse) (*types.Block, error) {
	if !resp.Found {
		return nil, nil
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(resp.Block, block); err != nil {
		return nil, fmt.Errorf("ledgerlink: decode block: %w", err)
	}
	return block, nil
}

func (c *Client) BlockByHash(ctx context.Context, at common.Hash, hash common.Hash) (*types.Block, error) {
	resp := new(BlockResponse)
	req := &BlockByHashRequest{At: at.Bytes(), Hash: hash.Bytes()}
	if err := c.cc.Invoke(ctx, fullMethod("BlockByHash"), req, resp); err != nil {
		return nil, err
	}
	return decodeBlock(resp)
}

func (c *Client) BlockByNumber(ctx context.Context, at common.Hash, number uint64) (*types.Block, error) {
	resp := new(BlockResponse)
	req := &BlockByNumberRequest{At: at.Bytes(), Number: number}
	if err := c.cc.Invoke(ctx, fullMethod("BlockByNumber"), req, resp); err != nil {
		return nil, err
	}
	return decodeBlock(resp)
}

func (c *Client) BlockTransactionCount(ctx context.Context, at common.Hash, number uint64) (uint64, bool, error) {
	resp := new(BlockTransactionCountResponse)
	req := &BlockByNumberRequest{At: at.Bytes(), Number: number}
	if err := c.cc.Invoke(ctx, fullMethod("BlockTransactionCount"), req, resp); err != nil {
		return 0, false, err
	}
	return resp.Count, resp.Found, nil
}

func (c *Client) TransactionStatus(ctx context.Context, at common.Hash, hash common.Hash) (*rpc.TransactionStatus, error) {
	resp := new(TransactionStatusResponse)
	req := &TransactionStatusRequest{At: at.Bytes(), Hash: hash.Bytes()}
	if err := c.cc.Invoke(ctx, fullMethod("TransactionStatus"), req, resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	st := &rpc.TransactionStatus{
		TransactionHash:  common.BytesToHash(resp.Hash),
		TransactionIndex: resp.Index,
		From:             common.BytesToAddress(resp.From),
	}
	if len(resp.To) > 0 {
		to := common.BytesToAddress(resp.To)
		st.To = &to
	}
	if len(resp.ContractAddress) > 0 {
		addr := common.BytesToAddress(resp.ContractAddress)
		st.ContractAddress = &addr
	}
	return st, nil
}

// SubmitOne implements rpc.TxPool. The call runs on its own goroutine and
// resolves the returned future exactly once, with the remote verdict or
// the transport error.
func (c *Client) SubmitOne(ctx context.Context, at rpc.ChainPosition, source rpc.TxSource, xt rpc.Extrinsic) future.Future[future.Result[common.Hash]] {
	promise, f := future.Create[future.Result[common.Hash]]()
	req := &SubmitRequest{
		AtHash:    at.Hash.Bytes(),
		AtNumber:  at.Number,
		Source:    uint32(source),
		Extrinsic: xt,
	}
	go func() {
		resp := new(SubmitResponse)
		if err := c.cc.Invoke(ctx, fullMethod("Submit"), req, resp); err != nil {
			promise.Fulfill(future.Err[common.Hash](err))
			return
		}
		if !resp.Accepted {
			promise.Fulfill(future.Err[common.Hash](fmt.Errorf("%w: %s", ErrRejected, resp.Reason)))
			return
		}
		promise.Fulfill(future.Ok(common.BytesToHash(resp.Hash)))
	}()
	return f
}
