package ledgerlink

// Request and response messages. Hashes and addresses travel as raw bytes,
// headers and blocks as their RLP encoding. Absence is a Found=false
// response, never an error.

// Empty is the request of BestHeader.
type Empty struct{}

// PositionRequest anchors a scalar query at a block.
type PositionRequest struct {
	At []byte `cramberry:"1"`
}

// HeaderResponse carries an RLP encoded header.
type HeaderResponse struct {
	Found  bool   `cramberry:"1"`
	Header []byte `cramberry:"2"`
}

// Uint64Response carries a single integer.
type Uint64Response struct {
	Value uint64 `cramberry:"1"`
}

// BytesResponse carries a single byte string: a 32 byte big-endian
// quantity, an address or contract code.
type BytesResponse struct {
	Value []byte `cramberry:"1"`
}

// AccountRequest names an account at a block.
type AccountRequest struct {
	At      []byte `cramberry:"1"`
	Address []byte `cramberry:"2"`
}

// AccountBasicResponse carries balance (32 bytes big-endian) and nonce.
type AccountBasicResponse struct {
	Balance []byte `cramberry:"1"`
	Nonce   uint64 `cramberry:"2"`
}

// BlockByHashRequest looks a block up by hash.
type BlockByHashRequest struct {
	At   []byte `cramberry:"1"`
	Hash []byte `cramberry:"2"`
}

// BlockByNumberRequest looks a block up by height.
type BlockByNumberRequest struct {
	At     []byte `cramberry:"1"`
	Number uint64 `cramberry:"2"`
}

// BlockResponse carries an RLP encoded block.
type BlockResponse struct {
	Found bool   `cramberry:"1"`
	Block []byte `cramberry:"2"`
}

// BlockTransactionCountResponse carries a block's transaction count.
type BlockTransactionCountResponse struct {
	Found bool   `cramberry:"1"`
	Count uint64 `cramberry:"2"`
}

// TransactionStatusRequest looks a transaction status up by hash.
type TransactionStatusRequest struct {
	At   []byte `cramberry:"1"`
	Hash []byte `cramberry:"2"`
}

// TransactionStatusResponse mirrors rpc.TransactionStatus. Empty To or
// ContractAddress mean absent.
type TransactionStatusResponse struct {
	Found           bool   `cramberry:"1"`
	Hash            []byte `cramberry:"2"`
	Index           uint32 `cramberry:"3"`
	From            []byte `cramberry:"4"`
	To              []byte `cramberry:"5"`
	ContractAddress []byte `cramberry:"6"`
}

// SubmitRequest hands one extrinsic to the remote pool.
type SubmitRequest struct {
	AtHash    []byte `cramberry:"1"`
	AtNumber  uint64 `cramberry:"2"`
	Source    uint32 `cramberry:"3"`
	Extrinsic []byte `cramberry:"4"`
}

// SubmitResponse is the pool's verdict. A rejection is a verdict, not a
// transport failure.
type SubmitResponse struct {
	Accepted bool   `cramberry:"1"`
	Hash     []byte `cramberry:"2"`
	Reason   string `cramberry:"3"`
}
