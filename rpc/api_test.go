package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eth2030/ethfacade/log"
	"github.com/eth2030/ethfacade/metrics"
)

func newTestAPI(t *testing.T) (*EthAPI, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return NewEthAPI(env.backend()), env
}

func TestAPI_Scalars(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		method string
		want   string
	}{
		{"eth_chainId", `"0x539"`},
		{"eth_blockNumber", `"0x2"`},
		{"eth_gasPrice", `"0x3b9aca00"`},
		{"eth_coinbase", `"0x00000000000000000000000000000000000000aa"`},
		{"eth_accounts", `[]`},
		{"eth_mining", `false`},
		{"eth_hashrate", `"0x0"`},
		{"net_version", `"1337"`},
		{"net_listening", `true`},
		{"web3_clientVersion", `"ethfacade/v0.1.0"`},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := resultJSON(t, callRPC(t, api, tt.method))
			if got != tt.want {
				t.Fatalf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAPI_ClientVersionOption(t *testing.T) {
	env := newTestEnv(t)
	api := NewEthAPI(env.backend(), WithClientVersion("custom/1"))
	if got := resultJSON(t, callRPC(t, api, "web3_clientVersion")); got != `"custom/1"` {
		t.Fatalf("got %s", got)
	}
}

func TestAPI_Sha3(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := callRPC(t, api, "web3_sha3", "0x68656c6c6f20776f726c64")
	want := `"` + hexutil.Encode(crypto.Keccak256([]byte("hello world"))) + `"`
	if got := resultJSON(t, resp); got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestAPI_GetBalance(t *testing.T) {
	api, _ := newTestAPI(t)

	for _, params := range [][]interface{}{
		{testAddr.Hex()},
		{testAddr.Hex(), "latest"},
		{testAddr.Hex(), nil},
	} {
		if got := resultJSON(t, callRPC(t, api, "eth_getBalance", params...)); got != `"0xde0b6b3a7640000"` {
			t.Fatalf("params %v: got %s", params, got)
		}
	}
}

func TestAPI_HistoricalStateUnsupported(t *testing.T) {
	api, _ := newTestAPI(t)

	for _, method := range []string{"eth_getBalance", "eth_getTransactionCount", "eth_getCode"} {
		for _, ref := range []string{"0x2", "0x0", "pending", "earliest", "safe", "finalized"} {
			resp := callRPC(t, api, method, testAddr.Hex(), ref)
			if resp.Error == nil {
				t.Fatalf("%s at %s: expected error", method, ref)
			}
			if resp.Error.Code != ErrCodeInternal || resp.Error.Data != "unsupported" {
				t.Fatalf("%s at %s: got %d %s %v", method, ref, resp.Error.Code, resp.Error.Message, resp.Error.Data)
			}
		}
	}
}

func TestAPI_GetTransactionCountAndCode(t *testing.T) {
	api, _ := newTestAPI(t)
	if got := resultJSON(t, callRPC(t, api, "eth_getTransactionCount", testAddr.Hex(), "latest")); got != `"0x1"` {
		t.Fatalf("nonce %s", got)
	}
	if got := resultJSON(t, callRPC(t, api, "eth_getCode", testRecv.Hex())); got != `"0x6000"` {
		t.Fatalf("code %s", got)
	}
	if got := resultJSON(t, callRPC(t, api, "eth_getCode", common.Address{0x99}.Hex())); got != `"0x"` {
		t.Fatalf("empty code %s", got)
	}
}

func TestAPI_InvalidParams(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		method string
		params []interface{}
	}{
		{"eth_getBalance", nil},
		{"eth_getBalance", []interface{}{"0x1234"}},
		{"eth_getBalance", []interface{}{testAddr.Hex(), "tomorrow"}},
		{"eth_getBlockByHash", []interface{}{"0x12"}},
		{"eth_getBlockByNumber", []interface{}{"0x1", "yes"}},
		{"eth_getTransactionReceipt", []interface{}{42}},
		{"eth_sendRawTransaction", []interface{}{"zz"}},
		{"web3_sha3", nil},
	}
	for _, tt := range tests {
		resp := callRPC(t, api, tt.method, tt.params...)
		if resp.Error == nil || resp.Error.Code != ErrCodeInvalidParams {
			t.Fatalf("%s %v: want invalid params, got %+v", tt.method, tt.params, resp.Error)
		}
	}
}

func TestAPI_BlockByNumberLatestMatchesHead(t *testing.T) {
	api, env := newTestAPI(t)

	var latest, byNumber map[string]interface{}
	decodeResult(t, callRPC(t, api, "eth_getBlockByNumber", "latest", false), &latest)
	decodeResult(t, callRPC(t, api, "eth_getBlockByNumber", "0x2", false), &byNumber)

	if latest["hash"] != env.head().Hash().Hex() {
		t.Fatalf("latest hash %v", latest["hash"])
	}
	if latest["hash"] != byNumber["hash"] {
		t.Fatalf("latest %v != by number %v", latest["hash"], byNumber["hash"])
	}
}

func TestAPI_BlockByHash(t *testing.T) {
	api, env := newTestAPI(t)

	var block map[string]interface{}
	decodeResult(t, callRPC(t, api, "eth_getBlockByHash", env.blocks[1].Hash().Hex(), false), &block)
	if block["number"] != "0x1" {
		t.Fatalf("number %v", block["number"])
	}

	resp := callRPC(t, api, "eth_getBlockByHash", common.Hash{0x1}.Hex(), true)
	if got := resultJSON(t, resp); got != "null" {
		t.Fatalf("missing block: want null, got %s", got)
	}
}

func TestAPI_BlockFullTransactions(t *testing.T) {
	api, env := newTestAPI(t)

	var block struct {
		Transactions []map[string]interface{} `json:"transactions"`
	}
	decodeResult(t, callRPC(t, api, "eth_getBlockByNumber", "latest", true), &block)
	if len(block.Transactions) != 1 {
		t.Fatalf("want 1 tx, got %d", len(block.Transactions))
	}
	if block.Transactions[0]["hash"] != env.head().Transactions()[0].Hash().Hex() {
		t.Fatalf("tx hash %v", block.Transactions[0]["hash"])
	}
	if !strings.EqualFold(block.Transactions[0]["from"].(string), testAddr.Hex()) {
		t.Fatalf("from %v", block.Transactions[0]["from"])
	}
}

func TestAPI_MissingBlockIsNull(t *testing.T) {
	api, _ := newTestAPI(t)
	if got := resultJSON(t, callRPC(t, api, "eth_getBlockByNumber", "0x63", false)); got != "null" {
		t.Fatalf("want null, got %s", got)
	}
	if got := resultJSON(t, callRPC(t, api, "eth_getBlockTransactionCountByNumber", "0x63")); got != "null" {
		t.Fatalf("want null, got %s", got)
	}
	if got := resultJSON(t, callRPC(t, api, "eth_getBlockTransactionCountByNumber", "latest")); got != `"0x1"` {
		t.Fatalf("want 0x1, got %s", got)
	}
}

func TestAPI_BlockTagsUnsupported(t *testing.T) {
	api, _ := newTestAPI(t)
	for _, tag := range []string{"pending", "earliest", "safe", "finalized"} {
		resp := callRPC(t, api, "eth_getBlockByNumber", tag, false)
		if resp.Error == nil || resp.Error.Data != "unsupported" {
			t.Fatalf("%s: want unsupported, got %+v", tag, resp.Error)
		}
	}
}

func TestAPI_TransactionReceipt(t *testing.T) {
	api, env := newTestAPI(t)
	tx := env.head().Transactions()[0]

	var receipt map[string]interface{}
	decodeResult(t, callRPC(t, api, "eth_getTransactionReceipt", tx.Hash().Hex()), &receipt)
	if receipt["transactionHash"] != tx.Hash().Hex() {
		t.Fatalf("hash %v", receipt["transactionHash"])
	}
	if receipt["blockHash"] != nil || receipt["status"] != nil {
		t.Fatal("underivable fields must be null")
	}

	if got := resultJSON(t, callRPC(t, api, "eth_getTransactionReceipt", common.Hash{0x2}.Hex())); got != "null" {
		t.Fatalf("unknown tx: want null, got %s", got)
	}
}

func TestAPI_SendRawTransaction(t *testing.T) {
	api, env := newTestAPI(t)
	raw := encodeTx(t, signDynamic(t, testKey, 1, &testRecv))

	resp := callRPC(t, api, "eth_sendRawTransaction", hexutil.Encode(raw))
	want := `"` + crypto.Keccak256Hash(raw).Hex() + `"`
	if got := resultJSON(t, resp); got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
	if env.pool.count() != 1 {
		t.Fatalf("want 1 submission, got %d", env.pool.count())
	}
}

func TestAPI_SendRawTransactionFailures(t *testing.T) {
	api, env := newTestAPI(t)

	resp := callRPC(t, api, "eth_sendRawTransaction", "0xdeadbeef")
	if resp.Error == nil || resp.Error.Data != "decode" || resp.Error.Message != msgDecodeTx {
		t.Fatalf("want decode error, got %+v", resp.Error)
	}

	env.pool.reject = errRejected
	resp = callRPC(t, api, "eth_sendRawTransaction", hexutil.Encode(encodeTx(t, signDynamic(t, testKey, 0, &testRecv))))
	if resp.Error == nil || resp.Error.Data != "submission" {
		t.Fatalf("want submission error, got %+v", resp.Error)
	}
	if strings.Contains(resp.Error.Message, errRejected.Error()) {
		t.Fatal("pool cause leaked to the client")
	}
}

func TestAPI_SendRawTransactionAbandoned(t *testing.T) {
	env := newTestEnv(t)
	env.pool.hold = true
	api := NewEthAPI(env.backend())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	raw := encodeTx(t, signDynamic(t, testKey, 0, &testRecv))
	param, _ := json.Marshal(hexutil.Encode(raw))
	resp := api.HandleRequest(ctx, &Request{
		JSONRPC: "2.0",
		Method:  "eth_sendRawTransaction",
		Params:  []json.RawMessage{param},
		ID:      json.RawMessage(`7`),
	})
	if resp.Error == nil || resp.Error.Message != msgSubmitAbandoned {
		t.Fatalf("want abandoned error, got %+v", resp.Error)
	}
	if env.pool.count() != 1 {
		t.Fatalf("want single attempt, got %d", env.pool.count())
	}
}

func TestAPI_QueryFailureHidesCause(t *testing.T) {
	api, env := newTestAPI(t)
	env.runtime.err = errBackend

	resp := callRPC(t, api, "eth_chainId")
	if resp.Error == nil || resp.Error.Code != ErrCodeInternal || resp.Error.Data != "query" {
		t.Fatalf("want query error, got %+v", resp.Error)
	}
	if strings.Contains(resp.Error.Message, errBackend.Error()) {
		t.Fatal("internal cause leaked")
	}

	env.runtime.err = nil
	env.selector.err = errBackend
	resp = callRPC(t, api, "eth_blockNumber")
	if resp.Error == nil || resp.Error.Data != "resolution" {
		t.Fatalf("want resolution error, got %+v", resp.Error)
	}
}

// logRecords decodes the JSON lines written by a test logger.
func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec map[string]interface{}
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log record: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestAPI_LogsWithheldCause(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t)
	api := NewEthAPI(env.backend(), WithLogger(log.NewWithFormat(&buf, slog.LevelDebug, "json")))

	env.runtime.err = errBackend
	callRPC(t, api, "eth_chainId")
	env.runtime.err = nil
	callRPC(t, api, "eth_sendRawTransaction", "0x1234")

	var sawQuery, sawIngress, sawDecode bool
	for _, rec := range logRecords(t, bytes.NewBuffer(buf.Bytes())) {
		switch {
		case rec["msg"] == "request failed" && rec["method"] == "eth_chainId":
			sawQuery = true
			if rec["module"] != "rpc" || rec["kind"] != "query" || rec["level"] != "WARN" {
				t.Fatalf("unexpected record %v", rec)
			}
			if !strings.Contains(rec["err"].(string), errBackend.Error()) {
				t.Fatalf("cause missing from log: %v", rec)
			}
		case rec["msg"] == "rejected raw transaction":
			sawIngress = true
			if rec["module"] != "ingress" {
				t.Fatalf("module = %v, want ingress", rec["module"])
			}
		case rec["msg"] == "request failed" && rec["method"] == "eth_sendRawTransaction":
			sawDecode = true
			if rec["module"] != "rpc" || rec["kind"] != "decode" {
				t.Fatalf("unexpected record %v", rec)
			}
		}
	}
	if !sawQuery || !sawIngress || !sawDecode {
		t.Fatalf("missing records: query=%v ingress=%v decode=%v\n%s", sawQuery, sawIngress, sawDecode, buf.String())
	}
}

func TestAPI_UnsupportedMethods(t *testing.T) {
	api, _ := newTestAPI(t)
	for method := range unsupportedMethods {
		resp := callRPC(t, api, method)
		if resp.Error == nil {
			t.Fatalf("%s: expected error", method)
		}
		if resp.Error.Code != ErrCodeInternal || resp.Error.Data != "unsupported" {
			t.Fatalf("%s: got %d %v", method, resp.Error.Code, resp.Error.Data)
		}
		if !strings.Contains(resp.Error.Message, method) {
			t.Fatalf("%s: message %q does not name the method", method, resp.Error.Message)
		}
	}
}

func TestAPI_UnknownMethodAndBadRequests(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := callRPC(t, api, "eth_frobnicate")
	if resp.Error == nil || resp.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("want method not found, got %+v", resp.Error)
	}

	resp = api.HandleRequest(context.Background(), &Request{JSONRPC: "1.0", Method: "eth_chainId"})
	if resp.Error == nil || resp.Error.Code != ErrCodeInvalidRequest {
		t.Fatalf("want invalid request, got %+v", resp.Error)
	}
	resp = api.HandleRequest(context.Background(), &Request{JSONRPC: "2.0"})
	if resp.Error == nil || resp.Error.Code != ErrCodeInvalidRequest {
		t.Fatalf("want invalid request, got %+v", resp.Error)
	}
}

func TestAPI_ResponseEnvelope(t *testing.T) {
	api, _ := newTestAPI(t)

	b, err := json.Marshal(callRPC(t, api, "eth_getTransactionReceipt", common.Hash{0x3}.Hex()))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"jsonrpc":"2.0","result":null,"id":1}` {
		t.Fatalf("unexpected envelope %s", b)
	}

	b, err = json.Marshal(callRPC(t, api, "eth_frobnicate"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), `"result"`) {
		t.Fatalf("error response carries result: %s", b)
	}
}

func TestAPI_Metrics(t *testing.T) {
	env := newTestEnv(t)
	m := metrics.New("ethfacade")
	api := NewEthAPI(env.backend(), WithMetrics(m))

	callRPC(t, api, "eth_chainId")
	callRPC(t, api, "eth_call")
	callRPC(t, api, "no_such_method")
	callRPC(t, api, "eth_sendRawTransaction", hexutil.Encode(encodeTx(t, signDynamic(t, testKey, 0, &testRecv))))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	res, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	text := string(body)

	for _, want := range []string{
		`ethfacade_rpc_requests_total{method="eth_chainId"} 1`,
		`ethfacade_rpc_requests_total{method="unknown"} 1`,
		`ethfacade_rpc_errors_total{kind="unsupported",method="eth_call"} 1`,
		`ethfacade_tx_submissions_total{outcome="accepted"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
