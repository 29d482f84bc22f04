package rpc

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the facade. Every kind is reported to clients
// as an internal error (-32603) with a stable message; the kind name is the
// error's data member so clients can tell unsupported features apart from
// failures.
type Kind int

const (
	// KindUnsupported marks features this facade deliberately does not
	// implement (historical state, tags other than latest, mining, ...).
	KindUnsupported Kind = iota + 1
	// KindResolution means the canonical head could not be determined.
	KindResolution
	// KindQuery means a runtime query against the node failed.
	KindQuery
	// KindDecode means raw transaction bytes were malformed.
	KindDecode
	// KindSubmission means the pool rejected a well-formed transaction.
	KindSubmission
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindResolution:
		return "resolution"
	case KindQuery:
		return "query"
	case KindDecode:
		return "decode"
	case KindSubmission:
		return "submission"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified facade failure. Msg is safe to show to clients; Err
// holds the collaborator's cause and is only ever logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrUnsupported)
// works for every unsupported feature.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrUnsupported = &Error{Kind: KindUnsupported}
	ErrResolution  = &Error{Kind: KindResolution}
	ErrQuery       = &Error{Kind: KindQuery}
	ErrDecode      = &Error{Kind: KindDecode}
	ErrSubmission  = &Error{Kind: KindSubmission}
)

// Client-facing messages.
const (
	msgFetchHeader      = "fetch best header failed"
	msgChainID          = "fetch chain id failed"
	msgGasPrice         = "fetch gas price failed"
	msgAuthor           = "fetch block author failed"
	msgAccount          = "fetch account failed"
	msgAccountCode      = "fetch account code failed"
	msgBlock            = "fetch block failed"
	msgBlockTxCount     = "fetch block transaction count failed"
	msgTxStatus         = "fetch transaction status failed"
	msgDecodeTx         = "decode transaction failed"
	msgSubmitTx         = "submit transaction to pool failed"
	msgSubmitAbandoned  = "wait for transaction submission abandoned"
	msgHistoricalState  = "historical state queries are not supported"
	msgInternal         = "internal error"
	msgUnsupportedBlock = "only latest or a block number are supported"
)

func unsupported(msg string) error {
	return &Error{Kind: KindUnsupported, Msg: msg}
}

func unsupportedTag(bn BlockNumber) error {
	return &Error{Kind: KindUnsupported, Msg: fmt.Sprintf("block tag %q is not supported", bn.String())}
}

func queryFailed(msg string, err error) error {
	return &Error{Kind: KindQuery, Msg: msg, Err: err}
}

// KindOf returns the kind of a facade error, or 0 for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// paramError reports malformed method parameters (-32602).
type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

// toRPCError converts any error into the wire error object. Collaborator
// causes are dropped; only the stable message and kind survive.
func toRPCError(err error) *RPCError {
	var pe *paramError
	if errors.As(err, &pe) {
		return &RPCError{Code: ErrCodeInvalidParams, Message: pe.msg}
	}
	var re *RPCError
	if errors.As(err, &re) {
		return re
	}
	var e *Error
	if errors.As(err, &e) {
		return &RPCError{Code: ErrCodeInternal, Message: e.Msg, Data: e.Kind.String()}
	}
	return &RPCError{Code: ErrCodeInternal, Message: msgInternal}
}
