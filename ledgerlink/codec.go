// Package ledgerlink carries the facade's collaborator interfaces over
// gRPC, so the JSON-RPC facade can front a ledger node running in another
// process. Messages are plain Go structs serialized with cramberry; no
// protobuf code generation is involved.
package ledgerlink

import (
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

// codecName is sent as the gRPC content subtype by Dial's clients.
const codecName = "cramberry"

var errNilMessage = errors.New("ledgerlink: nil message")

// Codec serializes ledgerlink messages for gRPC. Errors name the message
// type so a failing call can be traced to its request or response struct.
type Codec struct{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, errNilMessage
	}
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ledgerlink: encode %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	if v == nil {
		return errNilMessage
	}
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("ledgerlink: decode %T: %w", v, err)
	}
	return nil
}

// Name implements encoding.Codec.
func (Codec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
