package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Positional parameter decoding. Every failure is an invalid-params error.

func requireParams(params []json.RawMessage, n int) error {
	if len(params) < n {
		return invalidParams("missing value for required argument %d", len(params))
	}
	return nil
}

func parseString(raw json.RawMessage, what string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalidParams("invalid %s: %v", what, err)
	}
	return s, nil
}

func parseAddress(raw json.RawMessage) (common.Address, error) {
	s, err := parseString(raw, "address")
	if err != nil {
		return common.Address{}, err
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.AddressLength {
		return common.Address{}, invalidParams("invalid address %q", s)
	}
	return common.BytesToAddress(b), nil
}

func parseHash(raw json.RawMessage) (common.Hash, error) {
	s, err := parseString(raw, "hash")
	if err != nil {
		return common.Hash{}, err
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, invalidParams("invalid hash %q", s)
	}
	return common.BytesToHash(b), nil
}

func parseBytes(raw json.RawMessage) ([]byte, error) {
	s, err := parseString(raw, "data")
	if err != nil {
		return nil, err
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, invalidParams("invalid hex data: %v", err)
	}
	return b, nil
}

func parseBlockNumber(raw json.RawMessage) (BlockNumber, error) {
	var bn BlockNumber
	if err := json.Unmarshal(raw, &bn); err != nil {
		return 0, invalidParams("%v", err)
	}
	return bn, nil
}

// optionalBlockNumber decodes params[i] if present. Absent or null means
// latest, reported as nil.
func optionalBlockNumber(params []json.RawMessage, i int) (*BlockNumber, error) {
	if len(params) <= i || string(params[i]) == "null" {
		return nil, nil
	}
	bn, err := parseBlockNumber(params[i])
	if err != nil {
		return nil, err
	}
	return &bn, nil
}

// optionalBool decodes params[i] if present, defaulting to false.
func optionalBool(params []json.RawMessage, i int) (bool, error) {
	if len(params) <= i || string(params[i]) == "null" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(params[i], &b); err != nil {
		return false, invalidParams("invalid boolean argument %d: %v", i, err)
	}
	return b, nil
}
