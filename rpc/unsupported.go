package rpc

import "fmt"

// unsupportedMethods are Ethereum methods this facade knows about and
// deliberately does not serve: execution, logs, proofs, historical and
// per-index transaction lookups, uncles, mining and compilers. They answer
// with an unsupported error rather than method-not-found.
var unsupportedMethods = map[string]struct{}{
	"eth_call":                                {},
	"eth_estimateGas":                         {},
	"eth_getLogs":                             {},
	"eth_getProof":                            {},
	"eth_getStorageAt":                        {},
	"eth_protocolVersion":                     {},
	"eth_syncing":                             {},
	"eth_submitTransaction":                   {},
	"eth_getTransactionByHash":                {},
	"eth_getTransactionByBlockHashAndIndex":   {},
	"eth_getTransactionByBlockNumberAndIndex": {},
	"eth_getBlockTransactionCountByHash":      {},
	"eth_getUncleByBlockHashAndIndex":         {},
	"eth_getUncleByBlockNumberAndIndex":       {},
	"eth_getUncleCountByBlockHash":            {},
	"eth_getUncleCountByBlockNumber":          {},
	"eth_getWork":                             {},
	"eth_submitWork":                          {},
	"eth_submitHashrate":                      {},
	"eth_getCompilers":                        {},
	"eth_compileLLL":                          {},
	"eth_compileSolidity":                     {},
	"eth_compileSerpent":                      {},
}

// IsUnsupported reports whether method is a known but unimplemented method.
func IsUnsupported(method string) bool {
	_, ok := unsupportedMethods[method]
	return ok
}

func unsupportedMethod(method string) error {
	return unsupported(fmt.Sprintf("method %s is not supported", method))
}
