package ethrelay

import "github.com/0xsequence/ethkit/go-ethereum/common"

type Address = common.Address

type Hash = common.Hash

// ZeroAddress is the all-zero address used by relay contracts to mean "none".
var ZeroAddress = common.Address{}

func PtrTo[T any](v T) *T {
	return &v
}
