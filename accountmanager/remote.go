package accountmanager

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/0xsequence/ethkit/ethcoder"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
)

// RPCCaller is satisfied by *rpc.Client from the go-ethereum rpc package.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// RPCSigner delegates signing to a node or wallet exposing eth_signTypedData_<version>.
type RPCSigner struct {
	client  RPCCaller
	version string
}

var _ RemoteSigner = (*RPCSigner)(nil)

// NewRPCSigner returns a remote signer; version defaults to "v4".
func NewRPCSigner(client RPCCaller, version string) *RPCSigner {
	if version == "" {
		version = "v4"
	}
	return &RPCSigner{client: client, version: version}
}

func (s *RPCSigner) Method() string {
	return "eth_signTypedData_" + s.version
}

func (s *RPCSigner) SignTypedData(ctx context.Context, account common.Address, typedData *ethcoder.TypedData) ([]byte, error) {
	payload, err := json.Marshal(typedData)
	if err != nil {
		return nil, fmt.Errorf("encode typed data: %w", err)
	}

	var sig hexutil.Bytes
	if err := s.client.CallContext(ctx, &sig, s.Method(), account, string(payload)); err != nil {
		return nil, err
	}
	return sig, nil
}
