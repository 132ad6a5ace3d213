package contracts

import (
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/envelope"
)

// Go mirrors of the on-chain structs. Field names match the ABI component
// names so the abi package can map them.

type ForwardRequestABI struct {
	RelayHub      common.Address
	From          common.Address
	To            common.Address
	TokenContract common.Address
	Value         *big.Int
	Gas           *big.Int
	Nonce         *big.Int
	TokenAmount   *big.Int
	TokenGas      *big.Int
	Data          []byte
}

type DeployRequestStructABI struct {
	RelayHub      common.Address
	From          common.Address
	To            common.Address
	TokenContract common.Address
	Recoverer     common.Address
	Value         *big.Int
	Nonce         *big.Int
	TokenAmount   *big.Int
	TokenGas      *big.Int
	Index         *big.Int
	Data          []byte
}

type RelayDataABI struct {
	GasPrice      *big.Int
	FeesReceiver  common.Address
	CallForwarder common.Address
	CallVerifier  common.Address
}

type RelayRequestABI struct {
	Request   ForwardRequestABI
	RelayData RelayDataABI
}

type DeployRequestABI struct {
	Request   DeployRequestStructABI
	RelayData RelayDataABI
}

type RelayManagerDataABI struct {
	Manager         common.Address
	CurrentlyStaked bool
	Registered      bool
	Url             string
}

// requestTuple converts req to its ABI tuple and picks relayMethod or
// deployMethod according to the variant.
func requestTuple(req envelope.EnvelopingRequest, relayMethod, deployMethod string) (interface{}, string, error) {
	if err := envelope.Validate(req); err != nil {
		return nil, "", fmt.Errorf("contracts: %w", err)
	}

	d := req.GetRelayData()
	relayData := RelayDataABI{
		GasPrice:      d.GasPrice,
		FeesReceiver:  d.FeesReceiver,
		CallForwarder: d.CallForwarder,
		CallVerifier:  d.CallVerifier,
	}

	switch r := req.(type) {
	case envelope.RelayRequest:
		c := r.Request.CommonBody
		return RelayRequestABI{
			Request: ForwardRequestABI{
				RelayHub:      c.RelayHub,
				From:          c.From,
				To:            c.To,
				TokenContract: c.TokenContract,
				Value:         c.Value,
				Gas:           r.Request.Gas,
				Nonce:         c.Nonce,
				TokenAmount:   c.TokenAmount,
				TokenGas:      c.TokenGas,
				Data:          nonNilBytes(c.Data),
			},
			RelayData: relayData,
		}, relayMethod, nil

	case envelope.DeployRequest:
		c := r.Request.CommonBody
		return DeployRequestABI{
			Request: DeployRequestStructABI{
				RelayHub:      c.RelayHub,
				From:          c.From,
				To:            c.To,
				TokenContract: c.TokenContract,
				Recoverer:     r.Request.Recoverer,
				Value:         c.Value,
				Nonce:         c.Nonce,
				TokenAmount:   c.TokenAmount,
				TokenGas:      c.TokenGas,
				Index:         r.Request.Index,
				Data:          nonNilBytes(c.Data),
			},
			RelayData: relayData,
		}, deployMethod, nil

	default:
		return nil, "", fmt.Errorf("contracts: unsupported request type %T", req)
	}
}
