package envelope

import (
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/ethcoder"
)

const (
	DefaultDomainName    = "RSK Enveloping Transaction"
	DefaultDomainVersion = "2"

	// PrimaryType is the EIP-712 primary type name for both request variants.
	PrimaryType = "RelayRequest"
)

// Domain identifies the EIP-712 signing domain. The verifying contract is
// always the request's callForwarder.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
}

var eip712DomainType = []ethcoder.TypedDataArgument{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var relayDataType = []ethcoder.TypedDataArgument{
	{Name: "gasPrice", Type: "uint256"},
	{Name: "feesReceiver", Type: "address"},
	{Name: "callForwarder", Type: "address"},
	{Name: "callVerifier", Type: "address"},
}

var relayRequestType = []ethcoder.TypedDataArgument{
	{Name: "relayHub", Type: "address"},
	{Name: "from", Type: "address"},
	{Name: "to", Type: "address"},
	{Name: "tokenContract", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "gas", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "tokenAmount", Type: "uint256"},
	{Name: "tokenGas", Type: "uint256"},
	{Name: "data", Type: "bytes"},
	{Name: "relayData", Type: "RelayData"},
}

var deployRequestType = []ethcoder.TypedDataArgument{
	{Name: "relayHub", Type: "address"},
	{Name: "from", Type: "address"},
	{Name: "to", Type: "address"},
	{Name: "tokenContract", Type: "address"},
	{Name: "recoverer", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "tokenAmount", Type: "uint256"},
	{Name: "tokenGas", Type: "uint256"},
	{Name: "index", Type: "uint256"},
	{Name: "data", Type: "bytes"},
	{Name: "relayData", Type: "RelayData"},
}

// TypedData builds the EIP-712 structure that the sender signs for req.
func TypedData(req EnvelopingRequest, domain Domain) (*ethcoder.TypedData, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if domain.ChainID == nil {
		return nil, fmt.Errorf("envelope: typed data: chain id is required")
	}
	if domain.Name == "" {
		domain.Name = DefaultDomainName
	}
	if domain.Version == "" {
		domain.Version = DefaultDomainVersion
	}

	c := req.Common()
	d := req.GetRelayData()
	forwarder := d.CallForwarder

	message := map[string]interface{}{
		"relayHub":      c.RelayHub,
		"from":          c.From,
		"to":            c.To,
		"tokenContract": c.TokenContract,
		"value":         c.Value,
		"nonce":         c.Nonce,
		"tokenAmount":   c.TokenAmount,
		"tokenGas":      c.TokenGas,
		"data":          bytesOrEmpty(c.Data),
		"relayData": map[string]interface{}{
			"gasPrice":      d.GasPrice,
			"feesReceiver":  d.FeesReceiver,
			"callForwarder": d.CallForwarder,
			"callVerifier":  d.CallVerifier,
		},
	}

	requestType := relayRequestType
	switch r := req.(type) {
	case RelayRequest:
		message["gas"] = r.Request.Gas
	case DeployRequest:
		requestType = deployRequestType
		message["recoverer"] = r.Request.Recoverer
		message["index"] = r.Request.Index
	}

	return &ethcoder.TypedData{
		Types: ethcoder.TypedDataTypes{
			"EIP712Domain": eip712DomainType,
			PrimaryType:    requestType,
			"RelayData":    relayDataType,
		},
		PrimaryType: PrimaryType,
		Domain: ethcoder.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainID:           domain.ChainID,
			VerifyingContract: &forwarder,
		},
		Message: message,
	}, nil
}

func bytesOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
