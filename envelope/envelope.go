// Package envelope defines the enveloping request data model shared by the
// signer, the gas estimator, the relay transport and the relay client.
//
// An enveloping request wraps a sender's call so that a relay worker pays the
// native gas and collects a token fee in return. It comes in two variants:
// RelayRequest executes a call through an existing smart wallet, DeployRequest
// deploys a fresh smart wallet through a factory. Both share CommonBody and
// RelayData.
//
// Values are immutable once signed. Modifiers such as WithTokenGas return
// copies and never mutate the receiver or the big.Int values it references.
package envelope

import (
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
)

// CommonBody holds the fields present in both request variants.
type CommonBody struct {
	RelayHub      common.Address
	From          common.Address
	To            common.Address
	TokenContract common.Address
	Value         *big.Int
	Nonce         *big.Int
	TokenAmount   *big.Int
	TokenGas      *big.Int
	Data          []byte
}

// RelayData carries the relay-side parameters of a request.
type RelayData struct {
	GasPrice      *big.Int
	FeesReceiver  common.Address
	CallForwarder common.Address
	CallVerifier  common.Address
}

// RelayRequestBody is the body of a call executed through an existing smart wallet.
type RelayRequestBody struct {
	CommonBody
	Gas *big.Int
}

// DeployRequestBody is the body of a smart wallet deployment.
type DeployRequestBody struct {
	CommonBody
	Index     *big.Int
	Recoverer common.Address
}

// EnvelopingRequest is implemented by RelayRequest and DeployRequest only.
type EnvelopingRequest interface {
	// Common returns the fields shared by both variants.
	Common() CommonBody
	// GetRelayData returns the relay-side parameters.
	GetRelayData() RelayData
	// IsDeploy reports whether the request deploys a smart wallet.
	IsDeploy() bool

	withCommon(CommonBody) EnvelopingRequest
	withRelayData(RelayData) EnvelopingRequest
}

type RelayRequest struct {
	Request   RelayRequestBody
	RelayData RelayData
}

var _ EnvelopingRequest = RelayRequest{}

func (r RelayRequest) Common() CommonBody      { return r.Request.CommonBody }
func (r RelayRequest) GetRelayData() RelayData { return r.RelayData }
func (r RelayRequest) IsDeploy() bool          { return false }

func (r RelayRequest) withCommon(c CommonBody) EnvelopingRequest {
	r.Request.CommonBody = c
	return r
}

func (r RelayRequest) withRelayData(d RelayData) EnvelopingRequest {
	r.RelayData = d
	return r
}

type DeployRequest struct {
	Request   DeployRequestBody
	RelayData RelayData
}

var _ EnvelopingRequest = DeployRequest{}

func (r DeployRequest) Common() CommonBody      { return r.Request.CommonBody }
func (r DeployRequest) GetRelayData() RelayData { return r.RelayData }
func (r DeployRequest) IsDeploy() bool          { return true }

func (r DeployRequest) withCommon(c CommonBody) EnvelopingRequest {
	r.Request.CommonBody = c
	return r
}

func (r DeployRequest) withRelayData(d RelayData) EnvelopingRequest {
	r.RelayData = d
	return r
}

// WithTokenGas returns a copy of req with the token transfer gas limit replaced.
func WithTokenGas(req EnvelopingRequest, tokenGas *big.Int) EnvelopingRequest {
	c := req.Common()
	c.TokenGas = new(big.Int).Set(tokenGas)
	return req.withCommon(c)
}

// WithFeesReceiver returns a copy of req paying fees to feesReceiver.
func WithFeesReceiver(req EnvelopingRequest, feesReceiver common.Address) EnvelopingRequest {
	d := req.GetRelayData()
	d.FeesReceiver = feesReceiver
	return req.withRelayData(d)
}

// Gas returns the destination call gas limit of a relay request, or nil for deploys.
func Gas(req EnvelopingRequest) *big.Int {
	if r, ok := req.(RelayRequest); ok {
		return r.Request.Gas
	}
	return nil
}

// EnvelopingMetadata is attached to a signed request on its way to a relay.
type EnvelopingMetadata struct {
	RelayHubAddress common.Address
	Signature       []byte
	RelayMaxNonce   uint64
}

// EnvelopingTxRequest is the payload submitted to a relay server.
type EnvelopingTxRequest struct {
	RelayRequest EnvelopingRequest
	Metadata     EnvelopingMetadata
}

// Validate checks the structural invariants of a canonical request: every
// numeric field is present and the hub, forwarder and verifier are set.
func Validate(req EnvelopingRequest) error {
	if req == nil {
		return fmt.Errorf("envelope: nil request")
	}
	c := req.Common()
	d := req.GetRelayData()

	if c.RelayHub == (common.Address{}) {
		return fmt.Errorf("envelope: relayHub is required")
	}
	if d.CallForwarder == (common.Address{}) {
		return fmt.Errorf("envelope: callForwarder is required")
	}
	if d.CallVerifier == (common.Address{}) {
		return fmt.Errorf("envelope: callVerifier is required")
	}

	type field struct {
		name string
		v    *big.Int
	}
	nums := []field{
		{"value", c.Value},
		{"nonce", c.Nonce},
		{"tokenAmount", c.TokenAmount},
		{"tokenGas", c.TokenGas},
		{"gasPrice", d.GasPrice},
	}
	switch r := req.(type) {
	case RelayRequest:
		nums = append(nums, field{"gas", r.Request.Gas})
	case DeployRequest:
		nums = append(nums, field{"index", r.Request.Index})
	}
	for _, n := range nums {
		if n.v == nil {
			return fmt.Errorf("envelope: %s is required", n.name)
		}
		if n.v.Sign() < 0 {
			return fmt.Errorf("envelope: %s is negative", n.name)
		}
	}

	return nil
}
