package relayclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/gasestimator"
)

// buildRequest derives the canonical request from user, filling in what the
// caller left out from the static configuration and the ledger. Token gas and
// fees receiver are left zero; they depend on the relay chosen.
//
// Every field check runs before the first network call.
func (c *Client) buildRequest(ctx context.Context, user envelope.UserRequest, reqCfg *RequestConfig) (envelope.EnvelopingRequest, error) {
	body := user.Request
	isDeploy := user.IsDeploy()

	if isZero(user.RelayData.CallForwarder) {
		return nil, &ConfigurationError{Field: "callForwarder", Msg: "call forwarder is required"}
	}
	callForwarder := *user.RelayData.CallForwarder

	callVerifier := c.Config.RelayVerifierAddress
	if isDeploy {
		callVerifier = c.Config.DeployVerifierAddress
	}
	if !isZero(user.RelayData.CallVerifier) {
		callVerifier = *user.RelayData.CallVerifier
	}
	if callVerifier == (common.Address{}) {
		return nil, &ConfigurationError{Field: "callVerifier", Msg: "no call verifier given or configured"}
	}

	if len(c.candidates(reqCfg)) == 0 {
		return nil, &ConfigurationError{Field: "preferredRelays", Msg: "no relay url given or configured"}
	}

	if body.Data == nil {
		return nil, &ConfigurationError{Field: "data", Msg: "field is not defined in request body"}
	}
	if body.From == nil {
		return nil, &ConfigurationError{Field: "from", Msg: "field is not defined in request body"}
	}
	if body.To == nil {
		return nil, &ConfigurationError{Field: "to", Msg: "field is not defined in request body"}
	}
	if body.TokenContract == nil {
		return nil, &ConfigurationError{Field: "tokenContract", Msg: "field is not defined in request body"}
	}

	relayHub := c.Config.RelayHubAddress
	if !isZero(body.RelayHub) {
		relayHub = *body.RelayHub
	}
	if relayHub == (common.Address{}) {
		return nil, &ConfigurationError{Field: "relayHub", Msg: "no relay hub given or configured"}
	}

	for _, v := range []struct {
		field string
		value *big.Int
	}{
		{"value", body.Value},
		{"tokenAmount", body.TokenAmount},
		{"nonce", body.Nonce},
		{"index", body.Index},
	} {
		if v.value != nil && v.value.Sign() < 0 {
			return nil, &ConfigurationError{Field: v.field, Msg: "negative value"}
		}
	}

	gasPrice, err := c.resolveGasPrice(ctx, user.RelayData.GasPrice, reqCfg)
	if err != nil {
		return nil, err
	}

	nonce := body.Nonce
	if nonce == nil {
		nonce, err = c.readNonce(ctx, isDeploy, callForwarder, *body.From)
		if err != nil {
			return nil, err
		}
	}

	commonBody := envelope.CommonBody{
		RelayHub:      relayHub,
		From:          *body.From,
		To:            *body.To,
		TokenContract: *body.TokenContract,
		Value:         orZero(body.Value),
		Nonce:         new(big.Int).Set(nonce),
		TokenAmount:   orZero(body.TokenAmount),
		TokenGas:      new(big.Int),
		Data:          body.Data,
	}
	relayData := envelope.RelayData{
		GasPrice:      gasPrice,
		CallForwarder: callForwarder,
		CallVerifier:  callVerifier,
	}

	if isDeploy {
		var recoverer common.Address
		if body.Recoverer != nil {
			recoverer = *body.Recoverer
		}
		return envelope.DeployRequest{
			Request: envelope.DeployRequestBody{
				CommonBody: commonBody,
				Index:      orZero(body.Index),
				Recoverer:  recoverer,
			},
			RelayData: relayData,
		}, nil
	}

	gas, err := c.resolveGasLimit(ctx, body, gasPrice, reqCfg)
	if err != nil {
		return nil, err
	}
	if gas.Sign() <= 0 {
		return nil, &ConfigurationError{Field: "gas", Msg: "gas limit is required in a relay request"}
	}

	return envelope.RelayRequest{
		Request: envelope.RelayRequestBody{
			CommonBody: commonBody,
			Gas:        gas,
		},
		RelayData: relayData,
	}, nil
}

// resolveGasPrice prefers the forced price, then the caller's, then the
// network price inflated by the configured percentage and floored at the
// configured minimum.
func (c *Client) resolveGasPrice(ctx context.Context, requested *big.Int, reqCfg *RequestConfig) (*big.Int, error) {
	var gasPrice *big.Int
	switch {
	case reqCfg.ForceGasPrice != nil:
		gasPrice = new(big.Int).Set(reqCfg.ForceGasPrice)
	case requested != nil && requested.Sign() != 0:
		gasPrice = new(big.Int).Set(requested)
	default:
		networkPrice, err := c.Provider.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("relayclient: gas price: %w", err)
		}
		gasPrice = c.inflateGasPrice(networkPrice)
	}

	if gasPrice.Sign() <= 0 {
		return nil, &ConfigurationError{Field: "gasPrice", Msg: "could not get gas price for request"}
	}
	return gasPrice, nil
}

func (c *Client) inflateGasPrice(networkPrice *big.Int) *big.Int {
	gasPrice := new(big.Int).Mul(networkPrice, big.NewInt(int64(100+c.Config.GasPriceFactorPercent)))
	gasPrice.Div(gasPrice, big.NewInt(100))

	if c.Config.MinGasPrice != nil && gasPrice.Cmp(c.Config.MinGasPrice) < 0 {
		gasPrice.Set(c.Config.MinGasPrice)
	}
	return gasPrice
}

func (c *Client) resolveGasLimit(ctx context.Context, body envelope.UserRequestBody, gasPrice *big.Int, reqCfg *RequestConfig) (*big.Int, error) {
	switch {
	case reqCfg.ForceGasLimit != nil:
		return new(big.Int).Set(reqCfg.ForceGasLimit), nil
	case body.Gas != nil:
		return new(big.Int).Set(body.Gas), nil
	}

	gas, err := c.estimator.EstimateInternalCallGas(ctx, gasestimator.InternalCallParams{
		From:        *body.From,
		To:          *body.To,
		Data:        body.Data,
		GasPrice:    gasPrice,
		Corrections: reqCfg.corrections(),
	})
	if err != nil {
		return nil, fmt.Errorf("relayclient: %w", err)
	}
	return gas, nil
}

// readNonce reads the sender's nonce from the forwarder, or from the factory
// for deploys.
func (c *Client) readNonce(ctx context.Context, isDeploy bool, callForwarder, from common.Address) (*big.Int, error) {
	var (
		data []byte
		err  error
	)
	if isDeploy {
		data, err = contracts.EncodeFactoryNonce(from)
	} else {
		data, err = contracts.EncodeForwarderNonce()
	}
	if err != nil {
		return nil, err
	}

	out, err := c.Provider.CallContract(ctx, ethereum.CallMsg{To: &callForwarder, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("relayclient: read nonce from %s: %w", callForwarder.Hex(), err)
	}

	if isDeploy {
		return contracts.DecodeFactoryNonce(out)
	}
	return contracts.DecodeForwarderNonce(out)
}

func isZero(address *common.Address) bool {
	return address == nil || *address == (common.Address{})
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
