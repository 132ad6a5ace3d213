// Package gasestimator estimates the gas of relayed calls: the destination
// call, the token fee transfer and the worst case cost of the whole relay
// transaction.
package gasestimator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
)

const (
	// InternalTransactionEstimatedCorrection is subtracted from node estimates of
	// calls made from inside the relay hub, which do not pay the base
	// transaction cost.
	InternalTransactionEstimatedCorrection = 20_000

	DefaultEstimatedGasCorrectionFactor = 1.0
)

var (
	ErrMissingSmartWalletAddress = errors.New("gasestimator: smart wallet address is required to estimate the token transfer of a deploy")
	ErrMissingCallForwarder      = errors.New("gasestimator: call forwarder is required to estimate the token transfer")
)

// Provider is the ledger access the estimator needs.
type Provider interface {
	// EstimateGas = eth_estimateGas
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Corrections adjusts raw node estimates. A nil InternalCorrection applies
// InternalTransactionEstimatedCorrection; a zero CorrectionFactor applies
// DefaultEstimatedGasCorrectionFactor.
type Corrections struct {
	InternalCorrection *big.Int
	CorrectionFactor   float64
}

func (c Corrections) apply(estimate *big.Int) *big.Int {
	correction := c.InternalCorrection
	if correction == nil {
		correction = big.NewInt(InternalTransactionEstimatedCorrection)
	}
	return ApplyGasCorrectionFactor(ApplyInternalEstimationCorrection(estimate, correction), c.CorrectionFactor)
}

// ApplyInternalEstimationCorrection subtracts correction from estimate when
// estimate exceeds it, otherwise returns estimate unchanged.
func ApplyInternalEstimationCorrection(estimate, correction *big.Int) *big.Int {
	if estimate.Cmp(correction) > 0 {
		return new(big.Int).Sub(estimate, correction)
	}
	return new(big.Int).Set(estimate)
}

// ApplyGasCorrectionFactor multiplies estimate by factor, rounding up. The
// factor is applied as the exact decimal it prints as, so 1.1 means 11/10.
func ApplyGasCorrectionFactor(estimate *big.Int, factor float64) *big.Int {
	if factor <= 0 || factor == DefaultEstimatedGasCorrectionFactor {
		return new(big.Int).Set(estimate)
	}
	return ceilMul(estimate, factor)
}

func ceilMul(v *big.Int, factor float64) *big.Int {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(factor, 'f', -1, 64))
	if !ok {
		r = new(big.Rat).SetFloat64(factor)
	}
	r.Mul(r, new(big.Rat).SetInt(v))

	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

type Estimator struct {
	provider  Provider
	linearFit LinearFitModel
}

func NewEstimator(provider Provider, linearFit LinearFitModel) *Estimator {
	if linearFit.Version == "" {
		linearFit = DefaultLinearFitModel
	}
	return &Estimator{provider: provider, linearFit: linearFit}
}

func (e *Estimator) LinearFit() LinearFitModel {
	return e.linearFit
}

type InternalCallParams struct {
	From     common.Address
	To       common.Address
	Data     []byte
	GasPrice *big.Int
	Corrections
}

// EstimateInternalCallGas estimates the destination call as if made directly,
// then corrects it for execution inside the relay hub.
func (e *Estimator) EstimateInternalCallGas(ctx context.Context, p InternalCallParams) (*big.Int, error) {
	to := p.To
	gas, err := e.provider.EstimateGas(ctx, ethereum.CallMsg{
		From:     p.From,
		To:       &to,
		GasPrice: p.GasPrice,
		Data:     p.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("gasestimator: internal call: %w", err)
	}
	return p.apply(new(big.Int).SetUint64(gas)), nil
}

type TokenTransferParams struct {
	TokenContract common.Address
	TokenAmount   *big.Int
	FeesReceiver  common.Address
	CallForwarder common.Address
	GasPrice      *big.Int

	IsSmartWalletDeploy bool
	// PreDeploySWAddress is the counterfactual smart wallet address, required for deploys.
	PreDeploySWAddress *common.Address

	Corrections
}

// EstimateTokenTransferGas estimates the fee transfer from the smart wallet
// (or, for deploys, the wallet about to be deployed) to the fees receiver.
// No token or a zero amount costs nothing.
func (e *Estimator) EstimateTokenTransferGas(ctx context.Context, p TokenTransferParams) (*big.Int, error) {
	if p.TokenContract == (common.Address{}) || p.TokenAmount == nil || p.TokenAmount.Sign() == 0 {
		return new(big.Int), nil
	}

	var origin common.Address
	if p.IsSmartWalletDeploy {
		if p.PreDeploySWAddress == nil || *p.PreDeploySWAddress == (common.Address{}) {
			return nil, ErrMissingSmartWalletAddress
		}
		origin = *p.PreDeploySWAddress
	} else {
		if p.CallForwarder == (common.Address{}) {
			return nil, ErrMissingCallForwarder
		}
		origin = p.CallForwarder
	}

	data, err := contracts.EncodeTransfer(p.FeesReceiver, p.TokenAmount)
	if err != nil {
		return nil, err
	}

	token := p.TokenContract
	gas, err := e.provider.EstimateGas(ctx, ethereum.CallMsg{
		From:     origin,
		To:       &token,
		GasPrice: p.GasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("gasestimator: token transfer: %w", err)
	}
	return p.apply(new(big.Int).SetUint64(gas)), nil
}

// MaxGasParams carries what EstimateRelayMaxPossibleGas needs besides the request.
type MaxGasParams struct {
	Worker             common.Address
	PreDeploySWAddress *common.Address
}

// EstimateRelayMaxPossibleGas estimates the worst case gas of the relay
// transaction for txReq. With a signature the hub call itself is estimated
// from the worker; without one the linear fit model is used. Either way the
// token transfer is estimated with a 1 wei placeholder amount and added on.
func (e *Estimator) EstimateRelayMaxPossibleGas(ctx context.Context, txReq *envelope.EnvelopingTxRequest, p MaxGasParams) (*big.Int, error) {
	req := txReq.RelayRequest
	c := req.Common()
	d := req.GetRelayData()

	tokenEstimate, err := e.EstimateTokenTransferGas(ctx, TokenTransferParams{
		TokenContract:       c.TokenContract,
		TokenAmount:         big.NewInt(1),
		FeesReceiver:        d.FeesReceiver,
		CallForwarder:       d.CallForwarder,
		GasPrice:            d.GasPrice,
		IsSmartWalletDeploy: req.IsDeploy(),
		PreDeploySWAddress:  p.PreDeploySWAddress,
	})
	if err != nil {
		return nil, err
	}

	if !HasSignature(txReq.Metadata.Signature) {
		return e.linearFit.Estimate(req, tokenEstimate), nil
	}

	data, err := contracts.EncodeHubCall(req, txReq.Metadata.Signature)
	if err != nil {
		return nil, err
	}
	hub := txReq.Metadata.RelayHubAddress
	gas, err := e.provider.EstimateGas(ctx, ethereum.CallMsg{
		From:     p.Worker,
		To:       &hub,
		GasPrice: d.GasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("gasestimator: relay transaction: %w", err)
	}

	return new(big.Int).Add(new(big.Int).SetUint64(gas), tokenEstimate), nil
}

// HasSignature reports whether sig holds a non-zero signature.
func HasSignature(sig []byte) bool {
	for _, b := range sig {
		if b != 0 {
			return true
		}
	}
	return false
}
