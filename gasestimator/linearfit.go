package gasestimator

import (
	"fmt"
	"math/big"

	"github.com/0xsequence/ethrelay/envelope"
)

// LinearFitModel approximates the gas of a relay transaction that cannot be
// simulated yet because the request is unsigned:
//
//	intercept + perDataByte*len(data) + ceil(tokenSlope*tokenGas) + ceil(callGasSlope*gas)
//
// The gas term only applies to relay requests. Coefficients are calibrated
// against a specific relay hub release, named by Version.
type LinearFitModel struct {
	Version         string  `yaml:"version"`
	RelayIntercept  uint64  `yaml:"relay_intercept"`
	DeployIntercept uint64  `yaml:"deploy_intercept"`
	PerDataByte     uint64  `yaml:"per_data_byte"`
	TokenSlope      float64 `yaml:"token_slope"`
	CallGasSlope    float64 `yaml:"call_gas_slope"`
}

// DefaultLinearFitModel is calibrated against the v2 relay hub.
var DefaultLinearFitModel = LinearFitModel{
	Version:         "hub-v2",
	RelayIntercept:  85_000,
	DeployIntercept: 190_000,
	PerDataByte:     16,
	TokenSlope:      1.0,
	CallGasSlope:    1.0,
}

func (m LinearFitModel) IsValid() error {
	if m.Version == "" {
		return fmt.Errorf("linear fit: empty version")
	}
	if m.RelayIntercept == 0 || m.DeployIntercept == 0 {
		return fmt.Errorf("linear fit %s: intercepts must be positive", m.Version)
	}
	if m.TokenSlope < 0 || m.CallGasSlope < 0 {
		return fmt.Errorf("linear fit %s: negative slope", m.Version)
	}
	return nil
}

// Estimate applies the model to req given its token transfer estimate.
func (m LinearFitModel) Estimate(req envelope.EnvelopingRequest, tokenEstimate *big.Int) *big.Int {
	c := req.Common()

	total := new(big.Int).SetUint64(m.RelayIntercept)
	if req.IsDeploy() {
		total.SetUint64(m.DeployIntercept)
	}

	perByte := new(big.Int).SetUint64(m.PerDataByte)
	total.Add(total, perByte.Mul(perByte, big.NewInt(int64(len(c.Data)))))

	if tokenEstimate != nil && tokenEstimate.Sign() > 0 {
		total.Add(total, ceilMul(tokenEstimate, m.TokenSlope))
	}
	if gas := envelope.Gas(req); gas != nil && gas.Sign() > 0 {
		total.Add(total, ceilMul(gas, m.CallGasSlope))
	}
	return total
}
