package gasestimator_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/gasestimator"
	"github.com/0xsequence/ethrelay/relaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInternalEstimationCorrection(t *testing.T) {
	correction := big.NewInt(gasestimator.InternalTransactionEstimatedCorrection)

	assert.Equal(t, int64(80_000), gasestimator.ApplyInternalEstimationCorrection(big.NewInt(100_000), correction).Int64())
	assert.Equal(t, int64(15_000), gasestimator.ApplyInternalEstimationCorrection(big.NewInt(15_000), correction).Int64())
	assert.Equal(t, int64(20_000), gasestimator.ApplyInternalEstimationCorrection(big.NewInt(20_000), correction).Int64())
	assert.Equal(t, int64(0), gasestimator.ApplyInternalEstimationCorrection(big.NewInt(0), correction).Int64())
}

func TestApplyGasCorrectionFactor(t *testing.T) {
	assert.Equal(t, int64(200_000), gasestimator.ApplyGasCorrectionFactor(big.NewInt(100_000), 2).Int64())
	assert.Equal(t, int64(110_000), gasestimator.ApplyGasCorrectionFactor(big.NewInt(100_000), 1.1).Int64())
	assert.Equal(t, int64(5), gasestimator.ApplyGasCorrectionFactor(big.NewInt(3), 1.5).Int64())
	assert.Equal(t, int64(12_345), gasestimator.ApplyGasCorrectionFactor(big.NewInt(12_345), 0).Int64())
	assert.Equal(t, int64(12_345), gasestimator.ApplyGasCorrectionFactor(big.NewInt(12_345), 1).Int64())
}

func TestEstimateInternalCallGas(t *testing.T) {
	provider := relaytest.NewFakeProvider()
	provider.EstimateGasFn = func(msg ethereum.CallMsg) (uint64, error) {
		return 100_000, nil
	}
	estimator := gasestimator.NewEstimator(provider, gasestimator.DefaultLinearFitModel)

	gas, err := estimator.EstimateInternalCallGas(context.Background(), gasestimator.InternalCallParams{
		From: relaytest.Forwarder,
		To:   relaytest.Destination,
		Data: []byte{0x01},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(80_000), gas.Int64())

	gas, err = estimator.EstimateInternalCallGas(context.Background(), gasestimator.InternalCallParams{
		From:        relaytest.Forwarder,
		To:          relaytest.Destination,
		Corrections: gasestimator.Corrections{CorrectionFactor: 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120_000), gas.Int64())

	gas, err = estimator.EstimateInternalCallGas(context.Background(), gasestimator.InternalCallParams{
		From:        relaytest.Forwarder,
		To:          relaytest.Destination,
		Corrections: gasestimator.Corrections{InternalCorrection: big.NewInt(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), gas.Int64())
}

func TestEstimateTokenTransferGasShortCircuits(t *testing.T) {
	provider := relaytest.NewFakeProvider()
	estimator := gasestimator.NewEstimator(provider, gasestimator.LinearFitModel{})

	gas, err := estimator.EstimateTokenTransferGas(context.Background(), gasestimator.TokenTransferParams{
		TokenContract: common.Address{},
		TokenAmount:   big.NewInt(10),
		CallForwarder: relaytest.Forwarder,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, gas.Sign())

	gas, err = estimator.EstimateTokenTransferGas(context.Background(), gasestimator.TokenTransferParams{
		TokenContract: relaytest.Token,
		TokenAmount:   big.NewInt(0),
		CallForwarder: relaytest.Forwarder,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, gas.Sign())

	assert.Equal(t, 0, provider.Count("EstimateGas"))
}

func TestEstimateTokenTransferGasOrigin(t *testing.T) {
	var from common.Address
	provider := relaytest.NewFakeProvider()
	provider.EstimateGasFn = func(msg ethereum.CallMsg) (uint64, error) {
		from = msg.From
		return 50_000, nil
	}
	estimator := gasestimator.NewEstimator(provider, gasestimator.LinearFitModel{})
	ctx := context.Background()

	_, err := estimator.EstimateTokenTransferGas(ctx, gasestimator.TokenTransferParams{
		TokenContract:       relaytest.Token,
		TokenAmount:         big.NewInt(10),
		CallForwarder:       relaytest.Factory,
		IsSmartWalletDeploy: true,
	})
	assert.ErrorIs(t, err, gasestimator.ErrMissingSmartWalletAddress)

	_, err = estimator.EstimateTokenTransferGas(ctx, gasestimator.TokenTransferParams{
		TokenContract: relaytest.Token,
		TokenAmount:   big.NewInt(10),
	})
	assert.ErrorIs(t, err, gasestimator.ErrMissingCallForwarder)
	assert.Equal(t, 0, provider.Count("EstimateGas"))

	gas, err := estimator.EstimateTokenTransferGas(ctx, gasestimator.TokenTransferParams{
		TokenContract: relaytest.Token,
		TokenAmount:   big.NewInt(10),
		FeesReceiver:  relaytest.FeesReceiver,
		CallForwarder: relaytest.Forwarder,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), gas.Int64())
	assert.Equal(t, relaytest.Forwarder, from)

	wallet := common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	_, err = estimator.EstimateTokenTransferGas(ctx, gasestimator.TokenTransferParams{
		TokenContract:       relaytest.Token,
		TokenAmount:         big.NewInt(10),
		FeesReceiver:        relaytest.FeesReceiver,
		CallForwarder:       relaytest.Factory,
		IsSmartWalletDeploy: true,
		PreDeploySWAddress:  &wallet,
	})
	require.NoError(t, err)
	assert.Equal(t, wallet, from)
}

func TestEstimateRelayMaxPossibleGas(t *testing.T) {
	sender := relaytest.NewAccount(t, 1)
	worker := relaytest.NewAccount(t, 2)

	var tokenCalldata []byte
	provider := relaytest.NewFakeProvider()
	provider.EstimateGasFn = func(msg ethereum.CallMsg) (uint64, error) {
		switch *msg.To {
		case relaytest.Token:
			tokenCalldata = msg.Data
			return 50_000, nil
		case relaytest.Hub:
			if msg.From != worker.Address {
				return 0, assert.AnError
			}
			return 200_000, nil
		}
		return 0, assert.AnError
	}
	estimator := gasestimator.NewEstimator(provider, gasestimator.DefaultLinearFitModel)

	txReq := &envelope.EnvelopingTxRequest{
		RelayRequest: relaytest.RelayRequest(sender.Address),
		Metadata: envelope.EnvelopingMetadata{
			RelayHubAddress: relaytest.Hub,
			Signature:       append(make([]byte, 64), 27),
			RelayMaxNonce:   10,
		},
	}

	gas, err := estimator.EstimateRelayMaxPossibleGas(context.Background(), txReq, gasestimator.MaxGasParams{Worker: worker.Address})
	require.NoError(t, err)
	assert.Equal(t, int64(230_000), gas.Int64())

	expected, err := contracts.EncodeTransfer(relaytest.FeesReceiver, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, expected, tokenCalldata)

	// unsigned: 85000 intercept + 16*4 data bytes + 30000 token + 50000 call gas
	txReq.Metadata.Signature = nil
	gas, err = estimator.EstimateRelayMaxPossibleGas(context.Background(), txReq, gasestimator.MaxGasParams{Worker: worker.Address})
	require.NoError(t, err)
	assert.Equal(t, int64(165_064), gas.Int64())

	txReq.Metadata.Signature = make([]byte, 65)
	gas, err = estimator.EstimateRelayMaxPossibleGas(context.Background(), txReq, gasestimator.MaxGasParams{Worker: worker.Address})
	require.NoError(t, err)
	assert.Equal(t, int64(165_064), gas.Int64())
}

func TestLinearFitDeploy(t *testing.T) {
	owner := relaytest.NewAccount(t, 1)
	req := relaytest.DeployRequest(owner.Address)

	model := gasestimator.LinearFitModel{
		Version:         "test",
		RelayIntercept:  1,
		DeployIntercept: 100_000,
		PerDataByte:     10,
		TokenSlope:      1.5,
		CallGasSlope:    2,
	}
	require.NoError(t, model.IsValid())

	assert.Equal(t, int64(100_000+15), model.Estimate(req, big.NewInt(10)).Int64())
	assert.Error(t, gasestimator.LinearFitModel{}.IsValid())
}
