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

// verify checks, in order, that the relay's worker can afford the request,
// that the verifier accepts it and that the hub would execute it from the
// worker. The first failing check is returned as a *RelayRejection.
func (c *Client) verify(ctx context.Context, relay *envelope.RelayInfo, txReq *envelope.EnvelopingTxRequest, smartWallet *common.Address) error {
	worker := relay.HubInfo.RelayWorkerAddress
	gasPrice := txReq.RelayRequest.GetRelayData().GasPrice

	maxGas, err := c.estimator.EstimateRelayMaxPossibleGas(ctx, txReq, gasestimator.MaxGasParams{
		Worker:             worker,
		PreDeploySWAddress: smartWallet,
	})
	if err != nil {
		return reject(relay.URL, StageEstimate, "max possible gas estimation failed", err)
	}

	if err := c.verifyWorkerBalance(ctx, worker, maxGas, gasPrice); err != nil {
		return reject(relay.URL, StageBalance, "worker cannot pay for the transaction", err)
	}
	if err := c.verifyWithVerifier(ctx, txReq); err != nil {
		return reject(relay.URL, StageVerifier, "verifier rejected the request", err)
	}
	if err := c.verifyWithRelayHub(ctx, worker, txReq, maxGas); err != nil {
		return reject(relay.URL, StageHub, "relay hub rejected the request", err)
	}
	return nil
}

func (c *Client) verifyWorkerBalance(ctx context.Context, worker common.Address, maxGas, gasPrice *big.Int) error {
	balance, err := c.Provider.BalanceAt(ctx, worker, nil)
	if err != nil {
		return err
	}
	affordable := new(big.Int).Div(balance, gasPrice)
	if affordable.Cmp(maxGas) < 0 {
		return fmt.Errorf("balance %v covers %v gas, need %v", balance, affordable, maxGas)
	}
	return nil
}

func (c *Client) verifyWithVerifier(ctx context.Context, txReq *envelope.EnvelopingTxRequest) error {
	data, err := contracts.EncodeVerifyRelayedCall(txReq.RelayRequest, txReq.Metadata.Signature)
	if err != nil {
		return err
	}
	verifier := txReq.RelayRequest.GetRelayData().CallVerifier
	_, err = c.Provider.CallContract(ctx, ethereum.CallMsg{To: &verifier, Data: data}, nil)
	return err
}

func (c *Client) verifyWithRelayHub(ctx context.Context, worker common.Address, txReq *envelope.EnvelopingTxRequest, maxGas *big.Int) error {
	if !maxGas.IsUint64() {
		return fmt.Errorf("max possible gas %v out of range", maxGas)
	}
	data, err := contracts.EncodeHubCall(txReq.RelayRequest, txReq.Metadata.Signature)
	if err != nil {
		return err
	}
	hub := txReq.Metadata.RelayHubAddress
	_, err = c.Provider.CallContract(ctx, ethereum.CallMsg{
		From:     worker,
		To:       &hub,
		Gas:      maxGas.Uint64(),
		GasPrice: txReq.RelayRequest.GetRelayData().GasPrice,
		Data:     data,
	}, nil)
	return err
}
