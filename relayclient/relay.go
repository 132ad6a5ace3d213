package relayclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/0xsequence/ethkit/ethcoder"
	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/core/types"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/gasestimator"
	"github.com/0xsequence/ethrelay/metrics"
	"github.com/google/uuid"
)

// Relay relays user through the first candidate relay that accepts it and
// returns the transaction the relay's worker signed.
//
// A *ConfigurationError is returned if the request cannot be built and a
// *SigningError if the sender's signature cannot be obtained. Any other
// failure moves on to the next candidate; ErrNoRelayedTransaction is returned
// once none are left.
func (c *Client) Relay(ctx context.Context, user envelope.UserRequest, reqCfg *RequestConfig) (*types.Transaction, error) {
	if reqCfg == nil {
		reqCfg = &RequestConfig{}
	}
	log := c.log.With(slog.String("relay_id", uuid.NewString()))

	req, err := c.buildRequest(ctx, user, reqCfg)
	if err != nil {
		return nil, err
	}
	relayHub := req.Common().RelayHub
	candidates := c.candidates(reqCfg)

	log.DebugContext(ctx, "relaying request",
		slog.String("from", req.Common().From.Hex()),
		slog.String("hub", relayHub.Hex()),
		slog.Bool("deploy", req.IsDeploy()),
	)

	tried := map[string]struct{}{}
	backoff := reqCfg.InitialBackoff

	for round := 0; round <= reqCfg.Retries; round++ {
		if round > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		for {
			relay, ok := c.selectNext(ctx, log, relayHub, candidates, tried)
			if !ok {
				break
			}
			tried[relay.URL] = struct{}{}

			tx, err := c.attempt(ctx, log, req, relay, reqCfg)
			if err == nil {
				c.Metrics.Attempt(metrics.OutcomeRelayed)
				return tx, nil
			}

			var signingErr *SigningError
			if errors.As(err, &signingErr) {
				c.Metrics.Attempt(metrics.OutcomeFailed)
				log.ErrorContext(ctx, "could not sign request", slog.String("relay", relay.URL), slog.Any("error", err))
				return nil, err
			}

			c.Metrics.Attempt(metrics.OutcomeRejected)
			var rejection *RelayRejection
			if errors.As(err, &rejection) {
				c.Metrics.Rejection(string(rejection.Stage))
			}
			log.WarnContext(ctx, "relay attempt failed", slog.String("relay", relay.URL), slog.Any("error", err))

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.ErrorContext(ctx, "no relay accepted the request", slog.Int("tried", len(tried)))
	return nil, ErrNoRelayedTransaction
}

func (c *Client) attempt(ctx context.Context, log *slog.Logger, req envelope.EnvelopingRequest, relay *envelope.RelayInfo, reqCfg *RequestConfig) (*types.Transaction, error) {
	txReq, smartWallet, err := c.prepare(ctx, log, req, relay, reqCfg)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, EventValidateRequest, relay.URL)
	if err := c.verify(ctx, relay, txReq, smartWallet); err != nil {
		return nil, err
	}

	c.emit(ctx, EventSendToRelayer, relay.URL)
	signedTx, err := c.Transport.RelayTransaction(ctx, relay.URL, txReq)
	if err != nil {
		return nil, reject(relay.URL, StageSubmit, "relay did not accept the request", err)
	}

	tx, err := DecodeSignedTransaction(signedTx)
	if err != nil {
		return nil, reject(relay.URL, StageValidate, "malformed signed transaction", err)
	}
	if err := ValidateRelayResponse(txReq, tx, relay.HubInfo.RelayWorkerAddress); err != nil {
		return nil, reject(relay.URL, StageValidate, "signed transaction does not match the request", err)
	}
	c.emit(ctx, EventRelayerResponse, relay.URL)

	sent, err := c.broadcast(ctx, tx)
	if err != nil {
		return nil, reject(relay.URL, StageBroadcast, "could not confirm the transaction reached the ledger", err)
	}
	if sent {
		c.Metrics.SelfBroadcast()
	}

	log.InfoContext(ctx, "transaction relayed",
		slog.String("relay", relay.URL),
		slog.String("transaction", tx.Hash().Hex()),
		slog.Bool("self_broadcast", sent),
	)
	return tx, nil
}

// prepare completes req for relay and signs it. The forwarder nonce plus the
// configured gap bounds the nonce the relay may use.
func (c *Client) prepare(ctx context.Context, log *slog.Logger, req envelope.EnvelopingRequest, relay *envelope.RelayInfo, reqCfg *RequestConfig) (*envelope.EnvelopingTxRequest, *common.Address, error) {
	completed, smartWallet, err := c.complete(ctx, req, relay, reqCfg)
	if err != nil {
		return nil, nil, err
	}

	forwarder := completed.GetRelayData().CallForwarder
	forwarderNonce, err := c.Provider.NonceAt(ctx, forwarder, nil)
	if err != nil {
		return nil, nil, reject(relay.URL, StagePrepare, "could not read forwarder nonce", err)
	}

	signature, err := c.Signer.Sign(ctx, completed)
	if err != nil {
		return nil, nil, &SigningError{Err: err}
	}

	txReq := &envelope.EnvelopingTxRequest{
		RelayRequest: completed,
		Metadata: envelope.EnvelopingMetadata{
			RelayHubAddress: completed.Common().RelayHub,
			Signature:       signature,
			RelayMaxNonce:   forwarderNonce + c.Config.MaxRelayNonceGap,
		},
	}
	c.emit(ctx, EventSignRequest, relay.URL)

	log.InfoContext(ctx, "signed request",
		slog.String("relay", relay.URL),
		slog.Bool("deploy", completed.IsDeploy()),
		slog.String("token_gas", completed.Common().TokenGas.String()),
		slog.Uint64("relay_max_nonce", txReq.Metadata.RelayMaxNonce),
	)
	return txReq, smartWallet, nil
}

// complete sets the relay's fees receiver and the token transfer gas on req.
func (c *Client) complete(ctx context.Context, req envelope.EnvelopingRequest, relay *envelope.RelayInfo, reqCfg *RequestConfig) (envelope.EnvelopingRequest, *common.Address, error) {
	feesReceiver := relay.HubInfo.FeesReceiver
	if feesReceiver == (common.Address{}) {
		return nil, nil, reject(relay.URL, StagePrepare, "fees receiver has to be a valid non-zero address", nil)
	}

	smartWallet, err := c.smartWalletAddress(ctx, req, reqCfg)
	if err != nil {
		return nil, nil, reject(relay.URL, StagePrepare, "could not resolve smart wallet address", err)
	}

	tokenGas := reqCfg.ForceTokenGasLimit
	if tokenGas == nil {
		commonBody := req.Common()
		relayData := req.GetRelayData()
		tokenGas, err = c.estimator.EstimateTokenTransferGas(ctx, gasestimator.TokenTransferParams{
			TokenContract:       commonBody.TokenContract,
			TokenAmount:         commonBody.TokenAmount,
			FeesReceiver:        feesReceiver,
			CallForwarder:       relayData.CallForwarder,
			GasPrice:            relayData.GasPrice,
			IsSmartWalletDeploy: req.IsDeploy(),
			PreDeploySWAddress:  smartWallet,
			Corrections:         reqCfg.corrections(),
		})
		if err != nil {
			return nil, nil, reject(relay.URL, StageEstimate, "token transfer estimation failed", err)
		}
	}

	completed := envelope.WithFeesReceiver(envelope.WithTokenGas(req, new(big.Int).Set(tokenGas)), feesReceiver)
	return completed, smartWallet, nil
}

// smartWalletAddress returns the address of the wallet a deploy request
// creates, which pays the token fee. Requests without a fee token need none.
func (c *Client) smartWalletAddress(ctx context.Context, req envelope.EnvelopingRequest, reqCfg *RequestConfig) (*common.Address, error) {
	deploy, ok := req.(envelope.DeployRequest)
	if !ok || deploy.Request.TokenContract == (common.Address{}) {
		return nil, nil
	}
	if reqCfg.PreDeploySWAddress != nil {
		return reqCfg.PreDeploySWAddress, nil
	}

	data, err := contracts.EncodeGetSmartWalletAddress(deploy.Request.From, deploy.Request.Recoverer, deploy.Request.Index)
	if err != nil {
		return nil, err
	}
	factory := deploy.RelayData.CallForwarder
	out, err := c.Provider.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	address, err := contracts.DecodeGetSmartWalletAddress(out)
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// EstimateMaxPossibleGas estimates the most gas a relay may charge for user
// before it is signed, using the first ready candidate relay.
func (c *Client) EstimateMaxPossibleGas(ctx context.Context, user envelope.UserRequest, reqCfg *RequestConfig) (*big.Int, error) {
	if reqCfg == nil {
		reqCfg = &RequestConfig{}
	}

	req, err := c.buildRequest(ctx, user, reqCfg)
	if err != nil {
		return nil, err
	}

	relay, ok := c.selectNext(ctx, c.log, req.Common().RelayHub, c.candidates(reqCfg), nil)
	if !ok {
		return nil, ErrNoReadyRelay
	}

	completed, smartWallet, err := c.complete(ctx, req, relay, reqCfg)
	if err != nil {
		return nil, err
	}

	return c.estimator.EstimateRelayMaxPossibleGas(ctx, &envelope.EnvelopingTxRequest{
		RelayRequest: completed,
		Metadata: envelope.EnvelopingMetadata{
			RelayHubAddress: completed.Common().RelayHub,
		},
	}, gasestimator.MaxGasParams{
		Worker:             relay.HubInfo.RelayWorkerAddress,
		PreDeploySWAddress: smartWallet,
	})
}

// IsSmartWalletOwner reports whether owner owns the smart wallet at wallet.
// Wallets store the keccak256 hash of their owner's address.
func (c *Client) IsSmartWalletOwner(ctx context.Context, wallet, owner common.Address) (bool, error) {
	data, err := contracts.EncodeGetOwner()
	if err != nil {
		return false, err
	}
	out, err := c.Provider.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("relayclient: getOwner(%s): %w", wallet.Hex(), err)
	}
	stored, err := contracts.DecodeGetOwner(out)
	if err != nil {
		return false, err
	}

	packed, err := ethcoder.SolidityPack([]string{"address"}, []interface{}{owner})
	if err != nil {
		return false, err
	}
	return stored == ethcoder.Keccak256Hash(packed), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
