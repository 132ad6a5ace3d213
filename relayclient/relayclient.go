// Package relayclient relays transactions through relay servers.
//
// Relay builds a canonical enveloping request from a user request, then walks
// the candidate relays in order. For each ready relay it signs the request
// with the relay's fees receiver, checks that the relay's worker can pay for
// it and that the verifier and hub contracts accept it, submits it, checks the
// transaction the worker signed and finally broadcasts that transaction itself
// unless the ledger already knows it. A relay failing any of these steps is
// skipped in favour of the next one.
//
// A Client holds no per-request state. Concurrent Relay calls for the same
// sender race for the same forwarder nonce and must be serialized by the
// caller.
package relayclient

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/core/types"
	"github.com/0xsequence/ethrelay/config"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/gasestimator"
	"github.com/0xsequence/ethrelay/metrics"
	"github.com/0xsequence/ethrelay/relaytransport"
)

// Provider is the ledger access the client needs. *ethrpc.Provider implements it.
type Provider interface {
	// SuggestGasPrice = eth_gasPrice
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// BalanceAt = eth_getBalance
	BalanceAt(ctx context.Context, account common.Address, blockNum *big.Int) (*big.Int, error)
	// NonceAt = eth_getTransactionCount
	NonceAt(ctx context.Context, account common.Address, blockNum *big.Int) (uint64, error)
	// EstimateGas = eth_estimateGas
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// CallContract = eth_call
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error)
	// TransactionByHash = eth_getTransactionByHash
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, pending bool, err error)
	// TransactionReceipt = eth_getTransactionReceipt
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	// SendRawTransaction = eth_sendRawTransaction
	SendRawTransaction(ctx context.Context, signedTxHex string) (common.Hash, error)
}

// Signer signs enveloping requests for their sender. *accountmanager.AccountManager implements it.
type Signer interface {
	Sign(ctx context.Context, req envelope.EnvelopingRequest) ([]byte, error)
}

// Event is a milestone of a relay attempt.
type Event string

const (
	EventSignRequest     Event = "sign-request"
	EventValidateRequest Event = "validate-request"
	EventSendToRelayer   Event = "send-to-relayer"
	EventRelayerResponse Event = "relayer-response"
)

// EventHandler observes relay attempts. It is called synchronously.
type EventHandler func(ctx context.Context, event Event, relayURL string)

type Options struct {
	// Config is the static configuration, required.
	Config *config.Config
	// Provider is the ledger, required.
	Provider Provider
	// Transport reaches relay servers, required.
	Transport relaytransport.Transport
	// Signer signs requests, required.
	Signer Signer

	// Metrics records attempts, optional.
	Metrics *metrics.Collector
	// OnEvent observes attempts, optional.
	OnEvent EventHandler
	// Logger is used to log relay attempts, optional.
	Logger *slog.Logger
}

func (o Options) IsValid() error {
	if o.Config == nil {
		return fmt.Errorf("relayclient: no config")
	}
	if err := o.Config.IsValid(); err != nil {
		return err
	}
	if o.Provider == nil {
		return fmt.Errorf("relayclient: no provider")
	}
	if o.Transport == nil {
		return fmt.Errorf("relayclient: no transport")
	}
	if o.Signer == nil {
		return fmt.Errorf("relayclient: no signer")
	}
	return nil
}

// RequestConfig overrides how a single request is built and relayed.
type RequestConfig struct {
	// PreDeploySWAddress is the counterfactual address of the smart wallet a
	// deploy request creates. Resolved through the factory when nil.
	PreDeploySWAddress *common.Address

	ForceGasPrice      *big.Int
	ForceGasLimit      *big.Int
	ForceTokenGasLimit *big.Int

	// PreferredRelays replaces the configured candidate relays.
	PreferredRelays []string

	// InternalEstimationCorrection and EstimatedGasCorrectionFactor adjust
	// the destination call and token transfer estimates.
	InternalEstimationCorrection *big.Int
	EstimatedGasCorrectionFactor float64

	// Retries is the number of extra passes over relays not tried yet, with
	// InitialBackoff doubling between passes.
	Retries        int
	InitialBackoff time.Duration
}

func (r *RequestConfig) corrections() gasestimator.Corrections {
	return gasestimator.Corrections{
		InternalCorrection: r.InternalEstimationCorrection,
		CorrectionFactor:   r.EstimatedGasCorrectionFactor,
	}
}

type Client struct {
	Options

	estimator *gasestimator.Estimator
	log       *slog.Logger
}

func NewClient(options Options) (*Client, error) {
	if err := options.IsValid(); err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Client{
		Options:   options,
		estimator: gasestimator.NewEstimator(options.Provider, options.Config.LinearFit),
		log:       log,
	}, nil
}

func (c *Client) candidates(reqCfg *RequestConfig) []string {
	if len(reqCfg.PreferredRelays) != 0 {
		return reqCfg.PreferredRelays
	}
	return c.Config.PreferredRelays
}

func (c *Client) emit(ctx context.Context, event Event, relayURL string) {
	c.Metrics.Event(string(event))
	if c.OnEvent != nil {
		c.OnEvent(ctx, event, relayURL)
	}
}
