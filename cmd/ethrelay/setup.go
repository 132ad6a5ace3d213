package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"

	"github.com/0xsequence/ethkit/ethrpc"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/0xsequence/ethkit/go-ethereum/rpc"
	"github.com/0xsequence/ethrelay/accountmanager"
	"github.com/0xsequence/ethrelay/config"
	"github.com/0xsequence/ethrelay/metrics"
	"github.com/0xsequence/ethrelay/relayclient"
	"github.com/0xsequence/ethrelay/relaytransport"
	"github.com/go-chi/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// clientFlags registers the flags needed to build a relay client.
func clientFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Path to the ethrelay YAML config file")
	cmd.Flags().StringP("rpc-url", "r", "", "The RPC endpoint to the blockchain node to interact with")
	cmd.Flags().String("private-key", "", "Hex private key of the sender")
	cmd.Flags().String("remote-signer", "", "RPC endpoint of a wallet that signs for senders without a local key")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error (overrides the config file)")
}

type setup struct {
	cfg      *config.Config
	log      *slog.Logger
	provider *ethrpc.Provider
	registry *prometheus.Registry
	client   *relayclient.Client
}

func newSetup(ctx context.Context, cmd *cobra.Command) (*setup, error) {
	fConfig, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	fRpc, err := cmd.Flags().GetString("rpc-url")
	if err != nil {
		return nil, err
	}
	fKey, err := cmd.Flags().GetString("private-key")
	if err != nil {
		return nil, err
	}
	fRemote, err := cmd.Flags().GetString("remote-signer")
	if err != nil {
		return nil, err
	}
	fLogLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	if fConfig == "" {
		return nil, errors.New("error: please provide a config file with --config")
	}
	if _, err := url.ParseRequestURI(fRpc); err != nil {
		return nil, errors.New("error: please provide a valid rpc url (e.g. https://public-node.rsk.co)")
	}

	cfg, err := config.LoadFromFile(fConfig)
	if err != nil {
		return nil, err
	}
	if fLogLevel == "" {
		fLogLevel = cfg.LogLevel
	}
	log, err := newLogger(fLogLevel)
	if err != nil {
		return nil, err
	}

	provider, err := ethrpc.NewProvider(fRpc, ethrpc.WithLogger(log))
	if err != nil {
		return nil, err
	}

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("error: reading chain id: %w", err)
	}
	if cfg.ChainID != 0 && new(big.Int).SetUint64(cfg.ChainID).Cmp(chainID) != 0 {
		return nil, fmt.Errorf("error: config chain_id %d does not match the node's chain id %v", cfg.ChainID, chainID)
	}

	var remote accountmanager.RemoteSigner
	if fRemote != "" {
		rpcClient, err := rpc.DialContext(ctx, fRemote)
		if err != nil {
			return nil, fmt.Errorf("error: dialing remote signer: %w", err)
		}
		remote = accountmanager.NewRPCSigner(rpcClient, cfg.RemoteSignerVersion)
	}

	domain := cfg.Domain(chainID)
	signer, err := accountmanager.NewAccountManager(accountmanager.Options{
		ChainID:       domain.ChainID,
		DomainName:    domain.Name,
		DomainVersion: domain.Version,
		Remote:        remote,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}
	if fKey != "" {
		address, err := addressOf(fKey)
		if err != nil {
			return nil, err
		}
		if err := signer.AddAccount(address, fKey); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Timeout: cfg.RelayTimeout,
		Transport: transport.Chain(http.DefaultTransport,
			transport.SetHeader("User-Agent", "ethrelay/"+VERSION),
		),
	}

	registry := prometheus.NewRegistry()

	client, err := relayclient.NewClient(relayclient.Options{
		Config:   cfg,
		Provider: provider,
		Transport: relaytransport.NewClient(
			relaytransport.WithHTTPClient(httpClient),
			relaytransport.WithLogger(log),
		),
		Signer:  signer,
		Metrics: metrics.NewCollector(registry),
		OnEvent: func(ctx context.Context, event relayclient.Event, relayURL string) {
			log.DebugContext(ctx, "relay event", slog.String("event", string(event)), slog.String("relay", relayURL))
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	return &setup{cfg: cfg, log: log, provider: provider, registry: registry, client: client}, nil
}

// logMetrics prints the run's relay metrics when debug logging is on.
func (s *setup) logMetrics(ctx context.Context) {
	if err := metrics.LogSnapshot(ctx, s.log, s.registry); err != nil {
		s.log.WarnContext(ctx, "gathering metrics failed", slog.Any("error", err))
	}
}

func addressOf(privateKeyHex string) (common.Address, error) {
	key, err := crypto.HexToECDSA(trim0x(privateKeyHex))
	if err != nil {
		return common.Address{}, errors.New("error: please provide a valid hex private key")
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
