// Package config holds the static configuration of the relay client and
// loads it from YAML.
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"time"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/gasestimator"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxRelayNonceGap    = 3
	DefaultRemoteSignerVersion = "v4"
	DefaultRelayTimeout        = 10 * time.Second
)

// Config is built once and shared read-only by the relay client's components.
type Config struct {
	// ChainID, when non-zero, must match the ledger's chain id.
	ChainID uint64

	RelayHubAddress       common.Address
	RelayVerifierAddress  common.Address
	DeployVerifierAddress common.Address

	// PreferredRelays are the relay URLs tried, in order. It may be empty when
	// every request names its own relays.
	PreferredRelays []string

	// MinGasPrice floors the computed gas price.
	MinGasPrice *big.Int
	// GasPriceFactorPercent inflates the network gas price by this percentage.
	GasPriceFactorPercent int
	// MaxRelayNonceGap bounds how far ahead of the current nonce a relay may sign.
	MaxRelayNonceGap uint64

	DomainName          string
	DomainVersion       string
	RemoteSignerVersion string

	RelayTimeout time.Duration

	LinearFit gasestimator.LinearFitModel

	LogLevel string
}

func (c *Config) IsValid() error {
	if c.RelayHubAddress == (common.Address{}) {
		return fmt.Errorf("config: relay hub address is required")
	}
	for _, relay := range c.PreferredRelays {
		u, err := url.Parse(relay)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: invalid relay url %q", relay)
		}
	}
	if c.MinGasPrice != nil && c.MinGasPrice.Sign() < 0 {
		return fmt.Errorf("config: negative min gas price %v", c.MinGasPrice)
	}
	if c.GasPriceFactorPercent < 0 {
		return fmt.Errorf("config: negative gas price factor %v", c.GasPriceFactorPercent)
	}
	if c.RelayTimeout < 0 {
		return fmt.Errorf("config: negative relay timeout %v", c.RelayTimeout)
	}
	if err := c.LinearFit.IsValid(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Domain returns the EIP-712 domain requests are signed over.
func (c *Config) Domain(chainID *big.Int) envelope.Domain {
	return envelope.Domain{
		Name:    c.DomainName,
		Version: c.DomainVersion,
		ChainID: chainID,
	}
}

func (c *Config) hydrateDefaults() {
	if c.MinGasPrice == nil {
		c.MinGasPrice = new(big.Int)
	}
	if c.MaxRelayNonceGap == 0 {
		c.MaxRelayNonceGap = DefaultMaxRelayNonceGap
	}
	if c.DomainName == "" {
		c.DomainName = envelope.DefaultDomainName
	}
	if c.DomainVersion == "" {
		c.DomainVersion = envelope.DefaultDomainVersion
	}
	if c.RemoteSignerVersion == "" {
		c.RemoteSignerVersion = DefaultRemoteSignerVersion
	}
	if c.RelayTimeout == 0 {
		c.RelayTimeout = DefaultRelayTimeout
	}
	if c.LinearFit.Version == "" {
		c.LinearFit = gasestimator.DefaultLinearFitModel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// New fills defaults into c and validates it.
func New(c Config) (*Config, error) {
	c.hydrateDefaults()
	if err := c.IsValid(); err != nil {
		return nil, err
	}
	return &c, nil
}

// fileConfig is the YAML layout. Addresses and amounts are strings so they can
// be validated with useful errors.
type fileConfig struct {
	ChainID               uint64                      `yaml:"chain_id"`
	RelayHubAddress       string                      `yaml:"relay_hub_address"`
	RelayVerifierAddress  string                      `yaml:"relay_verifier_address"`
	DeployVerifierAddress string                      `yaml:"deploy_verifier_address"`
	PreferredRelays       []string                    `yaml:"preferred_relays"`
	MinGasPrice           string                      `yaml:"min_gas_price"`
	GasPriceFactorPercent int                         `yaml:"gas_price_factor_percent"`
	MaxRelayNonceGap      uint64                      `yaml:"max_relay_nonce_gap"`
	TypedData             typedDataConfig             `yaml:"typed_data"`
	RemoteSignerVersion   string                      `yaml:"remote_signer_version"`
	RelayTimeout          time.Duration               `yaml:"relay_timeout"`
	LinearFit             gasestimator.LinearFitModel `yaml:"linear_fit"`
	Logger                loggerConfig                `yaml:"logger_config"`
}

type typedDataConfig struct {
	DomainName    string `yaml:"domain_name"`
	DomainVersion string `yaml:"domain_version"`
}

type loggerConfig struct {
	Level string `yaml:"level"`
}

// LoadFromFile reads a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	c := Config{
		ChainID:               raw.ChainID,
		PreferredRelays:       raw.PreferredRelays,
		GasPriceFactorPercent: raw.GasPriceFactorPercent,
		MaxRelayNonceGap:      raw.MaxRelayNonceGap,
		DomainName:            raw.TypedData.DomainName,
		DomainVersion:         raw.TypedData.DomainVersion,
		RemoteSignerVersion:   raw.RemoteSignerVersion,
		RelayTimeout:          raw.RelayTimeout,
		LinearFit:             raw.LinearFit,
		LogLevel:              raw.Logger.Level,
	}

	var err error
	if c.RelayHubAddress, err = parseAddress("relay_hub_address", raw.RelayHubAddress, true); err != nil {
		return nil, err
	}
	if c.RelayVerifierAddress, err = parseAddress("relay_verifier_address", raw.RelayVerifierAddress, false); err != nil {
		return nil, err
	}
	if c.DeployVerifierAddress, err = parseAddress("deploy_verifier_address", raw.DeployVerifierAddress, false); err != nil {
		return nil, err
	}
	if raw.MinGasPrice != "" {
		v, ok := new(big.Int).SetString(raw.MinGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("config: min_gas_price: invalid number %q", raw.MinGasPrice)
		}
		c.MinGasPrice = v
	}

	return New(c)
}

func parseAddress(field, value string, required bool) (common.Address, error) {
	if value == "" {
		if required {
			return common.Address{}, fmt.Errorf("config: %s is required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("config: %s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}
