// Package accountmanager signs enveloping requests on behalf of their sender.
//
// Requests are signed as EIP-712 typed data over the forwarder's domain.
// Senders whose key was added locally are signed in-process; any other
// sender is delegated to a remote eth_signTypedData_v4 signer when one is
// configured. Every signature is recovered and checked against the sender
// before it is returned.
package accountmanager

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/0xsequence/ethkit/ethcoder"
	"github.com/0xsequence/ethkit/ethwallet"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/0xsequence/ethrelay/envelope"
)

var (
	ErrInvalidKeypair    = errors.New("accountmanager: private key does not match address")
	ErrInvalidPrivateKey = errors.New("accountmanager: invalid private key")
	ErrNoSigner          = errors.New("accountmanager: no signer available for sender")
	ErrSignatureMismatch = errors.New("accountmanager: signature does not recover to sender")
	ErrInvalidSignature  = errors.New("accountmanager: malformed signature")
)

// RemoteSigner signs typed data with a key held elsewhere.
type RemoteSigner interface {
	SignTypedData(ctx context.Context, account common.Address, typedData *ethcoder.TypedData) ([]byte, error)
}

type Options struct {
	// ChainID of the domain signatures are bound to, required.
	ChainID *big.Int
	// DomainName and DomainVersion default to envelope.DefaultDomainName and
	// envelope.DefaultDomainVersion.
	DomainName    string
	DomainVersion string
	// Remote signs for senders without a local key, optional.
	Remote RemoteSigner
	Logger *slog.Logger
}

func (o Options) IsValid() error {
	if o.ChainID == nil || o.ChainID.Sign() <= 0 {
		return fmt.Errorf("accountmanager: chain id is required")
	}
	return nil
}

type AccountManager struct {
	domain envelope.Domain
	remote RemoteSigner
	log    *slog.Logger

	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

func NewAccountManager(options Options) (*AccountManager, error) {
	if err := options.IsValid(); err != nil {
		return nil, err
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &AccountManager{
		domain: envelope.Domain{
			Name:    options.DomainName,
			Version: options.DomainVersion,
			ChainID: new(big.Int).Set(options.ChainID),
		},
		remote: options.Remote,
		log:    options.Logger,
		keys:   map[common.Address]*ecdsa.PrivateKey{},
	}, nil
}

// AddAccount registers a local key for address. Adding a second key for the
// same address replaces the first.
func (m *AccountManager) AddAccount(address common.Address, privateKeyHex string) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != address {
		return ErrInvalidKeypair
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[address] = key
	return nil
}

// Accounts returns the addresses with a local key, sorted.
func (m *AccountManager) Accounts() []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]common.Address, 0, len(m.keys))
	for address := range m.keys {
		out = append(out, address)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Hex(), out[j].Hex()) < 0
	})
	return out
}

// Sign returns the sender's 65-byte signature over req.
func (m *AccountManager) Sign(ctx context.Context, req envelope.EnvelopingRequest) ([]byte, error) {
	typedData, err := envelope.TypedData(req, m.domain)
	if err != nil {
		return nil, err
	}
	digest, _, err := typedData.Encode()
	if err != nil {
		return nil, fmt.Errorf("accountmanager: encode typed data: %w", err)
	}

	from := req.Common().From

	m.mu.RLock()
	key, local := m.keys[from]
	m.mu.RUnlock()

	var sig []byte
	switch {
	case local:
		sig, err = crypto.Sign(digest, key)
		if err != nil {
			return nil, fmt.Errorf("accountmanager: sign: %w", err)
		}
		sig[64] += 27

	case m.remote != nil:
		sig, err = m.remote.SignTypedData(ctx, from, typedData)
		if err != nil {
			return nil, fmt.Errorf("accountmanager: remote signer: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w %s", ErrNoSigner, from.Hex())
	}

	if len(sig) != 65 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	recovered, err := ethwallet.RecoverAddressFromDigest(digest, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if recovered != from {
		m.log.WarnContext(ctx, "signature recovered to a different address",
			slog.String("from", from.Hex()),
			slog.String("recovered", recovered.Hex()),
		)
		return nil, ErrSignatureMismatch
	}

	return sig, nil
}
