// Package relaytest provides fixtures and in-memory fakes of the ledger and the
// relay servers for testing the relay pipeline without a live chain.
package relaytest

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethkit/go-ethereum/core/types"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/stretchr/testify/require"
)

// Well-known contract addresses used by the fixtures.
var (
	Hub            = common.HexToAddress("0x00000000000000000000000000000000000a0b01")
	Forwarder      = common.HexToAddress("0x00000000000000000000000000000000000a0b02")
	Factory        = common.HexToAddress("0x00000000000000000000000000000000000a0b03")
	RelayVerifier  = common.HexToAddress("0x00000000000000000000000000000000000a0b04")
	DeployVerifier = common.HexToAddress("0x00000000000000000000000000000000000a0b05")
	Token          = common.HexToAddress("0x00000000000000000000000000000000000a0b06")
	Destination    = common.HexToAddress("0x00000000000000000000000000000000000a0b07")
	FeesReceiver   = common.HexToAddress("0x00000000000000000000000000000000000a0b08")
)

// ChainID is the chain id the fixtures sign for.
var ChainID = big.NewInt(33)

// DummyPrivateKey returns a deterministic private key in hex for the given seed.
func DummyPrivateKey(seed uint64) string {
	return fmt.Sprintf("%064x", seed)
}

// Account is a locally held secp256k1 key.
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewAccount derives an account from DummyPrivateKey(seed).
func NewAccount(t testing.TB, seed uint64) Account {
	key, err := crypto.HexToECDSA(DummyPrivateKey(seed))
	require.NoError(t, err)
	return Account{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// PrivateKeyHex returns the account's private key as 0x-less hex.
func (a Account) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(a.Key))[2:]
}

// RelayRequest returns a canonical relay request from the given sender.
func RelayRequest(from common.Address) envelope.RelayRequest {
	return envelope.RelayRequest{
		Request: envelope.RelayRequestBody{
			CommonBody: envelope.CommonBody{
				RelayHub:      Hub,
				From:          from,
				To:            Destination,
				TokenContract: Token,
				Value:         big.NewInt(0),
				Nonce:         big.NewInt(4),
				TokenAmount:   big.NewInt(1_000_000),
				TokenGas:      big.NewInt(30_000),
				Data:          common.FromHex("0xa9059cbb"),
			},
			Gas: big.NewInt(50_000),
		},
		RelayData: envelope.RelayData{
			GasPrice:      big.NewInt(60_000_000),
			FeesReceiver:  FeesReceiver,
			CallForwarder: Forwarder,
			CallVerifier:  RelayVerifier,
		},
	}
}

// DeployRequest returns a canonical smart wallet deploy request from the given owner.
func DeployRequest(from common.Address) envelope.DeployRequest {
	return envelope.DeployRequest{
		Request: envelope.DeployRequestBody{
			CommonBody: envelope.CommonBody{
				RelayHub:      Hub,
				From:          from,
				To:            common.Address{},
				TokenContract: Token,
				Value:         big.NewInt(0),
				Nonce:         big.NewInt(0),
				TokenAmount:   big.NewInt(1_000_000),
				TokenGas:      big.NewInt(30_000),
				Data:          []byte{},
			},
			Index:     big.NewInt(1),
			Recoverer: common.Address{},
		},
		RelayData: envelope.RelayData{
			GasPrice:      big.NewInt(60_000_000),
			FeesReceiver:  FeesReceiver,
			CallForwarder: Factory,
			CallVerifier:  DeployVerifier,
		},
	}
}

// HubInfo returns a ready relay status for the given worker and manager.
func HubInfo(worker, manager common.Address) *envelope.HubInfo {
	return &envelope.HubInfo{
		RelayWorkerAddress:  worker,
		RelayManagerAddress: manager,
		RelayHubAddress:     Hub,
		FeesReceiver:        FeesReceiver,
		MinGasPrice:         big.NewInt(60_000_000),
		ChainID:             new(big.Int).Set(ChainID),
		NetworkID:           new(big.Int).Set(ChainID),
		Ready:               true,
		Version:             "2.2.0",
	}
}

// WorkerTx describes the transaction a relay worker signs for a request.
// Zero fields default to the honest values for the request.
type WorkerTx struct {
	Nonce    uint64
	To       *common.Address
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	// Create signs a contract creation instead of a call.
	Create bool
}

// SignWorkerTx signs the hub call for txReq with the worker key and returns
// the raw transaction as 0x-prefixed hex.
func SignWorkerTx(worker Account, txReq *envelope.EnvelopingTxRequest, opts WorkerTx) (string, *types.Transaction, error) {
	data := opts.Data
	if data == nil {
		var err error
		data, err = contracts.EncodeHubCall(txReq.RelayRequest, txReq.Metadata.Signature)
		if err != nil {
			return "", nil, err
		}
	}
	to := txReq.Metadata.RelayHubAddress
	if opts.To != nil {
		to = *opts.To
	}
	gas := opts.Gas
	if gas == 0 {
		gas = 500_000
	}
	gasPrice := opts.GasPrice
	if gasPrice == nil {
		gasPrice = txReq.RelayRequest.GetRelayData().GasPrice
	}

	legacy := &types.LegacyTx{
		Nonce:    opts.Nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	}
	if opts.Create {
		legacy.To = nil
	}

	tx, err := types.SignTx(types.NewTx(legacy), types.NewEIP155Signer(ChainID), worker.Key)
	if err != nil {
		return "", nil, err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", nil, err
	}
	return hexutil.Encode(raw), tx, nil
}
