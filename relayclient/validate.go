package relayclient

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethkit/go-ethereum/core/types"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
)

// DecodeSignedTransaction decodes a raw signed transaction as returned by a relay.
func DecodeSignedTransaction(signedTx string) (*types.Transaction, error) {
	if !strings.HasPrefix(signedTx, "0x") {
		signedTx = "0x" + signedTx
	}
	raw, err := hexutil.Decode(signedTx)
	if err != nil {
		return nil, fmt.Errorf("relayclient: decode signed transaction: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("relayclient: decode signed transaction: %w", err)
	}
	return tx, nil
}

// ValidateRelayResponse checks that tx is exactly the hub call requested by
// txReq, signed by worker with a nonce no higher than the request allows.
//
// A relay signing with a nonce above relayMaxNonce may be holding back
// transactions it signed with lower nonces.
func ValidateRelayResponse(txReq *envelope.EnvelopingTxRequest, tx *types.Transaction, worker common.Address) error {
	if tx.To() == nil {
		return fmt.Errorf("%w: transaction has no recipient", ErrInvalidRelayResponse)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return fmt.Errorf("%w: transaction has no sender: %v", ErrInvalidRelayResponse, err)
	}

	if *tx.To() != txReq.Metadata.RelayHubAddress {
		return fmt.Errorf("%w: transaction recipient %s is not the relay hub %s",
			ErrInvalidRelayResponse, tx.To().Hex(), txReq.Metadata.RelayHubAddress.Hex())
	}

	if tx.Nonce() > txReq.Metadata.RelayMaxNonce {
		return fmt.Errorf("%w: transaction nonce %d exceeds relay max nonce %d",
			ErrInvalidRelayResponse, tx.Nonce(), txReq.Metadata.RelayMaxNonce)
	}

	expected, err := contracts.EncodeHubCall(txReq.RelayRequest, txReq.Metadata.Signature)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, tx.Data()) {
		return fmt.Errorf("%w: transaction data does not match the relayed request", ErrInvalidRelayResponse)
	}

	if sender != worker {
		return fmt.Errorf("%w: transaction sender %s is not the relay worker %s",
			ErrInvalidRelayResponse, sender.Hex(), worker.Hex())
	}
	return nil
}
