package relayclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethkit/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// broadcast sends tx to the ledger unless it is already pending or mined, in
// case the relay never broadcasts it. It reports whether it sent it.
func (c *Client) broadcast(ctx context.Context, tx *types.Transaction) (bool, error) {
	var pending, mined bool
	hash := tx.Hash()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		known, _, err := c.Provider.TransactionByHash(gctx, hash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("relayclient: transaction lookup: %w", err)
		}
		pending = known != nil
		return nil
	})
	g.Go(func() error {
		receipt, err := c.Provider.TransactionReceipt(gctx, hash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("relayclient: receipt lookup: %w", err)
		}
		mined = receipt != nil
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	if pending || mined {
		return false, nil
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return false, fmt.Errorf("relayclient: encode transaction: %w", err)
	}
	if _, err := c.Provider.SendRawTransaction(ctx, hexutil.Encode(raw)); err != nil {
		return false, fmt.Errorf("relayclient: send raw transaction: %w", err)
	}
	return true, nil
}
