package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newOwnerCmd())
}

func newOwnerCmd() *cobra.Command {
	owner := &owner{}
	cmd := &cobra.Command{
		Use:   "owner [wallet] [owner]",
		Short: "Check whether an account owns a smart wallet",
		Args:  cobra.ExactArgs(2),
		RunE:  owner.Run,
	}
	clientFlags(cmd)
	return cmd
}

type owner struct {
}

func (c *owner) Run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fWallet, fOwner := args[0], args[1]
	if !common.IsHexAddress(fWallet) || !common.IsHexAddress(fOwner) {
		return errors.New("error: please provide valid wallet and owner addresses (e.g. 0x213a286A1AF3Ac010d4F2D66A52DeAf762dF7742)")
	}

	s, err := newSetup(ctx, cmd)
	if err != nil {
		return err
	}

	ok, err := s.client.IsSmartWalletOwner(ctx, common.HexToAddress(fWallet), common.HexToAddress(fOwner))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ok)
	return nil
}
