package main

import (
	"context"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRelayCmd())
}

func newRelayCmd() *cobra.Command {
	relay := &relay{}
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Sign a request and relay it through the first relay that accepts it",
		Args:  cobra.NoArgs,
		RunE:  relay.Run,
	}
	clientFlags(cmd)
	requestFlags(cmd)
	return cmd
}

type relay struct {
}

func (c *relay) Run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fKey, err := cmd.Flags().GetString("private-key")
	if err != nil {
		return err
	}
	var sender *common.Address
	if fKey != "" {
		address, err := addressOf(fKey)
		if err != nil {
			return err
		}
		sender = &address
	}

	user, reqCfg, err := parseRequest(cmd, sender)
	if err != nil {
		return err
	}

	s, err := newSetup(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.logMetrics(ctx)

	tx, err := s.client.Relay(ctx, user, reqCfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), tx.Hash().Hex())
	return nil
}
