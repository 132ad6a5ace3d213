package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newEstimateCmd())
}

func newEstimateCmd() *cobra.Command {
	estimate := &estimate{}
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the most gas a relay may charge for a request, before signing it",
		Args:  cobra.NoArgs,
		RunE:  estimate.Run,
	}
	clientFlags(cmd)
	requestFlags(cmd)
	return cmd
}

type estimate struct {
}

func (c *estimate) Run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	user, reqCfg, err := parseRequest(cmd, nil)
	if err != nil {
		return err
	}

	s, err := newSetup(ctx, cmd)
	if err != nil {
		return err
	}

	gas, err := s.client.EstimateMaxPossibleGas(ctx, user, reqCfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), gas, "gas")
	return nil
}
