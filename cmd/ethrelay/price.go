package main

import (
	"context"
	"fmt"

	"github.com/0xsequence/ethrelay/pricer"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPriceCmd())
}

func newPriceCmd() *cobra.Command {
	price := &price{}
	cmd := &cobra.Command{
		Use:   "price [source] [target]",
		Short: "Print the exchange rate between two tokens",
		Args:  cobra.ExactArgs(2),
		RunE:  price.Run,
	}

	cmd.Flags().String("intermediate", pricer.DefaultIntermediateCurrency, "Currency both tokens are quoted in")
	cmd.Flags().String("coinbase-url", pricer.DefaultCoinBaseURL, "CoinBase exchange rates endpoint")
	cmd.Flags().Int("precision", 18, "Decimal places to print")

	return cmd
}

type price struct {
}

func (c *price) Run(cmd *cobra.Command, args []string) error {
	fIntermediate, err := cmd.Flags().GetString("intermediate")
	if err != nil {
		return err
	}
	fCoinBase, err := cmd.Flags().GetString("coinbase-url")
	if err != nil {
		return err
	}
	fPrecision, err := cmd.Flags().GetInt("precision")
	if err != nil {
		return err
	}

	api := pricer.NewCoinBase()
	api.BaseURL = fCoinBase

	p, err := pricer.NewRelayPricer(api)
	if err != nil {
		return err
	}

	rate, err := p.GetExchangeRate(context.Background(), args[0], args[1], fIntermediate)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), rate.FloatString(fPrecision))
	return nil
}
