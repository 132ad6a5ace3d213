package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/0xsequence/ethrelay/relaytransport"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newChainInfoCmd())
}

func newChainInfoCmd() *cobra.Command {
	chainInfo := &chainInfo{}
	cmd := &cobra.Command{
		Use:   "chain-info [relay-url]",
		Short: "Print the status a relay server reports",
		Args:  cobra.ExactArgs(1),
		RunE:  chainInfo.Run,
	}
	return cmd
}

type chainInfo struct {
}

func (c *chainInfo) Run(cmd *cobra.Command, args []string) error {
	fURL := args[0]
	if u, err := url.ParseRequestURI(fURL); err != nil || u.Host == "" {
		return errors.New("error: please provide a valid relay url (e.g. https://relay.example.com)")
	}

	info, err := relaytransport.NewClient().GetChainInfo(context.Background(), fURL)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "ready\t%t\n", info.Ready)
	fmt.Fprintf(w, "version\t%s\n", info.Version)
	fmt.Fprintf(w, "relayHubAddress\t%s\n", info.RelayHubAddress.Hex())
	fmt.Fprintf(w, "relayManagerAddress\t%s\n", info.RelayManagerAddress.Hex())
	fmt.Fprintf(w, "relayWorkerAddress\t%s\n", info.RelayWorkerAddress.Hex())
	fmt.Fprintf(w, "feesReceiver\t%s\n", info.FeesReceiver.Hex())
	fmt.Fprintf(w, "minGasPrice\t%v\n", info.MinGasPrice)
	fmt.Fprintf(w, "chainId\t%v\n", info.ChainID)
	return w.Flush()
}
