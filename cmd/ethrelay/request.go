package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethrelay"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/relayclient"
	"github.com/spf13/cobra"
)

// requestFlags registers the flags describing the request to relay.
func requestFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "Sender address (defaults to the --private-key address)")
	cmd.Flags().String("to", "", "Destination address; for a deploy, the optional init call target")
	cmd.Flags().String("data", "0x", "Hex calldata of the destination call")
	cmd.Flags().String("value", "", "Native value to send, in wei")
	cmd.Flags().String("forwarder", "", "Smart wallet (or, for a deploy, the wallet factory) executing the call")
	cmd.Flags().String("verifier", "", "Call verifier (defaults to the configured verifier)")
	cmd.Flags().String("token", "", "Fee token contract (zero address for no fee)")
	cmd.Flags().String("token-amount", "", "Fee amount, in the token's smallest unit")
	cmd.Flags().String("gas", "", "Destination call gas limit (estimated when unset)")
	cmd.Flags().String("gas-price", "", "Gas price, in wei (suggested by the node when unset)")
	cmd.Flags().Bool("deploy", false, "Deploy a smart wallet instead of relaying a call")
	cmd.Flags().String("index", "", "Smart wallet index, for a deploy")
	cmd.Flags().String("recoverer", "", "Smart wallet recoverer, for a deploy")
	cmd.Flags().StringSlice("relays", nil, "Relay URLs to try instead of the configured ones")
	cmd.Flags().Float64("gas-correction-factor", 0, "Multiplier applied to gas estimates")
	cmd.Flags().Int("retries", 0, "Extra passes over relays that did not answer")
}

// parseRequest reads the request flags. from is used when --from is unset.
func parseRequest(cmd *cobra.Command, from *common.Address) (envelope.UserRequest, *relayclient.RequestConfig, error) {
	var (
		user   envelope.UserRequest
		reqCfg relayclient.RequestConfig
		err    error
	)
	flags := cmd.Flags()

	fFrom, _ := flags.GetString("from")
	switch {
	case fFrom != "":
		if user.Request.From, err = addressFlag("from", fFrom); err != nil {
			return user, nil, err
		}
	case from != nil:
		user.Request.From = from
	default:
		return user, nil, errors.New("error: please provide --from or --private-key")
	}

	fDeploy, _ := flags.GetBool("deploy")

	fTo, _ := flags.GetString("to")
	switch {
	case fTo != "":
		if user.Request.To, err = addressFlag("to", fTo); err != nil {
			return user, nil, err
		}
	case fDeploy:
		user.Request.To = ethrelay.PtrTo(ethrelay.ZeroAddress)
	default:
		return user, nil, errors.New("error: please provide a valid destination address with --to")
	}

	fData, _ := flags.GetString("data")
	if user.Request.Data, err = hexutil.Decode(fData); err != nil {
		return user, nil, fmt.Errorf("error: invalid --data: %w", err)
	}
	if user.Request.Data == nil {
		user.Request.Data = []byte{}
	}

	fForwarder, _ := flags.GetString("forwarder")
	if user.RelayData.CallForwarder, err = addressFlag("forwarder", fForwarder); err != nil {
		return user, nil, err
	}

	fToken, _ := flags.GetString("token")
	if fToken == "" {
		user.Request.TokenContract = ethrelay.PtrTo(ethrelay.ZeroAddress)
	} else if user.Request.TokenContract, err = addressFlag("token", fToken); err != nil {
		return user, nil, err
	}

	if fVerifier, _ := flags.GetString("verifier"); fVerifier != "" {
		if user.RelayData.CallVerifier, err = addressFlag("verifier", fVerifier); err != nil {
			return user, nil, err
		}
	}

	for _, f := range []struct {
		name string
		dst  **big.Int
	}{
		{"value", &user.Request.Value},
		{"token-amount", &user.Request.TokenAmount},
		{"gas", &user.Request.Gas},
		{"gas-price", &user.RelayData.GasPrice},
		{"index", &user.Request.Index},
	} {
		v, _ := flags.GetString(f.name)
		if v == "" {
			continue
		}
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return user, nil, fmt.Errorf("error: --%s must be a decimal integer", f.name)
		}
		*f.dst = n
	}

	if fRecoverer, _ := flags.GetString("recoverer"); fRecoverer != "" {
		if user.Request.Recoverer, err = addressFlag("recoverer", fRecoverer); err != nil {
			return user, nil, err
		}
	}
	if fDeploy && !user.IsDeploy() {
		user.Request.Index = new(big.Int)
	}
	if !fDeploy && user.IsDeploy() {
		return user, nil, errors.New("error: --index and --recoverer require --deploy")
	}

	reqCfg.PreferredRelays, _ = flags.GetStringSlice("relays")
	reqCfg.EstimatedGasCorrectionFactor, _ = flags.GetFloat64("gas-correction-factor")
	reqCfg.Retries, _ = flags.GetInt("retries")

	return user, &reqCfg, nil
}

func addressFlag(name, value string) (*common.Address, error) {
	if !common.IsHexAddress(value) {
		return nil, fmt.Errorf("error: please provide a valid --%s address (e.g. 0x213a286A1AF3Ac010d4F2D66A52DeAf762dF7742)", name)
	}
	return ethrelay.PtrTo(common.HexToAddress(value)), nil
}
