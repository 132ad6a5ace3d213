package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execCmd(cmd *cobra.Command, args string) (string, error) {
	actual := new(bytes.Buffer)
	cmd.SetOut(actual)
	cmd.SetErr(actual)
	cmd.SetArgs(strings.Fields(args))
	if err := cmd.Execute(); err != nil {
		return "", err
	}
	return actual.String(), nil
}

func Test_ChainInfoCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chain-info", r.URL.Path)
		fmt.Fprint(w, `{
			"relayWorkerAddress": "0x00000000000000000000000000000000000000a1",
			"relayManagerAddress": "0x00000000000000000000000000000000000000a2",
			"relayHubAddress": "0x00000000000000000000000000000000000a0b01",
			"feesReceiver": "0x00000000000000000000000000000000000a0b08",
			"minGasPrice": "60000000",
			"chainId": "33",
			"networkId": "33",
			"ready": true,
			"version": "2.2.0"
		}`)
	}))
	defer srv.Close()

	res, err := execCmd(newChainInfoCmd(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, res, "ready")
	assert.Contains(t, res, "true")
	assert.Contains(t, res, "2.2.0")
	assert.Contains(t, res, common.HexToAddress("0x0a0b01").Hex())
	assert.Contains(t, res, "60000000")
}

func Test_ChainInfoCmd_InvalidURL(t *testing.T) {
	res, err := execCmd(newChainInfoCmd(), "relay.example.com")
	assert.Error(t, err)
	assert.Empty(t, res)
	assert.Contains(t, err.Error(), "please provide a valid relay url")
}

func Test_PriceCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("currency") {
		case "RIF":
			fmt.Fprint(w, `{"data":{"currency":"RIF","rates":{"USD":"0.25"}}}`)
		case "RBTC":
			fmt.Fprint(w, `{"data":{"currency":"RBTC","rates":{"USD":"50000"}}}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errors":[{"id":"invalid_request","message":"Invalid currency"}]}`)
		}
	}))
	defer srv.Close()

	res, err := execCmd(newPriceCmd(), "RBTC RIF --precision 2 --coinbase-url "+srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "200000.00\n", res)

	_, err = execCmd(newPriceCmd(), "DOGE RIF --coinbase-url "+srv.URL)
	assert.Error(t, err)
}

func Test_RelayCmd_MissingConfig(t *testing.T) {
	key := "0000000000000000000000000000000000000000000000000000000000000001"
	res, err := execCmd(newRelayCmd(), "--private-key "+key+" --to 0x00000000000000000000000000000000000a0b07 --forwarder 0x00000000000000000000000000000000000a0b02")
	assert.Error(t, err)
	assert.Empty(t, res)
	assert.Contains(t, err.Error(), "please provide a config file")
}

func Test_RelayCmd_InvalidRequest(t *testing.T) {
	res, err := execCmd(newRelayCmd(), "--to 0x00000000000000000000000000000000000a0b07 --forwarder 0x00000000000000000000000000000000000a0b02")
	assert.Error(t, err)
	assert.Empty(t, res)
	assert.Contains(t, err.Error(), "please provide --from or --private-key")

	_, err = execCmd(newRelayCmd(), "--from 0x01 --to 0x00000000000000000000000000000000000a0b07")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "--from")
}

func Test_OwnerCmd_InvalidAddress(t *testing.T) {
	res, err := execCmd(newOwnerCmd(), "0x1 0x2")
	assert.Error(t, err)
	assert.Empty(t, res)
	assert.Contains(t, err.Error(), "please provide valid wallet and owner addresses")
}

func Test_ParseRequest(t *testing.T) {
	cmd := newEstimateCmd()
	require.NoError(t, cmd.ParseFlags(strings.Fields(
		"--from 0x00000000000000000000000000000000000000f1 --to 0x00000000000000000000000000000000000a0b07 " +
			"--forwarder 0x00000000000000000000000000000000000a0b02 --token 0x00000000000000000000000000000000000a0b06 " +
			"--token-amount 1000000 --gas 50000 --data 0xa9059cbb --relays https://a.example.com,https://b.example.com --retries 2",
	)))

	user, reqCfg, err := parseRequest(cmd, nil)
	require.NoError(t, err)

	assert.False(t, user.IsDeploy())
	assert.Equal(t, common.HexToAddress("0xf1"), *user.Request.From)
	assert.Equal(t, common.HexToAddress("0x0a0b07"), *user.Request.To)
	assert.Equal(t, common.HexToAddress("0x0a0b02"), *user.RelayData.CallForwarder)
	assert.Equal(t, common.HexToAddress("0x0a0b06"), *user.Request.TokenContract)
	assert.Equal(t, int64(1_000_000), user.Request.TokenAmount.Int64())
	assert.Equal(t, int64(50_000), user.Request.Gas.Int64())
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, user.Request.Data)
	assert.Nil(t, user.RelayData.GasPrice)
	assert.Nil(t, user.RelayData.CallVerifier)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, reqCfg.PreferredRelays)
	assert.Equal(t, 2, reqCfg.Retries)
}

func Test_ParseRequest_Deploy(t *testing.T) {
	cmd := newRelayCmd()
	require.NoError(t, cmd.ParseFlags(strings.Fields("--deploy --forwarder 0x00000000000000000000000000000000000a0b03")))

	from := common.HexToAddress("0xf1")
	user, _, err := parseRequest(cmd, &from)
	require.NoError(t, err)

	assert.True(t, user.IsDeploy())
	assert.Equal(t, from, *user.Request.From)
	assert.Equal(t, common.Address{}, *user.Request.To)
	assert.Equal(t, common.Address{}, *user.Request.TokenContract)
	assert.Equal(t, int64(0), user.Request.Index.Int64())
	assert.NotNil(t, user.Request.Data)
	assert.Empty(t, user.Request.Data)

	cmd = newRelayCmd()
	require.NoError(t, cmd.ParseFlags(strings.Fields("--to 0x00000000000000000000000000000000000a0b07 --index 1 --forwarder 0x00000000000000000000000000000000000a0b03")))
	_, _, err = parseRequest(cmd, &from)
	assert.Error(t, err)
}

// newNode serves eth_chainId with chainID.
func newNode(t *testing.T, chainID string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "eth_chainId", req.Method)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, req.ID, chainID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, chainID uint64) string {
	path := filepath.Join(t.TempDir(), "ethrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
chain_id: %d
relay_hub_address: "0x00000000000000000000000000000000000a0b01"
relay_verifier_address: "0x00000000000000000000000000000000000a0b04"
preferred_relays: ["https://relay.example.com"]
`, chainID)), 0o600))
	return path
}

func Test_NewSetup_ChainID(t *testing.T) {
	tests := []struct {
		name    string
		config  uint64
		node    string
		wantErr string
	}{
		{name: "matching", config: 33, node: "0x21"},
		{name: "from node", config: 0, node: "0x1f"},
		{name: "mismatch", config: 33, node: "0x1f", wantErr: "config chain_id 33 does not match the node's chain id 31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newNode(t, tt.node)

			cmd := newRelayCmd()
			require.NoError(t, cmd.ParseFlags([]string{"--config", writeConfig(t, tt.config), "--rpc-url", node.URL}))

			s, err := newSetup(context.Background(), cmd)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s.client)
			assert.NotNil(t, s.registry)
		})
	}
}

func Test_NewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error"} {
		_, err := newLogger(level)
		assert.NoError(t, err, level)
	}
	_, err := newLogger("loud")
	assert.Error(t, err)
}

func Test_Version(t *testing.T) {
	assert.Contains(t, version(), VERSION)
}
