package relaytransport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethrelay/envelope"
	"github.com/0xsequence/ethrelay/relaytest"
	"github.com/0xsequence/ethrelay/relaytransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainInfo = `{
	"relayWorkerAddress": "0x00000000000000000000000000000000000000a1",
	"relayManagerAddress": "0x00000000000000000000000000000000000000a2",
	"relayHubAddress": "0x00000000000000000000000000000000000a0b01",
	"feesReceiver": "0x00000000000000000000000000000000000a0b08",
	"minGasPrice": "60000000",
	"chainId": "33",
	"networkId": "33",
	"ready": true,
	"version": "2.2.0"
}`

func TestGetChainInfo(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chain-info", r.URL.Path)
		userAgent = r.Header.Get("User-Agent")
		w.Write([]byte(chainInfo))
	}))
	defer srv.Close()

	c := relaytransport.NewClient(relaytransport.WithUserAgent("ethrelay-test"))
	info, err := c.GetChainInfo(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, "ethrelay-test", userAgent)
	assert.Equal(t, relaytest.Hub, info.RelayHubAddress)
	assert.Equal(t, common.HexToAddress("0xa1"), info.RelayWorkerAddress)
	assert.Equal(t, int64(33), info.ChainID.Int64())
	assert.True(t, info.Ready)
}

func TestGetChainInfoFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "malformed", status: http.StatusOK, body: `{"relayWorkerAddress": 1`, message: "malformed chain info"},
		{name: "invalid address", status: http.StatusOK, body: `{"relayWorkerAddress": "0x12"}`, message: "malformed chain info"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error": "hub unavailable"}`, message: "hub unavailable"},
		{name: "plain error", status: http.StatusBadGateway, body: `bad gateway`, message: "502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := relaytransport.NewClient().GetChainInfo(context.Background(), srv.URL)
			require.Error(t, err)

			var terr *relaytransport.Error
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.message, terr.Message)
			if tt.status != http.StatusOK {
				assert.Equal(t, tt.status, terr.StatusCode)
			}
		})
	}
}

func TestGetChainInfoUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := relaytransport.NewClient().GetChainInfo(context.Background(), url)
	assert.Error(t, err)
}

func TestGetChainInfoSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := relaytransport.NewClient().GetChainInfo(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var terr *relaytransport.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
}

func TestRelayTransaction(t *testing.T) {
	sender := common.HexToAddress("0xaa")
	txReq := &envelope.EnvelopingTxRequest{
		RelayRequest: relaytest.RelayRequest(sender),
		Metadata: envelope.EnvelopingMetadata{
			RelayHubAddress: relaytest.Hub,
			Signature:       common.FromHex("0x1234"),
			RelayMaxNonce:   9,
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/relay", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var received envelope.EnvelopingTxRequest
		require.NoError(t, json.Unmarshal(body, &received))
		assert.Equal(t, txReq.Metadata, received.Metadata)
		assert.Equal(t, sender, received.RelayRequest.Common().From)

		w.Write([]byte(`{"signedTx": "0xf86b01", "transactionHash": "0x01"}`))
	}))
	defer srv.Close()

	signedTx, err := relaytransport.NewClient().RelayTransaction(context.Background(), srv.URL, txReq)
	require.NoError(t, err)
	assert.Equal(t, "0xf86b01", signedTx)
}

func TestRelayTransactionDeclined(t *testing.T) {
	txReq := &envelope.EnvelopingTxRequest{
		RelayRequest: relaytest.RelayRequest(common.HexToAddress("0xaa")),
		Metadata:     envelope.EnvelopingMetadata{RelayHubAddress: relaytest.Hub},
	}

	tests := []struct {
		name     string
		status   int
		body     string
		declined bool
		message  string
	}{
		{name: "error field", status: http.StatusOK, body: `{"error": "gas price too low"}`, declined: true, message: "gas price too low"},
		{name: "empty tx", status: http.StatusOK, body: `{}`, declined: true, message: "empty signed transaction"},
		{name: "malformed", status: http.StatusOK, body: `[`, message: "malformed relay response"},
		{name: "status", status: http.StatusBadRequest, body: `{"message": "bad signature"}`, message: "bad signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := relaytransport.NewClient().RelayTransaction(context.Background(), srv.URL, txReq)
			require.Error(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.declined, errors.Is(err, relaytransport.ErrRelayDeclined))

			var terr *relaytransport.Error
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.message, terr.Message)
			assert.Contains(t, err.Error(), srv.URL+"/relay")
		})
	}
}
