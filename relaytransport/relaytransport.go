// Package relaytransport talks to relay servers over HTTP.
//
//   - GET  {url}/chain-info returns the relay's HubInfo.
//   - POST {url}/relay submits an EnvelopingTxRequest and returns the worker's
//     signed transaction.
package relaytransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/0xsequence/ethrelay/envelope"
	"github.com/bytedance/sonic"
	"github.com/go-chi/transport"
)

// Transport is the relay server API used by the relay client.
type Transport interface {
	// GetChainInfo fetches the relay's self-reported status.
	GetChainInfo(ctx context.Context, relayURL string) (*envelope.HubInfo, error)
	// RelayTransaction submits a signed request and returns the raw signed
	// transaction (0x-prefixed hex) the relay's worker produced for it.
	RelayTransaction(ctx context.Context, relayURL string, req *envelope.EnvelopingTxRequest) (string, error)
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var jsonConfig = sonic.Config{
	NoQuoteTextMarshaler:    false,
	NoValidateJSONMarshaler: true,
	NoValidateJSONSkip:      true,
}.Froze()

const (
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 1 << 20
)

var _ Transport = (*Client)(nil)

type Client struct {
	httpClient httpClient
	log        *slog.Logger
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(c httpClient) Option {
	return func(t *Client) {
		t.httpClient = c
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(t *Client) {
		t.log = log
	}
}

func WithUserAgent(userAgent string) Option {
	return func(t *Client) {
		t.userAgent = userAgent
	}
}

func NewClient(options ...Option) *Client {
	c := &Client{
		userAgent: "ethrelay",
	}
	for _, opt := range options {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: DefaultTimeout,
			Transport: transport.Chain(http.DefaultTransport,
				transport.SetHeader("User-Agent", c.userAgent),
			),
		}
	}
	return c
}

// GetChainInfo makes a single attempt; an unreachable relay is the caller's
// cue to move on to the next candidate.
func (c *Client) GetChainInfo(ctx context.Context, relayURL string) (*envelope.HubInfo, error) {
	url := endpoint(relayURL, "chain-info")

	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.log.DebugContext(ctx, "chain info unavailable", slog.String("relay", relayURL), slog.Any("error", err))
		return nil, err
	}

	var info envelope.HubInfo
	if err := jsonConfig.Unmarshal(body, &info); err != nil {
		err = &Error{URL: url, Message: "malformed chain info", Err: err}
		c.log.DebugContext(ctx, "chain info unavailable", slog.String("relay", relayURL), slog.Any("error", err))
		return nil, err
	}
	return &info, nil
}

type relayResponse struct {
	SignedTx        string `json:"signedTx"`
	TransactionHash string `json:"transactionHash"`
	Error           string `json:"error"`
}

func (c *Client) RelayTransaction(ctx context.Context, relayURL string, req *envelope.EnvelopingTxRequest) (string, error) {
	url := endpoint(relayURL, "relay")

	payload, err := jsonConfig.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("relaytransport: encode request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}

	var res relayResponse
	if err := jsonConfig.Unmarshal(body, &res); err != nil {
		return "", &Error{URL: url, Message: "malformed relay response", Err: err}
	}
	if res.Error != "" {
		return "", &Error{URL: url, Message: res.Error, Err: ErrRelayDeclined}
	}
	if res.SignedTx == "" {
		return "", &Error{URL: url, Message: "empty signed transaction", Err: ErrRelayDeclined}
	}

	c.log.DebugContext(ctx, "relay accepted request",
		slog.String("relay", relayURL),
		slog.String("transaction", res.TransactionHash),
	)
	return res.SignedTx, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &Error{URL: url, Message: "invalid request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{URL: url, StatusCode: res.StatusCode, Message: "failed to read response", Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &Error{URL: url, StatusCode: res.StatusCode, Message: errorMessage(body, res.Status)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error
// body, falling back to the HTTP status line.
func errorMessage(body []byte, status string) string {
	var res struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := jsonConfig.Unmarshal(body, &res); err == nil {
		if res.Error != "" {
			return res.Error
		}
		if res.Message != "" {
			return res.Message
		}
	}
	return status
}

func endpoint(relayURL, path string) string {
	return strings.TrimRight(relayURL, "/") + "/" + path
}
