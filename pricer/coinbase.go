package pricer

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/transport"
	"github.com/goware/breaker"
	"github.com/tidwall/gjson"
)

const DefaultCoinBaseURL = "https://api.coinbase.com/v2/exchange-rates"

// coinBaseSymbols maps token symbols to the currency codes CoinBase lists them under.
var coinBaseSymbols = map[string]string{
	"RIF":  "RIF",
	"RBTC": "RBTC",
}

// CoinBase quotes rates from the CoinBase exchange-rates endpoint.
type CoinBase struct {
	BaseURL    string
	HTTPClient *http.Client
	// Breaker retries queries that failed in transit or with a 5xx status.
	// Nil queries once.
	Breaker *breaker.Breaker
}

var _ ExchangeAPI = (*CoinBase)(nil)

func NewCoinBase() *CoinBase {
	return &CoinBase{
		BaseURL: DefaultCoinBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: transport.Chain(http.DefaultTransport,
				transport.SetHeader("User-Agent", "ethrelay"),
			),
		},
		Breaker: breaker.New(nil, 250*time.Millisecond, 2, 2),
	}
}

// Query returns the price of one unit of the token source in the fiat
// currency target.
func (c *CoinBase) Query(ctx context.Context, source, target string) (*big.Rat, error) {
	symbol, ok := coinBaseSymbols[strings.ToUpper(source)]
	if !ok {
		return nil, fmt.Errorf("pricer: token %s is not mapped in CoinBase", source)
	}

	var (
		rate     *big.Rat
		queryErr error
	)
	fetch := func() error {
		var retry bool
		rate, retry, queryErr = c.query(ctx, symbol, source, target)
		if queryErr != nil && !retry {
			return breaker.ErrFatal
		}
		return queryErr
	}

	var err error
	if c.Breaker != nil {
		err = c.Breaker.Do(ctx, fetch)
	} else {
		err = fetch()
	}
	if queryErr != nil {
		return nil, queryErr
	}
	if err != nil {
		return nil, fmt.Errorf("pricer: coinbase: %w", err)
	}
	return rate, nil
}

// query reports whether a failed request is worth repeating.
func (c *CoinBase) query(ctx context.Context, symbol, source, target string) (*big.Rat, bool, error) {
	endpoint := c.BaseURL + "?currency=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("pricer: coinbase: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("pricer: coinbase: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "errors.0.message").String()
		return nil, res.StatusCode >= 500, fmt.Errorf("pricer: coinbase status %s: %s", res.Status, msg)
	}

	rate := gjson.GetBytes(body, "data.rates."+strings.ToUpper(target))
	if !rate.Exists() || rate.String() == "" {
		return nil, false, fmt.Errorf("%w: %s/%s", ErrRateNotFound, source, target)
	}

	r, ok := new(big.Rat).SetString(rate.String())
	if !ok {
		return nil, false, fmt.Errorf("pricer: coinbase: malformed rate %q for %s/%s", rate.String(), source, target)
	}
	return r, false, nil
}
