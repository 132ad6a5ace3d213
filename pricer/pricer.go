// Package pricer converts between the fee token and the native currency
// through a public exchange rate API, for informational pricing.
package pricer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"
)

const DefaultIntermediateCurrency = "USD"

var ErrRateNotFound = errors.New("pricer: exchange rate not found")

// ExchangeAPI quotes the price of one unit of source in target.
type ExchangeAPI interface {
	Query(ctx context.Context, source, target string) (*big.Rat, error)
}

type RelayPricer struct {
	api ExchangeAPI
}

func NewRelayPricer(api ExchangeAPI) (*RelayPricer, error) {
	if api == nil {
		return nil, fmt.Errorf("pricer: exchange api is required")
	}
	return &RelayPricer{api: api}, nil
}

// GetExchangeRate returns how many units of target one unit of source buys,
// quoting both against intermediate. An empty intermediate means
// DefaultIntermediateCurrency.
func (p *RelayPricer) GetExchangeRate(ctx context.Context, source, target, intermediate string) (*big.Rat, error) {
	if intermediate == "" {
		intermediate = DefaultIntermediateCurrency
	}

	var sourceRate, targetRate *big.Rat

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceRate, err = p.api.Query(gctx, source, intermediate)
		return err
	})
	g.Go(func() error {
		var err error
		targetRate, err = p.api.Query(gctx, target, intermediate)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if sourceRate.Sign() == 0 || targetRate.Sign() == 0 {
		return nil, fmt.Errorf("%w: currency conversion for pair %s:%s", ErrRateNotFound, source, target)
	}
	return new(big.Rat).Quo(sourceRate, targetRate), nil
}
