// Package polygon adapts the Polygon.io REST API to the provider
// interfaces the scan pipeline consumes.
package polygon

import (
	"context"
	"fmt"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/options"
)

// chainPageSize is the per-page limit for chain snapshot requests. The
// iterator follows next_url, so this only controls round-trip granularity.
const chainPageSize = 250

// Client wraps the Polygon REST client. It implements
// providers.ChainProvider and providers.IndexHistoryProvider.
type Client struct {
	rest *polygonrest.Client
	log  zerolog.Logger
}

// New builds a Client authenticated with the given API key
func New(apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		rest: polygonrest.New(apiKey),
		log:  logger.With().Str("component", "polygon").Logger(),
	}
}

// GetChain fetches the option chain snapshot for the underlying. A zero
// expiration returns every listed expiration; otherwise only contracts
// expiring on that date. Contracts without a usable contract type or
// strike are skipped.
func (c *Client) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]options.Contract, error) {
	params := models.ListOptionsChainParams{
		UnderlyingAsset: symbol,
	}.WithLimit(chainPageSize)
	if !expiration.IsZero() {
		params = params.WithExpirationDate(models.EQ, models.Date(expiration))
	}

	iter := c.rest.ListOptionsChainSnapshot(ctx, params)

	var contracts []options.Contract
	for iter.Next() {
		snap := iter.Item()

		typ := options.OptionType(snap.Details.ContractType)
		if !typ.Valid() || snap.Details.StrikePrice <= 0 {
			c.log.Debug().
				Str("ticker", snap.Details.Ticker).
				Str("contract_type", snap.Details.ContractType).
				Msg("Skipping malformed chain entry")
			continue
		}

		contracts = append(contracts, options.Contract{
			Symbol:     symbol,
			OCCSymbol:  snap.Details.Ticker,
			Strike:     snap.Details.StrikePrice,
			Expiration: time.Time(snap.Details.ExpirationDate),
			Type:       typ,
			Quote: options.Quote{
				Bid:          snap.LastQuote.Bid,
				Ask:          snap.LastQuote.Ask,
				Last:         snap.LastTrade.Price,
				Volume:       int64(snap.Day.Volume),
				OpenInterest: int64(snap.OpenInterest),
				ImpliedVol:   snap.ImpliedVolatility,
			},
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list option chain for %s: %w", symbol, err)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("contracts", len(contracts)).
		Msg("Fetched option chain")

	return contracts, nil
}

// GetSpot returns the previous session close for the underlying
func (c *Client) GetSpot(ctx context.Context, symbol string) (float64, error) {
	res, err := c.rest.GetPreviousCloseAgg(ctx, models.GetPreviousCloseAggParams{
		Ticker: symbol,
	}.WithAdjusted(true))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch previous close for %s: %w", symbol, err)
	}
	if len(res.Results) == 0 {
		return 0, fmt.Errorf("no previous close returned for %s", symbol)
	}
	return res.Results[0].Close, nil
}

// GetHistoricalLevels returns up to window daily closing levels for the
// index ticker (e.g. "I:VIX"), oldest first. Fewer levels than requested
// is not an error; the caller decides whether the sample is large enough.
func (c *Client) GetHistoricalLevels(ctx context.Context, index string, window int) ([]float64, error) {
	// Calendar span padded for weekends and holidays
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -(window*7/5 + 10))

	params := models.ListAggsParams{
		Ticker:     index,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithAdjusted(true)

	iter := c.rest.ListAggs(ctx, params)

	var levels []float64
	for iter.Next() {
		levels = append(levels, iter.Item().Close)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list aggregates for %s: %w", index, err)
	}

	if len(levels) > window {
		levels = levels[len(levels)-window:]
	}

	c.log.Debug().
		Str("index", index).
		Int("levels", len(levels)).
		Msg("Fetched index history")

	return levels, nil
}

// GetCurrentLevel returns the previous session close for the index
func (c *Client) GetCurrentLevel(ctx context.Context, index string) (float64, error) {
	return c.GetSpot(ctx, index)
}
