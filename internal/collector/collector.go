package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"BTCTicker/internal/model"
)

// Collector pairs a transport with the feed codec so each call is exactly one
// logical request followed by decoding.
type Collector struct {
	Transport Transport
	Feed      *CoinGecko
}

// NewCollector creates a new Collector.
func NewCollector(transport Transport, feed *CoinGecko) *Collector {
	return &Collector{Transport: transport, Feed: feed}
}

// FetchQuote fetches and decodes the spot price.
func (c *Collector) FetchQuote(ctx context.Context) (model.Quote, error) {
	raw, err := c.Transport.Perform(ctx, c.Feed.PriceRequest())
	if err != nil {
		return model.Quote{}, fmt.Errorf("fetch quote: %w", err)
	}
	return c.Feed.DecodeQuote(raw)
}

// FetchBars fetches and decodes candles covering the last days days.
func (c *Collector) FetchBars(ctx context.Context, days int) ([]model.OHLC, error) {
	raw, err := c.Transport.Perform(ctx, c.Feed.OHLCRequest(days))
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	return c.Feed.DecodeOHLC(raw)
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
