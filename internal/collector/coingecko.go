package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"BTCTicker/internal/model"
)

// CoinGecko builds feed requests and decodes the CoinGecko payloads.
type CoinGecko struct {
	Coin       string // e.g. "bitcoin"
	VsCurrency string // e.g. "usd"
}

// NewCoinGecko creates a CoinGecko codec for coin priced in vsCurrency.
func NewCoinGecko(coin, vsCurrency string) *CoinGecko {
	return &CoinGecko{Coin: coin, VsCurrency: vsCurrency}
}

// PriceRequest asks for the spot price with its 24h change.
func (c *CoinGecko) PriceRequest() Request {
	q := url.Values{}
	q.Set("ids", c.Coin)
	q.Set("vs_currencies", c.VsCurrency)
	q.Set("include_24hr_change", "true")
	return Request{Path: "/simple/price", Query: q}
}

// OHLCRequest asks for candles covering the last days days.
func (c *CoinGecko) OHLCRequest(days int) Request {
	q := url.Values{}
	q.Set("vs_currency", c.VsCurrency)
	q.Set("days", fmt.Sprintf("%d", days))
	return Request{Path: "/coins/" + url.PathEscape(c.Coin) + "/ohlc", Query: q}
}

// DecodeQuote parses {"bitcoin":{"usd":65000.1,"usd_24h_change":2.5}}.
func (c *CoinGecko) DecodeQuote(raw []byte) (model.Quote, error) {
	var body map[string]map[string]json.Number
	dec := json.NewDecoder(bytesReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return model.Quote{}, &DecodeError{What: "quote", Err: err}
	}
	fields, ok := body[c.Coin]
	if !ok {
		return model.Quote{}, &DecodeError{What: "quote", Err: fmt.Errorf("missing coin %q", c.Coin)}
	}
	price, err := decimalField(fields, c.VsCurrency)
	if err != nil {
		return model.Quote{}, &DecodeError{What: "quote", Err: err}
	}
	change, err := decimalField(fields, c.VsCurrency+"_24h_change")
	if err != nil {
		return model.Quote{}, &DecodeError{What: "quote", Err: err}
	}
	if !price.IsPositive() {
		return model.Quote{}, &DecodeError{What: "quote", Err: fmt.Errorf("non-positive price %s", price)}
	}
	return model.Quote{Price: price.Round(2), Change24h: change.Round(2)}, nil
}

// DecodeOHLC parses [[ts_ms, open, high, low, close], ...] into bars sorted by time.
func (c *CoinGecko) DecodeOHLC(raw []byte) ([]model.OHLC, error) {
	var rows [][]json.Number
	dec := json.NewDecoder(bytesReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, &DecodeError{What: "ohlc", Err: err}
	}
	if len(rows) == 0 {
		return nil, &DecodeError{What: "ohlc", Err: errors.New("no bars returned")}
	}

	bars := make([]model.OHLC, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, &DecodeError{What: "ohlc", Err: fmt.Errorf("row %d has %d fields", i, len(row))}
		}
		ts, err := row[0].Int64()
		if err != nil {
			return nil, &DecodeError{What: "ohlc", Err: fmt.Errorf("row %d timestamp: %w", i, err)}
		}
		vals := make([]decimal.Decimal, 4)
		for j := range vals {
			v, err := decimal.NewFromString(row[j+1].String())
			if err != nil {
				return nil, &DecodeError{What: "ohlc", Err: fmt.Errorf("row %d field %d: %w", i, j+1, err)}
			}
			vals[j] = v
		}
		bars = append(bars, model.OHLC{
			Time:  time.UnixMilli(ts),
			Open:  vals[0],
			High:  vals[1],
			Low:   vals[2],
			Close: vals[3],
		})
	}

	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func decimalField(fields map[string]json.Number, key string) (decimal.Decimal, error) {
	n, ok := fields[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("missing field %q", key)
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}
