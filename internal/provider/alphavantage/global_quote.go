package alphavantage

import (
	"bytes"
	"context"
	"errors"
	"net/url"

	"stockproxy/internal/provider"
)

// GlobalQuote retrieves the latest quote for symbol and returns the raw payload.
// https://www.alphavantage.co/documentation/#latestprice
func (c *Client) GlobalQuote(ctx context.Context, symbol string) (provider.RawGlobalQuote, error) {
	body, err := c.call(ctx, "GLOBAL_QUOTE", url.Values{"symbol": {symbol}})
	if err != nil {
		return provider.RawGlobalQuote{}, err
	}
	return provider.DecodeGlobalQuote(bytes.NewReader(body))
}

// Quote implements provider.Provider.
func (c *Client) Quote(ctx context.Context, req provider.Request) (provider.Quote, error) {
	symbol, err := provider.CleanSymbol(req.Symbol)
	if err != nil {
		return provider.Quote{}, err
	}
	raw, err := c.GlobalQuote(ctx, symbol)
	if err != nil {
		return provider.Quote{}, err
	}
	q, err := provider.NormalizeGlobalQuote(raw)
	var nf *provider.NotFoundError
	if errors.As(err, &nf) {
		nf.Symbol = symbol
	}
	return q, err
}
