// File: internal/binance/market.go
// ============================================
package binance

import (
	"context"
	"time"

	"binance-tape-bot/pkg/types"
)

// Market is the engine-facing view of the exchange for one trading pair.
// It composes the REST client with the optional trade stream: the stream
// answers price reads while fresh, REST covers everything else.
type Market struct {
	client     *Client
	feed       *PriceFeed
	symbol     string
	baseAsset  string
	quoteAsset string
	interval   string
	depth      int
	maxFeedAge time.Duration

	lotRule *types.LotSizeRule
}

func NewMarket(client *Client, feed *PriceFeed, symbol, baseAsset, quoteAsset, interval string, depth int, maxFeedAge time.Duration) *Market {
	return &Market{
		client:     client,
		feed:       feed,
		symbol:     symbol,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		interval:   interval,
		depth:      depth,
		maxFeedAge: maxFeedAge,
	}
}

func (m *Market) OrderBook(ctx context.Context) (types.OrderBook, error) {
	return m.client.GetOrderBook(ctx, m.symbol, m.depth)
}

func (m *Market) LatestCandle(ctx context.Context) (types.Candle, error) {
	return m.client.GetLatestCandle(ctx, m.symbol, m.interval)
}

func (m *Market) Price(ctx context.Context) (float64, error) {
	if m.feed != nil {
		if price, at, ok := m.feed.LastPrice(); ok && time.Since(at) <= m.maxFeedAge {
			return price, nil
		}
	}
	return m.client.GetCurrentPrice(ctx, m.symbol)
}

func (m *Market) Balances(ctx context.Context) (types.Balances, error) {
	return m.client.GetBalances(ctx, m.baseAsset, m.quoteAsset)
}

// LotSizeRule fetches the symbol's trading rules once and serves them from
// memory afterwards; the rules do not change intra-session.
func (m *Market) LotSizeRule(ctx context.Context) (types.LotSizeRule, error) {
	if m.lotRule != nil {
		return *m.lotRule, nil
	}
	rule, err := m.client.GetLotSizeRule(ctx, m.symbol)
	if err != nil {
		return types.LotSizeRule{}, err
	}
	m.lotRule = &rule
	return rule, nil
}

func (m *Market) MarketBuy(ctx context.Context, quantity float64) (*types.Trade, error) {
	return m.placeOrder(ctx, "BUY", quantity)
}

func (m *Market) MarketSell(ctx context.Context, quantity float64) (*types.Trade, error) {
	return m.placeOrder(ctx, "SELL", quantity)
}

func (m *Market) placeOrder(ctx context.Context, side string, quantity float64) (*types.Trade, error) {
	step := 0.0
	if m.lotRule != nil {
		step = m.lotRule.StepSize
	}
	return m.client.PlaceMarketOrder(ctx, m.symbol, side, quantity, step)
}
