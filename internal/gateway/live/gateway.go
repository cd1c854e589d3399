package live

import (
	"context"
)

// Gateway composes the REST Client and the WebSocket MarketFeed into
// the full set of demand interfaces internal/gateway declares
// (MarketDataGateway, AccountGateway, TradeExecutionGateway). Kept as
// two separate underlying connections — as the teacher does with its
// REST exchanges/binance.Client and its WebSocketManager connections —
// because reference-data/account/order-entry calls and the bar stream
// have independent lifecycles and failure modes.
type Gateway struct {
	*Client
	feed *MarketFeed
}

func NewGateway(client *Client, feed *MarketFeed) *Gateway {
	return &Gateway{Client: client, feed: feed}
}

// Subscribe satisfies gateway.MarketDataGateway by delegating to the
// WebSocket feed.
func (g *Gateway) Subscribe(ctx context.Context, symbols []string) error {
	return g.feed.Subscribe(ctx, symbols)
}

// Unsubscribe satisfies gateway.MarketDataGateway.
func (g *Gateway) Unsubscribe(ctx context.Context, symbols []string) error {
	return g.feed.Unsubscribe(ctx, symbols)
}

// Run starts the market feed's reconnect loop; blocks until ctx is
// cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	return g.feed.Run(ctx)
}

func (g *Gateway) Close() error {
	return g.feed.Close()
}
