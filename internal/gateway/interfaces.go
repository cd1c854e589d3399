// Package gateway defines the demand interfaces the pipeline consumes
// for market data, account state, order execution, and optional
// two-sided quoting — the "opaque capability set" spec.md §1 describes
// as an external collaborator. Grounded on spec.md §4.H; shaped after
// the teacher's internal/exchanges/binance client/websocket split.
package gateway

import (
	"context"

	"optiontrader/internal/domain/valueobject"
)

// MarketDataGateway subscribes to and unsubscribes from bar/tick feeds
// for a set of symbols.
type MarketDataGateway interface {
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	ContractParams(ctx context.Context, symbol string) (valueobject.ContractParams, error)
}

// AccountGateway reports exchange-side funds and position state for
// reconciliation against the strategy's own PositionAggregate.
type AccountGateway interface {
	QueryAccount(ctx context.Context) (valueobject.AccountSnapshot, error)
	QueryPositions(ctx context.Context) ([]valueobject.PositionSnapshot, error)
}

// TradeExecutionGateway submits and cancels orders. SubmitOrder returns
// the exchange-assigned order ID immediately; fill/status updates
// arrive asynchronously through the pipeline's OnOrder/OnTrade hooks.
type TradeExecutionGateway interface {
	SubmitOrder(ctx context.Context, instruction valueobject.OrderInstruction) (vtOrderID string, err error)
	CancelOrder(ctx context.Context, vtOrderID string) error
}

// QuoteGateway submits and cancels two-sided quotes, for strategies
// that make markets rather than take them. Optional: gateways that
// don't support quoting leave this unimplemented and the pipeline
// never calls it.
type QuoteGateway interface {
	SubmitQuote(ctx context.Context, quote valueobject.QuoteRequest) (quoteID string, err error)
	CancelQuote(ctx context.Context, quoteID string) error
}
