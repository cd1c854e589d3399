// Package backtest implements the gateway interfaces against an
// in-memory simulated exchange: contract terms seeded from
// futures.ContractFactory, ticks synthesized from bar closes, and
// orders filled synchronously against the requested price. Grounded
// on original_source/.../backtesting/* (the reference implementation
// has no live exchange at all — backtest-only) and on DESIGN.md's
// Open Question resolution #2 ("synthesized tick bid/ask equal to the
// bar's close price").
package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optiontrader/internal/domain/service/futures"
	"optiontrader/internal/domain/valueobject"
)

// Gateway simulates market data, account, and execution for replay
// against a stored bar history. Every method holds mu, so it is safe
// for concurrent use (cmd/trader calls FeedBar from the replay
// goroutine and the order/chain/account methods from the pipeline).
type Gateway struct {
	mu sync.Mutex

	factory   *futures.ContractFactory
	contracts map[string]valueobject.ContractParams

	subscribed map[string]bool
	lastPrice  map[string]float64

	account   valueobject.AccountSnapshot
	positions map[string]*valueobject.PositionSnapshot

	nextOrderID int
	fills       []FillRecord

	chainStrikeCount int
	chainStrikeStep  float64
	chainExpiryDays  int
}

// FillRecord is one simulated execution, retained for post-run
// inspection (fill-rate testable properties, S1-S8 scenario replay
// assertions).
type FillRecord struct {
	VtOrderID string
	Symbol    string
	Direction valueobject.Direction
	Offset    valueobject.Offset
	Volume    int
	Price     float64
	Time      int64
}

func NewGateway(factory *futures.ContractFactory, startingBalance float64) *Gateway {
	return &Gateway{
		factory:    factory,
		contracts:  make(map[string]valueobject.ContractParams),
		subscribed: make(map[string]bool),
		lastPrice:  make(map[string]float64),
		account:    valueobject.AccountSnapshot{AccountID: "backtest", Balance: startingBalance, Available: startingBalance},
		positions:  make(map[string]*valueobject.PositionSnapshot),

		chainStrikeCount: 10,
		chainStrikeStep:  1.0,
		chainExpiryDays:  30,
	}
}

// Subscribe satisfies gateway.MarketDataGateway: it seeds contract
// terms for every newly-subscribed symbol via ContractFactory, since
// the simulated exchange has no separate reference-data feed to query.
func (g *Gateway) Subscribe(ctx context.Context, symbols []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sym := range symbols {
		g.subscribed[sym] = true
		if _, ok := g.contracts[sym]; ok {
			continue
		}
		spec, ok := g.factory.Create(sym)
		if !ok {
			return fmt.Errorf("backtest gateway: cannot parse contract for %q", sym)
		}
		g.contracts[sym] = valueobject.ContractParams{
			Symbol: spec.Symbol, Size: spec.Size, PriceTick: spec.PriceTick, MinVolume: spec.MinVolume,
		}
	}
	return nil
}

// Unsubscribe satisfies gateway.MarketDataGateway.
func (g *Gateway) Unsubscribe(ctx context.Context, symbols []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sym := range symbols {
		delete(g.subscribed, sym)
	}
	return nil
}

// ContractParams satisfies gateway.MarketDataGateway.
func (g *Gateway) ContractParams(ctx context.Context, symbol string) (valueobject.ContractParams, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	params, ok := g.contracts[symbol]
	if !ok {
		return valueobject.ContractParams{}, fmt.Errorf("backtest gateway: unknown contract %q", symbol)
	}
	return params, nil
}

// FeedBar advances the simulated tape for symbol: it records the
// latest close as the synthesized bid=ask price (Open Question
// resolution #2). cmd/trader's replay calls it for every bar of a
// batch before handing that batch to the pipeline's OnBars.
func (g *Gateway) FeedBar(symbol string, bar valueobject.Bar) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastPrice[symbol] = bar.Close
}

// OptionChain synthesizes a symmetric strike ladder around the
// underlying's last synthesized price, since the simulated exchange has
// no real listed-options reference data to query. BidPrice/AskPrice are
// both set to the underlying close (the same "no spread" simplification
// FeedBar applies to the underlying itself), and BidVolume/AskVolume
// are a fixed quoteVolume well above the selector's bid-volume floor,
// so the selector's liquidity filter and OTM ranking run in a backtest.
// Synthesized symbols follow the same vt_symbol grammar
// futures.ContractFactory.Create expects ("<underlying><C|P><strike>.
// <exchange>"), so the risk runtime's Greeks wiring can parse a
// position's contract terms identically in live and backtest.
func (g *Gateway) OptionChain(ctx context.Context, underlyingSymbol string) ([]valueobject.OptionContract, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	spot, ok := g.lastPrice[underlyingSymbol]
	if !ok || spot <= 0 {
		return nil, fmt.Errorf("backtest gateway: no price yet for %q", underlyingSymbol)
	}

	symbol, exchange, _, ok := futures.ParseVtSymbol(underlyingSymbol)
	if !ok {
		return nil, fmt.Errorf("backtest gateway: cannot parse underlying vt_symbol %q", underlyingSymbol)
	}

	const quoteVolume = 1000
	expiry := time.Now().AddDate(0, 0, g.chainExpiryDays).Unix()
	baseStrike := roundToStep(spot, g.chainStrikeStep)

	contracts := make([]valueobject.OptionContract, 0, g.chainStrikeCount*2)
	for i := -g.chainStrikeCount / 2; i <= g.chainStrikeCount/2; i++ {
		strike := baseStrike + float64(i)*g.chainStrikeStep
		if strike <= 0 {
			continue
		}
		for _, optType := range []valueobject.OptionType{valueobject.Call, valueobject.Put} {
			typeChar := "P"
			if optType == valueobject.Call {
				typeChar = "C"
			}
			contracts = append(contracts, valueobject.OptionContract{
				Symbol:       fmt.Sprintf("%s%s%.2f.%s", symbol, typeChar, strike, exchange),
				Underlying:   underlyingSymbol,
				Type:         optType,
				Strike:       strike,
				ExpiryUnix:   expiry,
				BidPrice:     spot,
				BidVolume:    quoteVolume,
				AskPrice:     spot,
				AskVolume:    quoteVolume,
				DaysToExpiry: g.chainExpiryDays,
			})
		}
	}
	return contracts, nil
}

func roundToStep(price, step float64) float64 {
	if step <= 0 {
		return price
	}
	return float64(int(price/step+0.5)) * step
}

// QueryAccount satisfies gateway.AccountGateway.
func (g *Gateway) QueryAccount(ctx context.Context) (valueobject.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account, nil
}

// QueryPositions satisfies gateway.AccountGateway.
func (g *Gateway) QueryPositions(ctx context.Context) ([]valueobject.PositionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]valueobject.PositionSnapshot, 0, len(g.positions))
	for _, p := range g.positions {
		out = append(out, *p)
	}
	return out, nil
}

// SubmitOrder satisfies gateway.TradeExecutionGateway: fills
// synchronously and in full at the instruction's own price (the
// synthesized tick has no spread to cross), updating the simulated
// position book immediately. Fills do not change the account snapshot,
// which keeps its starting balance.
func (g *Gateway) SubmitOrder(ctx context.Context, instruction valueobject.OrderInstruction) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	price := instruction.Price
	if price <= 0 {
		price = g.lastPrice[instruction.Symbol]
	}
	if price <= 0 {
		return "", fmt.Errorf("backtest gateway: no price available to fill %q", instruction.Symbol)
	}

	g.nextOrderID++
	vtOrderID := fmt.Sprintf("bt-%d", g.nextOrderID)

	pos, ok := g.positions[instruction.Symbol]
	if !ok {
		pos = &valueobject.PositionSnapshot{Symbol: instruction.Symbol}
		g.positions[instruction.Symbol] = pos
	}
	if instruction.IsOpen() {
		pos.Direction = valueobject.PositionDirection(instruction.Direction)
		pos.Volume += float64(instruction.Volume)
	} else {
		pos.Volume -= float64(instruction.Volume)
		if pos.Volume <= 0 {
			delete(g.positions, instruction.Symbol)
		}
	}

	g.fills = append(g.fills, FillRecord{
		VtOrderID: vtOrderID, Symbol: instruction.Symbol, Direction: instruction.Direction,
		Offset: instruction.Offset, Volume: instruction.Volume, Price: price,
		Time: time.Now().Unix(),
	})
	return vtOrderID, nil
}

// CancelOrder satisfies gateway.TradeExecutionGateway. Every simulated
// order fills synchronously inside SubmitOrder, so there is never a
// working order left to cancel; this always succeeds as a no-op.
func (g *Gateway) CancelOrder(ctx context.Context, vtOrderID string) error {
	return nil
}

// Fills returns every simulated execution recorded so far, for
// post-run assertions.
func (g *Gateway) Fills() []FillRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]FillRecord(nil), g.fills...)
}
