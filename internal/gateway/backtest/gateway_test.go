package backtest

import (
	"testing"

	"optiontrader/internal/domain/service/futures"
	"optiontrader/internal/domain/valueobject"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	factory := futures.NewContractFactory(futures.NewExpiryCalculator())
	return NewGateway(factory, 1_000_000)
}

func TestSubscribeSeedsContractParams(t *testing.T) {
	g := newTestGateway(t)

	if err := g.Subscribe(t.Context(), []string{"sc2602.INE"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	params, err := g.ContractParams(t.Context(), "sc2602.INE")
	if err != nil {
		t.Fatalf("ContractParams: %v", err)
	}
	if params.Size <= 0 {
		t.Errorf("expected a positive contract size, got %v", params.Size)
	}
}

func TestSubscribeUnknownSymbolFails(t *testing.T) {
	g := newTestGateway(t)
	if err := g.Subscribe(t.Context(), []string{"not-a-valid-symbol"}); err == nil {
		t.Fatal("expected an error for an unparseable vt_symbol")
	}
}

func TestFeedBarSetsSynthesizedTickAtClose(t *testing.T) {
	g := newTestGateway(t)
	g.FeedBar("sc2602.INE", valueobject.Bar{Close: 543.21})

	account, err := g.SubmitOrder(t.Context(), valueobject.OrderInstruction{
		Symbol: "sc2602.INE", Direction: valueobject.Long, Offset: valueobject.Open, Volume: 1,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if account == "" {
		t.Fatal("expected a vt_order_id")
	}

	fills := g.Fills()
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Price != 543.21 {
		t.Errorf("fill price = %v, want the synthesized tick (bar close) 543.21", fills[0].Price)
	}
}

func TestSubmitOrderWithNoPriceAvailableFails(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.SubmitOrder(t.Context(), valueobject.OrderInstruction{
		Symbol: "sc2602.INE", Direction: valueobject.Long, Offset: valueobject.Open, Volume: 1,
	})
	if err == nil {
		t.Fatal("expected an error when no synthesized tick has been fed yet")
	}
}

func TestSubmitOrderUpdatesPositionBook(t *testing.T) {
	g := newTestGateway(t)
	g.FeedBar("sc2602.INE", valueobject.Bar{Close: 100})

	if _, err := g.SubmitOrder(t.Context(), valueobject.OrderInstruction{
		Symbol: "sc2602.INE", Direction: valueobject.Long, Offset: valueobject.Open, Volume: 5,
	}); err != nil {
		t.Fatalf("SubmitOrder open: %v", err)
	}

	positions, err := g.QueryPositions(t.Context())
	if err != nil {
		t.Fatalf("QueryPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Volume != 5 {
		t.Fatalf("expected one position with volume 5, got %+v", positions)
	}

	if _, err := g.SubmitOrder(t.Context(), valueobject.OrderInstruction{
		Symbol: "sc2602.INE", Direction: valueobject.Long, Offset: valueobject.Close, Volume: 5,
	}); err != nil {
		t.Fatalf("SubmitOrder close: %v", err)
	}

	positions, err = g.QueryPositions(t.Context())
	if err != nil {
		t.Fatalf("QueryPositions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected the position to be removed once fully closed, got %+v", positions)
	}
}

func TestOptionChainSynthesizesParseableSymbols(t *testing.T) {
	g := newTestGateway(t)
	g.FeedBar("sc2602.INE", valueobject.Bar{Close: 540})

	contracts, err := g.OptionChain(t.Context(), "sc2602.INE")
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if len(contracts) == 0 {
		t.Fatal("expected a non-empty synthesized strike ladder")
	}

	factory := futures.NewContractFactory(futures.NewExpiryCalculator())
	for _, c := range contracts {
		spec, ok := factory.Create(c.Symbol)
		if !ok {
			t.Fatalf("synthesized option symbol %q does not parse through ContractFactory", c.Symbol)
		}
		if !spec.IsOption {
			t.Errorf("symbol %q parsed as a futures contract, want an option", c.Symbol)
		}
		if c.BidPrice != 540 || c.AskPrice != 540 {
			t.Errorf("contract %q bid/ask = %v/%v, want 540/540 (no-spread simplification)", c.Symbol, c.BidPrice, c.AskPrice)
		}
	}
}

func TestOptionChainWithNoPriceFails(t *testing.T) {
	g := newTestGateway(t)
	if _, err := g.OptionChain(t.Context(), "sc2602.INE"); err == nil {
		t.Fatal("expected an error when the underlying has no synthesized tick yet")
	}
}
