package execution

import (
	"context"
	"fmt"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/service/signal"
	"optiontrader/internal/domain/valueobject"
)

// ChainProvider supplies the current listed-option chain for an
// underlying symbol. Declared locally (rather than importing
// internal/gateway) for the same reason as Submitter in
// strategy_engine.go.
type ChainProvider interface {
	OptionChain(ctx context.Context, underlyingSymbol string) ([]valueobject.OptionContract, error)
}

// AccountProvider supplies the latest account snapshot for sizing.
type AccountProvider interface {
	QueryAccount(ctx context.Context) (valueobject.AccountSnapshot, error)
}

// SignalProcessor implements pipeline.BarProcessor: the per-symbol step
// of process_bars that checks open/close signals against the instrument
// the pipeline just updated, and hands any fire to the StrategyEngine.
// Grounded on original_source/.../application layer's per-symbol
// "check open -> check close -> execute" loop, expressed in the
// teacher's explicit-error-return idiom (no exceptions to catch).
type SignalProcessor struct {
	instruments *aggregate.InstrumentManager
	positions   *aggregate.PositionAggregate
	signals     signal.Service
	strategy    *StrategyEngine
	chain       ChainProvider
	account     AccountProvider
}

func NewSignalProcessor(instruments *aggregate.InstrumentManager, positions *aggregate.PositionAggregate, signals signal.Service, strategy *StrategyEngine, chain ChainProvider, account AccountProvider) *SignalProcessor {
	return &SignalProcessor{
		instruments: instruments, positions: positions, signals: signals,
		strategy: strategy, chain: chain, account: account,
	}
}

// ProcessSymbol checks close signals for every position tracking this
// underlying first (an existing position always gets first say on an
// ambiguous bar), then checks for a fresh open signal.
func (p *SignalProcessor) ProcessSymbol(ctx context.Context, vtSymbol string, bar valueobject.Bar) error {
	instrument := p.instruments.GetInstrument(vtSymbol)
	if instrument == nil {
		return fmt.Errorf("bar_processor: no instrument for %s", vtSymbol)
	}

	now := bar.Time

	for _, position := range p.positions.GetPositionsByUnderlying(vtSymbol) {
		if !position.IsActive() {
			continue
		}
		closeSignal, ok := p.signals.CheckCloseSignal(instrument, position)
		if !ok {
			continue
		}
		if err := p.strategy.ExecuteClose(ctx, position, closeSignal, bar.Close, now); err != nil {
			return fmt.Errorf("bar_processor: execute close for %s: %w", position.Symbol, err)
		}
	}

	openSignal, ok := p.signals.CheckOpenSignal(instrument)
	if !ok {
		return nil
	}

	optionType := valueobject.Put
	if valueobject.SignalType(openSignal).IsCallSignal() {
		optionType = valueobject.Call
	}

	chain, err := p.chain.OptionChain(ctx, vtSymbol)
	if err != nil {
		return fmt.Errorf("bar_processor: option chain for %s: %w", vtSymbol, err)
	}
	if len(chain) == 0 {
		return nil
	}

	account, err := p.account.QueryAccount(ctx)
	if err != nil {
		return fmt.Errorf("bar_processor: query account: %w", err)
	}

	if _, err := p.strategy.ExecuteOpen(ctx, instrument, openSignal, optionType, chain, account, now); err != nil {
		return fmt.Errorf("bar_processor: execute open for %s: %w", vtSymbol, err)
	}
	return nil
}
