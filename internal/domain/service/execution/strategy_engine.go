package execution

import (
	"context"
	"fmt"
	"time"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/entity"
	"optiontrader/internal/domain/service/options"
	"optiontrader/internal/domain/service/risk"
	"optiontrader/internal/domain/valueobject"
)

// Submitter is the subset of gateway.TradeExecutionGateway the
// StrategyEngine needs; declared locally to avoid this package
// importing internal/gateway.
type Submitter interface {
	SubmitOrder(ctx context.Context, instruction valueobject.OrderInstruction) (vtOrderID string, err error)
}

// KillSwitch reports whether new opens are currently blocked (e.g. a
// risk-limit breach latched by the portfolio aggregator). A nil
// KillSwitch never blocks.
type KillSwitch func() (blocked bool, reason string)

// StrategyEngine is the "Doer": it turns a signal plus the current
// option chain into a submitted order and a pending Position/Order
// pair on the aggregate. Grounded on the teacher's
// internal/strategies/market_making/strategy.go gating sequence (stale
// data check → risk/kill-switch check → inventory/budget check →
// compute/select → place), adapted from "market-making quote refresh"
// to "signal-driven option open/close" per spec.md §4.C's
// _execute_open/_execute_close. Order-routing/splitting structure
// borrows from the teacher's internal/trading/smart_order_router.go.
type StrategyEngine struct {
	gateway    Submitter
	selector   options.OptionSelectorService
	sizing     *risk.PositionSizingService
	positions  *aggregate.PositionAggregate
	staleAfter time.Duration
	killSwitch KillSwitch
}

func NewStrategyEngine(gateway Submitter, selector options.OptionSelectorService, sizing *risk.PositionSizingService, positions *aggregate.PositionAggregate, staleAfter time.Duration, killSwitch KillSwitch) *StrategyEngine {
	return &StrategyEngine{
		gateway: gateway, selector: selector, sizing: sizing,
		positions: positions, staleAfter: staleAfter, killSwitch: killSwitch,
	}
}

// ExecuteOpen runs the full open-signal gating sequence: staleness,
// kill-switch, chain selection, then sizing (which is told whether the
// selected contract is already managed), then submission. It returns
// (nil, nil) when the signal is skipped (stale instrument, no latest
// close, no eligible contract in chain — an empty chain included — or
// zero sized volume) and a non-nil error when the kill switch blocks
// the open or the gateway rejects the order.
func (e *StrategyEngine) ExecuteOpen(
	ctx context.Context,
	instrument *entity.TargetInstrument,
	signal string,
	optionType valueobject.OptionType,
	chain []valueobject.OptionContract,
	account valueobject.AccountSnapshot,
	now int64,
) (*entity.Position, error) {
	if instrument.LastUpdateTime > 0 && now-instrument.LastUpdateTime > int64(e.staleAfter.Seconds()) {
		return nil, nil
	}
	if e.killSwitch != nil {
		if blocked, reason := e.killSwitch(); blocked {
			return nil, fmt.Errorf("execution: open rejected by kill switch: %s", reason)
		}
	}

	underlyingPrice, ok := instrument.LatestClose()
	if !ok {
		return nil, nil
	}

	contract, found := e.selector.SelectTargetOption(chain, optionType, underlyingPrice, -1, nil)
	if !found {
		return nil, nil
	}

	hasExisting := e.positions.IsManaged(contract.Symbol)
	volume := e.sizing.CalculateOpenVolume(1, instrument, account, hasExisting)
	if volume <= 0 {
		return nil, nil
	}

	instruction := valueobject.OrderInstruction{
		Symbol: contract.Symbol, Direction: valueobject.Short, Offset: valueobject.Open,
		Volume: volume, Price: contract.BidPrice, Signal: signal, Type: valueobject.OrderTypeLimit,
	}

	vtOrderID, err := e.gateway.SubmitOrder(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("execution: submit open order: %w", err)
	}

	position := e.positions.CreatePosition(contract.Symbol, instrument.Symbol, signal, volume, instruction.Direction, now)
	order := entity.NewOrder(vtOrderID, contract.Symbol, instruction.Direction, instruction.Offset, volume, instruction.Price, signal, now)
	e.positions.AddPendingOrder(order)
	return position, nil
}

// ExecuteClose submits the order that closes (all of) position. Skips
// silently if a close for this position is already working.
func (e *StrategyEngine) ExecuteClose(ctx context.Context, position *entity.Position, signal string, closePrice float64, now int64) error {
	if position == nil || !position.IsActive() {
		return nil
	}
	if e.positions.HasPendingClose(position) {
		return nil
	}

	closeDirection := valueobject.Long
	if position.Direction == valueobject.Long {
		closeDirection = valueobject.Short
	}
	volume := e.sizing.CalculateExitVolume(position.Volume, position)
	if volume <= 0 {
		return nil
	}

	instruction := valueobject.OrderInstruction{
		Symbol: position.Symbol, Direction: closeDirection, Offset: valueobject.Close,
		Volume: volume, Price: closePrice, Signal: signal, Type: valueobject.OrderTypeLimit,
	}

	vtOrderID, err := e.gateway.SubmitOrder(ctx, instruction)
	if err != nil {
		return fmt.Errorf("execution: submit close order: %w", err)
	}

	order := entity.NewOrder(vtOrderID, position.Symbol, closeDirection, valueobject.Close, volume, closePrice, signal, now)
	e.positions.AddPendingOrder(order)
	return nil
}
