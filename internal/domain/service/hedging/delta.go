// Package hedging implements the delta-hedging and gamma-scalping
// domain services that convert portfolio-level Greeks imbalances into
// hedge-instrument order instructions. Grounded on
// original_source/.../domain_service/{delta_hedging_engine,gamma_scalping_engine}.py.
package hedging

import (
	"fmt"
	"math"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/valueobject"
)

// HedgeResult is the outcome of a delta-hedging check.
type HedgeResult struct {
	ShouldHedge bool
	Volume      int
	Direction   valueobject.Direction
	Instruction valueobject.OrderInstruction
	Reason      string
}

// DeltaHedgingEngine monitors portfolio delta exposure and emits a
// hedge instruction once the deviation from target exceeds the
// configured band.
type DeltaHedgingEngine struct {
	cfg valueobject.HedgingConfig
}

func NewDeltaHedgingEngine(cfg valueobject.HedgingConfig) DeltaHedgingEngine {
	return DeltaHedgingEngine{cfg: cfg}
}

// CheckAndHedge returns whether a hedge trade is needed and, if so,
// the order instruction plus the HedgeExecutedEvent describing the
// expected post-hedge delta.
func (e DeltaHedgingEngine) CheckAndHedge(greeks valueobject.PortfolioGreeks, currentPrice float64, now int64) (HedgeResult, []aggregate.DomainEvent) {
	cfg := e.cfg

	if cfg.HedgeMultiplier <= 0 {
		return HedgeResult{Reason: "invalid config: hedge instrument multiplier <= 0"}, nil
	}
	if cfg.HedgeDelta == 0 {
		return HedgeResult{Reason: "hedge instrument delta is zero"}, nil
	}
	if currentPrice <= 0 {
		return HedgeResult{Reason: "current price <= 0"}, nil
	}

	deltaDiff := greeks.Delta - cfg.TargetDelta
	if math.Abs(deltaDiff) <= cfg.Band {
		return HedgeResult{Reason: "delta deviation within tolerance band"}, nil
	}

	rawVolume := (cfg.TargetDelta - greeks.Delta) / (cfg.HedgeDelta * cfg.HedgeMultiplier)
	hedgeVolume := int(math.Round(rawVolume))
	if hedgeVolume == 0 {
		return HedgeResult{Reason: "hedge volume rounds to zero"}, nil
	}

	direction := valueobject.Long
	if hedgeVolume < 0 {
		direction = valueobject.Short
		hedgeVolume = -hedgeVolume
	}

	instruction := valueobject.OrderInstruction{
		Symbol:    cfg.HedgeInstrument,
		Direction: direction,
		Offset:    valueobject.Open,
		Volume:    hedgeVolume,
		Price:     currentPrice,
		Signal:    "delta_hedge",
	}

	result := HedgeResult{
		ShouldHedge: true,
		Volume:      hedgeVolume,
		Direction:   direction,
		Instruction: instruction,
		Reason:      fmt.Sprintf("delta deviation %.4f exceeds band %.4f", deltaDiff, cfg.Band),
	}

	sign := 1.0
	if direction == valueobject.Short {
		sign = -1.0
	}
	expectedDeltaAfter := greeks.Delta + float64(hedgeVolume)*cfg.HedgeDelta*cfg.HedgeMultiplier*sign

	event := aggregate.NewHedgeExecutedEvent(now, hedgeVolume, string(direction), greeks.Delta, expectedDeltaAfter)
	return result, []aggregate.DomainEvent{event}
}
