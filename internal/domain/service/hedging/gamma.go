package hedging

import (
	"math"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/valueobject"
)

// ScalpResult is the outcome of a gamma-scalping rebalance check.
type ScalpResult struct {
	ShouldRebalance bool
	Rejected        bool
	RejectReason    string
	Volume          int
	Direction       valueobject.Direction
	Instruction     valueobject.OrderInstruction
}

// GammaScalpingEngine rebalances delta to zero while holding positive
// gamma exposure, once the delta deviation exceeds a threshold.
type GammaScalpingEngine struct {
	cfg valueobject.GammaScalpConfig
}

func NewGammaScalpingEngine(cfg valueobject.GammaScalpConfig) GammaScalpingEngine {
	return GammaScalpingEngine{cfg: cfg}
}

// CheckAndRebalance returns whether a rebalancing trade is needed and,
// if so, the order instruction plus the GammaScalpEvent.
func (e GammaScalpingEngine) CheckAndRebalance(greeks valueobject.PortfolioGreeks, currentPrice float64, now int64) (ScalpResult, []aggregate.DomainEvent) {
	cfg := e.cfg

	if greeks.Gamma <= 0 {
		return ScalpResult{Rejected: true, RejectReason: "portfolio gamma is non-positive"}, nil
	}
	if cfg.HedgeMultiplier <= 0 {
		return ScalpResult{Rejected: true, RejectReason: "invalid config: hedge instrument multiplier <= 0"}, nil
	}
	if cfg.HedgeDelta == 0 {
		return ScalpResult{Rejected: true, RejectReason: "hedge instrument delta is zero"}, nil
	}
	if currentPrice <= 0 {
		return ScalpResult{Rejected: true, RejectReason: "current price <= 0"}, nil
	}

	portfolioDelta := greeks.Delta
	if math.Abs(portfolioDelta) <= cfg.RebalanceThreshold {
		return ScalpResult{}, nil
	}

	rawVolume := -portfolioDelta / (cfg.HedgeDelta * cfg.HedgeMultiplier)
	rebalanceVolume := int(math.Round(rawVolume))
	if rebalanceVolume == 0 {
		return ScalpResult{}, nil
	}

	direction := valueobject.Long
	if rebalanceVolume < 0 {
		direction = valueobject.Short
		rebalanceVolume = -rebalanceVolume
	}

	instruction := valueobject.OrderInstruction{
		Symbol:    cfg.HedgeInstrument,
		Direction: direction,
		Offset:    valueobject.Open,
		Volume:    rebalanceVolume,
		Price:     currentPrice,
		Signal:    "gamma_scalp",
	}

	result := ScalpResult{
		ShouldRebalance: true,
		Volume:          rebalanceVolume,
		Direction:       direction,
		Instruction:     instruction,
	}

	sign := 1.0
	if direction == valueobject.Short {
		sign = -1.0
	}
	expectedDeltaAfter := portfolioDelta + float64(rebalanceVolume)*cfg.HedgeDelta*cfg.HedgeMultiplier*sign

	event := aggregate.NewGammaScalpEvent(now, rebalanceVolume, string(direction), portfolioDelta, expectedDeltaAfter)
	return result, []aggregate.DomainEvent{event}
}
