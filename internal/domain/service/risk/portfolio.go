package risk

import (
	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/valueobject"
)

// PortfolioLimits pairs the per-position and whole-book Greeks
// thresholds the aggregator checks against.
type PortfolioLimits struct {
	Position  valueobject.RiskThresholds
	Portfolio valueobject.RiskThresholds
}

// PositionGreeksEntry is one active position's Greeks, scaled by its
// held volume and contract multiplier.
type PositionGreeksEntry struct {
	Symbol     string
	Greeks     valueobject.GreeksResult
	Volume     int
	Multiplier float64
}

// RiskCheckResult is the outcome of a pre-trade Greeks check.
type RiskCheckResult struct {
	Passed       bool
	RejectReason string
}

// PortfolioRiskAggregator performs the pre-trade single-position Greeks
// check and the post-trade portfolio-level Greeks aggregation, emitting
// GreeksRiskBreachEvent when a portfolio threshold is crossed. Grounded
// on original_source/.../domain_service/risk/portfolio_risk_aggregator.py.
type PortfolioRiskAggregator struct {
	thresholds PortfolioLimits
}

func NewPortfolioRiskAggregator(thresholds PortfolioLimits) *PortfolioRiskAggregator {
	return &PortfolioRiskAggregator{thresholds: thresholds}
}

// CheckPositionRisk validates that opening volume lots of a contract
// with the given per-contract Greeks would not exceed any single-
// position limit.
func (a *PortfolioRiskAggregator) CheckPositionRisk(greeks valueobject.GreeksResult, volume int, multiplier float64) RiskCheckResult {
	weightedDelta := absf(greeks.Delta * float64(volume) * multiplier)
	weightedGamma := absf(greeks.Gamma * float64(volume) * multiplier)
	weightedVega := absf(greeks.Vega * float64(volume) * multiplier)

	switch {
	case weightedDelta > a.thresholds.Position.Delta:
		return RiskCheckResult{Passed: false, RejectReason: "position delta limit exceeded"}
	case weightedGamma > a.thresholds.Position.Gamma:
		return RiskCheckResult{Passed: false, RejectReason: "position gamma limit exceeded"}
	case weightedVega > a.thresholds.Position.Vega:
		return RiskCheckResult{Passed: false, RejectReason: "position vega limit exceeded"}
	}
	return RiskCheckResult{Passed: true}
}

// AggregatePortfolioGreeks sums every active position's volume- and
// multiplier-weighted Greeks into one portfolio snapshot, and returns
// any GreeksRiskBreachEvent triggered by the totals.
func (a *PortfolioRiskAggregator) AggregatePortfolioGreeks(positions []PositionGreeksEntry, now int64) (valueobject.PortfolioGreeks, []aggregate.DomainEvent) {
	var snapshot valueobject.PortfolioGreeks
	for _, entry := range positions {
		weight := float64(entry.Volume) * entry.Multiplier
		snapshot.Delta += entry.Greeks.Delta * weight
		snapshot.Gamma += entry.Greeks.Gamma * weight
		snapshot.Theta += entry.Greeks.Theta * weight
		snapshot.Vega += entry.Greeks.Vega * weight
	}

	var events []aggregate.DomainEvent
	if absf(snapshot.Delta) > a.thresholds.Portfolio.Delta {
		events = append(events, newGreeksRiskBreach(now, "delta", snapshot.Delta, a.thresholds.Portfolio.Delta))
	}
	if absf(snapshot.Gamma) > a.thresholds.Portfolio.Gamma {
		events = append(events, newGreeksRiskBreach(now, "gamma", snapshot.Gamma, a.thresholds.Portfolio.Gamma))
	}
	if absf(snapshot.Vega) > a.thresholds.Portfolio.Vega {
		events = append(events, newGreeksRiskBreach(now, "vega", snapshot.Vega, a.thresholds.Portfolio.Vega))
	}
	return snapshot, events
}

func newGreeksRiskBreach(now int64, greekName string, current, limit float64) aggregate.DomainEvent {
	return aggregate.NewGreeksRiskBreachEvent(now, aggregate.GreeksRiskPortfolio, greekName, current, limit)
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
