// Package risk runs the portfolio-level Greeks risk loop: a ticker-
// driven goroutine that aggregates every active position's Black-
// Scholes Greeks, checks the totals against configured thresholds, and
// latches a kill switch (with cooldown) that blocks new opens across
// the whole book when breached. Adapted from the teacher's
// internal/risk/engine.go and internal/trading/bot_risk_manager.go:
// their per-bot circuit-breaker/tradingHalted push model (alerts
// flowing in from each bot's own risk checks) generalizes here to a
// single-portfolio pull model (one ticker, one aggregate to read),
// since this runtime trades one book, not many independent bots — the
// kill-switch latch/cooldown/IsKillSwitchActive shape mirrors the
// teacher's emergencyStop/tradingHalted gating.
package risk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"optiontrader/internal/config"
	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/service/futures"
	"optiontrader/internal/domain/service/hedging"
	"optiontrader/internal/domain/service/options"
	domainrisk "optiontrader/internal/domain/service/risk"
	"optiontrader/internal/domain/valueobject"
)

// HedgeSubmitter is the subset of gateway.TradeExecutionGateway the
// manager needs to place hedge/scalp orders; declared locally like
// execution.Submitter to avoid importing internal/gateway.
type HedgeSubmitter interface {
	SubmitOrder(ctx context.Context, instruction valueobject.OrderInstruction) (vtOrderID string, err error)
}

// KillSignal is emitted on a portfolio Greeks breach.
type KillSignal struct {
	GreekName string
	Reason    string
}

// Manager periodically recomputes the whole book's Greeks exposure and
// runs the delta-hedging/gamma-scalping engines against it.
type Manager struct {
	cfg     config.RiskConfig
	logger  *slog.Logger
	factory *futures.ContractFactory
	greeks  options.GreeksCalculator
	flatVol float64

	instruments *aggregate.InstrumentManager
	positions   *aggregate.PositionAggregate
	aggregator  *domainrisk.PortfolioRiskAggregator
	delta       hedging.DeltaHedgingEngine
	scalp       hedging.GammaScalpingEngine
	gateway     HedgeSubmitter

	mu               sync.Mutex
	killSwitchActive bool
	killSwitchUntil  time.Time

	killCh chan KillSignal
}

func NewManager(
	cfg config.RiskConfig,
	factory *futures.ContractFactory,
	flatVol float64,
	instruments *aggregate.InstrumentManager,
	positions *aggregate.PositionAggregate,
	aggregator *domainrisk.PortfolioRiskAggregator,
	delta hedging.DeltaHedgingEngine,
	scalp hedging.GammaScalpingEngine,
	gateway HedgeSubmitter,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if flatVol <= 0 {
		flatVol = 0.3
	}
	return &Manager{
		cfg: cfg, factory: factory, greeks: options.NewGreeksCalculator(), flatVol: flatVol,
		instruments: instruments, positions: positions, aggregator: aggregator,
		delta: delta, scalp: scalp, gateway: gateway,
		logger: logger.With("component", "risk"), killCh: make(chan KillSignal, 10),
	}
}

// Run starts the periodic portfolio-risk loop. interval mirrors the
// teacher's 5s ticker.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.checkPortfolio(ctx, t.Unix())
		}
	}
}

// KillCh returns the channel for reading kill signals.
func (m *Manager) KillCh() <-chan KillSignal {
	return m.killCh
}

// KillSwitch satisfies execution.KillSwitch, gating new opens while a
// breach's cooldown is in effect.
func (m *Manager) KillSwitch() (blocked bool, reason string) {
	return m.IsKillSwitchActive(), "portfolio greeks limit breached"
}

// IsKillSwitchActive reports whether the cooldown window is still
// running, clearing it once expired.
func (m *Manager) IsKillSwitchActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.killSwitchActive {
		return false
	}
	if time.Now().After(m.killSwitchUntil) {
		m.killSwitchActive = false
		m.logger.Info("kill switch cooldown expired")
		return false
	}
	return true
}

// checkPortfolio rebuilds the portfolio Greeks snapshot from every
// active position, checks it against thresholds, and runs the hedge/
// scalp engines against the result.
func (m *Manager) checkPortfolio(ctx context.Context, now int64) {
	entries, underlyingPrice := m.collectGreeksEntries(now)
	if len(entries) == 0 {
		return
	}

	snapshot, events := m.aggregator.AggregatePortfolioGreeks(entries, now)
	for _, event := range events {
		m.positions.Enqueue(event)
		if breach, ok := event.(aggregate.GreeksRiskBreachEvent); ok {
			m.emitKill(breach.GreekName, "portfolio greeks limit breached")
		}
	}

	if result, hedgeEvents := m.delta.CheckAndHedge(snapshot, underlyingPrice, now); result.ShouldHedge {
		m.submitHedge(ctx, result.Instruction, hedgeEvents)
	}
	if result, scalpEvents := m.scalp.CheckAndRebalance(snapshot, underlyingPrice, now); result.ShouldRebalance {
		m.submitHedge(ctx, result.Instruction, scalpEvents)
	}
}

// collectGreeksEntries parses every active position's contract terms
// from its vt_symbol (strike/type/expiry via futures.ContractFactory),
// prices it off the underlying's latest close, and computes Greeks at a
// flat volatility — this runtime has no standalone vol-surface feed
// wired yet, so CalculateGreeks runs against m.flatVol rather than a
// per-strike interpolated implied vol (see DESIGN.md).
func (m *Manager) collectGreeksEntries(now int64) ([]domainrisk.PositionGreeksEntry, float64) {
	var entries []domainrisk.PositionGreeksEntry
	var lastUnderlyingPrice float64

	for _, position := range m.positions.GetActivePositions() {
		spec, ok := m.factory.Create(position.Symbol)
		if !ok || !spec.IsOption {
			continue
		}
		spot := m.instruments.GetLatestPrice(position.UnderlyingSymbol)
		if spot <= 0 {
			continue
		}
		lastUnderlyingPrice = spot

		years := yearsToExpiry(spec.OptionExpiry, now)
		result, err := m.greeks.CalculateGreeks(valueobject.GreeksInput{
			Spot: spot, Strike: spec.OptionStrike, Rate: 0, Vol: m.flatVol, T: years, Type: spec.OptionType,
		})
		if err != nil {
			m.logger.Warn("risk: greeks calc failed", "symbol", position.Symbol, "error", err)
			continue
		}

		entries = append(entries, domainrisk.PositionGreeksEntry{
			Symbol: position.Symbol, Greeks: result, Volume: position.Volume, Multiplier: spec.Size,
		})
	}
	return entries, lastUnderlyingPrice
}

func yearsToExpiry(expiry time.Time, now int64) float64 {
	if expiry.IsZero() {
		return 0
	}
	seconds := expiry.Unix() - now
	if seconds <= 0 {
		return 0
	}
	return float64(seconds) / (365.0 * 24 * 3600)
}

func (m *Manager) submitHedge(ctx context.Context, instruction valueobject.OrderInstruction, events []aggregate.DomainEvent) {
	if _, err := m.gateway.SubmitOrder(ctx, instruction); err != nil {
		m.logger.Error("risk: hedge order submission failed", "error", err, "symbol", instruction.Symbol)
		return
	}
	for _, event := range events {
		m.positions.Enqueue(event)
	}
}

func (m *Manager) emitKill(greekName, reason string) {
	m.mu.Lock()
	m.killSwitchActive = true
	m.killSwitchUntil = time.Now().Add(m.cfg.CooldownAfterKill)
	until := m.killSwitchUntil
	m.mu.Unlock()

	m.logger.Error("KILL SWITCH", "greek", greekName, "reason", reason, "cooldown_until", until)

	sig := KillSignal{GreekName: greekName, Reason: reason}
	select {
	case m.killCh <- sig:
	default:
		select {
		case <-m.killCh:
		default:
		}
		m.killCh <- sig
	}
}
