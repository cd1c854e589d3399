package risk

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"optiontrader/internal/config"
	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/service/futures"
	"optiontrader/internal/domain/service/hedging"
	domainrisk "optiontrader/internal/domain/service/risk"
	"optiontrader/internal/domain/valueobject"
)

// beforeExpiry is a fixed evaluation time ahead of the sc2602 options'
// expiry (late January 2026), so the Greeks these tests assert on do not
// depend on the wall clock.
var beforeExpiry = time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC).Unix()

type fakeSubmitter struct {
	calls []valueobject.OrderInstruction
	err   error
}

func (f *fakeSubmitter) SubmitOrder(ctx context.Context, instruction valueobject.OrderInstruction) (string, error) {
	f.calls = append(f.calls, instruction)
	if f.err != nil {
		return "", f.err
	}
	return "hedge-1", nil
}

func testManager(t *testing.T, limits domainrisk.PortfolioLimits, hedgeCfg valueobject.HedgingConfig, scalpCfg valueobject.GammaScalpConfig) (*Manager, *aggregate.PositionAggregate, *aggregate.InstrumentManager, *fakeSubmitter) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	instruments := aggregate.NewInstrumentManager(100)
	positions := aggregate.NewPositionAggregate()
	aggregator := domainrisk.NewPortfolioRiskAggregator(limits)
	delta := hedging.NewDeltaHedgingEngine(hedgeCfg)
	scalp := hedging.NewGammaScalpingEngine(scalpCfg)
	submitter := &fakeSubmitter{}
	factory := futures.NewContractFactory(futures.NewExpiryCalculator())

	m := NewManager(config.RiskConfig{CooldownAfterKill: 5 * time.Minute}, factory, 0.3, instruments, positions, aggregator, delta, scalp, submitter, logger)
	return m, positions, instruments, submitter
}

func tinyLimits() domainrisk.PortfolioLimits {
	return domainrisk.PortfolioLimits{
		Position:  valueobject.RiskThresholds{Delta: 1e9, Gamma: 1e9, Vega: 1e9},
		Portfolio: valueobject.RiskThresholds{Delta: 0.01, Gamma: 1e9, Vega: 1e9},
	}
}

func looseLimits() domainrisk.PortfolioLimits {
	return domainrisk.PortfolioLimits{
		Position:  valueobject.RiskThresholds{Delta: 1e9, Gamma: 1e9, Vega: 1e9},
		Portfolio: valueobject.RiskThresholds{Delta: 1e9, Gamma: 1e9, Vega: 1e9},
	}
}

func noHedge() valueobject.HedgingConfig {
	return valueobject.HedgingConfig{TargetDelta: 0, Band: 1e9, HedgeInstrument: "fu2601.SHFE", HedgeDelta: 1, HedgeMultiplier: 1}
}

func noScalp() valueobject.GammaScalpConfig {
	return valueobject.GammaScalpConfig{RebalanceThreshold: 1e9, HedgeInstrument: "fu2601.SHFE", HedgeDelta: 1, HedgeMultiplier: 1}
}

func TestCollectGreeksEntriesSkipsFuturesPositions(t *testing.T) {
	t.Parallel()
	m, positions, instruments, _ := testManager(t, looseLimits(), noHedge(), noScalp())

	instruments.UpdateBar("fu2601.SHFE", valueobject.Bar{Close: 100})
	pos := positions.CreatePosition("fu2601.SHFE", "fu2601.SHFE", "demo_long", 1, valueobject.Long, time.Now().Unix())
	pos.Volume = 1

	entries, _ := m.collectGreeksEntries(time.Now().Unix())
	if len(entries) != 0 {
		t.Fatalf("expected 0 greeks entries for a futures position, got %d", len(entries))
	}
}

func TestCollectGreeksEntriesComputesOptionGreeks(t *testing.T) {
	t.Parallel()
	m, positions, instruments, _ := testManager(t, looseLimits(), noHedge(), noScalp())

	const underlying = "sc2602.INE"
	const optionSymbol = "sc2602C540.INE"

	instruments.UpdateBar(underlying, valueobject.Bar{Close: 540})
	pos := positions.CreatePosition(optionSymbol, underlying, "demo_call", 2, valueobject.Long, time.Now().Unix())
	pos.Volume = 2

	entries, underlyingPrice := m.collectGreeksEntries(beforeExpiry)
	if len(entries) != 1 {
		t.Fatalf("expected 1 greeks entry, got %d", len(entries))
	}
	if underlyingPrice != 540 {
		t.Errorf("underlyingPrice = %v, want 540", underlyingPrice)
	}
	if entries[0].Symbol != optionSymbol {
		t.Errorf("entry symbol = %q, want %q", entries[0].Symbol, optionSymbol)
	}
	if entries[0].Greeks.Delta <= 0 {
		t.Errorf("at-the-money call delta should be positive, got %v", entries[0].Greeks.Delta)
	}
}

func TestCheckPortfolioEmitsBreachAndKillSwitch(t *testing.T) {
	t.Parallel()
	m, positions, instruments, _ := testManager(t, tinyLimits(), noHedge(), noScalp())

	const underlying = "sc2602.INE"
	const optionSymbol = "sc2602C540.INE"
	instruments.UpdateBar(underlying, valueobject.Bar{Close: 540})
	pos := positions.CreatePosition(optionSymbol, underlying, "demo_call", 10, valueobject.Long, time.Now().Unix())
	pos.Volume = 10

	m.checkPortfolio(context.Background(), beforeExpiry)

	if !m.IsKillSwitchActive() {
		t.Error("kill switch should be active after a portfolio delta breach")
	}

	select {
	case sig := <-m.KillCh():
		if sig.GreekName != "delta" {
			t.Errorf("kill signal greek = %q, want delta", sig.GreekName)
		}
	default:
		t.Error("expected a kill signal on KillCh")
	}

	events := positions.PopDomainEvents()
	if len(events) == 0 {
		t.Fatal("expected at least one domain event enqueued")
	}
	if _, ok := events[0].(aggregate.GreeksRiskBreachEvent); !ok {
		t.Errorf("expected a GreeksRiskBreachEvent, got %T", events[0])
	}
}

func TestCheckPortfolioNoBreachUnderLooseLimits(t *testing.T) {
	t.Parallel()
	m, positions, instruments, _ := testManager(t, looseLimits(), noHedge(), noScalp())

	const underlying = "sc2602.INE"
	const optionSymbol = "sc2602C540.INE"
	instruments.UpdateBar(underlying, valueobject.Bar{Close: 540})
	pos := positions.CreatePosition(optionSymbol, underlying, "demo_call", 1, valueobject.Long, time.Now().Unix())
	pos.Volume = 1

	m.checkPortfolio(context.Background(), beforeExpiry)

	if m.IsKillSwitchActive() {
		t.Error("kill switch should not fire under loose limits")
	}
	select {
	case sig := <-m.KillCh():
		t.Errorf("unexpected kill signal: %+v", sig)
	default:
	}
}

func TestCheckPortfolioSubmitsHedgeOrder(t *testing.T) {
	t.Parallel()
	hedgeCfg := valueobject.HedgingConfig{TargetDelta: 0, Band: 0.001, HedgeInstrument: "fu2601.SHFE", HedgeDelta: 1, HedgeMultiplier: 1}
	m, positions, instruments, submitter := testManager(t, looseLimits(), hedgeCfg, noScalp())

	const underlying = "sc2602.INE"
	const optionSymbol = "sc2602C540.INE"
	instruments.UpdateBar(underlying, valueobject.Bar{Close: 540})
	pos := positions.CreatePosition(optionSymbol, underlying, "demo_call", 50, valueobject.Long, time.Now().Unix())
	pos.Volume = 50

	m.checkPortfolio(context.Background(), beforeExpiry)

	if len(submitter.calls) != 1 {
		t.Fatalf("expected 1 hedge order submitted, got %d", len(submitter.calls))
	}
	if submitter.calls[0].Symbol != "fu2601.SHFE" {
		t.Errorf("hedge order symbol = %q, want fu2601.SHFE", submitter.calls[0].Symbol)
	}
}

func TestKillSwitchCooldownExpires(t *testing.T) {
	t.Parallel()
	m, positions, instruments, _ := testManager(t, tinyLimits(), noHedge(), noScalp())
	m.cfg.CooldownAfterKill = 50 * time.Millisecond

	const underlying = "sc2602.INE"
	const optionSymbol = "sc2602C540.INE"
	instruments.UpdateBar(underlying, valueobject.Bar{Close: 540})
	pos := positions.CreatePosition(optionSymbol, underlying, "demo_call", 10, valueobject.Long, time.Now().Unix())
	pos.Volume = 10

	m.checkPortfolio(context.Background(), beforeExpiry)
	if !m.IsKillSwitchActive() {
		t.Fatal("kill switch should be active immediately after breach")
	}

	time.Sleep(100 * time.Millisecond)

	if m.IsKillSwitchActive() {
		t.Error("kill switch should have expired after cooldown")
	}
	if blocked, _ := m.KillSwitch(); blocked {
		t.Error("KillSwitch() should report unblocked after cooldown expires")
	}
}

func TestEmitKillDrainsStaleSignalWhenChannelFull(t *testing.T) {
	t.Parallel()
	m, _, _, _ := testManager(t, tinyLimits(), noHedge(), noScalp())

	for i := 0; i < cap(m.killCh); i++ {
		m.emitKill("delta", "filling capacity")
	}
	m.emitKill("gamma", "newest signal")

	var last KillSignal
	count := 0
	for {
		select {
		case sig := <-m.killCh:
			last = sig
			count++
			continue
		default:
		}
		break
	}
	if count == 0 {
		t.Fatal("expected at least one signal drained")
	}
	if last.GreekName != "gamma" {
		t.Errorf("last drained signal = %q, want the newest emit (gamma)", last.GreekName)
	}
}
