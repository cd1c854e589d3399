// optiontrader is a long-running event-driven trading runtime for
// exchange-traded futures and options.
//
// Architecture:
//
//	main.go                         — supervisor: loads config, runs one
//	                                   attempt under context, restarts
//	                                   with backoff on a non-clean exit
//	internal/pipeline               — single-goroutine event pipeline:
//	                                   on-bars housekeeping, process_bars
//	internal/domain/aggregate       — InstrumentManager/PositionAggregate
//	internal/domain/indicator       — EMA/MACD/TD/dullness/divergence
//	internal/domain/service/signal  — open/close signal generation
//	internal/domain/service/execution — StrategyEngine + SignalProcessor
//	internal/domain/service/risk    — sizing + portfolio Greeks aggregator
//	internal/domain/service/options — OTM selection + Greeks calculator
//	internal/domain/service/hedging — delta-hedging + gamma-scalping
//	internal/risk                   — portfolio Greeks loop + kill switch
//	internal/gateway/{live,backtest} — exchange connectivity
//	internal/persistence             — state/migration/history/monitor
//	internal/notifier                — webhook alerts on domain events
//
// Adapted from the teacher's cmd/trading-bots/main.go: the single
// load-config/build-logger/run/wait-for-signal/stop body becomes one
// run attempt, wrapped in an exponential-backoff supervisor loop per
// spec.md §7 (max 10 restarts, counter reset after 1h of uptime,
// SIGHUP triggers an in-place restart rather than a process exit).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optiontrader/internal/config"
	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/indicator"
	"optiontrader/internal/domain/service/execution"
	"optiontrader/internal/domain/service/futures"
	"optiontrader/internal/domain/service/hedging"
	"optiontrader/internal/domain/service/options"
	"optiontrader/internal/domain/service/signal"
	domainrisk "optiontrader/internal/domain/service/risk"
	"optiontrader/internal/domain/valueobject"
	"optiontrader/internal/gateway/backtest"
	"optiontrader/internal/gateway/live"
	"optiontrader/internal/notifier"
	"optiontrader/internal/persistence"
	"optiontrader/internal/persistence/history"
	"optiontrader/internal/persistence/monitor"
	"optiontrader/internal/persistence/state"
	"optiontrader/internal/pipeline"
	runtimerisk "optiontrader/internal/risk"
)

const (
	maxRestarts         = 10
	uptimeResetsCounter = 1 * time.Hour
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("OPT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	supervise(logger, cfg)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// supervise runs the runtime under a restart loop with exponential
// backoff: each crash doubles the wait (capped at 1 minute), the
// restart counter resets once an attempt has stayed up for
// uptimeResetsCounter, and it allows maxRestarts consecutive restarts,
// exiting on the next consecutive failure after that. SIGHUP restarts
// the current attempt in place without
// counting against the budget; SIGINT/SIGTERM stop the supervisor
// entirely.
func supervise(logger *slog.Logger, cfg *config.Config) {
	restarts := 0
	backoff := time.Second

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		ctx, cancel := context.WithCancel(context.Background())
		runDone := make(chan error, 1)
		startedAt := time.Now()

		go func() { runDone <- runOnce(ctx, logger, cfg) }()

		var exitErr error
		stop := false
	waitLoop:
		for {
			select {
			case exitErr = <-runDone:
				break waitLoop
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					logger.Info("received SIGHUP, restarting in place")
					cancel()
					<-runDone
					exitErr = nil
					break waitLoop
				default:
					logger.Info("received shutdown signal", "signal", sig.String())
					cancel()
					exitErr = <-runDone
					stop = true
					break waitLoop
				}
			}
		}
		cancel()

		if stop {
			if exitErr != nil && !errors.Is(exitErr, context.Canceled) {
				logger.Error("runtime exited with error during shutdown", "error", exitErr)
			}
			return
		}

		if time.Since(startedAt) >= uptimeResetsCounter {
			restarts = 0
			backoff = time.Second
		}

		if exitErr == nil || errors.Is(exitErr, context.Canceled) {
			// SIGHUP in-place restart: no backoff, no counter increment.
			continue
		}

		restarts++
		if restarts > maxRestarts {
			logger.Error("exceeded max restart attempts, giving up", "restarts", restarts, "error", exitErr)
			os.Exit(1)
		}
		logger.Error("runtime crashed, restarting", "error", exitErr, "attempt", restarts, "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

// runOnce wires every component and runs until ctx is cancelled. Returns
// nil on a clean ctx-cancelled shutdown and a non-nil error only on a
// hard wiring/startup failure (the pipeline's own per-symbol/per-cycle
// errors are logged internally and never surface here).
func runOnce(ctx context.Context, logger *slog.Logger, cfg *config.Config) (runErr error) {
	expiry := futures.NewExpiryCalculator()
	factory := futures.NewContractFactory(expiry)

	instruments := aggregate.NewInstrumentManager(cfg.Strategy.BarCapacity)
	positions := aggregate.NewPositionAggregate()
	indicators := indicator.NewService()
	if cfg.Strategy.EMAFast > 0 {
		indicators.EMAFast = cfg.Strategy.EMAFast
	}
	if cfg.Strategy.EMASlow > 0 {
		indicators.EMASlow = cfg.Strategy.EMASlow
	}
	if cfg.Strategy.MACDSignal > 0 {
		indicators.MACDSignal = cfg.Strategy.MACDSignal
	}
	signals := signal.NewDemoService()

	sizing := domainrisk.NewPositionSizingService(domainrisk.DefaultSizingConfig(), logger)
	selector := options.NewOptionSelectorService(options.DefaultSelectorConfig())

	aggregator := domainrisk.NewPortfolioRiskAggregator(domainrisk.PortfolioLimits{
		Position:  valueobject.RiskThresholds{Delta: cfg.Risk.MaxDeltaExposure, Gamma: cfg.Risk.MaxGammaExposure, Vega: cfg.Risk.MaxVegaExposure},
		Portfolio: valueobject.RiskThresholds{Delta: cfg.Risk.MaxDeltaExposure, Gamma: cfg.Risk.MaxGammaExposure, Vega: cfg.Risk.MaxVegaExposure},
	})
	deltaEngine := hedging.NewDeltaHedgingEngine(valueobject.HedgingConfig{
		Band: cfg.Hedging.DeltaBand, HedgeInstrument: cfg.Hedging.HedgeInstrument, HedgeDelta: 1, HedgeMultiplier: 1,
	})
	scalpEngine := hedging.NewGammaScalpingEngine(valueobject.GammaScalpConfig{
		RebalanceThreshold: cfg.Scalp.ScalpBandPct, HedgeInstrument: cfg.Hedging.HedgeInstrument, HedgeDelta: 1, HedgeMultiplier: 1,
	})

	// Restore prior state before anything reads instruments/positions.
	stateRepo := state.NewRepository(cfg.Persistence.StatePath, cfg.Persistence.StateCompress)
	if snap, ok, err := stateRepo.Load(); err != nil {
		logger.Warn("state: failed to load prior snapshot, starting fresh", "error", err)
	} else if ok {
		instruments = aggregate.FromInstrumentManagerSnapshot(snap.InstrumentManager, cfg.Strategy.BarCapacity)
		positions = aggregate.FromPositionAggregateSnapshot(snap.PositionAggregate)
		logger.Info("state: restored prior snapshot", "saved_at", snap.SavedAt)
	}
	autosave := persistence.NewAutoSaveService(stateRepo, instruments, positions, cfg.Persistence.AutosaveInterval, logger)

	// Build the exchange connectivity leg (REST/account/chain/order entry
	// is gateway-mode-agnostic to every consumer below; only the bar feed
	// wiring after the pipeline exists differs between modes).
	execGateway, chainGateway, accountGateway, gw, err := buildTradeGateway(cfg, logger, factory)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	riskManager := runtimerisk.NewManager(cfg.Risk, factory, 0.3, instruments, positions, aggregator, deltaEngine, scalpEngine, execGateway, logger)

	strategyEngine := execution.NewStrategyEngine(execGateway, selector, sizing, positions, cfg.Strategy.StaleInstrumentTimeout, func() (bool, string) { return riskManager.KillSwitch() })
	processor := execution.NewSignalProcessor(instruments, positions, signals, strategyEngine, chainGateway, accountGateway)

	pl := pipeline.New(pipeline.Config{
		Instruments: instruments, Positions: positions, Indicators: indicators, Signals: signals,
		Processor: processor, Logger: logger, Persister: autosave, SaveInterval: cfg.Persistence.AutosaveInterval,
	})
	pl.OnInit()

	var monitorRepo *monitor.Repository
	if cfg.Persistence.MonitorDSN != "" {
		monitorRepo, err = monitor.Open(cfg.Persistence.MonitorDSN, logger)
		if err != nil {
			return fmt.Errorf("open monitor repository: %w", err)
		}
		defer monitorRepo.Close()
	}

	var historyRepo *history.HistoryDataRepository
	if cfg.Persistence.HistoryDSN != "" {
		historyRepo, err = history.Open(cfg.Persistence.HistoryDSN)
		if err != nil {
			return fmt.Errorf("open history repository: %w", err)
		}
		defer historyRepo.Close()
	}

	var wg waitGroup
	wg.goCtx(ctx, func(ctx context.Context) { pl.OnStart(ctx) })
	wg.goCtx(ctx, func(ctx context.Context) { riskManager.Run(ctx, 5*time.Second) })

	if monitorRepo != nil {
		monitorEvents, notifyEvents := fanOutEvents(ctx, pl.Events())
		worker := monitor.NewWorker(monitorRepo, cfg.Persistence.MonitorVariant, monitorEvents)
		wg.goCtx(ctx, func(ctx context.Context) { worker.Run(ctx) })

		if cfg.Notifier.Enabled {
			n := notifier.New(notifier.Config{WebhookURL: cfg.Notifier.WebhookURL, MinInterval: cfg.Notifier.MinInterval}, logger)
			notifyWorker := notifier.NewWorker(n, notifyEvents)
			wg.goCtx(ctx, func(ctx context.Context) { notifyWorker.Run(ctx) })
		}
	} else if cfg.Notifier.Enabled {
		n := notifier.New(notifier.Config{WebhookURL: cfg.Notifier.WebhookURL, MinInterval: cfg.Notifier.MinInterval}, logger)
		notifyWorker := notifier.NewWorker(n, pl.Events())
		wg.goCtx(ctx, func(ctx context.Context) { notifyWorker.Run(ctx) })
	}

	if err := startBarFeed(ctx, cfg, gw, historyRepo, pl, &wg, logger); err != nil {
		return fmt.Errorf("start bar feed: %w", err)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	logger.Info("optiontrader started", "mode", cfg.Gateway.Mode, "symbols", cfg.Strategy.Symbols, "dry_run", cfg.DryRun)

	<-ctx.Done()
	wg.wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pl.OnStop(shutdownCtx)

	return nil
}

// fanOutEvents duplicates a single-producer event stream onto two
// output channels, since both monitor.Worker and notifier.Worker read
// independently (spec.md §9's "coroutine -> actor" fan-out) but a
// plain channel only delivers each value to one reader.
func fanOutEvents(ctx context.Context, in <-chan aggregate.DomainEvent) (a, b <-chan aggregate.DomainEvent) {
	outA := make(chan aggregate.DomainEvent, cap(in))
	outB := make(chan aggregate.DomainEvent, cap(in))
	go func() {
		defer close(outA)
		defer close(outB)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-in:
				if !ok {
					return
				}
				select {
				case outA <- event:
				case <-ctx.Done():
					return
				}
				select {
				case outB <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return outA, outB
}

// buildTradeGateway constructs the REST/account/chain/order-entry leg
// for either gateway mode. The bar feed (live WebSocket vs backtest
// history replay) is wired separately in startBarFeed, once the
// pipeline it feeds exists.
func buildTradeGateway(cfg *config.Config, logger *slog.Logger, factory *futures.ContractFactory) (
	execution.Submitter, execution.ChainProvider, execution.AccountProvider, any, error,
) {
	switch cfg.Gateway.Mode {
	case "live":
		client := live.NewClient(live.ClientConfig{
			BaseURL: cfg.Gateway.BaseURL, APIKey: cfg.Gateway.APIKey, APISecret: cfg.Gateway.APISecret,
			Timeout: cfg.Gateway.RequestTimeout, RetryCount: cfg.Gateway.RetryCount, DryRun: cfg.DryRun,
		}, logger)
		return client, client, client, client, nil

	case "backtest":
		gw := backtest.NewGateway(factory, cfg.Gateway.BacktestBalance)
		return gw, gw, gw, gw, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown gateway mode %q", cfg.Gateway.Mode)
	}
}

// startBarFeed wires the bar-ingestion leg onto pl once it exists:
// live mode opens a reconnecting WebSocket feed whose BarHandler is
// pl.OnBars; backtest mode replays stored history through the backtest
// gateway's synthesized tick (FeedBar) and pl.OnBars together, so both
// legs observe the same price the pipeline just processed.
func startBarFeed(ctx context.Context, cfg *config.Config, gw any, historyRepo *history.HistoryDataRepository, pl *pipeline.Pipeline, wg *waitGroup, logger *slog.Logger) error {
	switch cfg.Gateway.Mode {
	case "live":
		client, ok := gw.(*live.Client)
		if !ok {
			return fmt.Errorf("live gateway: unexpected client type %T", gw)
		}
		onBar := func(vtSymbol string, bar valueobject.Bar) {
			pl.OnBars(map[string]valueobject.Bar{vtSymbol: bar}, bar.Time)
		}
		feed := live.NewMarketFeed(cfg.Gateway.FeedURL, onBar, logger)
		liveGateway := live.NewGateway(client, feed)
		if err := liveGateway.Subscribe(ctx, cfg.Strategy.Symbols); err != nil {
			return fmt.Errorf("subscribe symbols: %w", err)
		}
		wg.goCtx(ctx, func(ctx context.Context) {
			if err := liveGateway.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("live market feed exited", "error", err)
			}
		})
		return nil

	case "backtest":
		btGateway, ok := gw.(*backtest.Gateway)
		if !ok {
			return fmt.Errorf("backtest gateway: unexpected type %T", gw)
		}
		if err := btGateway.Subscribe(ctx, cfg.Strategy.Symbols); err != nil {
			return fmt.Errorf("subscribe symbols: %w", err)
		}
		if historyRepo == nil {
			logger.Warn("backtest mode with no history DSN configured, nothing will replay")
			return nil
		}
		wg.goCtx(ctx, func(ctx context.Context) {
			onBars := func(bars map[string]valueobject.Bar, now int64) {
				for sym, bar := range bars {
					btGateway.FeedBar(sym, bar)
				}
				pl.OnBars(bars, now)
			}
			start := time.Now().AddDate(-1, 0, 0).Unix()
			end := time.Now().Unix()
			if err := historyRepo.ReplayBarsFromDatabase(ctx, cfg.Strategy.Symbols, start, end, onBars); err != nil && ctx.Err() == nil {
				logger.Error("backtest replay failed", "error", err)
			}
		})
		return nil

	default:
		return fmt.Errorf("unknown gateway mode %q", cfg.Gateway.Mode)
	}
}

// waitGroup is a minimal context-scoped sync.WaitGroup wrapper so
// runOnce's component goroutines are joined before the final
// persistence save runs.
type waitGroup struct {
	done []chan struct{}
}

func (w *waitGroup) goCtx(ctx context.Context, fn func(ctx context.Context)) {
	ch := make(chan struct{})
	w.done = append(w.done, ch)
	go func() {
		defer close(ch)
		fn(ctx)
	}()
}

func (w *waitGroup) wait() {
	for _, ch := range w.done {
		<-ch
	}
}
