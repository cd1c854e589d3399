package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/indicator"
	"optiontrader/internal/domain/service/signal"
	"optiontrader/internal/domain/valueobject"
)

// rolloverHHMM is the wall-clock minute at which the daily dominant-
// contract rollover check runs, per spec.md §4.A ("14:50").
const rolloverHHMM = "14:50"

// universeValidationEvery is the bar count between universe-validation
// sweeps (spec.md §4.A: "every 60 bars").
const universeValidationEvery = 60

// MonitorSink receives one snapshot per process_bars cycle; nil is a
// valid no-op sink. cmd/trader leaves Config.Monitor nil (its
// monitor.Worker reads Events() instead of these snapshots).
type MonitorSink interface {
	RecordSnapshot(snap MonitorSnapshot)
}

// Persister force-saves the full aggregate state. Backed in production
// by internal/persistence/state.Repository via AutoSaveService.
type Persister interface {
	ForceSave(ctx context.Context) error
}

// MonitorSnapshot is the per-cycle observability record handed to the
// monitor actor; it never carries a lock or a pointer into live
// aggregate state, since the monitor worker runs on its own goroutine.
type MonitorSnapshot struct {
	At               int64
	SymbolsProcessed int
	ActivePositions  int
	PendingOrders    int
}

// RolloverChecker performs the §4.E.2 dominant-contract rollover check
// for one product. It is intentionally narrow so Pipeline can be
// wired and tested without a real futures.FutureSelectionService.
type RolloverChecker func(now time.Time)

// UniverseValidator performs the §4.E.1 universe-membership
// validation sweep.
type UniverseValidator func(now time.Time)

// BarProcessor is invoked once per symbol inside process_bars, after
// the instrument and indicators have been updated, to check signals
// and drive execution. Any error is logged by the pipeline and never
// aborts the rest of the batch.
type BarProcessor interface {
	ProcessSymbol(ctx context.Context, vtSymbol string, bar valueobject.Bar) error
}

// Pipeline is the single-goroutine event-processing loop: it owns both
// aggregates, the indicator and signal services, and the per-cycle
// housekeeping (rollover, universe validation, monitoring, autosave).
// Grounded on the teacher's internal/trading/bot_engine.go
// TradingBotEngine lifecycle shape (New/Start/Stop, context-driven
// goroutine, channel-fed event dispatch), generalized from per-bot
// execution-loop processing to per-symbol map iteration inside one
// process_bars pass, per spec.md §4.A/§5.
type Pipeline struct {
	instruments *aggregate.InstrumentManager
	positions   *aggregate.PositionAggregate
	indicators  *indicator.Service
	signals     signal.Service
	processor   BarProcessor
	clock       Clock
	logger      *slog.Logger

	barWindow *BarPipeline

	rollover     RolloverChecker
	universe     UniverseValidator
	monitor      MonitorSink
	persister    Persister
	saveInterval time.Duration

	mu               sync.Mutex
	lastBars         map[string]valueobject.Bar
	rolloverFlagSet  bool
	lastRolloverHHMM string
	barsSinceValidation int
	lastSaveAt       time.Time
	warmingUp        bool

	inbox   chan inboundEvent
	stopped chan struct{}
	events  chan aggregate.DomainEvent
}

type inboundEventKind int

const (
	eventBars inboundEventKind = iota
	eventOrder
	eventTrade
	eventPosition
)

type inboundEvent struct {
	kind     inboundEventKind
	bars     map[string]valueobject.Bar
	order    aggregate.OrderReport
	trade    aggregate.TradeReport
	position aggregate.PositionReport
	now      int64
}

// Config bundles Pipeline's constructor dependencies.
type Config struct {
	Instruments  *aggregate.InstrumentManager
	Positions    *aggregate.PositionAggregate
	Indicators   *indicator.Service
	Signals      signal.Service
	Processor    BarProcessor
	Clock        Clock
	Logger       *slog.Logger
	BarWindow    *BarPipeline // nil = identity passthrough
	Rollover     RolloverChecker
	Universe     UniverseValidator
	Monitor      MonitorSink
	Persister    Persister
	SaveInterval time.Duration // default 60s if zero
	InboxSize    int           // default 256 if zero
}

func New(cfg Config) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 60 * time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	return &Pipeline{
		instruments:  cfg.Instruments,
		positions:    cfg.Positions,
		indicators:   cfg.Indicators,
		signals:      cfg.Signals,
		processor:    cfg.Processor,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		barWindow:    cfg.BarWindow,
		rollover:     cfg.Rollover,
		universe:     cfg.Universe,
		monitor:      cfg.Monitor,
		persister:    cfg.Persister,
		saveInterval: cfg.SaveInterval,
		lastBars:     make(map[string]valueobject.Bar),
		inbox:        make(chan inboundEvent, cfg.InboxSize),
		stopped:      make(chan struct{}),
		events:       make(chan aggregate.DomainEvent, cfg.InboxSize),
	}
}

// Events returns the outbound domain-event stream: one value per event
// popped off the PositionAggregate each process_bars cycle. Fan this
// out to the monitor and notifier actor workers (internal/persistence/
// monitor.Worker, internal/notifier.Worker) per spec.md §9's
// coroutine->actor note; a nil-safe no-op reader is fine if nothing
// consumes it.
func (p *Pipeline) Events() <-chan aggregate.DomainEvent {
	return p.events
}

// OnInit marks the pipeline as warming up: process_bars still runs
// (so indicator history accumulates) but the rollover/validation
// housekeeping in step 2 of the on-bars algorithm is skipped until the
// caller calls OnStart.
func (p *Pipeline) OnInit() {
	p.mu.Lock()
	p.warmingUp = true
	p.mu.Unlock()
}

// OnStart clears the warm-up flag and starts the single processing
// goroutine. It returns once run has exited, which happens when ctx
// is done — callers typically invoke it in its
// own goroutine, mirroring the teacher's TradingBotEngine.Start()
// wg.Add/go pattern.
func (p *Pipeline) OnStart(ctx context.Context) {
	p.mu.Lock()
	p.warmingUp = false
	p.mu.Unlock()
	p.run(ctx)
}

// OnStop forces a final persistence save and returns once it
// completes (or immediately if no Persister is configured). Save
// failures are logged, never propagated — shutdown must never hang or
// fail on a save error, mirroring the teacher's TradingBotEngine.Stop().
func (p *Pipeline) OnStop(ctx context.Context) {
	close(p.stopped)
	if p.persister == nil {
		return
	}
	if err := p.persister.ForceSave(ctx); err != nil {
		p.logger.Error("pipeline: final save failed", "error", err)
	}
}

// OnTick is a no-op hook point for strategies that react to ticks
// rather than only bars; this runtime's signal services are bar-
// driven (spec.md §4.A), so it does nothing.
func (p *Pipeline) OnTick(vtSymbol string, price float64, now int64) {}

// OnBars enqueues one bar batch for processing on the pipeline
// goroutine. Non-blocking: a full inbox logs a warning and drops the
// batch rather than backing up the gateway dispatch goroutine, the
// same non-blocking select/default channel drain the teacher's
// internal/risk/engine.go uses when draining its alerts channel, so a
// slow consumer never stalls a producer goroutine.
func (p *Pipeline) OnBars(bars map[string]valueobject.Bar, now int64) {
	select {
	case p.inbox <- inboundEvent{kind: eventBars, bars: bars, now: now}:
	default:
		p.logger.Warn("pipeline: inbox full, dropping bar batch", "symbols", len(bars))
	}
}

func (p *Pipeline) OnOrder(report aggregate.OrderReport, now int64) {
	select {
	case p.inbox <- inboundEvent{kind: eventOrder, order: report, now: now}:
	default:
		p.logger.Warn("pipeline: inbox full, dropping order report", "vt_order_id", report.VtOrderID)
	}
}

func (p *Pipeline) OnTrade(report aggregate.TradeReport) {
	select {
	case p.inbox <- inboundEvent{kind: eventTrade, trade: report}:
	default:
		p.logger.Warn("pipeline: inbox full, dropping trade report", "symbol", report.Symbol)
	}
}

func (p *Pipeline) OnPosition(report aggregate.PositionReport, now int64) {
	select {
	case p.inbox <- inboundEvent{kind: eventPosition, position: report, now: now}:
	default:
		p.logger.Warn("pipeline: inbox full, dropping position report", "symbol", report.Symbol)
	}
}

func (p *Pipeline) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.inbox:
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, ev inboundEvent) {
	switch ev.kind {
	case eventBars:
		p.onBars(ctx, ev.bars, ev.now)
	case eventOrder:
		p.positions.UpdateFromOrder(ev.order, ev.now)
	case eventTrade:
		p.positions.UpdateFromTrade(ev.trade)
	case eventPosition:
		p.positions.UpdateFromPosition(ev.position, ev.now)
	}
}

// onBars implements the on-bars algorithm of spec.md §4.A: cache the
// bar, run rollover/universe housekeeping once warmed up, and dispatch
// to process_bars directly or through the configured BarPipeline.
func (p *Pipeline) onBars(ctx context.Context, bars map[string]valueobject.Bar, now int64) {
	nowTime := time.Unix(now, 0).UTC()

	p.mu.Lock()
	for sym, bar := range bars {
		p.lastBars[sym] = bar
	}
	warmingUp := p.warmingUp
	activeContracts := p.instruments.GetAllActiveContracts()
	p.mu.Unlock()

	if !warmingUp && len(activeContracts) > 0 {
		p.runHousekeeping(nowTime, len(bars))
	}

	if p.barWindow != nil && !p.barWindow.spec.IsIdentity() {
		for sym, bar := range bars {
			p.barWindow.HandleBar(sym, bar)
		}
		return
	}

	p.processBars(ctx, bars, now)
}

func (p *Pipeline) runHousekeeping(now time.Time, batchSize int) {
	hhmm := now.Format("15:04")

	p.mu.Lock()
	if hhmm == rolloverHHMM && !p.rolloverFlagSet {
		p.rolloverFlagSet = true
		p.mu.Unlock()
		if p.rollover != nil {
			p.rollover(now)
		}
	} else {
		if hhmm != rolloverHHMM {
			p.rolloverFlagSet = false
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.barsSinceValidation += batchSize
	runValidation := p.barsSinceValidation >= universeValidationEvery
	if runValidation {
		p.barsSinceValidation = 0
	}
	p.mu.Unlock()

	if runValidation && p.universe != nil {
		p.universe(now)
	}
}

// processBars implements the per-symbol ordering of spec.md §5:
// instrument update -> indicators -> signal check/execute -> publish
// domain events -> monitor + periodic persistence. Errors from any
// per-symbol step are logged and never abort the rest of the batch.
func (p *Pipeline) processBars(ctx context.Context, bars map[string]valueobject.Bar, now int64) {
	for vtSymbol, bar := range bars {
		instrument := p.instruments.UpdateBar(vtSymbol, bar)

		prevDullness := valueobject.DullnessState{}
		prevDivergence := valueobject.DivergenceState{}
		if instrument.Indicators.Dullness != nil {
			prevDullness = *instrument.Indicators.Dullness
		}
		if instrument.Indicators.Divergence != nil {
			prevDivergence = *instrument.Indicators.Divergence
		}
		instrument.Indicators = p.indicators.CalculateAll(instrument, prevDullness, prevDivergence, p.indicatorLog(vtSymbol))

		if instrument.HasEnoughData() && p.processor != nil {
			if err := p.processor.ProcessSymbol(ctx, vtSymbol, bar); err != nil {
				p.logger.Error("pipeline: process_bars step failed", "symbol", vtSymbol, "error", err)
			}
		}
	}

	for _, event := range p.positions.PopDomainEvents() {
		p.logger.Info("pipeline: domain event", "type", event.EventType(), "at", event.Timestamp())
		select {
		case p.events <- event:
		default:
			p.logger.Warn("pipeline: event channel full, dropping domain event", "type", event.EventType())
		}
	}

	p.recordMonitorSnapshot(now, len(bars))
	p.maybeAutoSave(ctx, now)
}

func (p *Pipeline) indicatorLog(vtSymbol string) indicator.LogFunc {
	return func(msg string, args ...any) {
		p.logger.Debug(msg, append([]any{"symbol", vtSymbol}, args...)...)
	}
}

func (p *Pipeline) recordMonitorSnapshot(now int64, symbolsProcessed int) {
	if p.monitor == nil {
		return
	}
	snap := MonitorSnapshot{
		At:               now,
		SymbolsProcessed: symbolsProcessed,
		ActivePositions:  len(p.positions.GetActivePositions()),
		PendingOrders:    len(p.positions.GetAllPendingOrders()),
	}
	p.monitor.RecordSnapshot(snap)
}

func (p *Pipeline) maybeAutoSave(ctx context.Context, now int64) {
	if p.persister == nil {
		return
	}
	nowTime := time.Unix(now, 0).UTC()

	p.mu.Lock()
	due := nowTime.Sub(p.lastSaveAt) >= p.saveInterval
	if due {
		p.lastSaveAt = nowTime
	}
	p.mu.Unlock()

	if !due {
		return
	}
	if err := p.persister.ForceSave(ctx); err != nil {
		p.logger.Error("pipeline: periodic save failed", "error", err)
	}
}
