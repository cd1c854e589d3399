package pipeline

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/indicator"
	"optiontrader/internal/domain/service/signal"
	"optiontrader/internal/domain/valueobject"
)

type recordingProcessor struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingProcessor) ProcessSymbol(ctx context.Context, vtSymbol string, bar valueobject.Bar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, vtSymbol)
	return nil
}

func (r *recordingProcessor) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakePersister struct {
	saves int32
}

func (f *fakePersister) ForceSave(ctx context.Context) error {
	atomic.AddInt32(&f.saves, 1)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPipeline(processor BarProcessor, persister Persister) *Pipeline {
	return New(Config{
		Instruments:  aggregate.NewInstrumentManager(100),
		Positions:    aggregate.NewPositionAggregate(),
		Indicators:   indicator.NewService(),
		Signals:      signal.NewDemoService(),
		Processor:    processor,
		Persister:    persister,
		Logger:       testLogger(),
		SaveInterval: time.Hour,
	})
}

func runPipeline(t *testing.T, p *Pipeline) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p.OnInit()
	done := make(chan struct{})
	go func() {
		p.OnStart(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestProcessBarsSkipsSignalsBelowMinBarThreshold(t *testing.T) {
	processor := &recordingProcessor{}
	p := newTestPipeline(processor, nil)
	stop := runPipeline(t, p)
	defer stop()

	for i := 0; i < 29; i++ {
		p.OnBars(map[string]valueobject.Bar{"sc2602.INE": {Close: 100 + float64(i), Time: int64(i)}}, int64(i))
	}

	// Give the pipeline goroutine time to drain the inbox; there is no
	// event to wait on when nothing should fire.
	time.Sleep(200 * time.Millisecond)

	if got := processor.callCount(); got != 0 {
		t.Fatalf("expected no ProcessSymbol calls before 30 bars accumulate, got %d", got)
	}
}

func TestProcessBarsInvokesProcessorOnceEnoughData(t *testing.T) {
	processor := &recordingProcessor{}
	p := newTestPipeline(processor, nil)
	stop := runPipeline(t, p)
	defer stop()

	for i := 0; i < 31; i++ {
		p.OnBars(map[string]valueobject.Bar{"sc2602.INE": {Close: 100 + float64(i), Time: int64(i)}}, int64(i))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if processor.callCount() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := processor.callCount(); got == 0 {
		t.Fatal("expected ProcessSymbol to be invoked once the instrument has enough bar history")
	}
}

func TestOnStopForceSavesThroughPersister(t *testing.T) {
	persister := &fakePersister{}
	p := newTestPipeline(nil, persister)
	stop := runPipeline(t, p)
	stop()

	p.OnStop(context.Background())

	if atomic.LoadInt32(&persister.saves) != 1 {
		t.Fatalf("expected OnStop to force exactly one save, got %d", persister.saves)
	}
}

func TestEventsChannelReceivesDomainEvents(t *testing.T) {
	processor := &recordingProcessor{}
	p := newTestPipeline(processor, nil)

	positions := aggregate.NewPositionAggregate()
	p.positions = positions
	position := positions.CreatePosition("sc2602.INE", "sc2602.INE", "demo", 1, valueobject.Long, time.Now().Unix())
	position.Volume = 1
	positions.Enqueue(aggregate.NewGreeksRiskBreachEvent(time.Now().Unix(), aggregate.GreeksRiskPortfolio, "delta", 2, 1))

	stop := runPipeline(t, p)
	defer stop()

	p.OnBars(map[string]valueobject.Bar{"sc2602.INE": {Close: 100, Time: 1}}, 1)

	select {
	case event := <-p.Events():
		if event.EventType() != "greeks_risk_breach" {
			t.Errorf("event type = %q, want greeks_risk_breach", event.EventType())
		}
	case <-time.After(time.Second):
		t.Fatal("expected a domain event to be published through Events()")
	}
}
