package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"optiontrader/internal/domain/aggregate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNotifyDeliversToWebhook(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL, MinInterval: time.Hour}, testLogger())
	event := aggregate.NewGreeksRiskBreachEvent(time.Now().Unix(), aggregate.GreeksRiskPortfolio, "delta", 5, 1)

	n.Notify(t.Context(), event)

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 webhook call, got %d", got)
	}
}

func TestNotifyRateLimitsPerCategory(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL, MinInterval: time.Hour}, testLogger())
	event := aggregate.NewGreeksRiskBreachEvent(time.Now().Unix(), aggregate.GreeksRiskPortfolio, "delta", 5, 1)

	n.Notify(t.Context(), event)
	n.Notify(t.Context(), event)
	n.Notify(t.Context(), event)

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected the second and third Notify within MinInterval to be suppressed, got %d calls", got)
	}
}

func TestNotifyDoesNotBlockOnWebhookFailure(t *testing.T) {
	n := New(Config{WebhookURL: "http://127.0.0.1:1", MinInterval: time.Hour, RequestTimeout: 200 * time.Millisecond}, testLogger())
	event := aggregate.NewGreeksRiskBreachEvent(time.Now().Unix(), aggregate.GreeksRiskPortfolio, "gamma", 5, 1)

	done := make(chan struct{})
	go func() {
		n.Notify(t.Context(), event)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify blocked on an unreachable webhook instead of returning")
	}
}

func TestWorkerDrainsEventsUntilContextCancelled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL, MinInterval: 0}, testLogger())
	events := make(chan aggregate.DomainEvent, 2)
	events <- aggregate.NewGreeksRiskBreachEvent(time.Now().Unix(), aggregate.GreeksRiskPortfolio, "delta", 5, 1)
	events <- aggregate.NewHedgeExecutedEvent(time.Now().Unix(), 10, "buy", 0.5, 0.1)

	worker := NewWorker(n, events)
	ctx, cancel := context.WithCancel(t.Context())
	doneCh := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(doneCh)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected both queued events delivered, got %d", got)
	}
}
