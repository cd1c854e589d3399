// Package notifier delivers domain-event notifications to an external
// webhook sink. The configurable-timeout HTTP client shape is grounded
// on the teacher's internal/exchanges/binance/client.go Config.Timeout;
// go-resty/resty/v2 itself is an out-of-pack adoption (see DESIGN.md)
// repointed at a webhook URL instead of an exchange REST API, per
// spec.md §4.G. Per-category alert-rate limiting mirrors the category
// evaluation split in the teacher's
// internal/trading/monitoring/alert_manager.go.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"

	"optiontrader/internal/domain/aggregate"
)

// Config parametrizes the webhook notifier.
type Config struct {
	WebhookURL    string
	MinInterval   time.Duration // default 5s per spec.md §4.G
	RequestTimeout time.Duration
}

// Notifier formats and delivers one message per domain-event category,
// rate-limited to a minimum inter-send interval. Delivery errors are
// logged and swallowed — notification is best-effort and must never
// block or fail the trading loop.
type Notifier struct {
	http        *resty.Client
	webhookURL  string
	minInterval time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Notifier{
		http: httpClient, webhookURL: cfg.WebhookURL, minInterval: interval,
		logger: logger, lastSent: make(map[string]time.Time),
	}
}

// Notify sends one message for event's category, unless the last send
// for that category was within MinInterval — a quiet-category burst
// (e.g. repeated risk-limit breaches) collapses to at most one webhook
// call per interval rather than flooding the sink.
func (n *Notifier) Notify(ctx context.Context, event aggregate.DomainEvent) {
	category := event.EventType()

	n.mu.Lock()
	last, seen := n.lastSent[category]
	now := time.Now()
	if seen && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		return
	}
	n.lastSent[category] = now
	n.mu.Unlock()

	body := map[string]any{
		"category":  category,
		"timestamp": event.Timestamp(),
		"message":   fmt.Sprintf("%s fired %s ago", category, humanize.Time(time.Unix(event.Timestamp(), 0))),
	}

	resp, err := n.http.R().SetContext(ctx).SetBody(body).Post(n.webhookURL)
	if err != nil {
		n.logger.Warn("notifier: webhook delivery failed", "category", category, "error", err)
		return
	}
	if resp.StatusCode() >= 300 {
		n.logger.Warn("notifier: webhook rejected", "category", category, "status", resp.StatusCode())
	}
}

// Worker is the actor that drains the shared DomainEvent channel and
// notifies for each, independent of the monitor.Worker also draining
// it (both read from the same fan-out, per spec.md §9's "coroutine
// -> actor" design note).
type Worker struct {
	notifier *Notifier
	events   <-chan aggregate.DomainEvent
}

func NewWorker(notifier *Notifier, events <-chan aggregate.DomainEvent) *Worker {
	return &Worker{notifier: notifier, events: events}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.events:
			if !ok {
				return
			}
			w.notifier.Notify(ctx, event)
		}
	}
}
