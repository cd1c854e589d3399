// Package pipeline wires the domain aggregates and services into the
// per-bar event-processing loop: the runtime orchestration layer spec.md
// §4.A describes. Grounded on the teacher's
// internal/trading/bot_engine.go TradingBotEngine (per-bot lifecycle,
// channel dispatch, graceful shutdown sequencing), generalized from
// "one bot per execution-loop slot" to "one pipeline, many symbols
// processed in map order per bar batch" to match the original's
// single-threaded, deterministic-replay event loop.
package pipeline

import "time"

// Clock abstracts wall time: RealClock answers with the wall clock,
// BarClock with the latest bar timestamp passed to Advance. Pipeline
// defaults Config.Clock to RealClock, but its event handling takes
// "now" from the argument its callers pass to OnBars/OnOrder/OnTrade/
// OnPosition rather than from the clock; cmd/trader sets no Clock.
type Clock interface {
	Now() time.Time
}

// RealClock answers with the actual wall clock, for live trading.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// BarClock answers with the timestamp of the most recently processed
// bar, for deterministic backtest replay. Zero value reports the Unix
// epoch until the first bar arrives.
type BarClock struct {
	current time.Time
}

func NewBarClock() *BarClock { return &BarClock{} }

func (c *BarClock) Now() time.Time {
	if c.current.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return c.current
}

// Advance stamps the clock to t's bar timestamp. Only moves forward;
// an out-of-order bar (a late tick replay, a duplicate) never rewinds
// the clock.
func (c *BarClock) Advance(t time.Time) {
	if t.After(c.current) {
		c.current = t
	}
}
