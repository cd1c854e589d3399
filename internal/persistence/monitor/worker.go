package monitor

import (
	"context"
	"fmt"

	"optiontrader/internal/domain/aggregate"
)

// Worker is one of the two actor workers spec.md §9's "coroutine→actor"
// note describes: it drains a shared MPSC channel of DomainEvents and
// appends each as an EventRow, never touching aggregate state directly.
// Grounded on the teacher's dispatch-goroutine shape in
// internal/trading/bot_engine.go (a dedicated goroutine draining one
// channel until ctx is cancelled).
type Worker struct {
	repo    *Repository
	variant string
	events  <-chan aggregate.DomainEvent
}

func NewWorker(repo *Repository, variant string, events <-chan aggregate.DomainEvent) *Worker {
	return &Worker{repo: repo, variant: variant, events: events}
}

// Run drains events until ctx is cancelled or the channel closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.events:
			if !ok {
				return
			}
			w.repo.AppendEvent(EventRow{
				EventKey: fmt.Sprintf("%s-%s-%d", w.variant, event.EventType(), event.Timestamp()),
				Variant:  w.variant,
				Category: event.EventType(),
				Message:  fmt.Sprintf("%s at %d", event.EventType(), event.Timestamp()),
				At:       event.Timestamp(),
			})
		}
	}
}
