// Package persistence wires together the state, migration, history, and
// monitor sub-packages into the runtime's save/restore/replay surface.
package persistence

import (
	"context"
	"log/slog"
	"time"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/persistence/state"
)

// AutoSaveService probes a monotonic interval and persists the current
// runtime snapshot when it elapses, plus forces one final save on
// shutdown. Grounded on the teacher's TradingBotEngine.Stop() pattern of
// "persist on shutdown, log rather than fail on a save error" — a
// save failure must never block or crash shutdown.
type AutoSaveService struct {
	repo         *state.Repository
	instruments  *aggregate.InstrumentManager
	positions    *aggregate.PositionAggregate
	interval     time.Duration
	logger       *slog.Logger
	lastSavedAt  time.Time
}

func NewAutoSaveService(repo *state.Repository, instruments *aggregate.InstrumentManager, positions *aggregate.PositionAggregate, interval time.Duration, logger *slog.Logger) *AutoSaveService {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &AutoSaveService{repo: repo, instruments: instruments, positions: positions, interval: interval, logger: logger}
}

// MaybeSave persists a snapshot if at least interval has elapsed since
// the last save. Uses the same interval gating as Pipeline's own
// autosave probe (maybeAutoSave, which calls ForceSave) so callers that
// don't go through Pipeline (e.g. a standalone backtest driver) get the
// same save cadence.
func (a *AutoSaveService) MaybeSave(now time.Time) {
	if !a.lastSavedAt.IsZero() && now.Sub(a.lastSavedAt) < a.interval {
		return
	}
	if err := a.save(now); err != nil {
		a.logger.Warn("autosave: periodic save failed", "error", err)
		return
	}
	a.lastSavedAt = now
}

// ForceSave persists immediately, ignoring the interval gate. Satisfies
// pipeline.Persister so the pipeline can call it directly on shutdown.
func (a *AutoSaveService) ForceSave(ctx context.Context) error {
	_ = ctx
	now := time.Now()
	if err := a.save(now); err != nil {
		return err
	}
	a.lastSavedAt = now
	return nil
}

func (a *AutoSaveService) save(now time.Time) error {
	snap := state.NewSnapshot(a.instruments.ToSnapshot(), a.positions.ToSnapshot(), now)
	return a.repo.Save(snap)
}
