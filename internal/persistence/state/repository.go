// Package state persists and restores the full runtime snapshot
// (instrument aggregate + position aggregate) under one versioned
// envelope. The periodic-snapshot-under-a-mutex shape mirrors the
// teacher's internal/paper_trading/service.go PaperTradingService
// (isRunning/stopChan/mu guarding a portfolio snapshot taken on an
// UpdateInterval ticker); the on-disk write itself uses the standard
// temp-file-then-rename idiom since the teacher persists portfolio
// state to Postgres/Redis rather than a local file.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"optiontrader/internal/domain/aggregate"
)

// SchemaVersion is the current on-disk envelope version. Bump this and
// register a migration step (internal/persistence/migration) whenever
// the envelope's shape changes.
const SchemaVersion = 1

// Snapshot is the full persisted runtime state, per spec.md §4.F.
type Snapshot struct {
	Version            int                                   `json:"version"`
	SavedAt            int64                                 `json:"saved_at"`
	InstrumentManager  aggregate.InstrumentManagerSnapshot    `json:"instrument_manager"`
	PositionAggregate  aggregate.PositionAggregateSnapshot    `json:"position_aggregate"`
}

// Repository persists Snapshots to a single file using atomic
// temp-file+rename writes, optionally zstd-compressed. Mutex-
// serialized since the autosave probe and an explicit ForceSave on
// shutdown can both race to write.
type Repository struct {
	mu       sync.Mutex
	path     string
	compress bool
}

func NewRepository(path string, compress bool) *Repository {
	return &Repository{path: path, compress: compress}
}

// Save atomically persists snap to disk.
func (r *Repository) Save(snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("persistence/state: create directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence/state: marshal snapshot: %w", err)
	}

	if r.compress {
		data, err = compressZstd(data)
		if err != nil {
			return fmt.Errorf("persistence/state: compress snapshot: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("persistence/state: write snapshot: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Load restores the most recently saved Snapshot. Returns (Snapshot{},
// false, nil) if no snapshot file exists yet (a fresh deployment).
func (r *Repository) Load() (Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("persistence/state: read snapshot: %w", err)
	}

	if r.compress {
		data, err = decompressZstd(data)
		if err != nil {
			return Snapshot{}, false, fmt.Errorf("persistence/state: decompress snapshot: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("persistence/state: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func compressZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// NewSnapshot stamps a fresh envelope at the given save time from the
// two live aggregates.
func NewSnapshot(instruments aggregate.InstrumentManagerSnapshot, positions aggregate.PositionAggregateSnapshot, savedAt time.Time) Snapshot {
	return Snapshot{Version: SchemaVersion, SavedAt: savedAt.Unix(), InstrumentManager: instruments, PositionAggregate: positions}
}
