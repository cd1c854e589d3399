// Package history stores and replays 1-minute OHLCV bar history from a
// DuckDB-backed table, used to feed the pipeline's OnBars hook during
// backtests. Grounded on NimbleMarkets-dbn-go's use of
// duckdb/duckdb-go/v2 for OHLCV bar storage (the retrieved example
// corpus's only DuckDB consumer).
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"optiontrader/internal/domain/valueobject"
)

// HistoryDataRepository streams stored 1-minute bars ordered by time,
// one symbol-batch at a time, for deterministic backtest replay.
type HistoryDataRepository struct {
	db *sql.DB
}

// Open connects to a DuckDB database file (or ":memory:") and ensures
// the bars table exists.
func Open(path string) (*HistoryDataRepository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("history: open duckdb: %w", err)
	}
	repo := &HistoryDataRepository{db: db}
	if err := repo.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *HistoryDataRepository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			vt_symbol TEXT NOT NULL,
			ts        BIGINT NOT NULL,
			open      DOUBLE NOT NULL,
			high      DOUBLE NOT NULL,
			low       DOUBLE NOT NULL,
			close     DOUBLE NOT NULL,
			volume    DOUBLE NOT NULL,
			PRIMARY KEY (vt_symbol, ts)
		)`)
	if err != nil {
		return fmt.Errorf("history: create bars table: %w", err)
	}
	return nil
}

func (r *HistoryDataRepository) Close() error {
	return r.db.Close()
}

// AppendBar inserts (or replaces) one bar for vtSymbol, for recording
// live bars into history as they arrive.
func (r *HistoryDataRepository) AppendBar(ctx context.Context, vtSymbol string, bar valueobject.Bar) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bars (vt_symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		vtSymbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	if err != nil {
		return fmt.Errorf("history: append bar: %w", err)
	}
	return nil
}

// ReplayBarsFromDatabase streams every stored bar for the given
// symbols between [startUnix, endUnix], ordered by time, invoking
// onBars with a one-symbol map per row — the same shape
// Pipeline.OnBars expects live, so a backtest can drive the pipeline
// with no code path divergence from production. Per spec.md §4.F.
func (r *HistoryDataRepository) ReplayBarsFromDatabase(ctx context.Context, symbols []string, startUnix, endUnix int64, onBars func(map[string]valueobject.Bar, int64)) error {
	if len(symbols) == 0 {
		return nil
	}

	placeholders := make([]any, 0, len(symbols)+2)
	placeholders = append(placeholders, startUnix, endUnix)
	query := `SELECT vt_symbol, ts, open, high, low, close, volume FROM bars WHERE ts >= ? AND ts <= ? AND vt_symbol IN (`
	for i, sym := range symbols {
		if i > 0 {
			query += ", "
		}
		query += "?"
		placeholders = append(placeholders, sym)
	}
	query += ") ORDER BY ts ASC"

	rows, err := r.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return fmt.Errorf("history: query bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vtSymbol string
		var bar valueobject.Bar
		if err := rows.Scan(&vtSymbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return fmt.Errorf("history: scan bar row: %w", err)
		}
		onBars(map[string]valueobject.Bar{vtSymbol: bar}, bar.Time)
	}
	return rows.Err()
}
