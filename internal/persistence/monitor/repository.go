// Package monitor persists observability snapshots and event rows to
// a relational database, for an external dashboard to query. Grounded
// on ChoSanghyuk-blackholedex's gorm.io/gorm + gorm.io/driver/mysql
// usage (the retrieved corpus's only GORM consumer).
package monitor

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// SnapshotRow is the latest-state row, upserted per monitoring cycle
// and keyed by (Variant, InstanceID) so multiple runtime instances can
// share one table.
type SnapshotRow struct {
	Variant          string `gorm:"primaryKey"`
	InstanceID       string `gorm:"primaryKey"`
	At               int64
	SymbolsProcessed int
	ActivePositions  int
	PendingOrders    int
	UpdatedAt        time.Time
}

// EventRow is an append-only record of a signal, state change, or
// alert. EventKey is unique so retried writes (after a connection
// blip) don't duplicate the row.
type EventRow struct {
	EventKey  string `gorm:"primaryKey"`
	Variant   string
	Category  string
	Message   string
	At        int64
	CreatedAt time.Time
}

// Repository wraps a GORM/MySQL connection. Every write logs and
// swallows connection failures rather than propagating them — per
// spec.md §4.F/§7, monitoring is observability, never a dependency the
// trading loop can be blocked or crashed by.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func Open(dsn string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("monitor: open mysql: %w", err)
	}
	if err := db.AutoMigrate(&SnapshotRow{}, &EventRow{}); err != nil {
		return nil, fmt.Errorf("monitor: automigrate: %w", err)
	}
	return &Repository{db: db, logger: logger}, nil
}

// UpsertSnapshot writes the latest monitoring snapshot for one
// variant/instance, logging (never returning) a failure.
func (r *Repository) UpsertSnapshot(row SnapshotRow) {
	row.UpdatedAt = time.Now()
	err := r.db.Save(&row).Error
	if err != nil {
		r.logger.Warn("monitor: upsert snapshot failed", "error", err, "variant", row.Variant, "instance", row.InstanceID)
	}
}

// AppendEvent records one signal/state-change/alert row, idempotent on
// EventKey.
func (r *Repository) AppendEvent(row EventRow) {
	row.CreatedAt = time.Now()
	err := r.db.Clauses().Where("event_key = ?", row.EventKey).FirstOrCreate(&row).Error
	if err != nil {
		r.logger.Warn("monitor: append event failed", "error", err, "event_key", row.EventKey)
	}
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
