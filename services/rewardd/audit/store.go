// Package audit persists committed ledger events into a relational store for
// reporting, and exports them as parquet.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"
)

const defaultLimit = 500

// Record is one persisted event.
type Record struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type       string            `gorm:"index;not null" json:"type"`
	CampaignID string            `gorm:"index" json:"campaign_id,omitempty"`
	Principal  string            `gorm:"index" json:"principal,omitempty"`
	Amount     string            `json:"amount,omitempty"`
	Attributes map[string]string `gorm:"serializer:json" json:"attributes"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// TableName pins the table name across drivers.
func (Record) TableName() string { return "reward_events" }

// Query filters List. Zero fields match everything.
type Query struct {
	Type       string
	CampaignID string
	Since      time.Time
	Limit      int
}

// Open connects to the audit database. Supported drivers are "sqlite" and
// "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	return db, nil
}

// Store appends events and serves filtered reads.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore migrates the schema and returns a store over db.
func NewStore(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("audit: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db, logger: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Emit implements events.Emitter. Persistence failures are logged; the ledger
// has already committed.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	if _, err := s.Append(context.Background(), events.Render(evt)); err != nil {
		s.logger.Error("audit append failed", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append persists a rendered event.
func (s *Store) Append(ctx context.Context, evt *types.Event) (Record, error) {
	if evt == nil {
		return Record{}, errors.New("audit: event required")
	}
	attrs := make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		attrs[k] = v
	}
	record := Record{
		ID:         uuid.New(),
		Type:       evt.Type,
		CampaignID: attrs["campaignId"],
		Principal:  firstNonEmpty(attrs["principal"], attrs["owner"], attrs["relayer"]),
		Amount:     attrs["amount"],
		Attributes: attrs,
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Record{}, fmt.Errorf("audit: insert: %w", err)
	}
	return record, nil
}

// List returns records matching q, oldest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	tx := s.db.WithContext(ctx).Model(&Record{})
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.CampaignID != "" {
		tx = tx.Where("campaign_id = ?", q.CampaignID)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	var records []Record
	if err := tx.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
