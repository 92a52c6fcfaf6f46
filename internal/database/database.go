package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/artbotdev/art-trader/internal/risk"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Audit persistence for cycle output
// ═══════════════════════════════════════════════════════════════════════════════
//
// Keeps the paper trail the core deliberately doesn't: every order intent
// (approved and rejected), consensus snapshots behind them, and per-day
// approval stats. The engine works identically with persistence disabled.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Models

// IntentRecord is one risk decision, kept verbatim for audit.
type IntentRecord struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	Instrument       string          `gorm:"index"`
	Side             string
	PositionFraction decimal.Decimal `gorm:"type:decimal(10,6)"`
	Status           string          `gorm:"index"`
	Reason           string
	Category         string
	Tier             string
	Confidence       decimal.Decimal `gorm:"type:decimal(10,6)"`
	CanonicalKey     string          `gorm:"index"`
	DecidedAt        time.Time
	CreatedAt        time.Time
}

// ConsensusSnapshot records the inputs behind an intent: one row per
// contributing venue.
type ConsensusSnapshot struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	CanonicalKey string `gorm:"index"`
	Venue        string
	Probability  decimal.Decimal `gorm:"type:decimal(10,6)"`
	MeanProb     decimal.Decimal `gorm:"type:decimal(10,6)"`
	Spread       decimal.Decimal `gorm:"type:decimal(10,6)"`
	Divergent    bool
	DecidedAt    time.Time
	CreatedAt    time.Time
}

// DailyStats aggregates approvals per trading day.
type DailyStats struct {
	Date     string `gorm:"primaryKey"` // YYYY-MM-DD
	Approved int
	Rejected int
	Exposure decimal.Decimal `gorm:"type:decimal(10,6)"`
}

// New opens the store. A postgres:// DSN selects PostgreSQL, anything else
// is treated as a SQLite path.
func New(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&IntentRecord{}, &ConsensusSnapshot{}, &DailyStats{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// RecordIntent implements engine.IntentSink: one intent row, the venue
// snapshots behind it, and the daily counter bump.
func (d *Database) RecordIntent(ctx context.Context, intent risk.OrderIntent) error {
	rec := IntentRecord{
		Instrument:       intent.Instrument,
		Side:             string(intent.Side),
		PositionFraction: intent.PositionFraction,
		Status:           string(intent.Status),
		Reason:           string(intent.Reason),
		Category:         string(intent.Signal.Category),
		Tier:             string(intent.Signal.Tier),
		Confidence:       intent.Signal.Confidence,
		CanonicalKey:     intent.Signal.Rationale.CanonicalKey,
		DecidedAt:        intent.DecidedAt,
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}

	for _, vp := range intent.Signal.Rationale.Probabilities {
		snap := ConsensusSnapshot{
			CanonicalKey: intent.Signal.Rationale.CanonicalKey,
			Venue:        vp.Venue,
			Probability:  vp.Probability,
			MeanProb:     intent.Signal.Rationale.MeanProbability,
			Spread:       intent.Signal.Rationale.Spread,
			Divergent:    intent.Signal.Rationale.Divergent,
			DecidedAt:    intent.DecidedAt,
		}
		if err := d.db.WithContext(ctx).Create(&snap).Error; err != nil {
			return err
		}
	}

	return d.bumpDailyStats(ctx, intent)
}

func (d *Database) bumpDailyStats(ctx context.Context, intent risk.OrderIntent) error {
	date := intent.DecidedAt.Format("2006-01-02")

	var stats DailyStats
	if err := d.db.WithContext(ctx).FirstOrCreate(&stats, DailyStats{Date: date}).Error; err != nil {
		return err
	}
	if intent.Approved() {
		stats.Approved++
		stats.Exposure = stats.Exposure.Add(intent.PositionFraction)
	} else {
		stats.Rejected++
	}
	return d.db.WithContext(ctx).Save(&stats).Error
}

// RecentIntents returns the newest decisions, for reporting.
func (d *Database) RecentIntents(limit int) ([]IntentRecord, error) {
	var records []IntentRecord
	err := d.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// IntentsByInstrument returns the decision history for one instrument.
func (d *Database) IntentsByInstrument(instrument string) ([]IntentRecord, error) {
	var records []IntentRecord
	err := d.db.Where("instrument = ?", instrument).Order("created_at DESC").Find(&records).Error
	return records, err
}

// StatsForDay returns the aggregate for one trading day.
func (d *Database) StatsForDay(day time.Time) (*DailyStats, error) {
	var stats DailyStats
	err := d.db.First(&stats, "date = ?", day.Format("2006-01-02")).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
