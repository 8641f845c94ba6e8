// Package archive stores completed runs and exported parameters in MySQL
package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
)

// Archive writes run records through gorm
type Archive struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Open connects to MySQL and migrates the schema. The DSN is in
// go-sql-driver form: user:pass@tcp(host:3306)/db?parseTime=true
func Open(dsn string, logger *logrus.Logger) (*Archive, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	if err := db.AutoMigrate(&BacktestRun{}, &RunMetrics{}, &RunTrade{}, &OptimalParamsRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an open gorm handle
func New(db *gorm.DB, logger *logrus.Logger) *Archive {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Archive{db: db, log: logger.WithField("component", "Archive")}
}

// SaveRun inserts the run with its metrics and trades
func (a *Archive) SaveRun(ctx context.Context, r *backtest.Result) (*BacktestRun, error) {
	rec := NewRunRecord(r)
	if err := a.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to archive run %s: %w", r.RunID, err)
	}
	a.log.WithFields(logrus.Fields{"run_id": r.RunID, "id": rec.ID, "trades": len(rec.Trades)}).Info("Archived run")
	return rec, nil
}

// SaveOptimalParams inserts an exported parameter set
func (a *Archive) SaveOptimalParams(ctx context.Context, p *backtest.OptimalParams) (*OptimalParamsRecord, error) {
	rec := NewOptimalParamsRecord(p)
	if err := a.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to archive parameters: %w", err)
	}
	a.log.WithFields(logrus.Fields{"id": rec.ID, "window": rec.Window, "z_entry": rec.ZEntry, "z_exit": rec.ZExit}).
		Info("Archived optimal parameters")
	return rec, nil
}

// RecentRuns lists the latest runs of a pair with their metrics
func (a *Archive) RecentRuns(ctx context.Context, symbolA, symbolB string, limit int) ([]BacktestRun, error) {
	var runs []BacktestRun
	err := a.db.WithContext(ctx).
		Preload("Metrics").
		Where("symbol_a = ? AND symbol_b = ?", symbolA, symbolB).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying connection pool
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
