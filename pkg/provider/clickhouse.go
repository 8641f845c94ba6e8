package provider

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
)

// Rows is the subset of the ClickHouse result set the provider reads
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryFunc runs a query and returns its rows
type QueryFunc func(ctx context.Context, query string, args ...any) (Rows, error)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseProvider reads daily closes from a table with columns
// (symbol String, day Date, close Float64)
type ClickHouseProvider struct {
	query QueryFunc
	table string
	close func() error
	log   *logrus.Entry
}

// NewClickHouseProvider connects using a clickhouse:// DSN
func NewClickHouseProvider(ctx context.Context, dsn, table string, logger *logrus.Logger) (*ClickHouseProvider, error) {
	if !tableName.MatchString(table) {
		return nil, errs.Configf("invalid clickhouse table name %q", table)
	}
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, errs.Configf("invalid clickhouse dsn: %v", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	query := func(ctx context.Context, q string, args ...any) (Rows, error) {
		return conn.Query(ctx, q, args...)
	}
	p := NewClickHouseProviderWithQuery(query, table, logger)
	p.close = conn.Close
	p.log.WithField("addr", opts.Addr).Info("Connected to ClickHouse")
	return p, nil
}

// NewClickHouseProviderWithQuery builds a provider over an existing query function
func NewClickHouseProviderWithQuery(query QueryFunc, table string, logger *logrus.Logger) *ClickHouseProvider {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &ClickHouseProvider{
		query: query,
		table: table,
		close: func() error { return nil },
		log:   logger.WithField("component", "Provider"),
	}
}

// Closes implements PriceProvider
func (p *ClickHouseProvider) Closes(ctx context.Context, symbol string, start, end time.Time) (market.RawSeries, error) {
	q := fmt.Sprintf("SELECT day, close FROM %s WHERE symbol = ? AND day >= ? AND day <= ? ORDER BY day", p.table)
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	rows, err := p.query(ctx, q, symbol, market.Day(start), market.Day(end))
	if err != nil {
		return market.RawSeries{}, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	series := market.RawSeries{Symbol: symbol}
	for rows.Next() {
		var (
			day   time.Time
			price float64
		)
		if err := rows.Scan(&day, &price); err != nil {
			return market.RawSeries{}, fmt.Errorf("clickhouse scan: %w", err)
		}
		series.Points = append(series.Points, market.RawPoint{Date: market.Day(day), Price: price})
	}
	if err := rows.Err(); err != nil {
		return market.RawSeries{}, fmt.Errorf("clickhouse rows: %w", err)
	}
	p.log.WithFields(logrus.Fields{"symbol": symbol, "rows": len(series.Points)}).Debug("Fetched daily closes")
	return series, nil
}

// Close releases the connection
func (p *ClickHouseProvider) Close() error {
	return p.close()
}
