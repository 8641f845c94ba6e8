package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// closeColumns are tried in order to find the price column
var closeColumns = []string{"close", "adj close", "price"}

// CSVProvider reads one <symbol>.csv file per instrument from a directory.
// The first column holds the date; extra header lines such as the ticker row
// written by yfinance are skipped because their first cell is not a date.
type CSVProvider struct {
	dir string
	log *logrus.Entry
}

// NewCSVProvider creates a provider over dir
func NewCSVProvider(dir string, logger *logrus.Logger) *CSVProvider {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &CSVProvider{dir: dir, log: logger.WithField("component", "Provider")}
}

// FileName maps a ticker to its file: GC=F -> GC.csv, ^TNX -> TNX.csv
func FileName(symbol string) string {
	return strings.NewReplacer("=F", "", "=", "", "^", "", "/", "").Replace(symbol) + ".csv"
}

// Closes implements PriceProvider
func (p *CSVProvider) Closes(ctx context.Context, symbol string, start, end time.Time) (market.RawSeries, error) {
	if err := ctx.Err(); err != nil {
		return market.RawSeries{}, err
	}
	path := filepath.Join(p.dir, FileName(symbol))
	file, err := os.Open(path)
	if err != nil {
		return market.RawSeries{}, fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	series, skipped, err := ReadCloses(file, symbol, start, end)
	if err != nil {
		return market.RawSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	if skipped > 0 {
		p.log.WithFields(logrus.Fields{"file": path, "skipped": skipped}).Debug("Skipped non-data rows")
	}
	return series, nil
}

// ReadCloses parses a price CSV. It returns the number of rows skipped
// because their date did not parse. Unparsable prices become NaN gaps.
func ReadCloses(r io.Reader, symbol string, start, end time.Time) (market.RawSeries, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return market.RawSeries{}, 0, errs.Stage("Provider", "price file is empty", errs.ErrEmptyInput)
	}
	if err != nil {
		return market.RawSeries{}, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := priceColumn(header)
	if col < 0 {
		return market.RawSeries{}, 0, fmt.Errorf("no close price column in header %v", header)
	}

	series := market.RawSeries{Symbol: symbol}
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return market.RawSeries{}, 0, fmt.Errorf("failed to read CSV row: %w", err)
		}

		date, ok := parseDate(record[0])
		if !ok {
			skipped++
			continue
		}
		if !inRange(date, start, end) {
			continue
		}

		price := stats.NaN()
		if col < len(record) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64); err == nil && v > 0 {
				price = v
			}
		}
		series.Points = append(series.Points, market.RawPoint{Date: date, Price: price})
	}
	return series, skipped, nil
}

func priceColumn(header []string) int {
	for _, want := range closeColumns {
		for i, h := range header {
			if i == 0 {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "2006-01-02 15:04:05-07:00"} {
		if d, err := time.Parse(layout, s); err == nil {
			return market.Day(d), true
		}
	}
	return time.Time{}, false
}
