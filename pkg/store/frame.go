// Package store persists the derived series of a run as a date-keyed CSV
// table and reads it back without loss of precision.
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// DateColumn is the header of the index column
const DateColumn = "date"

const dateLayout = "2006-01-02"

// WriteFrame writes f as CSV: one date column followed by every series in
// insertion order. Undefined values are written as empty cells; finite values
// use the shortest representation that parses back to the same float64.
func WriteFrame(w io.Writer, f *stats.Frame) error {
	writer := csv.NewWriter(w)

	names := f.Names()
	if err := writer.Write(append([]string{DateColumn}, names...)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i], _ = f.Get(name)
	}

	record := make([]string, len(names)+1)
	for row, date := range f.Dates() {
		record[0] = date.Format(dateLayout)
		for i := range columns {
			record[i+1] = formatValue(columns[i][row])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadFrame parses a table written by WriteFrame
func ReadFrame(r io.Reader) (*stats.Frame, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errs.Stage("Store", "file has no header", errs.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) == 0 || header[0] != DateColumn {
		return nil, fmt.Errorf("invalid frame header: first column must be %q", DateColumn)
	}
	names := header[1:]

	var dates []time.Time
	columns := make([][]float64, len(names))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		date, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, record[0], err)
		}
		dates = append(dates, date)

		for i := range names {
			v, err := parseValue(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, names[i], err)
			}
			columns[i] = append(columns[i], v)
		}
	}

	frame := stats.NewFrame(dates)
	for i, name := range names {
		values := columns[i]
		if values == nil {
			values = []float64{}
		}
		if frame, err = frame.With(name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// SaveFrame writes f to path, creating parent directories
func SaveFrame(path string, f *stats.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	if err := WriteFrame(file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadFrame reads a frame file
func LoadFrame(path string) (*stats.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	defer file.Close()
	return ReadFrame(file)
}

// AlignedFromFrame rebuilds the aligned pair from the price columns of a
// persisted frame
func AlignedFromFrame(f *stats.Frame, symbolA, symbolB string) (*market.AlignedSeries, error) {
	pa, okA := f.Get(market.ColPriceA)
	pb, okB := f.Get(market.ColPriceB)
	if !okA || !okB {
		return nil, errs.Stage("Store", "frame has no price columns", errs.ErrConfiguration)
	}
	dates := f.Dates()
	points := make([]market.PricePoint, len(dates))
	for i, d := range dates {
		points[i] = market.PricePoint{Date: d, PriceA: pa[i], PriceB: pb[i]}
	}
	return market.FromPoints(symbolA, symbolB, points)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseValue(s string) (float64, error) {
	if s == "" || s == "NaN" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
