package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pairs-arb-backtest/pkg/provider"
)

var (
	startDate = flag.String("start-date", "2022-01-03", "First trading day (YYYY-MM-DD)")
	days      = flag.Int("days", 756, "Number of weekday closes per symbol")
	symbolA   = flag.String("symbol-a", "GC=F", "Gold symbol")
	symbolB   = flag.String("symbol-b", "SI=F", "Silver symbol")
	ratio     = flag.Float64("ratio", 80, "Long-run gold/silver price ratio")
	phi       = flag.Float64("phi", 0.9, "AR(1) coefficient of the log-ratio deviation (< 1 mean reverts)")
	gapProb   = flag.Float64("gap-prob", 0.01, "Probability a symbol misses a day")
	seed      = flag.Int64("seed", 42, "Random seed")
	outputDir = flag.String("output", "./data", "Output directory")
)

// bar is one daily OHLCV row
type bar struct {
	date   time.Time
	open   float64
	high   float64
	low    float64
	close  float64
	volume int
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	if *phi >= 1 || *phi <= -1 {
		log.Warnf("phi=%.2f: the generated pair will not be cointegrated", *phi)
	}

	log.Info("Generating mock gold/silver closes...")
	log.Infof("  Start: %s, days: %d", *startDate, *days)
	log.Infof("  Symbols: %s / %s, ratio %.1f, phi %.2f", *symbolA, *symbolB, *ratio, *phi)
	log.Infof("  Output: %s", *outputDir)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	gold, silver := generatePair(rng, start, *days)

	for _, s := range []struct {
		symbol string
		bars   []bar
	}{{*symbolA, gold}, {*symbolB, silver}} {
		path := filepath.Join(*outputDir, provider.FileName(s.symbol))
		if err := writeBars(path, dropDays(rng, s.bars, *gapProb)); err != nil {
			log.Fatalf("Failed to generate data for %s: %v", s.symbol, err)
		}
		log.Infof("  ✓ %s", path)
	}

	log.Info("Mock data generation completed!")
}

// generatePair walks log gold as a random walk and keeps log silver at
// log gold - log ratio plus an AR(1) deviation
func generatePair(rng *rand.Rand, start time.Time, n int) ([]bar, []bar) {
	gold := make([]bar, 0, n)
	silver := make([]bar, 0, n)

	logGold := math.Log(1800.0)
	dev := 0.0
	d := start
	for len(gold) < n {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
			continue
		}

		prevGold := math.Exp(logGold)
		prevSilver := prevGold / *ratio * math.Exp(dev)

		logGold += 0.0003 + 0.01*rng.NormFloat64()
		dev = *phi*dev + 0.012*rng.NormFloat64()

		g := math.Exp(logGold)
		s := g / *ratio * math.Exp(dev)
		gold = append(gold, makeBar(rng, d, prevGold, g))
		silver = append(silver, makeBar(rng, d, prevSilver, s))
		d = d.AddDate(0, 0, 1)
	}
	return gold, silver
}

func makeBar(rng *rand.Rand, d time.Time, open, close float64) bar {
	hi := math.Max(open, close) * (1 + 0.003*rng.Float64())
	lo := math.Min(open, close) * (1 - 0.003*rng.Float64())
	return bar{date: d, open: open, high: hi, low: lo, close: close, volume: 50000 + rng.Intn(150000)}
}

// dropDays removes random rows so the aligner has gaps to handle
func dropDays(rng *rand.Rand, bars []bar, p float64) []bar {
	if p <= 0 {
		return bars
	}
	kept := make([]bar, 0, len(bars))
	for _, b := range bars {
		if rng.Float64() >= p {
			kept = append(kept, b)
		}
	}
	return kept
}

// writeBars writes the Yahoo Finance daily layout
func writeBars(path string, bars []bar) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	for _, b := range bars {
		closePrice := f(b.close)
		if err := writer.Write([]string{
			b.date.Format("2006-01-02"),
			f(b.open), f(b.high), f(b.low),
			closePrice, closePrice,
			fmt.Sprintf("%d", b.volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
