package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chartlab/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chartlab.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Property: saving candles and reading them back yields the same series.
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	symbols := []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOG", "META", "TSLA", "BTCUSD", "ETHUSD", "SPY"}
	run := 0

	properties.Property("save then retrieve produces equivalent data", prop.ForAll(
		func(symbolIdx int, count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], run)
			candles := generateTestCandles(count, basePrice, baseVolume)

			if err := store.SaveCandles(ctx, symbol, candles); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			retrieved, err := store.GetCandles(ctx, symbol, CandleFilter{})
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}
			if len(retrieved) != len(candles) {
				t.Logf("Count mismatch: expected %d, got %d", len(candles), len(retrieved))
				return false
			}
			for i, orig := range candles {
				if !candlesEqual(orig, retrieved[i]) {
					t.Logf("Candle mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(symbols)-1),
		gen.IntRange(1, 20),
		gen.Float64Range(1.0, 5000.0),
		gen.Int64Range(0, 1000000),
	))

	properties.Property("saving an empty slice succeeds", prop.ForAll(
		func(symbolIdx int) bool {
			return store.SaveCandles(context.Background(), symbols[symbolIdx], []models.Candle{}) == nil
		},
		gen.IntRange(0, len(symbols)-1),
	))

	properties.TestingRun(t)
}

// generateTestCandles creates valid daily candles.
func generateTestCandles(count int, basePrice float64, baseVolume int64) []models.Candle {
	candles := make([]models.Candle, count)
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		close := basePrice + variation*0.5

		candles[i] = models.Candle{
			Time:   baseTime + int64(i)*86400,
			Open:   open,
			High:   math.Max(open, close) * 1.01,
			Low:    math.Min(open, close) * 0.99,
			Close:  close,
			Volume: float64(baseVolume + int64(i*1000)),
		}
	}
	return candles
}

// candlesEqual compares two candles with a small float tolerance.
func candlesEqual(a, b models.Candle) bool {
	const tolerance = 1e-9
	return a.Time == b.Time &&
		math.Abs(a.Open-b.Open) <= tolerance &&
		math.Abs(a.High-b.High) <= tolerance &&
		math.Abs(a.Low-b.Low) <= tolerance &&
		math.Abs(a.Close-b.Close) <= tolerance &&
		a.Volume == b.Volume
}
