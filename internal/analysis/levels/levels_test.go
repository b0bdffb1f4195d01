package levels

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chartlab/internal/models"
)

func swing(index int, price float64, kind models.SwingKind) models.SwingPoint {
	return models.SwingPoint{Time: int64(index) * 86400, Price: price, Kind: kind, Index: index}
}

func TestGroupLevels(t *testing.T) {
	swings := []models.SwingPoint{
		swing(1, 100, models.SwingLow),
		swing(2, 120, models.SwingHigh),
		swing(3, 101, models.SwingLow),
		swing(4, 121, models.SwingHigh),
		swing(5, 99.5, models.SwingLow),
		swing(6, 100.5, models.SwingHigh), // joins the 100 group, alone as a high
		swing(7, 150, models.SwingHigh),   // single touch, no level
	}

	levels := GroupLevels(swings, 0.02)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %+v", levels)
	}

	support := levels[0]
	if support.Kind != models.LevelSupport || support.TouchCount != 3 {
		t.Errorf("unexpected support %+v", support)
	}
	if math.Abs(support.Price-(100+101+99.5)/3) > 1e-9 {
		t.Errorf("support price = %v", support.Price)
	}

	resistance := levels[1]
	if resistance.Kind != models.LevelResistance || resistance.TouchCount != 2 || resistance.Price != 120.5 {
		t.Errorf("unexpected resistance %+v", resistance)
	}
}

func TestGroupLevelsFirstGroupWins(t *testing.T) {
	// 101.8 is within 2% of both 100 and 103.5; it joins the group seen first.
	swings := []models.SwingPoint{
		swing(1, 100, models.SwingHigh),
		swing(2, 103.5, models.SwingHigh),
		swing(3, 101.8, models.SwingHigh),
	}
	levels := GroupLevels(swings, 0.02)
	if len(levels) != 1 || math.Abs(levels[0].Price-100.9) > 1e-9 {
		t.Errorf("expected one level at 100.9, got %+v", levels)
	}
}

func TestGroupLevelsEmpty(t *testing.T) {
	if levels := GroupLevels(nil, 0.02); levels == nil || len(levels) != 0 {
		t.Errorf("expected empty non-nil levels, got %#v", levels)
	}
}

func TestProperty_GroupingIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	// Cluster centres are 20% apart so each swing has exactly one candidate
	// group regardless of which member became the representative.
	properties.Property("re-grouping the touches of grouped levels yields the same levels", prop.ForAll(
		func(clusters []int, offsets []float64, highs []bool) bool {
			n := len(clusters)
			if len(offsets) < n {
				n = len(offsets)
			}
			if len(highs) < n {
				n = len(highs)
			}
			var swings []models.SwingPoint
			for i := 0; i < n; i++ {
				centre := 100 * math.Pow(1.2, float64(clusters[i]))
				kind := models.SwingLow
				if highs[i] {
					kind = models.SwingHigh
				}
				swings = append(swings, swing(i, centre*(1+offsets[i]), kind))
			}

			first := GroupLevels(swings, 0.02)
			second := GroupLevels(Touches(first), 0.02)
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i].Kind != second[i].Kind || first[i].TouchCount != second[i].TouchCount {
					return false
				}
				if math.Abs(first[i].Price-second[i].Price) > 1e-9*first[i].Price {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, gen.IntRange(0, 5)),
		gen.SliceOfN(40, gen.Float64Range(-0.004, 0.004)),
		gen.SliceOfN(40, gen.Bool()),
	))

	properties.TestingRun(t)
}

// zigzag builds a rising channel: swing lows every 10 candles on a line
// climbing 1 per candle, with rallies in between.
func zigzag(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		base := 100 + float64(i)
		phase := i % 10
		offset := float64(phase)
		if phase > 5 {
			offset = float64(10 - phase)
		}
		mid := base + offset*2
		candles[i] = models.Candle{
			Time:   int64(i) * 86400,
			Open:   mid,
			High:   mid + 1,
			Low:    mid - 1,
			Close:  mid,
			Volume: 1000,
		}
	}
	return candles
}

func TestDetectTrendLines(t *testing.T) {
	lines := DetectTrendLines(zigzag(120), DefaultTrendConfig())
	if len(lines) == 0 {
		t.Fatal("expected at least one upward trend line")
	}
	for _, l := range lines {
		if l.Kind != models.TrendUpward {
			t.Errorf("unexpected %s line in a rising channel", l.Kind)
		}
		if l.TouchCount < 3 || l.Slope <= 0 || l.Reliability <= 0 {
			t.Errorf("invalid line %+v", l)
		}
		if l.Anchor1.Time >= l.Anchor2.Time {
			t.Errorf("anchors out of order: %+v", l)
		}
	}
	for i := 1; i < len(lines); i++ {
		if lines[i].Reliability > lines[i-1].Reliability {
			t.Errorf("lines not sorted by reliability")
		}
	}
}

func TestRemoveDuplicateLines(t *testing.T) {
	lines := []models.TrendLine{
		{Kind: models.TrendUpward, Slope: 1.00, Reliability: 1},
		{Kind: models.TrendUpward, Slope: 1.05, Reliability: 3},
		{Kind: models.TrendUpward, Slope: 2.00, Reliability: 2},
		{Kind: models.TrendDownward, Slope: -1.00, Reliability: 1},
	}
	got := RemoveDuplicateLines(lines, 0.10)
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %+v", got)
	}
	if got[0].Slope != 1.05 || got[0].Reliability != 3 {
		t.Errorf("more reliable duplicate should take the first slot, got %+v", got[0])
	}
	if got[2].Kind != models.TrendDownward {
		t.Errorf("different kinds must not be merged, got %+v", got)
	}
}

func TestFitLinesKeepsTopQuarter(t *testing.T) {
	cfg := DefaultTrendConfig()
	cfg.SlopeDedup = 0 // keep every candidate
	var anchors []models.SwingPoint
	for i := 0; i < 6; i++ {
		anchors = append(anchors, swing(i*10, 100+float64(i)*10, models.SwingLow))
	}
	// Six collinear anchors give 15 candidate pairs, all with six touches.
	lines := fitLines(anchors, models.TrendUpward, cfg)
	if len(lines) != 4 {
		t.Fatalf("expected ceil(15*0.25)=4 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if l.TouchCount != 6 {
			t.Errorf("touch count = %d, want 6", l.TouchCount)
		}
	}
}
