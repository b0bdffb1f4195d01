package annotate

import (
	"testing"

	"chartlab/internal/models"
)

func TestEvents(t *testing.T) {
	f := NewFormatter()
	got := f.Events([]models.PatternEvent{
		{Kind: models.EventDoubleTop, Time: 45, Price: 85, Direction: models.DirectionDown},
		{Kind: models.EventTriangleBreakout, Time: 50, Price: 120, Direction: models.DirectionUp, VolumeSpike: true},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(got))
	}
	if got[0].Kind != "double_top" || got[0].Label != "Double Top" || got[0].Position != PositionAbove || got[0].Direction != "down" {
		t.Errorf("unexpected annotation %+v", got[0])
	}
	if got[1].Label != "Triangle Breakout (volume spike)" || got[1].Position != PositionBelow {
		t.Errorf("unexpected annotation %+v", got[1])
	}
}

func TestEveryKindHasALabel(t *testing.T) {
	for _, kind := range models.EventKinds {
		if Label(kind) == string(kind) {
			t.Errorf("kind %s has no label", kind)
		}
	}
}

func TestLevelsAndTrendLines(t *testing.T) {
	f := NewFormatter()
	levels := f.Levels([]models.Level{{
		Price: 101.234, Kind: models.LevelResistance, TouchCount: 2,
		Touches: []models.SwingPoint{{Time: 10}, {Time: 30}},
	}})
	if len(levels) != 1 {
		t.Fatalf("expected one level annotation")
	}
	if levels[0].Time != 30 || levels[0].Label != "Resistance 101.23 (2 touches)" || levels[0].Position != PositionAbove {
		t.Errorf("unexpected level annotation %+v", levels[0])
	}

	untouched := f.Levels([]models.Level{
		{Price: 90, Kind: models.LevelSupport},
		{Price: 95, Kind: models.LevelSupport, TouchCount: 1, Touches: []models.SwingPoint{{Time: -5}}},
	})
	if len(untouched) != 1 || untouched[0].Price != 95 || untouched[0].Time != -5 {
		t.Errorf("levels without touches must be skipped: %+v", untouched)
	}

	lines := f.TrendLines([]models.TrendLine{{
		Kind: models.TrendUpward, TouchCount: 4, Reliability: 1.5,
		Anchor2: models.SwingPoint{Time: 99, Price: 120},
	}})
	if lines[0].Kind != "upward_trend" || lines[0].Time != 99 || lines[0].Label != "Uptrend (4 touches, reliability 1.50)" {
		t.Errorf("unexpected trend annotation %+v", lines[0])
	}
}

func TestMerge(t *testing.T) {
	got := Merge(
		[]models.Annotation{{Time: 20, Kind: "b"}, {Time: 10, Kind: "z"}},
		[]models.Annotation{{Time: 20, Kind: "a"}},
	)
	want := []string{"z", "a", "b"}
	for i, a := range got {
		if a.Kind != want[i] {
			t.Fatalf("order = %+v, want kinds %v", got, want)
		}
	}
}
