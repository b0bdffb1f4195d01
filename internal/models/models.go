// Package models provides domain models for the chart analysis engine.
package models

import (
	"time"
)

// Candle represents OHLCV data for a time period.
// Time is a unix timestamp in seconds.
type Candle struct {
	Time   int64   `json:"time" yaml:"time"`
	Open   float64 `json:"open" yaml:"open"`
	High   float64 `json:"high" yaml:"high"`
	Low    float64 `json:"low" yaml:"low"`
	Close  float64 `json:"close" yaml:"close"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// Timestamp returns the candle time as a time.Time in UTC.
func (c Candle) Timestamp() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// IndicatorPoint is a single value of a derived series.
type IndicatorPoint struct {
	Time  int64   `json:"time" yaml:"time"`
	Value float64 `json:"value" yaml:"value"`
}

// SwingKind marks a swing point as a local high or low.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint represents a local extremum in a candle series.
type SwingPoint struct {
	Time  int64     `json:"time" yaml:"time"`
	Price float64   `json:"price" yaml:"price"`
	Kind  SwingKind `json:"kind" yaml:"kind"`
	Index int       `json:"index" yaml:"index"`
}

// LevelKind represents the type of price level.
type LevelKind string

const (
	LevelSupport    LevelKind = "support"
	LevelResistance LevelKind = "resistance"
)

// Level represents a horizontal support or resistance band.
type Level struct {
	Price      float64      `json:"price" yaml:"price"`
	Kind       LevelKind    `json:"kind" yaml:"kind"`
	TouchCount int          `json:"touch_count" yaml:"touch_count"`
	Touches    []SwingPoint `json:"touches,omitempty" yaml:"touches,omitempty"`
}

// TrendKind is the direction of a trend line.
type TrendKind string

const (
	TrendUpward   TrendKind = "upward"
	TrendDownward TrendKind = "downward"
)

// TrendLine is a line through two same-kind swing points.
// Slope is expressed in price units per second.
type TrendLine struct {
	Kind        TrendKind  `json:"kind" yaml:"kind"`
	Anchor1     SwingPoint `json:"anchor1" yaml:"anchor1"`
	Anchor2     SwingPoint `json:"anchor2" yaml:"anchor2"`
	Slope       float64    `json:"slope" yaml:"slope"`
	TouchCount  int        `json:"touch_count" yaml:"touch_count"`
	Reliability float64    `json:"reliability" yaml:"reliability"`
}

// PriceAt projects the line to the given unix time.
func (t TrendLine) PriceAt(ts int64) float64 {
	return t.Anchor1.Price + t.Slope*float64(ts-t.Anchor1.Time)
}

// Direction is the expected move following an event.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// EventKind enumerates the pattern events the engine can emit.
type EventKind string

const (
	EventGoldenCross             EventKind = "golden_cross"
	EventDeadCross               EventKind = "dead_cross"
	EventSupportTouch            EventKind = "support_touch"
	EventResistanceTouch         EventKind = "resistance_touch"
	EventTrendBreakout           EventKind = "trend_breakout"
	EventTriangleBreakout        EventKind = "triangle_breakout"
	EventHeadAndShoulders        EventKind = "head_and_shoulders"
	EventInverseHeadAndShoulders EventKind = "inverse_head_and_shoulders"
	EventDoubleTop               EventKind = "double_top"
	EventDoubleBottom            EventKind = "double_bottom"
)

// EventKinds lists every supported kind in display order.
var EventKinds = []EventKind{
	EventGoldenCross,
	EventDeadCross,
	EventSupportTouch,
	EventResistanceTouch,
	EventTrendBreakout,
	EventTriangleBreakout,
	EventHeadAndShoulders,
	EventInverseHeadAndShoulders,
	EventDoubleTop,
	EventDoubleBottom,
}

// Valid reports whether k belongs to the closed set of event kinds.
func (k EventKind) Valid() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// PatternEvent is a discrete signal produced by a detector.
type PatternEvent struct {
	Kind        EventKind          `json:"kind" yaml:"kind"`
	Time        int64              `json:"time" yaml:"time"`
	Price       float64            `json:"price" yaml:"price"`
	Direction   Direction          `json:"direction" yaml:"direction"`
	VolumeSpike bool               `json:"volume_spike" yaml:"volume_spike"`
	Metrics     map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Annotation is the normalized record handed to a renderer.
type Annotation struct {
	Time      int64   `json:"time" yaml:"time"`
	Price     float64 `json:"price" yaml:"price"`
	Kind      string  `json:"kind" yaml:"kind"`
	Label     string  `json:"label" yaml:"label"`
	Direction string  `json:"direction,omitempty" yaml:"direction,omitempty"`
	Position  string  `json:"position,omitempty" yaml:"position,omitempty"`
}
