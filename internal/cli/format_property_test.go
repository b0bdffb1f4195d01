package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// FormatNumber groups thousands, keeps two decimals and round-trips.
func TestProperty_NumberFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^-?\d{1,3}(,\d{3})*\.\d{2}$`)

	properties.Property("FormatNumber produces grouped output", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatNumber(amount)
			if !grouped.MatchString(formatted) {
				t.Logf("Invalid grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatNumber preserves value", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatNumber(amount)
			parsed, err := strconv.ParseFloat(strings.ReplaceAll(formatted, ",", ""), 64)
			if err != nil {
				t.Logf("Unparseable output %s: %v", formatted, err)
				return false
			}
			if diff := math.Abs(parsed - math.Round(amount*100)/100); diff > 0.01 {
				t.Logf("Value not preserved: original=%f, formatted=%s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestProperty_VolumeFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatVolume suffix matches magnitude", prop.ForAll(
		func(volume float64) bool {
			formatted := FormatVolume(volume)
			switch {
			case volume >= 1e9:
				return strings.HasSuffix(formatted, "B")
			case volume >= 1e6:
				return strings.HasSuffix(formatted, "M")
			case volume >= 1e3:
				return strings.HasSuffix(formatted, "K")
			default:
				_, err := strconv.ParseFloat(formatted, 64)
				return err == nil
			}
		},
		gen.Float64Range(0, 1e12),
	))

	properties.TestingRun(t)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0.00"},
		{999.5, "999.50"},
		{1000, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-1234.5, "-1,234.50"},
		{-0.001, "0.00"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.input); got != tt.expected {
			t.Errorf("FormatNumber(%v) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatPrice(123.456); got != "123.46" {
		t.Errorf("FormatPrice = %s", got)
	}
	if got := FormatPrice(0.123456); got != "0.1235" {
		t.Errorf("FormatPrice small = %s", got)
	}
	if got := FormatPrice(math.NaN()); got != "-" {
		t.Errorf("FormatPrice NaN = %s", got)
	}
	if got := FormatTime(1704067200); got != "2024-01-01 00:00" {
		t.Errorf("FormatTime = %s", got)
	}
	if got := FormatSlope(1.0 / 86400); got != "+1.0000/day" {
		t.Errorf("FormatSlope = %s", got)
	}
	if got := FormatPercent(-1.5); got != "-1.50%" {
		t.Errorf("FormatPercent = %s", got)
	}

	durations := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range durations {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %s, want %s", tt.d, got, tt.want)
		}
	}
}
