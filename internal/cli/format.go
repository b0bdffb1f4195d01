package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateTimeLayout is used for candle timestamps in text output.
const DateTimeLayout = "2006-01-02 15:04"

// FormatNumber formats a number with thousands separators and two decimals.
func FormatNumber(value float64) string {
	negative := value < 0
	if negative {
		value = -value
	}

	str := fmt.Sprintf("%.2f", value)
	parts := strings.Split(str, ".")
	result := groupThousands(parts[0]) + "." + parts[1]
	if negative && result != "0.00" {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	head := n % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if math.IsNaN(price) {
		return "-"
	}
	if math.Abs(price) >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.4f", price)
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume float64) string {
	switch abs := math.Abs(volume); {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", volume/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", volume/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", volume/1e3)
	}
	return fmt.Sprintf("%.0f", volume)
}

// FormatTime formats a unix timestamp in UTC.
func FormatTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(DateTimeLayout)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatSlope formats a trend line slope as price change per day.
func FormatSlope(perSecond float64) string {
	perDay := perSecond * 86400
	sign := ""
	if perDay > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.4f/day", sign, perDay)
}

// FormatOHLC formats OHLC data.
func FormatOHLC(open, high, low, close float64) string {
	return fmt.Sprintf("O: %s  H: %s  L: %s  C: %s", FormatPrice(open), FormatPrice(high), FormatPrice(low), FormatPrice(close))
}
