package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# chartlab configuration
# Every value below is the built-in default. Any key can also be set through
# the environment, e.g. CHARTLAB_STORE_PATH or CHARTLAB_LOGGING_LEVEL.

[analysis]
# Candles on each side a swing high/low must dominate
swing_lookback = 5
# Relative distance within which swings join one support/resistance level
level_tolerance = 0.02
# Relative distance a close must clear a trend line to count as a breakout
breakout_tolerance = 0.02
# Enabled detectors (at most 6):
# ma_cross, triangle, head_shoulders, double, level_touch, trend_breakout
detectors = ["ma_cross", "triangle", "head_shoulders", "double", "level_touch", "trend_breakout"]
# Indicators computed for every report
indicators = ["adx", "bollinger", "cci", "ema", "macd", "obv", "roc", "rsi", "sma", "stochastic"]
# Indicator worker goroutines
workers = 4

[analysis.history]
# Days of history each detector sees, counted back from the last candle.
# 0 means the whole series.
levels_days = 365
trend_lines_days = 1095
triangle_days = 730
head_shoulders_days = 365
double_days = 365
ma_cross_days = 0

[analysis.ma_cross]
short = 50
long = 200

[analysis.triangle]
history = 15
lookahead = 5
breakout_tolerance = 0.02
volume_spike_factor = 1.5
volume_lookback = 7
min_progress = 0.5
max_progress = 0.8

[analysis.head_shoulders]
min_window = 15
max_window = 25
lookahead = 3
peak_lookback = 1
head_ratio = 0.95
shoulder_tolerance = 0.30
neckline_tolerance = 0.05
volume_spike_factor = 1.2

[analysis.double]
history = 20
lookahead = 5
peak_lookback = 2
price_tolerance = 0.05

[analysis.trend]
swing_lookback = 5
touch_tolerance = 0.06
min_touches = 3
slope_dedup = 0.10
keep_fraction = 0.25

[indicators]
rsi_period = 14
ema_period = 20
sma_period = 50
macd_fast = 12
macd_slow = 26
macd_signal = 9
stochastic_period = 14
bollinger_period = 20
bollinger_stddev = 2.0
cci_period = 20
adx_period = 14
roc_period = 12

[store]
# SQLite database file; defaults to ~/.config/chartlab/chartlab.db
# path = "/var/lib/chartlab/chartlab.db"
busy_timeout = "5s"
# Retries for writes that hit a locked database
max_retries = 5

[server]
addr = ":8080"
# Requests per second allowed per client IP
rate_limit = 5.0
rate_burst = 10
read_timeout = "15s"
write_timeout = "30s"
# Largest candle series accepted by POST /api/chart/analyze
max_candles = 20000

[watch]
# Cron schedule for re-analysing stored symbols
schedule = "@every 1h"
# Symbols to watch; empty watches every stored symbol
symbols = []
timeout = "2m"
# A symbol that fails this many runs in a row is skipped for the cooldown
failure_threshold = 3
cooldown = "6h"

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
# file_path = "/var/log/chartlab/chartlab.log"
max_size = 50
max_backups = 5
max_age = 14
`

// Template returns the commented default config.toml.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
