package indicators

import (
	"fmt"
	"sort"
	"strings"

	apperrors "chartlab/internal/errors"
)

// Params carries the periods used when building indicators by name.
type Params struct {
	RSIPeriod        int     `mapstructure:"rsi_period"`
	EMAPeriod        int     `mapstructure:"ema_period"`
	SMAPeriod        int     `mapstructure:"sma_period"`
	MACDFast         int     `mapstructure:"macd_fast"`
	MACDSlow         int     `mapstructure:"macd_slow"`
	MACDSignal       int     `mapstructure:"macd_signal"`
	StochasticPeriod int     `mapstructure:"stochastic_period"`
	BollingerPeriod  int     `mapstructure:"bollinger_period"`
	BollingerStdDev  float64 `mapstructure:"bollinger_stddev"`
	CCIPeriod        int     `mapstructure:"cci_period"`
	ADXPeriod        int     `mapstructure:"adx_period"`
	ROCPeriod        int     `mapstructure:"roc_period"`
}

// DefaultParams returns the periods the chart front end has always used.
func DefaultParams() Params {
	return Params{
		RSIPeriod:        14,
		EMAPeriod:        20,
		SMAPeriod:        50,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		StochasticPeriod: 14,
		BollingerPeriod:  20,
		BollingerStdDev:  2,
		CCIPeriod:        20,
		ADXPeriod:        14,
		ROCPeriod:        12,
	}
}

var builders = map[string]func(p Params) Indicator{
	"rsi":        func(p Params) Indicator { return NewRSI(p.RSIPeriod) },
	"ema":        func(p Params) Indicator { return NewEMA(p.EMAPeriod) },
	"sma":        func(p Params) Indicator { return NewSMA(p.SMAPeriod) },
	"macd":       func(p Params) Indicator { return NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal) },
	"stochastic": func(p Params) Indicator { return NewStochastic(p.StochasticPeriod) },
	"bollinger":  func(p Params) Indicator { return NewBollinger(p.BollingerPeriod, p.BollingerStdDev) },
	"obv":        func(p Params) Indicator { return NewOBV() },
	"cci":        func(p Params) Indicator { return NewCCI(p.CCIPeriod) },
	"adx":        func(p Params) Indicator { return NewADX(p.ADXPeriod) },
	"roc":        func(p Params) Indicator { return NewROC(p.ROCPeriod) },
}

// Validate reports a non-positive period or band width.
func (p Params) Validate() error {
	if err := validPeriods(p.RSIPeriod, p.EMAPeriod, p.SMAPeriod, p.MACDFast, p.MACDSlow, p.MACDSignal,
		p.StochasticPeriod, p.BollingerPeriod, p.CCIPeriod, p.ADXPeriod, p.ROCPeriod); err != nil {
		return err
	}
	if p.BollingerStdDev <= 0 {
		return fmt.Errorf("bollinger stddev %v: %w", p.BollingerStdDev, ErrInvalidPeriod)
	}
	return nil
}

// Lookup builds the indicator registered under name (case-insensitive).
func (p Params) Lookup(name string) (Indicator, error) {
	build, ok := builders[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, apperrors.ErrUnknownIndicator)
	}
	return build(p), nil
}

// Lookup builds an indicator by name with default periods.
func Lookup(name string) (Indicator, error) {
	return DefaultParams().Lookup(name)
}

// Names returns the sorted list of names Lookup accepts.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithPeriod returns a copy of p with the period of the named indicator
// replaced. MACD and OBV, which have no single period, are left unchanged.
func (p Params) WithPeriod(name string, period int) Params {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rsi":
		p.RSIPeriod = period
	case "ema":
		p.EMAPeriod = period
	case "sma":
		p.SMAPeriod = period
	case "stochastic":
		p.StochasticPeriod = period
	case "bollinger":
		p.BollingerPeriod = period
	case "cci":
		p.CCIPeriod = period
	case "adx":
		p.ADXPeriod = period
	case "roc":
		p.ROCPeriod = period
	}
	return p
}
