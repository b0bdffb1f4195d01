package watch

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a symbol's circuit.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // analysed on every tick
	CircuitOpen     CircuitState = "OPEN"      // skipped until the cooldown passes
	CircuitHalfOpen CircuitState = "HALF_OPEN" // one trial run allowed
)

// ErrCircuitOpen is returned for a symbol whose circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type circuit struct {
	state       CircuitState
	failures    int
	lastFailure time.Time
	lastErr     error
}

// breakers keeps one circuit per symbol so a broken series cannot starve
// the rest of the watch list.
type breakers struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

func newBreakers(threshold int, cooldown time.Duration) *breakers {
	if threshold <= 0 {
		threshold = 1
	}
	return &breakers{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

func (b *breakers) get(symbol string) *circuit {
	c, ok := b.circuits[symbol]
	if !ok {
		c = &circuit{state: CircuitClosed}
		b.circuits[symbol] = c
	}
	return c
}

// allow reports whether symbol may run now. An open circuit moves to
// half-open once the cooldown has elapsed.
func (b *breakers) allow(symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(symbol)
	if c.state == CircuitOpen {
		if b.now().Sub(c.lastFailure) < b.cooldown {
			return ErrCircuitOpen
		}
		c.state = CircuitHalfOpen
	}
	return nil
}

func (b *breakers) record(symbol string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(symbol)
	if err == nil {
		c.state = CircuitClosed
		c.failures = 0
		c.lastErr = nil
		return
	}

	c.failures++
	c.lastFailure = b.now()
	c.lastErr = err
	// Any failure in half-open goes straight back to open.
	if c.state == CircuitHalfOpen || c.failures >= b.threshold {
		c.state = CircuitOpen
	}
}

func (b *breakers) state(symbol string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[symbol]; ok {
		return c.state
	}
	return CircuitClosed
}

// SymbolStatus describes the circuit of one watched symbol.
type SymbolStatus struct {
	Symbol      string       `json:"symbol" yaml:"symbol"`
	State       CircuitState `json:"state" yaml:"state"`
	Failures    int          `json:"failures" yaml:"failures"`
	LastFailure time.Time    `json:"last_failure,omitempty" yaml:"last_failure,omitempty"`
	LastError   string       `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

func (b *breakers) snapshot() []SymbolStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]SymbolStatus, 0, len(b.circuits))
	for symbol, c := range b.circuits {
		st := SymbolStatus{Symbol: symbol, State: c.state, Failures: c.failures, LastFailure: c.lastFailure}
		if c.lastErr != nil {
			st.LastError = c.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}
