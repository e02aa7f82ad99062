package indicator

import "adx-systemv1/internal/model"

// Engine computes streaming DI/ADX per symbol.
// Designed for single-goroutine usage — no locks needed.
type Engine struct {
	period int
	state  map[string]*ADX
}

// NewEngine creates an engine computing DI/ADX with the given period for
// every symbol it sees.
func NewEngine(period int) *Engine {
	return &Engine{
		period: period,
		state:  make(map[string]*ADX, 64),
	}
}

// Process takes a finalized bar and returns the updated indicator values
// for that symbol. The first bar for a new symbol creates its calculator.
func (e *Engine) Process(bar model.Bar) Result {
	calc, exists := e.state[bar.Symbol]
	if !exists {
		calc = NewADX(e.period)
		e.state[bar.Symbol] = calc
	}
	return Result{
		Symbol: bar.Symbol,
		TS:     bar.TS,
		Values: calc.Update(bar),
	}
}

// Peek returns the current values for a symbol without consuming a bar.
// Returns zero values and false if the symbol has never been processed.
func (e *Engine) Peek(symbol string) (Values, bool) {
	calc, exists := e.state[symbol]
	if !exists {
		return Values{}, false
	}
	return calc.values(), true
}

// Symbols returns the symbols the engine currently tracks.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.state))
	for sym := range e.state {
		out = append(out, sym)
	}
	return out
}

// Reset drops all per-symbol state, for reuse across sessions.
func (e *Engine) Reset() {
	e.state = make(map[string]*ADX, 64)
}
