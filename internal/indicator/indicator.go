// Package indicator provides the streaming Wilder DI/ADX calculation over
// bar data.
//
// State advances in O(1) per bar and is a pure function of the bar sequence:
// feeding the same bars in the same order always produces bit-identical
// DI/ADX series, which is what makes live and replay decisions comparable.
package indicator

import "time"

// Values is the indicator output for one bar.
type Values struct {
	DIPlus  float64 `json:"di_plus"`
	DIMinus float64 `json:"di_minus"`
	ADX     float64 `json:"adx"`

	// DIReady is true once the DI smoothing seed is complete (period+1 bars).
	DIReady bool `json:"di_ready"`
	// Ready is true once ADX is also seeded (2*period bars). Signals are
	// only considered when Ready.
	Ready bool `json:"ready"`
}

// Separation returns |+DI − -DI|.
func (v Values) Separation() float64 {
	d := v.DIPlus - v.DIMinus
	if d < 0 {
		return -d
	}
	return d
}

// Result pairs computed values with their source symbol and bar timestamp.
type Result struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"`
	Values Values    `json:"values"`
}
