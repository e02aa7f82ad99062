package indicator

import "adx-systemv1/internal/model"

// ADX maintains streaming Wilder-smoothed TR / +DM / -DM / +DI / -DI / ADX
// for a single symbol. O(1) per update, no window storage.
//
// TR, +DM and -DM use the Wilder accumulation form
//
//	s[t] = s[t-1] - s[t-1]/period + v[t]
//
// seeded by the simple average of the first `period` raw values. DI is the
// ratio 100*smDM/smTR, so the common scale cancels. ADX smooths DX with the
// bounded form s[t] = s[t-1] + (v[t]-s[t-1])/period (same 1/period factor,
// keeps ADX inside 0..100), seeded by the average of the first `period` DX
// values.
type ADX struct {
	period int

	bars     int // bars seen, including the first (no TR) bar
	prevHigh int64
	prevLow  int64
	prevClose int64

	// Seed accumulators, used for the first `period` TR samples.
	trSeed    float64
	plusSeed  float64
	minusSeed float64

	// Wilder-smoothed running values.
	smTR    float64
	smPlus  float64
	smMinus float64

	diPlus  float64
	diMinus float64

	// ADX chain.
	dxCount int
	dxSeed  float64
	adx     float64
}

// NewADX creates a streaming DI/ADX calculator with the given period.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Period returns the configured smoothing period.
func (a *ADX) Period() int { return a.period }

// BarsSeen returns the number of bars consumed so far.
func (a *ADX) BarsSeen() int { return a.bars }

// Update consumes one bar and returns the indicator values after it.
func (a *ADX) Update(bar model.Bar) Values {
	high := float64(bar.High)
	low := float64(bar.Low)

	a.bars++
	if a.bars == 1 {
		// First bar: no previous close, so no TR/DM yet.
		a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close
		return a.values()
	}

	prevHigh := float64(a.prevHigh)
	prevLow := float64(a.prevLow)
	prevClose := float64(a.prevClose)

	// True Range = max(high-low, |high-prevClose|, |low-prevClose|).
	tr := high - low
	if d := abs(high - prevClose); d > tr {
		tr = d
	}
	if d := abs(low - prevClose); d > tr {
		tr = d
	}

	// Directional movements: zeroed when non-positive or when the opposite
	// move dominates.
	upMove := high - prevHigh
	downMove := prevLow - low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close

	trSamples := a.bars - 1
	switch {
	case trSamples < a.period:
		a.trSeed += tr
		a.plusSeed += plusDM
		a.minusSeed += minusDM
		return a.values()

	case trSamples == a.period:
		// Seed: simple average of the first `period` raw values.
		a.trSeed += tr
		a.plusSeed += plusDM
		a.minusSeed += minusDM
		p := float64(a.period)
		a.smTR = a.trSeed / p
		a.smPlus = a.plusSeed / p
		a.smMinus = a.minusSeed / p

	default:
		p := float64(a.period)
		a.smTR = a.smTR - a.smTR/p + tr
		a.smPlus = a.smPlus - a.smPlus/p + plusDM
		a.smMinus = a.smMinus - a.smMinus/p + minusDM
	}

	if a.smTR > 0 {
		a.diPlus = 100 * a.smPlus / a.smTR
		a.diMinus = 100 * a.smMinus / a.smTR
	} else {
		a.diPlus, a.diMinus = 0, 0
	}

	// DX is defined as 0 when both DI are 0.
	dx := 0.0
	if sum := a.diPlus + a.diMinus; sum > 0 {
		dx = 100 * abs(a.diPlus-a.diMinus) / sum
	}

	a.dxCount++
	switch {
	case a.dxCount < a.period:
		a.dxSeed += dx
	case a.dxCount == a.period:
		a.dxSeed += dx
		a.adx = a.dxSeed / float64(a.period)
	default:
		a.adx += (dx - a.adx) / float64(a.period)
	}

	return a.values()
}

func (a *ADX) values() Values {
	return Values{
		DIPlus:  a.diPlus,
		DIMinus: a.diMinus,
		ADX:     a.adx,
		DIReady: a.bars > a.period,
		Ready:   a.dxCount >= a.period,
	}
}

// Reset clears all state for reuse at a session boundary.
func (a *ADX) Reset() {
	period := a.period
	*a = ADX{period: period}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
