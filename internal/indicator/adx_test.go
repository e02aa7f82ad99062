package indicator

import (
	"testing"
	"time"

	"adx-systemv1/internal/model"
)

func mkBar(symbol string, ts time.Time, open, high, low, close int64, vol int64) model.Bar {
	return model.Bar{
		Symbol:   symbol,
		Interval: 300,
		TS:       ts,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   vol,
	}
}

// risingBars produces a steadily climbing series: every bar's high exceeds
// the previous high while lows keep up, so +DM dominates throughout.
func risingBars(symbol string, n int) []model.Bar {
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]model.Bar, 0, n)
	base := int64(10000)
	for i := 0; i < n; i++ {
		lo := base + int64(i)*100
		hi := lo + 150
		bars = append(bars, mkBar(symbol, ts.Add(time.Duration(i)*5*time.Minute), lo+20, hi, lo, hi-30, 1000))
	}
	return bars
}

func TestADX_WarmupBoundaries(t *testing.T) {
	const period = 3
	a := NewADX(period)
	bars := risingBars("SBIN", 2*period+2)

	for i, bar := range bars {
		v := a.Update(bar)
		barNum := i + 1

		wantDIReady := barNum >= period+1
		if v.DIReady != wantDIReady {
			t.Errorf("bar %d: DIReady=%v, want %v", barNum, v.DIReady, wantDIReady)
		}

		wantReady := barNum >= 2*period
		if v.Ready != wantReady {
			t.Errorf("bar %d: Ready=%v, want %v", barNum, v.Ready, wantReady)
		}
	}
}

func TestADX_RisingTrend(t *testing.T) {
	const period = 3
	a := NewADX(period)

	var v Values
	for _, bar := range risingBars("SBIN", 10) {
		v = a.Update(bar)
	}

	if !v.Ready {
		t.Fatal("expected Ready after 10 bars")
	}
	if v.DIPlus <= v.DIMinus {
		t.Errorf("rising series: DIPlus=%.2f should exceed DIMinus=%.2f", v.DIPlus, v.DIMinus)
	}
	if v.ADX <= 0 || v.ADX > 100 {
		t.Errorf("ADX=%.2f out of range (0, 100]", v.ADX)
	}
	if sep := v.Separation(); sep != v.DIPlus-v.DIMinus {
		t.Errorf("Separation=%.2f, want %.2f", sep, v.DIPlus-v.DIMinus)
	}
}

func TestADX_FlatSeriesZeroDX(t *testing.T) {
	const period = 3
	a := NewADX(period)
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)

	// Identical bars: TR and both DMs are zero, so DI and DX stay zero.
	var v Values
	for i := 0; i < 2*period+2; i++ {
		v = a.Update(mkBar("IDEA", ts.Add(time.Duration(i)*5*time.Minute), 700, 700, 700, 700, 500))
	}

	if v.DIPlus != 0 || v.DIMinus != 0 {
		t.Errorf("flat series: DI=(%.2f, %.2f), want (0, 0)", v.DIPlus, v.DIMinus)
	}
	if v.ADX != 0 {
		t.Errorf("flat series: ADX=%.2f, want 0", v.ADX)
	}
	if !v.Ready {
		t.Error("readiness is a bar count property, flat series should still become Ready")
	}
}

func TestADX_Deterministic(t *testing.T) {
	const period = 14
	bars := risingBars("RELIANCE", 60)
	// Perturb the tail so the series is not monotone.
	for i := 30; i < 60; i += 3 {
		bars[i].Low -= 400
		bars[i].Close = bars[i].Low + 50
	}

	run := func() []Values {
		a := NewADX(period)
		out := make([]Values, 0, len(bars))
		for _, bar := range bars {
			out = append(out, a.Update(bar))
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bar %d: runs diverged: %+v vs %+v", i+1, first[i], second[i])
		}
	}
}

func TestADX_Reset(t *testing.T) {
	a := NewADX(5)
	for _, bar := range risingBars("TCS", 20) {
		a.Update(bar)
	}
	a.Reset()
	if a.BarsSeen() != 0 {
		t.Errorf("BarsSeen after Reset = %d, want 0", a.BarsSeen())
	}
	if v := a.values(); v.DIReady || v.Ready || v.ADX != 0 {
		t.Errorf("state after Reset = %+v, want zero", v)
	}
}
