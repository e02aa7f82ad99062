package signal

import (
	"testing"
	"time"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/markethours"
	"adx-systemv1/internal/model"
)

func testConfig() Config {
	cutoff, _ := markethours.ParseTimeOfDay("14:45")
	return Config{
		MinDISeparation:  2.0,
		MinADXStrength:   20.0,
		VolumePercentile: 60.0,
		VolumeWindow:     20,
		MinVolumeRatio:   1.5,
		MinConfidence:    0.60,
		SignalCutoff:     cutoff,
	}
}

func vals(diPlus, diMinus, adx float64, ready bool) indicator.Values {
	return indicator.Values{DIPlus: diPlus, DIMinus: diMinus, ADX: adx, DIReady: ready, Ready: ready}
}

func barAt(symbol string, i int, close, vol int64) model.Bar {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, markethours.IST)
	return model.Bar{
		Symbol:   symbol,
		Interval: 300,
		TS:       ts.Add(time.Duration(i) * 5 * time.Minute),
		Open:     close,
		High:     close + 50,
		Low:      close - 50,
		Close:    close,
		Volume:   vol,
	}
}

// feedQuiet advances the detector through n signal-free bars so the volume
// history is seeded and a previous DI pair exists.
func feedQuiet(t *testing.T, d *Detector, symbol string, n int, vol int64) {
	t.Helper()
	for i := 0; i < n; i++ {
		sig, reason := d.OnBar(barAt(symbol, i, 245000, vol), vals(18, 20, 30, true))
		if sig != nil {
			t.Fatalf("quiet bar %d emitted a signal: %+v", i, sig)
		}
		if reason != RejectNone {
			t.Fatalf("quiet bar %d: reason %q, want none", i, reason)
		}
	}
}

func simClock() *clock.Sim {
	return clock.NewSim(time.Date(2026, 3, 2, 10, 0, 0, 0, markethours.IST))
}

func TestDetector_LongCrossoverFiresAtFlipBar(t *testing.T) {
	d := NewDetector(testConfig(), simClock())
	feedQuiet(t, d, "SBIN", 6, 1000)

	steps := []struct {
		diPlus, diMinus float64
		vol             int64
		wantSignal      bool
	}{
		{18, 20, 1000, false},
		{19, 19, 1000, false},
		{22, 17, 2000, true}, // first bar where +DI exceeds -DI after being <=
	}
	for i, st := range steps {
		sig, reason := d.OnBar(barAt("SBIN", 6+i, 245000, st.vol), vals(st.diPlus, st.diMinus, 30, true))
		if st.wantSignal {
			if sig == nil {
				t.Fatalf("step %d: no signal, reason=%q", i, reason)
			}
			if sig.Direction != model.Long {
				t.Errorf("Direction = %s, want LONG", sig.Direction)
			}
			if sig.EntryPrice != 245000 {
				t.Errorf("EntryPrice = %d, want 245000", sig.EntryPrice)
			}
			if sig.DISeparation != 5.0 {
				t.Errorf("DISeparation = %.2f, want 5.00", sig.DISeparation)
			}
			if sig.Confidence < 0.60 {
				t.Errorf("Confidence = %.3f, want >= 0.60", sig.Confidence)
			}
		} else if sig != nil {
			t.Fatalf("step %d: unexpected signal %+v", i, sig)
		}
	}
}

func TestDetector_ShortCrossover(t *testing.T) {
	d := NewDetector(testConfig(), simClock())
	// Mirror of the long setup: +DI above, then flips below with wide separation.
	for i := 0; i < 8; i++ {
		d.OnBar(barAt("TCS", i, 350000, 1000), vals(25, 15, 30, true))
	}
	sig, reason := d.OnBar(barAt("TCS", 8, 350000, 2000), vals(15, 25, 30, true))
	if sig == nil {
		t.Fatalf("no signal, reason=%q", reason)
	}
	if sig.Direction != model.Short {
		t.Errorf("Direction = %s, want SHORT", sig.Direction)
	}
}

func TestDetector_RejectReasons(t *testing.T) {
	tests := []struct {
		name            string
		diPlus, diMinus float64
		adx             float64
		vol             int64
		want            RejectReason
	}{
		{"weak ADX", 22, 17, 18, 2000, RejectWeakADX},
		{"low separation", 20.5, 19.5, 30, 2000, RejectLowSeparation},
		{"below volume percentile", 22, 17, 30, 900, RejectVolumePercentile},
		{"low volume ratio", 22, 17, 30, 1400, RejectVolumeRatio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(testConfig(), simClock())
			feedQuiet(t, d, "SBIN", 8, 1000)
			sig, reason := d.OnBar(barAt("SBIN", 8, 245000, tt.vol), vals(tt.diPlus, tt.diMinus, tt.adx, true))
			if sig != nil {
				t.Fatalf("unexpected signal %+v", sig)
			}
			if reason != tt.want {
				t.Errorf("reason = %q, want %q", reason, tt.want)
			}
		})
	}
}

func TestDetector_LowConfidence(t *testing.T) {
	d := NewDetector(testConfig(), simClock())
	feedQuiet(t, d, "SBIN", 8, 1000)

	// Thresholds barely met on every hard filter, so the composite score
	// lands well under 0.60.
	sig, reason := d.OnBar(barAt("SBIN", 8, 245000, 1600), vals(21, 19, 20, true))
	if sig != nil {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if reason != RejectLowConfidence {
		t.Errorf("reason = %q, want %q", reason, RejectLowConfidence)
	}
}

func TestDetector_AfterCutoff(t *testing.T) {
	clk := simClock()
	d := NewDetector(testConfig(), clk)
	feedQuiet(t, d, "SBIN", 8, 1000)

	clk.Set(time.Date(2026, 3, 2, 14, 45, 0, 0, markethours.IST))
	sig, reason := d.OnBar(barAt("SBIN", 8, 245000, 2000), vals(22, 17, 30, true))
	if sig != nil {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if reason != RejectAfterCutoff {
		t.Errorf("reason = %q, want %q", reason, RejectAfterCutoff)
	}
}

func TestDetector_WarmupSuppressed(t *testing.T) {
	d := NewDetector(testConfig(), simClock())
	sig, reason := d.OnBar(barAt("SBIN", 0, 245000, 1000), vals(22, 17, 30, false))
	if sig != nil {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if reason != RejectWarmup {
		t.Errorf("reason = %q, want %q", reason, RejectWarmup)
	}
}

func TestVolumeStats_NeutralUntilSeeded(t *testing.T) {
	v := newVolumeStats(20)
	for i := 0; i < minVolumeSamples-1; i++ {
		if r := v.Record(100); r != 1.0 {
			t.Fatalf("sample %d: ratio %.2f, want neutral 1.0", i, r)
		}
		if !v.AbovePercentile(1, 99) {
			t.Fatalf("sample %d: percentile filter should stay neutral", i)
		}
	}
	if r := v.Record(500); r <= 1.0 {
		t.Errorf("seeded spike: ratio %.2f, want > 1.0", r)
	}
}
