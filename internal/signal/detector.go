// Package signal detects DI crossovers and applies ordered quality filters
// before emitting directional signals.
//
// A crossover alone is not a signal: the detector runs each candidate
// through separation, trend-strength, volume and confidence filters in a
// fixed order, short-circuiting on the first failure. Every rejection
// carries a distinct reason so downstream metrics can attribute drops.
package signal

import (
	"log"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/markethours"
	"adx-systemv1/internal/model"
)

// RejectReason identifies which filter dropped a crossover candidate.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectWarmup           RejectReason = "warmup_incomplete"
	RejectLowSeparation    RejectReason = "low_di_separation"
	RejectWeakADX          RejectReason = "weak_adx"
	RejectVolumePercentile RejectReason = "below_volume_percentile"
	RejectVolumeRatio      RejectReason = "low_volume_ratio"
	RejectLowConfidence    RejectReason = "low_confidence"
	RejectAfterCutoff      RejectReason = "after_signal_cutoff"
)

// Config holds the detector's filter thresholds. All fields are resolved
// once at startup and never mutated.
type Config struct {
	MinDISeparation  float64
	MinADXStrength   float64
	VolumePercentile float64 // e.g. 60 = current volume must beat the 60th percentile
	VolumeWindow     int     // rolling window for the percentile filter
	MinVolumeRatio   float64
	MinConfidence    float64
	SignalCutoff     markethours.TimeOfDay
}

// symbolState carries the per-symbol crossover context.
type symbolState struct {
	prevDIPlus  float64
	prevDIMinus float64
	havePrev    bool
	vol         *volumeStats
}

// Detector turns indicator updates into qualified signals.
// Single-goroutine per instance — callers owning multiple symbols
// concurrently must shard detectors or serialize calls.
type Detector struct {
	cfg   Config
	clk   clock.Clock
	state map[string]*symbolState
}

// NewDetector creates a detector reading time only through clk.
func NewDetector(cfg Config, clk clock.Clock) *Detector {
	return &Detector{
		cfg:   cfg,
		clk:   clk,
		state: make(map[string]*symbolState, 64),
	}
}

func (d *Detector) symbol(sym string) *symbolState {
	st, ok := d.state[sym]
	if !ok {
		st = &symbolState{vol: newVolumeStats(d.cfg.VolumeWindow)}
		d.state[sym] = st
	}
	return st
}

// OnBar consumes one bar and its indicator values. It returns a qualified
// Signal, or nil plus the reason the candidate was dropped. A bar with no
// crossover returns (nil, RejectNone).
func (d *Detector) OnBar(bar model.Bar, vals indicator.Values) (*model.Signal, RejectReason) {
	st := d.symbol(bar.Symbol)

	// Volume history accrues on every bar, warm or not, so the rolling
	// stats are seeded by the time signals become possible.
	volRatio := st.vol.Record(bar.Volume)

	prevPlus, prevMinus, havePrev := st.prevDIPlus, st.prevDIMinus, st.havePrev
	st.prevDIPlus, st.prevDIMinus, st.havePrev = vals.DIPlus, vals.DIMinus, vals.Ready

	if !vals.Ready {
		return nil, RejectWarmup
	}
	if !havePrev {
		// First ready bar: no previous DI pair to cross against.
		return nil, RejectNone
	}

	var dir model.Direction
	switch {
	case prevPlus <= prevMinus && vals.DIPlus > vals.DIMinus:
		dir = model.Long
	case prevPlus >= prevMinus && vals.DIPlus < vals.DIMinus:
		dir = model.Short
	default:
		return nil, RejectNone
	}

	sep := vals.Separation()
	if sep < d.cfg.MinDISeparation {
		return nil, RejectLowSeparation
	}
	if vals.ADX < d.cfg.MinADXStrength {
		return nil, RejectWeakADX
	}
	if !st.vol.AbovePercentile(bar.Volume, d.cfg.VolumePercentile) {
		return nil, RejectVolumePercentile
	}
	if volRatio < d.cfg.MinVolumeRatio {
		return nil, RejectVolumeRatio
	}

	conf := confidenceScore(volRatio, sep, vals.ADX)
	if conf < d.cfg.MinConfidence {
		return nil, RejectLowConfidence
	}

	if d.cfg.SignalCutoff.Reached(d.clk.Now()) {
		return nil, RejectAfterCutoff
	}

	sig := &model.Signal{
		Symbol:       bar.Symbol,
		Direction:    dir,
		TS:           bar.TS,
		DIPlus:       vals.DIPlus,
		DIMinus:      vals.DIMinus,
		ADX:          vals.ADX,
		DISeparation: sep,
		Confidence:   conf,
		VolumeRatio:  volRatio,
		EntryPrice:   bar.Close,
		Volume:       bar.Volume,
	}
	log.Printf("[signal] %s %s crossover qualified: +DI=%.2f -DI=%.2f ADX=%.2f conf=%.2f",
		bar.Symbol, dir, vals.DIPlus, vals.DIMinus, vals.ADX, conf)
	return sig, RejectNone
}

// Reset drops all per-symbol state at a session boundary.
func (d *Detector) Reset() {
	d.state = make(map[string]*symbolState, 64)
}
