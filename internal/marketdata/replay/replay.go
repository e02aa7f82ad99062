// Package replay emits historical bars for backtesting.
//
// Replay is strictly sequential in ascending bar-timestamp order, ties
// broken by symbol name, so every run over the same data produces the same
// decision sequence. The replayer advances the simulated clock to each
// bar's timestamp before emitting it, which is what drives square-off and
// cutoff checks downstream.
package replay

import (
	"context"
	"log"
	"sort"
	"time"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/model"
)

// BarSource supplies historical bars. fromTS filters to bars at or after
// the given Unix timestamp (0 = all).
type BarSource interface {
	ReadBars(fromTS int64) ([]model.Bar, error)
}

// Replayer reads bars from a source and replays them at a configurable
// speed multiplier.
type Replayer struct {
	src BarSource
	clk *clock.Sim
}

// New creates a Replayer. The Sim clock is shared with the rest of the
// engine so replayed decisions see bar time, not wall time.
func New(src BarSource, clk *clock.Sim) *Replayer {
	return &Replayer{src: src, clk: clk}
}

// Run replays all bars from the source into outCh.
// speed controls playback: 1.0 = real-time, 10.0 = 10x, 0 = as fast as possible.
func (r *Replayer) Run(ctx context.Context, fromTS int64, speed float64, outCh chan<- model.Bar) error {
	bars, err := r.src.ReadBars(fromTS)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		log.Println("[replay] no bars found")
		return nil
	}

	sort.Slice(bars, func(i, j int) bool {
		if !bars[i].TS.Equal(bars[j].TS) {
			return bars[i].TS.Before(bars[j].TS)
		}
		return bars[i].Symbol < bars[j].Symbol
	})

	log.Printf("[replay] loaded %d bars, speed=%.1fx", len(bars), speed)

	var prevTS time.Time
	emitted := 0

	for _, b := range bars {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between bars.
		if speed > 0 && !prevTS.IsZero() {
			gap := b.TS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = b.TS

		// Bar close time governs deadline checks for this bar.
		r.clk.Set(b.TS.Add(time.Duration(b.Interval) * time.Second))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case outCh <- b:
		}
		emitted++
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return nil
}
