package signal

import "sort"

// minVolumeSamples is the history size below which volume filters stay
// neutral rather than rejecting on thin evidence.
const minVolumeSamples = 5

// ratioWindow is the lookback for the volume/average ratio.
const ratioWindow = 20

// volumeStats keeps a bounded rolling history of bar volumes for one symbol.
type volumeStats struct {
	window int // percentile lookback
	hist   []int64
}

func newVolumeStats(window int) *volumeStats {
	if window < ratioWindow {
		window = ratioWindow
	}
	return &volumeStats{window: window}
}

// Record appends a volume sample and returns the ratio of the sample to the
// trailing 20-bar average (sample included). Returns 1.0 while fewer than
// minVolumeSamples samples exist or the average is zero.
func (v *volumeStats) Record(vol int64) float64 {
	v.hist = append(v.hist, vol)
	if len(v.hist) > v.window {
		v.hist = v.hist[len(v.hist)-v.window:]
	}

	n := len(v.hist)
	if n < minVolumeSamples {
		return 1.0
	}
	span := n
	if span > ratioWindow {
		span = ratioWindow
	}
	var sum int64
	for _, s := range v.hist[n-span:] {
		sum += s
	}
	avg := float64(sum) / float64(span)
	if avg <= 0 {
		return 1.0
	}
	return float64(vol) / avg
}

// AbovePercentile reports whether vol exceeds the pct-th percentile
// (nearest-rank) of the recorded history. Neutral (true) while fewer than
// minVolumeSamples samples exist.
func (v *volumeStats) AbovePercentile(vol int64, pct float64) bool {
	n := len(v.hist)
	if n < minVolumeSamples {
		return true
	}
	sorted := make([]int64, n)
	copy(sorted, v.hist)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(pct / 100 * float64(n))
	if rank >= n {
		rank = n - 1
	}
	if rank < 0 {
		rank = 0
	}
	return vol > sorted[rank]
}
