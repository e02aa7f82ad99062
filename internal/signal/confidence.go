package signal

// Confidence weights. Volume conviction, DI separation and raw ADX carry
// most of the score; trend consistency blends separation and ADX again at
// wider normalization spans.
const (
	weightVolumeRatio  = 0.25
	weightDISeparation = 0.30
	weightADXStrength  = 0.25
	weightTrend        = 0.20
)

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// confidenceScore folds the quality metrics into a single [0,1] score.
func confidenceScore(volRatio, diSeparation, adx float64) float64 {
	volScore := clamp01(volRatio / 2.0)
	diScore := clamp01(diSeparation / 10.0)
	adxScore := clamp01(adx / 50.0)
	trendScore := clamp01(diSeparation/20.0)*0.6 + adxScore*0.4

	score := volScore*weightVolumeRatio +
		diScore*weightDISeparation +
		adxScore*weightADXStrength +
		trendScore*weightTrend
	return clamp01(score)
}
