package calibration

import (
	"math"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/stats"
)

// DefaultTrimMultiplier scales the MAD into the trimming tolerance.
const DefaultTrimMultiplier = 2.5

// minTrimTolerance keeps a near-zero MAD from discarding all but one sample.
const minTrimTolerance = 1e-4

// TrimOutliersByMAD keeps the finite samples whose x lies within
// max(multiplier*MAD, 1e-4) of the median x. Only x is examined. Input
// order is preserved. A non-positive multiplier uses DefaultTrimMultiplier.
func TrimOutliersByMAD(samples []gaze.CalibrationSample, multiplier float64) []gaze.CalibrationSample {
	valid := gaze.FiniteSamples(samples)
	if len(valid) == 0 {
		return []gaze.CalibrationSample{}
	}
	if multiplier <= 0 || !stats.IsFinite(multiplier) {
		multiplier = DefaultTrimMultiplier
	}

	xs := make([]float64, len(valid))
	for i, s := range valid {
		xs[i] = s.X
	}
	center := stats.Median(xs)
	spread := stats.MAD(xs, center)
	tolerance := math.Max(multiplier*spread, minTrimTolerance)

	kept := make([]gaze.CalibrationSample, 0, len(valid))
	for _, s := range valid {
		if math.Abs(s.X-center) <= tolerance {
			kept = append(kept, s)
		}
	}
	return kept
}
