// Package classify maps a live gaze feature onto a discrete direction using
// a calibration profile.
//
// Dependency rule: classify depends on gaze and gaze/stats only.
package classify

import (
	"math"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/stats"
)

// DeadzoneConfidence is reported for every CENTER classification. It is
// fixed so confidence never ranks how centered a gaze is.
const DeadzoneConfidence = 0.5

// Result is a single classification.
type Result struct {
	Direction  gaze.Direction `json:"direction"`
	Confidence float64        `json:"confidence"`
	Score      float64        `json:"score"`
}

// Classify scores features.X with the profile's regression. Scores within
// the deadzone are CENTER; outside it the sign picks LEFT or RIGHT and the
// confidence ramps linearly from the deadzone edge to a score magnitude
// of 1.
func Classify(features gaze.GazeFeatures, profile gaze.CalibrationProfile) Result {
	return ClassifyX(features.X, profile)
}

// ClassifyX is Classify for a bare x feature.
func ClassifyX(x float64, profile gaze.CalibrationProfile) Result {
	score := profile.Regression.Score(x)
	dz := profile.DeadzoneScore
	mag := math.Abs(score)

	if mag <= dz {
		return Result{Direction: gaze.DirectionCenter, Confidence: DeadzoneConfidence, Score: score}
	}

	dir := gaze.DirectionRight
	if score < 0 {
		dir = gaze.DirectionLeft
	}

	confidence := 1.0
	if span := 1 - dz; span > 0 {
		confidence = stats.Clamp((mag-dz)/span, 0, 1)
	}
	return Result{Direction: dir, Confidence: confidence, Score: score}
}
