package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/gaze.intent/internal/gaze"
)

func profile(w, b, dz float64) gaze.CalibrationProfile {
	return gaze.CalibrationProfile{
		Version:       gaze.ProfileVersion,
		Regression:    gaze.Regression{W: w, B: b, Lambda: 0.25},
		DeadzoneScore: dz,
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	p := profile(4, -2, 0.15)

	tests := []struct {
		name       string
		x          float64
		want       gaze.Direction
		wantScore  float64
		confidence float64
	}{
		{"center", 0.5, gaze.DirectionCenter, 0, DeadzoneConfidence},
		{"left", 0.35, gaze.DirectionLeft, -0.6, (0.6 - 0.15) / 0.85},
		{"right", 0.7, gaze.DirectionRight, 0.8, (0.8 - 0.15) / 0.85},
		{"far right saturates", 2, gaze.DirectionRight, 6, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(gaze.GazeFeatures{X: tt.x, Y: 0.5}, p)
			assert.Equal(t, tt.want, got.Direction)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassify_DeadzoneBoundaryIsCenter(t *testing.T) {
	t.Parallel()
	// 4*0.5625-2 is exactly 0.25 in binary floating point.
	got := ClassifyX(0.5625, profile(4, -2, 0.25))
	assert.Equal(t, gaze.DirectionCenter, got.Direction)
	assert.Equal(t, DeadzoneConfidence, got.Confidence)
}

func TestClassify_ConfidenceBounded(t *testing.T) {
	t.Parallel()
	p := profile(4, -2, 0.3)
	for x := -1.0; x <= 2.0; x += 0.01 {
		r := ClassifyX(x, p)
		if r.Confidence < 0 || r.Confidence > 1 || math.IsNaN(r.Confidence) {
			t.Fatalf("x=%v confidence %v out of range", x, r.Confidence)
		}
	}
}

func TestClassify_IgnoresY(t *testing.T) {
	t.Parallel()
	p := profile(4, -2, 0.15)
	a := Classify(gaze.GazeFeatures{X: 0.7, Y: 0.1}, p)
	b := Classify(gaze.GazeFeatures{X: 0.7, Y: 0.9}, p)
	assert.Equal(t, a, b)
}
