// Package features reduces face mesh landmarks to the normalised gaze
// feature consumed by calibration and classification.
//
// Dependency rule: features may depend on gaze and gaze/stats only.
package features

import (
	"math"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/stats"
)

// Face mesh sizes.
const (
	// MeshLandmarks is the canonical face mesh size without iris refinement.
	MeshLandmarks = 468
	// MeshLandmarksWithIris includes the 10 iris points (5 per eye).
	MeshLandmarksWithIris = 478
	irisPoints            = 10
	irisPointsPerEye      = 5
)

// Canonical mesh indices of the eye corners and lids. "Right" is the
// subject's right eye, which appears on the left of a mirrored frame.
const (
	RightEyeOuter = 33
	RightEyeInner = 133
	LeftEyeOuter  = 362
	LeftEyeInner  = 263

	RightUpperLid = 159
	RightLowerLid = 145
	LeftUpperLid  = 386
	LeftLowerLid  = 374
)

// minSpan is the smallest corner or lid span treated as measurable.
const minSpan = 1e-6

// Result is the outcome of Extract. Features is always populated; when
// HasIris is false it holds the neutral {0.5, 0.5}.
type Result struct {
	HasIris  bool
	Features gaze.GazeFeatures
}

// Extract reduces one face's landmarks to gaze features. It is pure and
// deterministic. Fewer than MeshLandmarks points, or a mesh without the
// iris refinement, yields HasIris=false and the neutral feature.
func Extract(landmarks []gaze.Landmark) Result {
	neutral := gaze.GazeFeatures{X: 0.5, Y: 0.5}
	if len(landmarks) < MeshLandmarksWithIris {
		return Result{HasIris: false, Features: neutral}
	}

	iris := landmarks[len(landmarks)-irisPoints:]
	rightIris := average(iris[:irisPointsPerEye])
	leftIris := average(iris[irisPointsPerEye:])

	rightEye := buildEye(
		rightIris,
		point(landmarks[RightEyeOuter]), point(landmarks[RightEyeInner]),
		point(landmarks[RightUpperLid]), point(landmarks[RightLowerLid]),
	)
	leftEye := buildEye(
		leftIris,
		point(landmarks[LeftEyeOuter]), point(landmarks[LeftEyeInner]),
		point(landmarks[LeftUpperLid]), point(landmarks[LeftLowerLid]),
	)

	return Result{
		HasIris: true,
		Features: gaze.GazeFeatures{
			X:        (rightEye.XRatio + leftEye.XRatio) / 2,
			Y:        (rightEye.YRatio + leftEye.YRatio) / 2,
			RightEye: &rightEye,
			LeftEye:  &leftEye,
		},
	}
}

func buildEye(iris, cornerA, cornerB, lidA, lidB gaze.Point2) gaze.EyeFeatures {
	leftCorner, rightCorner := cornerA, cornerB
	if cornerA.X > cornerB.X {
		leftCorner, rightCorner = cornerB, cornerA
	}
	upperLid, lowerLid := lidA, lidB
	if lidA.Y > lidB.Y {
		upperLid, lowerLid = lidB, lidA
	}

	return gaze.EyeFeatures{
		Iris:        iris,
		XRatio:      safeRatio(iris.X-leftCorner.X, rightCorner.X-leftCorner.X),
		YRatio:      safeRatio(iris.Y-upperLid.Y, lowerLid.Y-upperLid.Y),
		LeftCorner:  leftCorner,
		RightCorner: rightCorner,
		UpperLid:    upperLid,
		LowerLid:    lowerLid,
	}
}

// safeRatio returns exactly 0.5 for a degenerate span or non-finite input.
func safeRatio(numerator, denominator float64) float64 {
	if !stats.IsFinite(numerator) || !stats.IsFinite(denominator) || math.Abs(denominator) < minSpan {
		return 0.5
	}
	return numerator / denominator
}

func average(points []gaze.Landmark) gaze.Point2 {
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return gaze.Point2{X: sx / n, Y: sy / n}
}

func point(l gaze.Landmark) gaze.Point2 {
	return gaze.Point2{X: l.X, Y: l.Y}
}
