package gaze

import (
	"fmt"
	"math"
)

// Direction is the discrete gaze signal handed to UI and interaction
// collaborators.
type Direction string

const (
	DirectionLeft   Direction = "LEFT"
	DirectionRight  Direction = "RIGHT"
	DirectionCenter Direction = "CENTER"
	DirectionNoFace Direction = "NO_FACE" // no face in frame; also the no-signal label
	DirectionNoIris Direction = "NO_IRIS" // face present, iris landmarks missing
)

// Directions lists every Direction in a stable order.
var Directions = []Direction{
	DirectionLeft,
	DirectionRight,
	DirectionCenter,
	DirectionNoFace,
	DirectionNoIris,
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionLeft, DirectionRight, DirectionCenter, DirectionNoFace, DirectionNoIris:
		return true
	}
	return false
}

// ParseDirection converts a wire string into a Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

// ClassLabel is the calibration class a static target belongs to.
type ClassLabel string

const (
	ClassLeft   ClassLabel = "LEFT"
	ClassCenter ClassLabel = "CENTER"
	ClassRight  ClassLabel = "RIGHT"
)

// ClassLabels lists the three calibration classes in fit order.
var ClassLabels = []ClassLabel{ClassLeft, ClassCenter, ClassRight}

// Valid reports whether c is LEFT, CENTER or RIGHT.
func (c ClassLabel) Valid() bool {
	switch c {
	case ClassLeft, ClassCenter, ClassRight:
		return true
	}
	return false
}

// Target is the regression target used when fitting a profile.
func (c ClassLabel) Target() float64 {
	switch c {
	case ClassLeft:
		return -1
	case ClassRight:
		return 1
	default:
		return 0
	}
}

// Direction maps a class label onto the equivalent live direction.
func (c ClassLabel) Direction() Direction {
	switch c {
	case ClassLeft:
		return DirectionLeft
	case ClassRight:
		return DirectionRight
	default:
		return DirectionCenter
	}
}

// Landmark is one normalised face mesh point produced by the external
// detector. Z is optional depth and is never read by the engine.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Point2 is a 2D point in normalised frame coordinates.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeFeatures carries per-eye geometry for diagnostic overlays.
// The classifier never reads it.
type EyeFeatures struct {
	Iris        Point2  `json:"iris"`
	XRatio      float64 `json:"xRatio"`
	YRatio      float64 `json:"yRatio"`
	LeftCorner  Point2  `json:"leftCorner"`
	RightCorner Point2  `json:"rightCorner"`
	UpperLid    Point2  `json:"upperLid"`
	LowerLid    Point2  `json:"lowerLid"`
}

// GazeFeatures is the per-frame reduced signal, x and y nominally in [0,1].
type GazeFeatures struct {
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	LeftEye  *EyeFeatures `json:"leftEye,omitempty"`
	RightEye *EyeFeatures `json:"rightEye,omitempty"`
}

// Sample reduces the features to the calibration view.
func (f GazeFeatures) Sample() CalibrationSample {
	return CalibrationSample{X: f.X, Y: f.Y}
}

// CalibrationSample is the (x, y) view of GazeFeatures collected during
// calibration and validation windows.
type CalibrationSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both coordinates are finite numbers.
func (s CalibrationSample) Finite() bool {
	return !math.IsNaN(s.X) && !math.IsInf(s.X, 0) && !math.IsNaN(s.Y) && !math.IsInf(s.Y, 0)
}

// FiniteSamples returns the finite entries of samples in input order.
func FiniteSamples(samples []CalibrationSample) []CalibrationSample {
	out := make([]CalibrationSample, 0, len(samples))
	for _, s := range samples {
		if s.Finite() {
			out = append(out, s)
		}
	}
	return out
}

// Output is the engine's answer for one frame.
type Output struct {
	Direction  Direction     `json:"direction"`
	Confidence float64       `json:"confidence"`
	Features   *GazeFeatures `json:"features,omitempty"`
}
