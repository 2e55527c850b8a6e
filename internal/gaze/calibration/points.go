// Package calibration turns per-point calibration samples into a
// CalibrationProfile and scores the profile against validation targets.
//
// Dependency rule: calibration may depend on gaze, gaze/stats, gaze/classify
// and internal/config. It performs no I/O.
package calibration

import "github.com/banshee-data/gaze.intent/internal/gaze"

// PointDef is one static calibration target. Positions are percentages of
// the viewport width and height.
type PointDef struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Class gaze.ClassLabel `json:"class"`
	XPct  float64         `json:"xPct"`
	YPct  float64         `json:"yPct"`
	Hint  string          `json:"hint"`
}

// ValidationPointDef is one static validation target.
type ValidationPointDef struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Expected gaze.ClassLabel `json:"expected"`
	XPct     float64         `json:"xPct"`
	YPct     float64         `json:"yPct"`
}

// DefaultValidationCenterPointID is the validation target whose frames
// feed the center accuracy gate.
const DefaultValidationCenterPointID = "validation-center"

var calibrationPoints = [...]PointDef{
	{ID: "center-mid", Label: "Center", Class: gaze.ClassCenter, XPct: 50, YPct: 50, Hint: "Look at the center dot."},
	{ID: "left-mid", Label: "Left", Class: gaze.ClassLeft, XPct: 18, YPct: 50, Hint: "Move eyes left (not your head)."},
	{ID: "right-mid", Label: "Right", Class: gaze.ClassRight, XPct: 82, YPct: 50, Hint: "Move eyes right (not your head)."},
	{ID: "left-top", Label: "Left Top", Class: gaze.ClassLeft, XPct: 18, YPct: 28, Hint: "Look at the top-left dot."},
	{ID: "center-top", Label: "Center Top", Class: gaze.ClassCenter, XPct: 50, YPct: 28, Hint: "Look at the top-center dot."},
	{ID: "right-top", Label: "Right Top", Class: gaze.ClassRight, XPct: 82, YPct: 28, Hint: "Look at the top-right dot."},
	{ID: "right-bottom", Label: "Right Bottom", Class: gaze.ClassRight, XPct: 82, YPct: 72, Hint: "Look at the bottom-right dot."},
	{ID: "center-bottom", Label: "Center Bottom", Class: gaze.ClassCenter, XPct: 50, YPct: 72, Hint: "Look at the bottom-center dot."},
	{ID: "left-bottom", Label: "Left Bottom", Class: gaze.ClassLeft, XPct: 18, YPct: 72, Hint: "Look at the bottom-left dot."},
}

var validationPoints = [...]ValidationPointDef{
	{ID: "validation-left", Label: "Validation Left", Expected: gaze.ClassLeft, XPct: 30, YPct: 40},
	{ID: DefaultValidationCenterPointID, Label: "Validation Center", Expected: gaze.ClassCenter, XPct: 50, YPct: 60},
	{ID: "validation-right", Label: "Validation Right", Expected: gaze.ClassRight, XPct: 70, YPct: 40},
}

// CalibrationPoints returns a copy of the nine calibration targets in
// collection order.
func CalibrationPoints() []PointDef {
	out := make([]PointDef, len(calibrationPoints))
	copy(out, calibrationPoints[:])
	return out
}

// ValidationPoints returns a copy of the three validation targets.
func ValidationPoints() []ValidationPointDef {
	out := make([]ValidationPointDef, len(validationPoints))
	copy(out, validationPoints[:])
	return out
}

// CalibrationPointIDs returns the calibration target IDs in collection order.
func CalibrationPointIDs() []string {
	ids := make([]string, len(calibrationPoints))
	for i, p := range calibrationPoints {
		ids[i] = p.ID
	}
	return ids
}

// LookupPoint finds a calibration target by ID.
func LookupPoint(id string) (PointDef, bool) {
	for _, p := range calibrationPoints {
		if p.ID == id {
			return p, true
		}
	}
	return PointDef{}, false
}

// LookupValidationPoint finds a validation target by ID.
func LookupValidationPoint(id string) (ValidationPointDef, bool) {
	for _, p := range validationPoints {
		if p.ID == id {
			return p, true
		}
	}
	return ValidationPointDef{}, false
}
