package calibration

import (
	"github.com/banshee-data/gaze.intent/internal/config"
	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/classify"
)

// ValidationFrame is one classified frame gathered while the user looked at
// a validation target.
type ValidationFrame struct {
	PointID   string          `json:"pointId"`
	Expected  gaze.ClassLabel `json:"expected"`
	Predicted gaze.Direction  `json:"predicted"`
}

// ValidationOptions configures EvaluateValidationFrames.
type ValidationOptions struct {
	CenterPointID      string
	MinOverallAccuracy float64
	MinCenterAccuracy  float64
}

// DefaultValidationOptions returns the built-in gates.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptionsFromTuning(config.EmptyTuningConfig())
}

// ValidationOptionsFromTuning builds ValidationOptions from a tuning config.
func ValidationOptionsFromTuning(cfg *config.TuningConfig) ValidationOptions {
	return ValidationOptions{
		CenterPointID:      cfg.GetValidationCenterPointID(),
		MinOverallAccuracy: cfg.GetMinOverallAccuracy(),
		MinCenterAccuracy:  cfg.GetMinCenterAccuracy(),
	}
}

// EvaluateValidationFrames scores classified validation frames. Center
// accuracy counts only frames at opts.CenterPointID that were classified
// CENTER. No frames, or no center frames, fails closed.
func EvaluateValidationFrames(frames []ValidationFrame, opts ValidationOptions) gaze.ValidationSummary {
	if len(frames) == 0 {
		return gaze.ValidationSummary{}
	}

	var correct, centerFrames, centerCorrect int
	for _, f := range frames {
		if f.Predicted == f.Expected.Direction() {
			correct++
		}
		if f.PointID == opts.CenterPointID {
			centerFrames++
			if f.Predicted == gaze.DirectionCenter {
				centerCorrect++
			}
		}
	}

	summary := gaze.ValidationSummary{
		FrameCount:       len(frames),
		CenterFrameCount: centerFrames,
		OverallAccuracy:  float64(correct) / float64(len(frames)),
	}
	if centerFrames > 0 {
		summary.CenterAccuracy = float64(centerCorrect) / float64(centerFrames)
	}
	summary.Passed = summary.OverallAccuracy >= opts.MinOverallAccuracy &&
		summary.CenterAccuracy >= opts.MinCenterAccuracy
	return summary
}

// ClassifyValidationSamples classifies recorded validation samples against
// profile, one frame per finite sample, walking the validation targets in
// their static order. Unknown point IDs are ignored.
func ClassifyValidationSamples(samples map[string][]gaze.CalibrationSample, profile gaze.CalibrationProfile) []ValidationFrame {
	var frames []ValidationFrame
	for _, p := range validationPoints {
		for _, s := range gaze.FiniteSamples(samples[p.ID]) {
			frames = append(frames, ValidationFrame{
				PointID:   p.ID,
				Expected:  p.Expected,
				Predicted: classify.ClassifyX(s.X, profile).Direction,
			})
		}
	}
	return frames
}
