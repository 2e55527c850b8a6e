package calibration

import (
	"github.com/banshee-data/gaze.intent/internal/config"
	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/stats"
)

// Reason is a machine-readable outcome code for the quality gate and the
// profile builder.
type Reason string

const (
	ReasonOK                       Reason = "OK"
	ReasonLowSampleCount           Reason = "LOW_SAMPLE_COUNT"
	ReasonJitterX                  Reason = "JITTER_X"
	ReasonJitterY                  Reason = "JITTER_Y"
	ReasonInsufficientCleanSamples Reason = "INSUFFICIENT_CLEAN_SAMPLES"
)

// QualityThresholds bounds what counts as a steady fixation.
type QualityThresholds struct {
	MinSamples int
	MaxStddevX float64
	MaxStddevY float64
}

// DefaultQualityThresholds returns the built-in thresholds.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholdsFromTuning(config.EmptyTuningConfig())
}

// QualityThresholdsFromTuning builds thresholds from a tuning config.
func QualityThresholdsFromTuning(cfg *config.TuningConfig) QualityThresholds {
	return QualityThresholds{
		MinSamples: cfg.GetMinSamples(),
		MaxStddevX: cfg.GetMaxStddevX(),
		MaxStddevY: cfg.GetMaxStddevY(),
	}
}

// QualityMetrics are the measurements behind a PointQualityResult.
type QualityMetrics struct {
	SampleCount int     `json:"sampleCount"`
	StddevX     float64 `json:"stddevX"`
	StddevY     float64 `json:"stddevY"`
}

// PointQualityResult is the gate's verdict on one point's samples.
type PointQualityResult struct {
	Accepted bool           `json:"accepted"`
	Reason   Reason         `json:"reason"`
	Metrics  QualityMetrics `json:"metrics"`
}

// EvaluatePointQuality decides whether one point's samples came from a
// steady fixation. Non-finite samples are dropped first. Checks run in a
// fixed order (count, x jitter, y jitter) and the first failure names the
// reason. The verdict drives retries only; it does not clean the samples.
func EvaluatePointQuality(samples []gaze.CalibrationSample, th QualityThresholds) PointQualityResult {
	valid := gaze.FiniteSamples(samples)

	xs := make([]float64, len(valid))
	ys := make([]float64, len(valid))
	for i, s := range valid {
		xs[i] = s.X
		ys[i] = s.Y
	}

	m := QualityMetrics{
		SampleCount: len(valid),
		StddevX:     stats.PopStdDev(xs),
		StddevY:     stats.PopStdDev(ys),
	}

	reason := ReasonOK
	switch {
	case m.SampleCount < th.MinSamples:
		reason = ReasonLowSampleCount
	case m.StddevX > th.MaxStddevX:
		reason = ReasonJitterX
	case m.StddevY > th.MaxStddevY:
		reason = ReasonJitterY
	}

	return PointQualityResult{Accepted: reason == ReasonOK, Reason: reason, Metrics: m}
}
