package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gaze.intent/internal/config"
	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/calibration"
)

// Config bundles everything a calibration run needs.
type Config struct {
	Countdown          time.Duration
	CollectionDuration time.Duration
	ValidationDuration time.Duration
	SampleInterval     time.Duration
	MaxRetries         int

	Quality    calibration.QualityThresholds
	Builder    calibration.BuilderConfig
	Validation calibration.ValidationOptions
}

// DefaultConfig returns the built-in run configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a run Config from a tuning config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Countdown:          cfg.GetCountdown(),
		CollectionDuration: cfg.GetCollectionDuration(),
		ValidationDuration: cfg.GetValidationDuration(),
		SampleInterval:     cfg.GetSampleInterval(),
		MaxRetries:         cfg.GetMaxRetries(),
		Quality:            calibration.QualityThresholdsFromTuning(cfg),
		Builder:            calibration.BuilderConfigFromTuning(cfg),
		Validation:         calibration.ValidationOptionsFromTuning(cfg),
	}
}

// Recording is the material an attempt is assembled from: the latest raw
// samples per calibration point and per validation target.
type Recording struct {
	PointSamples      map[string][]gaze.CalibrationSample `json:"pointSamples"`
	ValidationSamples map[string][]gaze.CalibrationSample `json:"validationSamples"`
	RetryCount        int                                 `json:"retryCount,omitempty"`
	FailedPointIDs    []string                            `json:"failedPointIds,omitempty"`
}

// Outcome is an assembled attempt.
type Outcome struct {
	// Profile is nil only when not even a degraded fit was possible.
	Profile *gaze.CalibrationProfile
	Attempt gaze.AttemptRecord
	Points  calibration.PointsResult
	// Degraded is set when the profile was fitted over short buckets.
	Degraded bool
	Frames   []calibration.ValidationFrame
}

// Assemble builds the profile, scores validation and produces the attempt
// record for rec. Reason precedence is INSUFFICIENT_CLEAN_SAMPLES, then
// VALIDATION_FAILED, then OK; only OK is a SUCCESS. A profile is returned
// whenever one could be fitted, including degraded and unvalidated ones.
func Assemble(rec Recording, cfg Config, now time.Time) (*Outcome, error) {
	builder := cfg.Builder
	builder.Now = func() time.Time { return now }

	points, err := calibration.BuildProfileFromPoints(rec.PointSamples, builder)
	if err != nil && !errors.Is(err, calibration.ErrDegenerateFit) {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	out := &Outcome{Points: points}
	if points.OK {
		out.Profile = points.Profile
	} else {
		// Short buckets or a degenerate full fit: fall back to whatever
		// was pooled. An empty pool leaves the attempt without a profile.
		degraded, derr := calibration.BuildProfile(points.Pools, builder)
		if derr == nil {
			out.Profile = &degraded
			out.Degraded = true
		} else {
			logf("degraded fit unavailable: %v", derr)
		}
	}

	bucketCounts := points.BucketCounts
	attempt := gaze.AttemptRecord{
		Version:           gaze.AttemptVersion,
		AttemptedAt:       now.UTC(),
		Profile:           out.Profile,
		PointSampleCounts: rawPointCounts(rec.PointSamples),
		RetryCount:        rec.RetryCount,
		FailedPointIDs:    append([]string(nil), rec.FailedPointIDs...),
		BucketCounts:      &bucketCounts,
	}

	if out.Profile != nil {
		out.Frames = calibration.ClassifyValidationSamples(rec.ValidationSamples, *out.Profile)
		summary := calibration.EvaluateValidationFrames(out.Frames, cfg.Validation)
		attempt.Validation = &summary
	}

	switch {
	case !points.OK:
		attempt.Status = gaze.AttemptFailed
		attempt.Reason = gaze.AttemptReasonInsufficientCleanSamples
	case attempt.Validation == nil || !attempt.Validation.Passed:
		attempt.Status = gaze.AttemptFailed
		attempt.Reason = gaze.AttemptReasonValidationFailed
	default:
		attempt.Status = gaze.AttemptSuccess
		attempt.Reason = gaze.AttemptReasonOK
	}

	if err := attempt.Validate(); err != nil {
		return nil, fmt.Errorf("assemble attempt: %w", err)
	}
	out.Attempt = attempt
	return out, nil
}

// rawPointCounts counts every calibration point's raw samples, zero for
// points that were never collected.
func rawPointCounts(samples map[string][]gaze.CalibrationSample) map[string]int {
	ids := calibration.CalibrationPointIDs()
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = len(samples[id])
	}
	return counts
}
