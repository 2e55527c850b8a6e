package gaze

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// AttemptVersion is the schema version of diagnostic attempt records.
const AttemptVersion = 1

// ErrInvalidAttempt is returned when an attempt record fails validation.
var ErrInvalidAttempt = errors.New("invalid calibration attempt")

// AttemptStatus is the overall outcome of a calibration run.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "SUCCESS"
	AttemptFailed  AttemptStatus = "FAILED"
)

// Attempt reasons recorded alongside the status.
const (
	AttemptReasonOK                       = "OK"
	AttemptReasonValidationFailed         = "VALIDATION_FAILED"
	AttemptReasonInsufficientCleanSamples = "INSUFFICIENT_CLEAN_SAMPLES"
)

// BucketCounts holds pooled cleaned sample counts per class label.
type BucketCounts struct {
	Left   int `json:"LEFT"`
	Center int `json:"CENTER"`
	Right  int `json:"RIGHT"`
}

// Get returns the count for label.
func (b BucketCounts) Get(label ClassLabel) int {
	switch label {
	case ClassLeft:
		return b.Left
	case ClassRight:
		return b.Right
	default:
		return b.Center
	}
}

// ValidationSummary is the persisted subset of validation metrics.
type ValidationSummary struct {
	Passed           bool    `json:"passed"`
	OverallAccuracy  float64 `json:"overallAccuracy"`
	CenterAccuracy   float64 `json:"centerAccuracy"`
	FrameCount       int     `json:"frameCount"`
	CenterFrameCount int     `json:"centerFrameCount"`
}

// AttemptRecord is the diagnostic record written once per calibration run.
type AttemptRecord struct {
	Version           int                 `json:"version"`
	AttemptedAt       time.Time           `json:"-"`
	Status            AttemptStatus       `json:"status"`
	Reason            string              `json:"reason"`
	Profile           *CalibrationProfile `json:"profile,omitempty"`
	PointSampleCounts map[string]int      `json:"pointSampleCounts"`
	RetryCount        int                 `json:"retryCount"`
	FailedPointIDs    []string            `json:"failedPointIds"`
	BucketCounts      *BucketCounts       `json:"bucketCounts,omitempty"`
	Validation        *ValidationSummary  `json:"validation,omitempty"`
}

type attemptJSON struct {
	Version           int                 `json:"version"`
	AttemptedAt       string              `json:"attemptedAt"`
	Status            AttemptStatus       `json:"status"`
	Reason            string              `json:"reason"`
	Profile           *CalibrationProfile `json:"profile,omitempty"`
	PointSampleCounts map[string]int      `json:"pointSampleCounts"`
	RetryCount        int                 `json:"retryCount"`
	FailedPointIDs    []string            `json:"failedPointIds"`
	BucketCounts      *BucketCounts       `json:"bucketCounts,omitempty"`
	Validation        *ValidationSummary  `json:"validation,omitempty"`
}

// MarshalJSON writes the persistence contract shape.
func (a AttemptRecord) MarshalJSON() ([]byte, error) {
	attemptedAt := ""
	if !a.AttemptedAt.IsZero() {
		attemptedAt = FormatTimestamp(a.AttemptedAt)
	}
	counts := a.PointSampleCounts
	if counts == nil {
		counts = map[string]int{}
	}
	failed := a.FailedPointIDs
	if failed == nil {
		failed = []string{}
	}
	return json.Marshal(attemptJSON{
		Version:           a.Version,
		AttemptedAt:       attemptedAt,
		Status:            a.Status,
		Reason:            a.Reason,
		Profile:           a.Profile,
		PointSampleCounts: counts,
		RetryCount:        a.RetryCount,
		FailedPointIDs:    failed,
		BucketCounts:      a.BucketCounts,
		Validation:        a.Validation,
	})
}

// UnmarshalJSON reads the persistence contract shape without validating.
func (a *AttemptRecord) UnmarshalJSON(data []byte) error {
	var raw attemptJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AttemptRecord{
		Version:           raw.Version,
		Status:            raw.Status,
		Reason:            raw.Reason,
		Profile:           raw.Profile,
		PointSampleCounts: raw.PointSampleCounts,
		RetryCount:        raw.RetryCount,
		FailedPointIDs:    raw.FailedPointIDs,
		BucketCounts:      raw.BucketCounts,
		Validation:        raw.Validation,
	}
	if raw.AttemptedAt != "" {
		t, err := ParseTimestamp(raw.AttemptedAt)
		if err != nil {
			return fmt.Errorf("parse attemptedAt: %w", err)
		}
		a.AttemptedAt = t
	}
	return nil
}

// Validate checks the record before it is persisted or trusted on load.
func (a AttemptRecord) Validate() error {
	if a.Version != AttemptVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidAttempt, a.Version, AttemptVersion)
	}
	if a.AttemptedAt.IsZero() {
		return fmt.Errorf("%w: missing attemptedAt", ErrInvalidAttempt)
	}
	if a.Status != AttemptSuccess && a.Status != AttemptFailed {
		return fmt.Errorf("%w: status %q", ErrInvalidAttempt, a.Status)
	}
	if a.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidAttempt)
	}
	if a.Profile != nil {
		if err := a.Profile.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAttempt, err)
		}
	}
	if a.PointSampleCounts == nil {
		return fmt.Errorf("%w: missing pointSampleCounts", ErrInvalidAttempt)
	}
	for id, n := range a.PointSampleCounts {
		if n < 0 {
			return fmt.Errorf("%w: negative sample count for %s", ErrInvalidAttempt, id)
		}
	}
	if a.RetryCount < 0 {
		return fmt.Errorf("%w: negative retryCount", ErrInvalidAttempt)
	}
	if b := a.BucketCounts; b != nil && (b.Left < 0 || b.Center < 0 || b.Right < 0) {
		return fmt.Errorf("%w: negative bucket count", ErrInvalidAttempt)
	}
	if v := a.Validation; v != nil {
		if !isFinite(v.OverallAccuracy) || !isFinite(v.CenterAccuracy) {
			return fmt.Errorf("%w: validation accuracy is not finite", ErrInvalidAttempt)
		}
		if v.FrameCount < 0 || v.CenterFrameCount < 0 {
			return fmt.Errorf("%w: negative validation frame count", ErrInvalidAttempt)
		}
	}
	return nil
}

// DecodeAttempt parses and validates a serialized attempt record.
func DecodeAttempt(data []byte) (*AttemptRecord, error) {
	var a AttemptRecord
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttempt, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
