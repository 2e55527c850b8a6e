package gaze

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() CalibrationProfile {
	return CalibrationProfile{
		Version:       ProfileVersion,
		CreatedAt:     time.Date(2026, 2, 8, 20, 0, 0, 0, time.UTC),
		Regression:    Regression{W: 1.25, B: -0.15, Lambda: 0.1},
		DeadzoneScore: 0.22,
	}
}

func TestCalibrationProfile_JSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(validProfile())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": 2,
		"createdAt": "2026-02-08T20:00:00.000Z",
		"regression": {"w": 1.25, "b": -0.15, "lambda": 0.1},
		"deadzoneScore": 0.22
	}`, string(data))

	decoded, err := DecodeProfile(data)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(validProfile().CreatedAt))
	assert.Equal(t, validProfile().Regression, decoded.Regression)
}

func TestCalibrationProfile_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *CalibrationProfile)
	}{
		{"wrong version", func(p *CalibrationProfile) { p.Version = 1 }},
		{"missing createdAt", func(p *CalibrationProfile) { p.CreatedAt = time.Time{} }},
		{"NaN weight", func(p *CalibrationProfile) { p.Regression.W = math.NaN() }},
		{"infinite bias", func(p *CalibrationProfile) { p.Regression.B = math.Inf(1) }},
		{"NaN lambda", func(p *CalibrationProfile) { p.Regression.Lambda = math.NaN() }},
		{"NaN deadzone", func(p *CalibrationProfile) { p.DeadzoneScore = math.NaN() }},
		{"deadzone below floor", func(p *CalibrationProfile) { p.DeadzoneScore = 0.01 }},
		{"deadzone above ceiling", func(p *CalibrationProfile) { p.DeadzoneScore = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
		})
	}

	assert.NoError(t, validProfile().Validate())

	for _, dz := range []float64{DeadzoneMin, DeadzoneMax} {
		p := validProfile()
		p.DeadzoneScore = dz
		assert.NoError(t, p.Validate(), "deadzone %g", dz)
	}
}

func TestDecodeProfile_RejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{ bad json`, `{"version":1}`, `{"version":2,"createdAt":"not a time"}`} {
		_, err := DecodeProfile([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func validAttempt() AttemptRecord {
	p := validProfile()
	return AttemptRecord{
		Version:           AttemptVersion,
		AttemptedAt:       time.Date(2026, 2, 8, 20, 1, 0, 0, time.UTC),
		Status:            AttemptFailed,
		Reason:            AttemptReasonValidationFailed,
		Profile:           &p,
		PointSampleCounts: map[string]int{"center-mid": 20, "left-mid": 18},
		RetryCount:        1,
		FailedPointIDs:    []string{"left-mid"},
		BucketCounts:      &BucketCounts{Left: 10, Center: 18, Right: 12},
		Validation: &ValidationSummary{
			Passed:           false,
			OverallAccuracy:  0.61,
			CenterAccuracy:   0.54,
			FrameCount:       120,
			CenterFrameCount: 40,
		},
	}
}

func TestAttemptRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(validAttempt())
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "2026-02-08T20:01:00.000Z", generic["attemptedAt"])
	assert.Equal(t, "FAILED", generic["status"])
	assert.Contains(t, generic, "bucketCounts")

	decoded, err := DecodeAttempt(data)
	require.NoError(t, err)
	assert.Equal(t, validAttempt().PointSampleCounts, decoded.PointSampleCounts)
	assert.Equal(t, validAttempt().FailedPointIDs, decoded.FailedPointIDs)
	assert.Equal(t, *validAttempt().BucketCounts, *decoded.BucketCounts)
	require.NotNil(t, decoded.Profile)
	assert.Equal(t, validAttempt().Profile.Regression, decoded.Profile.Regression)
}

func TestAttemptRecord_MarshalEmptyCollections(t *testing.T) {
	t.Parallel()

	a := validAttempt()
	a.FailedPointIDs = nil
	a.Profile = nil
	a.BucketCounts = nil
	a.Validation = nil

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"failedPointIds":[]`)
	assert.NotContains(t, string(data), `"profile"`)
}

func TestAttemptRecord_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(a *AttemptRecord)
	}{
		{"wrong version", func(a *AttemptRecord) { a.Version = 2 }},
		{"missing attemptedAt", func(a *AttemptRecord) { a.AttemptedAt = time.Time{} }},
		{"unknown status", func(a *AttemptRecord) { a.Status = "MAYBE" }},
		{"empty reason", func(a *AttemptRecord) { a.Reason = "" }},
		{"invalid nested profile", func(a *AttemptRecord) { a.Profile.Version = 1 }},
		{"missing counts", func(a *AttemptRecord) { a.PointSampleCounts = nil }},
		{"negative count", func(a *AttemptRecord) { a.PointSampleCounts["left-mid"] = -1 }},
		{"negative retries", func(a *AttemptRecord) { a.RetryCount = -1 }},
		{"negative bucket", func(a *AttemptRecord) { a.BucketCounts.Right = -3 }},
		{"NaN accuracy", func(a *AttemptRecord) { a.Validation.OverallAccuracy = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAttempt()
			tt.mutate(&a)
			err := a.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAttempt))
		})
	}
}

func TestDirectionAndClassLabel(t *testing.T) {
	t.Parallel()

	for _, d := range Directions {
		parsed, err := ParseDirection(string(d))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
	_, err := ParseDirection("UP")
	assert.Error(t, err)

	assert.Equal(t, -1.0, ClassLeft.Target())
	assert.Equal(t, 0.0, ClassCenter.Target())
	assert.Equal(t, 1.0, ClassRight.Target())
	assert.Equal(t, DirectionRight, ClassRight.Direction())
	assert.False(t, ClassLabel("UP").Valid())
}

func TestFiniteSamples(t *testing.T) {
	t.Parallel()

	in := []CalibrationSample{
		{X: 0.5, Y: 0.5},
		{X: math.NaN(), Y: 0.5},
		{X: 0.4, Y: math.Inf(-1)},
		{X: 0.3, Y: 0.2},
	}
	assert.Equal(t, []CalibrationSample{{X: 0.5, Y: 0.5}, {X: 0.3, Y: 0.2}}, FiniteSamples(in))
}
