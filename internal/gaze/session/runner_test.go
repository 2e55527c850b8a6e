package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/calibration"
	"github.com/banshee-data/gaze.intent/internal/monitoring"
	"github.com/banshee-data/gaze.intent/internal/testutil"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

var runStart = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func init() {
	monitoring.SetLogger(nil)
}

// simulatedUser looks wherever the observer says and reports steady
// samples, except for points listed in jitter (per attempt number) or
// when blind is set.
type simulatedUser struct {
	x        float64
	tick     int
	jittery  bool
	blind    bool
	attempts map[string]int
	// jitter maps point ID to how many attempts come out jittery.
	jitter map[string]int

	started    []Task
	evaluated  []calibration.PointQualityResult
	validation []string

	onPointStarted func(Task)
}

func newSimulatedUser() *simulatedUser {
	return &simulatedUser{attempts: map[string]int{}, jitter: map[string]int{}}
}

func (u *simulatedUser) Sample() (gaze.CalibrationSample, bool) {
	if u.blind {
		return gaze.CalibrationSample{}, false
	}
	u.tick++
	j := 0.006
	if u.jittery {
		j = 0.08
	}
	if u.tick%2 == 0 {
		j = -j
	}
	return gaze.CalibrationSample{X: u.x + j, Y: 0.5}, true
}

func (u *simulatedUser) PointStarted(task Task, point calibration.PointDef) {
	u.started = append(u.started, task)
	u.attempts[point.ID]++
	u.x = testutil.ClassBaseX[point.Class]
	u.jittery = u.attempts[point.ID] <= u.jitter[point.ID]
	if u.onPointStarted != nil {
		u.onPointStarted(task)
	}
}

func (u *simulatedUser) PointEvaluated(_ Task, q calibration.PointQualityResult, _ Queue) {
	u.evaluated = append(u.evaluated, q)
}

func (u *simulatedUser) ValidationStarted(point calibration.ValidationPointDef) {
	u.validation = append(u.validation, point.ID)
	u.x = testutil.ClassBaseX[point.Expected]
	u.jittery = false
}

func run(ctx context.Context, cfg Config, u *simulatedUser) (*RunResult, *timeutil.MockClock, error) {
	clock := timeutil.NewAutoMockClock(runStart)
	res, err := NewRunner(cfg, u, clock, u).Run(ctx)
	return res, clock, err
}

func TestRunner_Success(t *testing.T) {
	t.Parallel()
	u := newSimulatedUser()
	res, clock, err := run(context.Background(), DefaultConfig(), u)
	require.NoError(t, err)

	a := res.Attempt
	assert.Equal(t, gaze.AttemptSuccess, a.Status)
	assert.Equal(t, gaze.AttemptReasonOK, a.Reason)
	require.NotNil(t, res.Profile)
	assert.False(t, res.Degraded)
	assert.Equal(t, res.Profile, a.Profile)
	assert.NoError(t, a.Validate())

	assert.Len(t, u.started, 9)
	assert.Equal(t, 0, a.RetryCount)
	assert.Empty(t, a.FailedPointIDs)
	for id, n := range a.PointSampleCounts {
		assert.Equal(t, 30, n, "point %s", id)
	}
	assert.Equal(t, gaze.BucketCounts{Left: 90, Center: 90, Right: 90}, *a.BucketCounts)

	require.NotNil(t, a.Validation)
	assert.True(t, a.Validation.Passed)
	assert.Equal(t, 60, a.Validation.FrameCount)
	assert.Equal(t, 20, a.Validation.CenterFrameCount)
	assert.Equal(t, []string{"validation-left", "validation-center", "validation-right"}, u.validation)

	// 9 x (countdown + collection) + 3 x (countdown + validation).
	want := runStart.Add(9*(time.Second+1200*time.Millisecond) + 3*(time.Second+800*time.Millisecond))
	assert.Equal(t, want, clock.Now())
	assert.Equal(t, want, a.AttemptedAt)
	assert.Equal(t, want, res.Profile.CreatedAt)
}

func TestRunner_RetryRecovers(t *testing.T) {
	t.Parallel()
	u := newSimulatedUser()
	u.jitter["left-top"] = 1

	res, _, err := run(context.Background(), DefaultConfig(), u)
	require.NoError(t, err)

	require.Len(t, u.started, 10)
	assert.Equal(t, Task{PointID: "left-top", IsRetry: true}, u.started[9])
	assert.Equal(t, calibration.ReasonJitterX, u.evaluated[3].Reason)
	assert.True(t, u.evaluated[9].Accepted)

	assert.Equal(t, 1, res.Attempt.RetryCount)
	assert.Empty(t, res.Attempt.FailedPointIDs)
	assert.Equal(t, 10, res.Queue.Len())
	assert.True(t, res.Quality["left-top"].Accepted)
	assert.Equal(t, gaze.AttemptSuccess, res.Attempt.Status)
}

func TestRunner_RetryFails(t *testing.T) {
	t.Parallel()
	u := newSimulatedUser()
	u.jitter["right-mid"] = 2

	res, _, err := run(context.Background(), DefaultConfig(), u)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempt.RetryCount)
	assert.Equal(t, []string{"right-mid"}, res.Attempt.FailedPointIDs)
	// Failed points still contribute their samples.
	assert.Equal(t, 30, res.Attempt.PointSampleCounts["right-mid"])
	require.NotNil(t, res.Profile)
}

func TestRunner_ZeroRetryBudget(t *testing.T) {
	t.Parallel()
	u := newSimulatedUser()
	u.jitter["center-top"] = 1
	cfg := DefaultConfig()
	cfg.MaxRetries = 0

	res, _, err := run(context.Background(), cfg, u)
	require.NoError(t, err)
	assert.Len(t, u.started, 9)
	assert.Equal(t, 0, res.Attempt.RetryCount)
	assert.Equal(t, []string{"center-top"}, res.Attempt.FailedPointIDs)
}

func TestRunner_NoFaceAborts(t *testing.T) {
	t.Parallel()
	u := newSimulatedUser()
	u.blind = true

	res, _, err := run(context.Background(), DefaultConfig(), u)
	require.NoError(t, err)

	// Four retries are granted, then every remaining rejection fails.
	assert.Len(t, u.started, 13)
	assert.Equal(t, 4, res.Attempt.RetryCount)
	assert.Len(t, res.Attempt.FailedPointIDs, 9)
	assert.Equal(t, calibration.ReasonLowSampleCount, u.evaluated[0].Reason)

	assert.Nil(t, res.Profile)
	assert.Nil(t, res.Attempt.Profile)
	assert.Nil(t, res.Attempt.Validation)
	assert.Empty(t, u.validation)
	assert.Equal(t, gaze.AttemptFailed, res.Attempt.Status)
	assert.Equal(t, gaze.AttemptReasonInsufficientCleanSamples, res.Attempt.Reason)
}

func TestRunner_Cancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := newSimulatedUser()
	u.onPointStarted = func(task Task) {
		if task.PointID == "right-mid" {
			cancel()
		}
	}

	res, _, err := run(ctx, DefaultConfig(), u)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, res)
	assert.Len(t, u.started, 3)
}

func TestRunner_AlreadyCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := newSimulatedUser()
	res, clock, err := run(ctx, DefaultConfig(), u)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, runStart, clock.Now())
}

func TestAssemble_Degraded(t *testing.T) {
	t.Parallel()
	rec := Recording{
		PointSamples: map[string][]gaze.CalibrationSample{
			"left-mid":   testutil.ClassSamples(gaze.ClassLeft, 10),
			"center-mid": testutil.ClassSamples(gaze.ClassCenter, 10),
			"right-mid":  testutil.ClassSamples(gaze.ClassRight, 10),
		},
		ValidationSamples: map[string][]gaze.CalibrationSample{
			"validation-left":   testutil.ClassSamples(gaze.ClassLeft, 10),
			"validation-center": testutil.ClassSamples(gaze.ClassCenter, 10),
			"validation-right":  testutil.ClassSamples(gaze.ClassRight, 10),
		},
	}

	out, err := Assemble(rec, DefaultConfig(), runStart)
	require.NoError(t, err)
	assert.True(t, out.Degraded)
	require.NotNil(t, out.Profile)
	assert.Equal(t, gaze.AttemptFailed, out.Attempt.Status)
	assert.Equal(t, gaze.AttemptReasonInsufficientCleanSamples, out.Attempt.Reason)
	// A degraded profile is still validated for diagnostics.
	require.NotNil(t, out.Attempt.Validation)
	assert.True(t, out.Attempt.Validation.Passed)
	assert.Equal(t, 10, out.Attempt.PointSampleCounts["left-mid"])
	assert.Equal(t, 0, out.Attempt.PointSampleCounts["left-top"])
	assert.Len(t, out.Attempt.PointSampleCounts, 9)
}

func TestAssemble_ValidationFailed(t *testing.T) {
	t.Parallel()
	points := map[string][]gaze.CalibrationSample{}
	for _, p := range calibration.CalibrationPoints() {
		points[p.ID] = testutil.ClassSamples(p.Class, 30)
	}
	// The user looked right during every validation target.
	rec := Recording{
		PointSamples: points,
		ValidationSamples: map[string][]gaze.CalibrationSample{
			"validation-left":   testutil.ClassSamples(gaze.ClassRight, 10),
			"validation-center": testutil.ClassSamples(gaze.ClassRight, 10),
			"validation-right":  testutil.ClassSamples(gaze.ClassRight, 10),
		},
		RetryCount:     2,
		FailedPointIDs: []string{"left-top"},
	}

	out, err := Assemble(rec, DefaultConfig(), runStart)
	require.NoError(t, err)
	assert.False(t, out.Degraded)
	require.NotNil(t, out.Attempt.Profile)
	assert.Equal(t, gaze.AttemptFailed, out.Attempt.Status)
	assert.Equal(t, gaze.AttemptReasonValidationFailed, out.Attempt.Reason)
	assert.Equal(t, 2, out.Attempt.RetryCount)
	assert.Equal(t, []string{"left-top"}, out.Attempt.FailedPointIDs)
	assert.InDelta(t, 1.0/3.0, out.Attempt.Validation.OverallAccuracy, 1e-12)
	assert.Equal(t, 0.0, out.Attempt.Validation.CenterAccuracy)
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, time.Second, cfg.Countdown)
	assert.Equal(t, 1200*time.Millisecond, cfg.CollectionDuration)
	assert.Equal(t, 800*time.Millisecond, cfg.ValidationDuration)
	assert.Equal(t, 40*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, 20, cfg.Quality.MinSamples)
	assert.Equal(t, "validation-center", cfg.Validation.CenterPointID)
}
