package session

import (
	"context"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/calibration"
	"github.com/banshee-data/gaze.intent/internal/monitoring"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

var logf = monitoring.Component("calibration")

// SampleSource yields the current gaze sample. ok is false when the
// current frame has no usable feature (no face or no iris).
type SampleSource interface {
	Sample() (s gaze.CalibrationSample, ok bool)
}

// SampleSourceFunc adapts a function to SampleSource.
type SampleSourceFunc func() (gaze.CalibrationSample, bool)

// Sample calls f.
func (f SampleSourceFunc) Sample() (gaze.CalibrationSample, bool) { return f() }

// Observer receives stage events during a run, for UI and voice guidance.
// Calls happen on the Run goroutine and must not block.
type Observer interface {
	PointStarted(task Task, point calibration.PointDef)
	PointEvaluated(task Task, quality calibration.PointQualityResult, q Queue)
	ValidationStarted(point calibration.ValidationPointDef)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) PointStarted(Task, calibration.PointDef)                    {}
func (NopObserver) PointEvaluated(Task, calibration.PointQualityResult, Queue) {}
func (NopObserver) ValidationStarted(calibration.ValidationPointDef)           {}

// RunResult is everything a completed run produced.
type RunResult struct {
	*Outcome
	Queue     Queue
	Recording Recording
	Quality   map[string]calibration.PointQualityResult
}

// Runner drives one calibration run at a time.
type Runner struct {
	cfg      Config
	source   SampleSource
	clock    timeutil.Clock
	observer Observer
}

// NewRunner creates a runner. A nil clock uses the real clock; a nil
// observer discards events.
func NewRunner(cfg Config, source SampleSource, clock timeutil.Clock, observer Observer) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Runner{cfg: cfg, source: source, clock: clock, observer: observer}
}

// Run collects every calibration point (with retries), builds the profile,
// collects validation frames and assembles the attempt. Cancelling ctx
// aborts the run with ctx.Err() and no partial result.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	q := NewQueue(calibration.CalibrationPointIDs(), r.cfg.MaxRetries)
	rec := Recording{
		PointSamples:      make(map[string][]gaze.CalibrationSample),
		ValidationSamples: make(map[string][]gaze.CalibrationSample),
	}
	quality := make(map[string]calibration.PointQualityResult)

	var it Iterator
	for task, ok := it.Next(q); ok; task, ok = it.Next(q) {
		point, known := calibration.LookupPoint(task.PointID)
		if !known {
			logf("skipping unknown point %q", task.PointID)
			continue
		}
		r.observer.PointStarted(task, point)

		if err := r.wait(ctx, r.cfg.Countdown); err != nil {
			return nil, err
		}
		samples, err := r.collect(ctx, r.cfg.CollectionDuration)
		if err != nil {
			return nil, err
		}

		// Retries replace the earlier samples for the point.
		rec.PointSamples[task.PointID] = samples
		result := calibration.EvaluatePointQuality(samples, r.cfg.Quality)
		quality[task.PointID] = result

		q = q.ApplyPointResult(PointResult{PointID: task.PointID, IsRetry: task.IsRetry, Accepted: result.Accepted})
		logf("point %s retry=%t samples=%d accepted=%t reason=%s",
			task.PointID, task.IsRetry, result.Metrics.SampleCount, result.Accepted, result.Reason)
		r.observer.PointEvaluated(task, result, q)
	}

	rec.RetryCount = q.RetryCount()
	rec.FailedPointIDs = q.FailedPointIDs()

	// Validation only makes sense once something was fitted; fit once first so
	// a hopeless run does not keep the user looking at targets.
	fit, err := Assemble(Recording{PointSamples: rec.PointSamples}, r.cfg, r.clock.Now())
	if err != nil {
		return nil, err
	}
	if fit.Profile != nil {
		for _, vp := range calibration.ValidationPoints() {
			r.observer.ValidationStarted(vp)
			if err := r.wait(ctx, r.cfg.Countdown); err != nil {
				return nil, err
			}
			samples, err := r.collect(ctx, r.cfg.ValidationDuration)
			if err != nil {
				return nil, err
			}
			rec.ValidationSamples[vp.ID] = samples
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := Assemble(rec, r.cfg, r.clock.Now())
	if err != nil {
		return nil, err
	}
	logf("attempt %s reason=%s retries=%d failed=%v degraded=%t",
		out.Attempt.Status, out.Attempt.Reason, rec.RetryCount, rec.FailedPointIDs, out.Degraded)

	return &RunResult{Outcome: out, Queue: q, Recording: rec, Quality: quality}, nil
}

func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(d):
		return nil
	}
}

// collect samples the source every SampleInterval until window has
// elapsed, skipping ticks without a usable finite sample.
func (r *Runner) collect(ctx context.Context, window time.Duration) ([]gaze.CalibrationSample, error) {
	interval := r.cfg.SampleInterval
	if interval <= 0 {
		interval = 40 * time.Millisecond
	}

	var samples []gaze.CalibrationSample
	start := r.clock.Now()
	for r.clock.Since(start) < window {
		if err := r.wait(ctx, interval); err != nil {
			return nil, err
		}
		if s, ok := r.source.Sample(); ok && s.Finite() {
			samples = append(samples, s)
		}
	}
	return samples, nil
}
