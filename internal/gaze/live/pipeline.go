// Package live runs the per-frame path from detector landmarks to a
// smoothed direction.
//
// Dependency rule: live depends on gaze, gaze/features, gaze/classify,
// gaze/smoothing and internal/monitoring.
package live

import (
	"sync"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/classify"
	"github.com/banshee-data/gaze.intent/internal/gaze/features"
	"github.com/banshee-data/gaze.intent/internal/gaze/smoothing"
	"github.com/banshee-data/gaze.intent/internal/monitoring"
)

// Frame is one detector output: every face found in a video frame.
type Frame struct {
	Timestamp time.Time
	Faces     [][]gaze.Landmark
}

// Stats counts frames by outcome.
type Stats struct {
	Frames     uint64 `json:"frames"`
	NoFace     uint64 `json:"noFace"`
	NoIris     uint64 `json:"noIris"`
	Uncal      uint64 `json:"uncalibrated"`
	Classified uint64 `json:"classified"`
}

// Pipeline is safe for concurrent use: the ingest goroutine feeds frames
// while API handlers read Latest and swap the profile.
type Pipeline struct {
	mu       sync.RWMutex
	profile  *gaze.CalibrationProfile
	smoother *smoothing.Smoother
	latest   gaze.Output
	latestAt time.Time
	sample   gaze.CalibrationSample
	hasIris  bool

	frames, noFace, noIris, uncal, classified monitoring.Counter
}

// New creates a pipeline with the given smoothing window and optional
// profile.
func New(window int, profile *gaze.CalibrationProfile) *Pipeline {
	p := &Pipeline{
		smoother: smoothing.NewSmoother(window),
		latest:   gaze.Output{Direction: gaze.DirectionNoFace},
	}
	p.SetProfile(profile)
	return p
}

// Process runs one frame and returns the output, which also becomes
// Latest. Losing the face, the iris or the profile resets smoothing.
func (p *Pipeline) Process(frame Frame) gaze.Output {
	p.frames.Inc()
	face := features.SelectLargestFace(frame.Faces)

	p.mu.Lock()
	defer p.mu.Unlock()

	var out gaze.Output
	if face == nil {
		p.noFace.Inc()
		p.smoother.Reset()
		p.hasIris = false
		out = gaze.Output{Direction: gaze.DirectionNoFace}
	} else {
		out = p.processFace(face)
	}

	p.latest = out
	p.latestAt = frame.Timestamp
	return out
}

// processFace handles a frame with a face. Callers hold p.mu.
func (p *Pipeline) processFace(face []gaze.Landmark) gaze.Output {
	res := features.Extract(face)
	feat := res.Features
	if !res.HasIris {
		p.noIris.Inc()
		p.smoother.Reset()
		p.hasIris = false
		return gaze.Output{Direction: gaze.DirectionNoIris}
	}

	p.hasIris = true
	p.sample = feat.Sample()
	if p.profile == nil {
		p.uncal.Inc()
		p.smoother.Reset()
		return gaze.Output{Direction: gaze.DirectionCenter, Features: &feat}
	}

	p.classified.Inc()
	raw := classify.Classify(feat, *p.profile)
	return gaze.Output{
		Direction:  p.smoother.Push(raw.Direction),
		Confidence: raw.Confidence,
		Features:   &feat,
	}
}

// Latest returns the most recent output and its frame timestamp.
func (p *Pipeline) Latest() (gaze.Output, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.latestAt
}

// Sample implements the calibration runner's sample source: the latest
// frame's feature, when that frame had an iris.
func (p *Pipeline) Sample() (gaze.CalibrationSample, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sample, p.hasIris
}

// SetProfile swaps the active profile. Nil returns the pipeline to the
// uncalibrated state. Smoothing history is discarded.
func (p *Pipeline) SetProfile(profile *gaze.CalibrationProfile) {
	if profile != nil {
		cp := *profile
		profile = &cp
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = profile
	p.smoother.Reset()
}

// Profile returns a copy of the active profile, or nil.
func (p *Pipeline) Profile() *gaze.CalibrationProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.profile == nil {
		return nil
	}
	cp := *p.profile
	return &cp
}

// SetWindow changes the smoothing window. A different size discards the
// history rather than resizing it.
func (p *Pipeline) SetWindow(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if smoothing.NewSmoother(n).Size() == p.smoother.Size() {
		return
	}
	p.smoother = smoothing.NewSmoother(n)
}

// Window returns the smoothing window size.
func (p *Pipeline) Window() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.smoother.Size()
}

// Stats returns the frame counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:     p.frames.Load(),
		NoFace:     p.noFace.Load(),
		NoIris:     p.noIris.Load(),
		Uncal:      p.uncal.Load(),
		Classified: p.classified.Load(),
	}
}
