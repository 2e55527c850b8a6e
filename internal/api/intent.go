package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/gaze/smoothing"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

// IntentTracker runs frames through the live pipeline and feeds each
// output into a wall-clock intent filter. It satisfies ingest.FrameHandler.
// Frames classified without a profile, and side glances below the minimum
// side confidence, vote NONE.
type IntentTracker struct {
	pipeline *live.Pipeline
	clock    timeutil.Clock

	mu       sync.Mutex
	window   time.Duration
	minSide  float64
	filter   *smoothing.IntentFilter
	dominant smoothing.IntentDirection
}

// NewIntentTracker creates a tracker voting over window.
func NewIntentTracker(pipeline *live.Pipeline, window time.Duration, clock timeutil.Clock) *IntentTracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &IntentTracker{
		pipeline: pipeline,
		clock:    clock,
		window:   window,
		minSide:  smoothing.DefaultMinSideConfidence,
		filter:   smoothing.NewIntentFilter(window, clock),
		dominant: smoothing.IntentNone,
	}
}

// Process classifies frame and records its direction.
func (t *IntentTracker) Process(frame live.Frame) gaze.Output {
	out := t.pipeline.Process(frame)
	calibrated := t.pipeline.Profile() != nil
	t.mu.Lock()
	t.dominant = t.filter.Push(smoothing.IntentFromOutput(out, calibrated, t.minSide))
	t.mu.Unlock()
	return out
}

// Intent returns the dominant direction and the number of samples it was
// voted from.
func (t *IntentTracker) Intent() (smoothing.IntentDirection, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dominant, len(t.filter.Samples())
}

// SetWindow replaces the filter, dropping its history.
func (t *IntentTracker) SetWindow(window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = window
	t.filter = smoothing.NewIntentFilter(window, t.clock)
	t.dominant = smoothing.IntentNone
}

// SetMinSideConfidence sets the confidence a LEFT or RIGHT output needs to
// vote for its side. History is kept.
func (t *IntentTracker) SetMinSideConfidence(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.minSide = v
}

// Window returns the configured voting window.
func (t *IntentTracker) Window() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// IntentResponse is the body of GET /api/intent.
type IntentResponse struct {
	Intent   smoothing.IntentDirection `json:"intent"`
	Samples  int                       `json:"samples"`
	WindowMS int64                     `json:"windowMs"`
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	d, n := s.intent.Intent()
	s.writeJSON(w, http.StatusOK, IntentResponse{
		Intent:   d,
		Samples:  n,
		WindowMS: s.intent.Window().Milliseconds(),
	})
}
