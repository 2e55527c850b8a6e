package smoothing

import (
	"fmt"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

// IntentDirection is the vocabulary of the selection loop. NONE stands for
// frames without a usable direction.
type IntentDirection string

const (
	IntentLeft   IntentDirection = "LEFT"
	IntentRight  IntentDirection = "RIGHT"
	IntentCenter IntentDirection = "CENTER"
	IntentNone   IntentDirection = "NONE"
)

// Valid reports whether d is a known intent direction.
func (d IntentDirection) Valid() bool {
	switch d {
	case IntentLeft, IntentRight, IntentCenter, IntentNone:
		return true
	}
	return false
}

// ParseIntentDirection converts a wire string into an IntentDirection.
func ParseIntentDirection(s string) (IntentDirection, error) {
	d := IntentDirection(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown intent direction %q", s)
	}
	return d, nil
}

// IntentFromDirection maps a live direction onto the intent vocabulary.
// NO_FACE and NO_IRIS both become NONE.
func IntentFromDirection(d gaze.Direction) IntentDirection {
	switch d {
	case gaze.DirectionLeft:
		return IntentLeft
	case gaze.DirectionRight:
		return IntentRight
	case gaze.DirectionCenter:
		return IntentCenter
	default:
		return IntentNone
	}
}

// DefaultMinSideConfidence is the confidence a LEFT or RIGHT output needs
// to count as a side intent.
const DefaultMinSideConfidence = 0.45

// IntentFromOutput maps a classified output onto the intent vocabulary.
// Uncalibrated outputs and side outputs below minSide become NONE.
func IntentFromOutput(out gaze.Output, calibrated bool, minSide float64) IntentDirection {
	if !calibrated {
		return IntentNone
	}
	d := IntentFromDirection(out.Direction)
	if (d == IntentLeft || d == IntentRight) && out.Confidence < minSide {
		return IntentNone
	}
	return d
}

// DefaultIntentWindow is the wall-clock span the filter votes over.
const DefaultIntentWindow = 2 * time.Second

// minIntentWindow floors configured windows.
const minIntentWindow = time.Millisecond

// IntentSample is one timestamped direction.
type IntentSample struct {
	At        time.Time       `json:"at"`
	Direction IntentDirection `json:"direction"`
}

// AppendAndDominant appends next to the caller-owned ring, evicts samples
// older than now-window from the front and returns the majority direction
// of what remains, ties going to the most recent. The ring is assumed to be
// in time order.
func AppendAndDominant(samples *[]IntentSample, next IntentDirection, now time.Time, window time.Duration) IntentDirection {
	if window < minIntentWindow {
		window = minIntentWindow
	}
	ring := append(*samples, IntentSample{At: now, Direction: next})

	cutoff := now.Add(-window)
	drop := 0
	for drop < len(ring) && ring[drop].At.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		ring = append(ring[:0], ring[drop:]...)
	}
	*samples = ring

	return majority(ring, func(s IntentSample) IntentDirection { return s.Direction }, IntentNone)
}

// IntentFilter owns a sample ring and timestamps pushes with its clock.
// It is not safe for concurrent use.
type IntentFilter struct {
	clock   timeutil.Clock
	window  time.Duration
	samples []IntentSample
}

// NewIntentFilter creates a filter over window using clock. A nil clock
// uses the real clock.
func NewIntentFilter(window time.Duration, clock timeutil.Clock) *IntentFilter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &IntentFilter{clock: clock, window: window}
}

// Push records d at the clock's current time and returns the dominant
// direction over the window.
func (f *IntentFilter) Push(d IntentDirection) IntentDirection {
	return AppendAndDominant(&f.samples, d, f.clock.Now(), f.window)
}

// PushDirection is Push for a live direction.
func (f *IntentFilter) PushDirection(d gaze.Direction) IntentDirection {
	return f.Push(IntentFromDirection(d))
}

// Samples returns a copy of the retained samples.
func (f *IntentFilter) Samples() []IntentSample {
	out := make([]IntentSample, len(f.samples))
	copy(out, f.samples)
	return out
}

// Reset discards all samples.
func (f *IntentFilter) Reset() {
	f.samples = f.samples[:0]
}
