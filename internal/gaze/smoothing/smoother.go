// Package smoothing stabilises per-frame directions. Smoother is a
// count-windowed majority vote for the steady-state display; IntentFilter
// is a wall-clock windowed vote for frame-rate independent selection.
//
// Dependency rule: smoothing depends on gaze and internal/timeutil only.
package smoothing

import (
	"github.com/banshee-data/gaze.intent/internal/gaze"
)

// MajorityVote returns the most frequent label. Ties go to the label that
// occurred most recently. An empty input yields DirectionNoFace, the
// no-signal label.
func MajorityVote(labels []gaze.Direction) gaze.Direction {
	return majority(labels, func(d gaze.Direction) gaze.Direction { return d }, gaze.DirectionNoFace)
}

// majority is shared by both filters. Scanning from the end lets the first
// label to reach the top count win ties.
func majority[T any, L comparable](items []T, label func(T) L, empty L) L {
	if len(items) == 0 {
		return empty
	}
	counts := make(map[L]int, 4)
	for _, it := range items {
		counts[label(it)]++
	}

	best := label(items[len(items)-1])
	bestCount := counts[best]
	for i := len(items) - 2; i >= 0; i-- {
		l := label(items[i])
		if c := counts[l]; c > bestCount {
			best, bestCount = l, c
		}
	}
	return best
}

// Smoother is a bounded-capacity majority vote over recent directions.
// It is not safe for concurrent use.
type Smoother struct {
	size   int
	window []gaze.Direction
}

// NewSmoother creates a smoother holding the last size labels. Sizes below
// one are raised to one.
func NewSmoother(size int) *Smoother {
	if size < 1 {
		size = 1
	}
	return &Smoother{size: size, window: make([]gaze.Direction, 0, size)}
}

// Push records label, evicting the oldest entry when full, and returns the
// majority over the current window.
func (s *Smoother) Push(label gaze.Direction) gaze.Direction {
	if len(s.window) == s.size {
		copy(s.window, s.window[1:])
		s.window = s.window[:s.size-1]
	}
	s.window = append(s.window, label)
	return MajorityVote(s.window)
}

// Current returns the majority without pushing.
func (s *Smoother) Current() gaze.Direction {
	return MajorityVote(s.window)
}

// Reset discards all history. Call it when tracking is lost.
func (s *Smoother) Reset() {
	s.window = s.window[:0]
}

// Len returns the number of labels in the window.
func (s *Smoother) Len() int { return len(s.window) }

// Size returns the window capacity.
func (s *Smoother) Size() int { return s.size }
