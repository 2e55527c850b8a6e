package features

import (
	"math"

	"github.com/banshee-data/gaze.intent/internal/gaze"
)

// SelectLargestFace picks the face whose landmark bounding box covers the
// largest area. The detector may report several faces; the user is assumed
// to be the one closest to the camera. Returns nil when faces is empty.
func SelectLargestFace(faces [][]gaze.Landmark) []gaze.Landmark {
	if len(faces) == 0 {
		return nil
	}

	best := faces[0]
	bestArea := -1.0
	for _, face := range faces {
		area := boundingArea(face)
		if area > bestArea {
			best = face
			bestArea = area
		}
	}
	return best
}

func boundingArea(face []gaze.Landmark) float64 {
	if len(face) == 0 {
		return 0
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range face {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return math.Max(0, maxX-minX) * math.Max(0, maxY-minY)
}
