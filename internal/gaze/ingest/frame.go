// Package ingest receives landmark frames from the external face detector
// over UDP and hands them to the live pipeline.
//
// Dependency rule: ingest depends on gaze, gaze/live, internal/monitoring
// and internal/timeutil.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
)

// ErrMalformedFrame is returned for datagrams that do not decode to a frame.
var ErrMalformedFrame = errors.New("malformed landmark frame")

// wireFrame is the datagram layout:
//
//	{"ts": <unix ms>, "faces": [[[x, y, z], ...], ...]}
//
// z is optional per landmark.
type wireFrame struct {
	TS    int64         `json:"ts"`
	Faces [][][]float64 `json:"faces"`
}

// DecodeFrame parses one datagram. A missing or zero ts is replaced by
// now. Every landmark must carry at least x and y.
func DecodeFrame(data []byte, now time.Time) (live.Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return live.Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	frame := live.Frame{Timestamp: now}
	if w.TS > 0 {
		frame.Timestamp = time.UnixMilli(w.TS)
	}

	frame.Faces = make([][]gaze.Landmark, len(w.Faces))
	for i, face := range w.Faces {
		mesh := make([]gaze.Landmark, len(face))
		for j, p := range face {
			if len(p) < 2 {
				return live.Frame{}, fmt.Errorf("%w: face %d landmark %d has %d coordinates", ErrMalformedFrame, i, j, len(p))
			}
			mesh[j] = gaze.Landmark{X: p[0], Y: p[1]}
			if len(p) > 2 {
				mesh[j].Z = p[2]
			}
		}
		frame.Faces[i] = mesh
	}
	return frame, nil
}

// EncodeFrame renders a frame in the datagram layout. It is the inverse of
// DecodeFrame and is used by replay tooling and tests.
func EncodeFrame(frame live.Frame) ([]byte, error) {
	w := wireFrame{Faces: make([][][]float64, len(frame.Faces))}
	if !frame.Timestamp.IsZero() {
		w.TS = frame.Timestamp.UnixMilli()
	}
	for i, face := range frame.Faces {
		mesh := make([][]float64, len(face))
		for j, p := range face {
			mesh[j] = []float64{p.X, p.Y, p.Z}
		}
		w.Faces[i] = mesh
	}
	return json.Marshal(w)
}
