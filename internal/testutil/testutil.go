// Package testutil provides shared test utilities and fixtures.
//
// This package centralises synthetic landmark meshes and calibration sample
// clouds so the algorithm, session and API tests exercise the same
// geometry.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/gaze.intent/internal/gaze"
)

// ClassBaseX is the nominal feature x for each calibration class used by
// the fixtures.
var ClassBaseX = map[gaze.ClassLabel]float64{
	gaze.ClassLeft:   0.35,
	gaze.ClassCenter: 0.5,
	gaze.ClassRight:  0.65,
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// AlternatingSamples returns n samples alternating +/-jitterX and
// +/-jitterY around (x, y). The population standard deviation per axis is
// exactly the jitter when n is even.
func AlternatingSamples(n int, x, y, jitterX, jitterY float64) []gaze.CalibrationSample {
	out := make([]gaze.CalibrationSample, n)
	for i := range out {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		out[i] = gaze.CalibrationSample{X: x + sign*jitterX, Y: y + sign*jitterY}
	}
	return out
}

// ClassSamples returns a stable cloud of n samples for label.
func ClassSamples(label gaze.ClassLabel, n int) []gaze.CalibrationSample {
	return AlternatingSamples(n, ClassBaseX[label], 0.5, 0.006, 0.004)
}

// Face builds a full 478-point mesh whose iris sits at irisX/irisY within
// both eyes' corner and lid spans (0 = left corner/upper lid, 1 = right
// corner/lower lid). With withIris false the mesh has 468 points.
func Face(irisX, irisY float64, withIris bool) []gaze.Landmark {
	n := 468
	if withIris {
		n = 478
	}
	mesh := make([]gaze.Landmark, n)
	for i := range mesh {
		mesh[i] = gaze.Landmark{X: 0.5, Y: 0.5}
	}

	// Subject's right eye spans x 0.30..0.40, left eye 0.60..0.70,
	// lids span y 0.45..0.50. Corners are written in reversed x order on
	// one eye so extraction has to sort them.
	mesh[33] = gaze.Landmark{X: 0.30, Y: 0.475}
	mesh[133] = gaze.Landmark{X: 0.40, Y: 0.475}
	mesh[362] = gaze.Landmark{X: 0.70, Y: 0.475}
	mesh[263] = gaze.Landmark{X: 0.60, Y: 0.475}
	mesh[159] = gaze.Landmark{X: 0.35, Y: 0.45}
	mesh[145] = gaze.Landmark{X: 0.35, Y: 0.50}
	mesh[386] = gaze.Landmark{X: 0.65, Y: 0.50}
	mesh[374] = gaze.Landmark{X: 0.65, Y: 0.45}

	if withIris {
		right := gaze.Landmark{X: 0.30 + 0.10*irisX, Y: 0.45 + 0.05*irisY}
		left := gaze.Landmark{X: 0.60 + 0.10*irisX, Y: 0.45 + 0.05*irisY}
		for i := 0; i < 5; i++ {
			mesh[468+i] = right
			mesh[473+i] = left
		}
	}
	return mesh
}

// ScaleFace shrinks a mesh toward its centre by factor, producing a
// smaller bounding box for face selection tests.
func ScaleFace(face []gaze.Landmark, factor float64) []gaze.Landmark {
	out := make([]gaze.Landmark, len(face))
	for i, p := range face {
		out[i] = gaze.Landmark{X: 0.5 + (p.X-0.5)*factor, Y: 0.5 + (p.Y-0.5)*factor, Z: p.Z}
	}
	return out
}
