package gaze

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ProfileVersion is the schema version written into every profile.
const ProfileVersion = 2

// Deadzone bounds. Every profile produced by the builder satisfies
// DeadzoneMin <= DeadzoneScore <= DeadzoneMax.
const (
	DeadzoneMin = 0.05
	DeadzoneMax = 0.9
)

// TimestampLayout is the ISO-8601 layout used on the wire.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidProfile is returned when a profile fails validation.
var ErrInvalidProfile = errors.New("invalid calibration profile")

// Regression holds the fitted linear score model: score = W*x + B.
type Regression struct {
	W      float64 `json:"w"`
	B      float64 `json:"b"`
	Lambda float64 `json:"lambda"`
}

// Score evaluates the regression at x.
func (r Regression) Score(x float64) float64 {
	return r.W*x + r.B
}

// CalibrationProfile is the per-user result of a completed calibration run.
// It is immutable once built; classification only reads it.
type CalibrationProfile struct {
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"-"`
	Regression    Regression `json:"regression"`
	DeadzoneScore float64    `json:"deadzoneScore"`
}

type profileJSON struct {
	Version       int        `json:"version"`
	CreatedAt     string     `json:"createdAt"`
	Regression    Regression `json:"regression"`
	DeadzoneScore float64    `json:"deadzoneScore"`
}

// FormatTimestamp renders t in the wire layout (UTC, millisecond precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts the wire layout and any RFC 3339 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// MarshalJSON writes the persistence contract shape.
func (p CalibrationProfile) MarshalJSON() ([]byte, error) {
	createdAt := ""
	if !p.CreatedAt.IsZero() {
		createdAt = FormatTimestamp(p.CreatedAt)
	}
	return json.Marshal(profileJSON{
		Version:       p.Version,
		CreatedAt:     createdAt,
		Regression:    p.Regression,
		DeadzoneScore: p.DeadzoneScore,
	})
}

// UnmarshalJSON reads the persistence contract shape. It does not validate;
// call Validate on the result.
func (p *CalibrationProfile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Version = raw.Version
	p.Regression = raw.Regression
	p.DeadzoneScore = raw.DeadzoneScore
	p.CreatedAt = time.Time{}
	if raw.CreatedAt != "" {
		t, err := ParseTimestamp(raw.CreatedAt)
		if err != nil {
			return fmt.Errorf("parse createdAt: %w", err)
		}
		p.CreatedAt = t
	}
	return nil
}

// Validate checks the guard applied before a stored profile is trusted.
func (p CalibrationProfile) Validate() error {
	if p.Version != ProfileVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidProfile, p.Version, ProfileVersion)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing createdAt", ErrInvalidProfile)
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"regression.w", p.Regression.W},
		{"regression.b", p.Regression.B},
		{"regression.lambda", p.Regression.Lambda},
		{"deadzoneScore", p.DeadzoneScore},
	}
	for _, f := range fields {
		if !isFinite(f.v) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidProfile, f.name)
		}
	}
	if p.DeadzoneScore < DeadzoneMin || p.DeadzoneScore > DeadzoneMax {
		return fmt.Errorf("%w: deadzoneScore %g outside [%g, %g]", ErrInvalidProfile, p.DeadzoneScore, DeadzoneMin, DeadzoneMax)
	}
	return nil
}

// DecodeProfile parses and validates a serialized profile.
func DecodeProfile(data []byte) (*CalibrationProfile, error) {
	var p CalibrationProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
