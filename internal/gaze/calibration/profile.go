package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/gaze.intent/internal/config"
	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/stats"
)

// Fit errors. Both are preconditions of the ridge fit; the from-points
// entry point checks bucket sizes before fitting so callers normally see a
// tagged INSUFFICIENT_CLEAN_SAMPLES result instead.
var (
	ErrEmptyTrainingSet = errors.New("calibration: empty training set")
	ErrDegenerateFit    = errors.New("calibration: degenerate fit (zero x spread and zero ridge penalty)")
)

// deadzoneSpreadFactor turns the center-score MAD into a half-width.
const deadzoneSpreadFactor = 2

// BuilderConfig controls profile fitting.
type BuilderConfig struct {
	RidgeLambda         float64
	DeadzoneMultiplier  float64
	TrimMultiplier      float64
	MinSamplesPerBucket int

	// Now timestamps new profiles. Nil means time.Now.
	Now func() time.Time
}

// DefaultBuilderConfig returns the built-in fitting parameters.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfigFromTuning(config.EmptyTuningConfig())
}

// BuilderConfigFromTuning builds a BuilderConfig from a tuning config.
func BuilderConfigFromTuning(cfg *config.TuningConfig) BuilderConfig {
	return BuilderConfig{
		RidgeLambda:         cfg.GetRidgeLambda(),
		DeadzoneMultiplier:  cfg.GetDeadzoneMultiplier(),
		TrimMultiplier:      cfg.GetTrimMADMultiplier(),
		MinSamplesPerBucket: cfg.GetMinSamplesPerBucket(),
	}
}

func (c BuilderConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// LabeledPools are samples grouped by calibration class.
type LabeledPools struct {
	Center []gaze.CalibrationSample `json:"center"`
	Left   []gaze.CalibrationSample `json:"left"`
	Right  []gaze.CalibrationSample `json:"right"`
}

// Get returns the pool for label.
func (p LabeledPools) Get(label gaze.ClassLabel) []gaze.CalibrationSample {
	switch label {
	case gaze.ClassLeft:
		return p.Left
	case gaze.ClassRight:
		return p.Right
	default:
		return p.Center
	}
}

func (p *LabeledPools) add(label gaze.ClassLabel, samples []gaze.CalibrationSample) {
	switch label {
	case gaze.ClassLeft:
		p.Left = append(p.Left, samples...)
	case gaze.ClassRight:
		p.Right = append(p.Right, samples...)
	default:
		p.Center = append(p.Center, samples...)
	}
}

// Counts returns the pool sizes.
func (p LabeledPools) Counts() gaze.BucketCounts {
	return gaze.BucketCounts{Left: len(p.Left), Center: len(p.Center), Right: len(p.Right)}
}

// BuildProfile fits a profile directly from labeled pools. Non-finite
// samples are dropped. Targets are -1 (LEFT), 0 (CENTER) and +1 (RIGHT);
// the weight is the ridge estimate Sxy/(Sxx+lambda).
func BuildProfile(pools LabeledPools, cfg BuilderConfig) (gaze.CalibrationProfile, error) {
	var xs, ys []float64
	for _, label := range gaze.ClassLabels {
		for _, s := range gaze.FiniteSamples(pools.Get(label)) {
			xs = append(xs, s.X)
			ys = append(ys, label.Target())
		}
	}
	if len(xs) == 0 {
		return gaze.CalibrationProfile{}, ErrEmptyTrainingSet
	}

	lambda := cfg.RidgeLambda
	xBar := stats.Mean(xs)
	yBar := stats.Mean(ys)

	dx := make([]float64, len(xs))
	dy := make([]float64, len(ys))
	copy(dx, xs)
	copy(dy, ys)
	floats.AddConst(-xBar, dx)
	floats.AddConst(-yBar, dy)
	sxx := floats.Dot(dx, dx)
	sxy := floats.Dot(dx, dy)

	den := sxx + lambda
	if den == 0 || !stats.IsFinite(den) {
		return gaze.CalibrationProfile{}, ErrDegenerateFit
	}
	reg := gaze.Regression{W: sxy / den, Lambda: lambda}
	reg.B = yBar - reg.W*xBar

	centerScores := make([]float64, 0, len(pools.Center))
	for _, s := range gaze.FiniteSamples(pools.Center) {
		centerScores = append(centerScores, reg.Score(s.X))
	}
	spread := stats.MADAuto(centerScores)
	deadzone := stats.Clamp(
		math.Max(gaze.DeadzoneMin, cfg.DeadzoneMultiplier*deadzoneSpreadFactor*spread),
		gaze.DeadzoneMin, gaze.DeadzoneMax,
	)

	profile := gaze.CalibrationProfile{
		Version:       gaze.ProfileVersion,
		CreatedAt:     cfg.now().UTC(),
		Regression:    reg,
		DeadzoneScore: deadzone,
	}
	if err := profile.Validate(); err != nil {
		return gaze.CalibrationProfile{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}
	return profile, nil
}

// PointsResult is the outcome of BuildProfileFromPoints.
type PointsResult struct {
	OK           bool
	Reason       Reason
	Profile      *gaze.CalibrationProfile
	BucketCounts gaze.BucketCounts
	// PointCounts is the trimmed sample count per calibration point.
	PointCounts map[string]int
	// Pools holds the trimmed samples used (or refused) for fitting.
	Pools LabeledPools
}

// BuildProfileFromPoints trims each calibration point's samples, pools them
// by the point's class and fits a profile. When any bucket has fewer than
// MinSamplesPerBucket samples the result carries
// ReasonInsufficientCleanSamples and no profile. Sample sets keyed by IDs
// that are not calibration points are ignored.
func BuildProfileFromPoints(samples map[string][]gaze.CalibrationSample, cfg BuilderConfig) (PointsResult, error) {
	res := PointsResult{PointCounts: make(map[string]int, len(calibrationPoints))}

	for _, p := range calibrationPoints {
		trimmed := TrimOutliersByMAD(samples[p.ID], cfg.TrimMultiplier)
		res.PointCounts[p.ID] = len(trimmed)
		res.Pools.add(p.Class, trimmed)
	}
	res.BucketCounts = res.Pools.Counts()

	for _, label := range gaze.ClassLabels {
		if res.BucketCounts.Get(label) < cfg.MinSamplesPerBucket {
			res.Reason = ReasonInsufficientCleanSamples
			return res, nil
		}
	}

	profile, err := BuildProfile(res.Pools, cfg)
	if err != nil {
		return res, err
	}
	res.OK = true
	res.Reason = ReasonOK
	res.Profile = &profile
	return res, nil
}
