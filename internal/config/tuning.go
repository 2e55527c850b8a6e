package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for calibration and
// classification tuning. Every field is optional; the Get* accessors
// supply the documented default for anything left unset.
type TuningConfig struct {
	// Point quality gate
	MinSamples *int     `json:"min_samples,omitempty"`
	MaxStddevX *float64 `json:"max_stddev_x,omitempty"`
	MaxStddevY *float64 `json:"max_stddev_y,omitempty"`

	// Profile builder
	TrimMADMultiplier   *float64 `json:"trim_mad_multiplier,omitempty"`
	RidgeLambda         *float64 `json:"ridge_lambda,omitempty"`
	DeadzoneMultiplier  *float64 `json:"deadzone_multiplier,omitempty"`
	MinSamplesPerBucket *int     `json:"min_samples_per_bucket,omitempty"`

	// Session
	MaxRetries         *int    `json:"max_retries,omitempty"`
	Countdown          *string `json:"countdown,omitempty"`           // duration string like "1s"
	CollectionDuration *string `json:"collection_duration,omitempty"` // duration string like "1.2s"
	ValidationDuration *string `json:"validation_duration,omitempty"` // duration string like "800ms"
	SampleInterval     *string `json:"sample_interval,omitempty"`     // duration string like "40ms"

	// Validation gates
	MinOverallAccuracy      *float64 `json:"min_overall_accuracy,omitempty"`
	MinCenterAccuracy       *float64 `json:"min_center_accuracy,omitempty"`
	ValidationCenterPointID *string  `json:"validation_center_point_id,omitempty"`

	// Live filtering
	SmoothingWindow   *int     `json:"smoothing_window,omitempty"`
	IntentWindow      *string  `json:"intent_window,omitempty"` // duration string like "2s"
	MinSideConfidence *float64 `json:"min_side_confidence,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults. It must stay in step with DefaultConfigPath.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		MinSamples:              ptrInt(20),
		MaxStddevX:              ptrFloat64(0.03),
		MaxStddevY:              ptrFloat64(0.04),
		TrimMADMultiplier:       ptrFloat64(2.5),
		RidgeLambda:             ptrFloat64(0.25),
		DeadzoneMultiplier:      ptrFloat64(1.0),
		MinSamplesPerBucket:     ptrInt(25),
		MaxRetries:              ptrInt(4),
		Countdown:               ptrString("1s"),
		CollectionDuration:      ptrString("1.2s"),
		ValidationDuration:      ptrString("800ms"),
		SampleInterval:          ptrString("40ms"),
		MinOverallAccuracy:      ptrFloat64(0.8),
		MinCenterAccuracy:       ptrFloat64(0.7),
		ValidationCenterPointID: ptrString("validation-center"),
		SmoothingWindow:         ptrInt(5),
		IntentWindow:            ptrString("2s"),
		MinSideConfidence:       ptrFloat64(0.45),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/gaze/session/
		"../../../../" + DefaultConfigPath,    // from internal/gaze/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinSamples != nil && *c.MinSamples < 0 {
		return fmt.Errorf("min_samples must be non-negative, got %d", *c.MinSamples)
	}
	if c.MaxStddevX != nil && *c.MaxStddevX <= 0 {
		return fmt.Errorf("max_stddev_x must be positive, got %f", *c.MaxStddevX)
	}
	if c.MaxStddevY != nil && *c.MaxStddevY <= 0 {
		return fmt.Errorf("max_stddev_y must be positive, got %f", *c.MaxStddevY)
	}
	if c.TrimMADMultiplier != nil && *c.TrimMADMultiplier <= 0 {
		return fmt.Errorf("trim_mad_multiplier must be positive, got %f", *c.TrimMADMultiplier)
	}
	if c.RidgeLambda != nil && *c.RidgeLambda <= 0 {
		return fmt.Errorf("ridge_lambda must be positive, got %f", *c.RidgeLambda)
	}
	if c.DeadzoneMultiplier != nil && *c.DeadzoneMultiplier <= 0 {
		return fmt.Errorf("deadzone_multiplier must be positive, got %f", *c.DeadzoneMultiplier)
	}
	if c.MinSamplesPerBucket != nil && *c.MinSamplesPerBucket < 1 {
		return fmt.Errorf("min_samples_per_bucket must be at least 1, got %d", *c.MinSamplesPerBucket)
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", *c.MaxRetries)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}
	if c.MinOverallAccuracy != nil && (*c.MinOverallAccuracy < 0 || *c.MinOverallAccuracy > 1) {
		return fmt.Errorf("min_overall_accuracy must be between 0 and 1, got %f", *c.MinOverallAccuracy)
	}
	if c.MinCenterAccuracy != nil && (*c.MinCenterAccuracy < 0 || *c.MinCenterAccuracy > 1) {
		return fmt.Errorf("min_center_accuracy must be between 0 and 1, got %f", *c.MinCenterAccuracy)
	}
	if c.MinSideConfidence != nil && (*c.MinSideConfidence < 0 || *c.MinSideConfidence > 1) {
		return fmt.Errorf("min_side_confidence must be between 0 and 1, got %f", *c.MinSideConfidence)
	}
	if c.ValidationCenterPointID != nil && *c.ValidationCenterPointID == "" {
		return fmt.Errorf("validation_center_point_id must not be empty")
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"countdown", c.Countdown},
		{"collection_duration", c.CollectionDuration},
		{"validation_duration", c.ValidationDuration},
		{"sample_interval", c.SampleInterval},
		{"intent_window", c.IntentWindow},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.value)
		}
	}
	if c.SampleInterval != nil && *c.SampleInterval != "" {
		if d, _ := time.ParseDuration(*c.SampleInterval); d == 0 {
			return fmt.Errorf("sample_interval must be positive")
		}
	}

	return nil
}

func durationOr(value *string, def time.Duration) time.Duration {
	if value == nil || *value == "" {
		return def
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetMinSamples returns the min_samples value or the default.
func (c *TuningConfig) GetMinSamples() int {
	if c.MinSamples == nil {
		return 20
	}
	return *c.MinSamples
}

// GetMaxStddevX returns the max_stddev_x value or the default.
func (c *TuningConfig) GetMaxStddevX() float64 {
	if c.MaxStddevX == nil {
		return 0.03
	}
	return *c.MaxStddevX
}

// GetMaxStddevY returns the max_stddev_y value or the default.
func (c *TuningConfig) GetMaxStddevY() float64 {
	if c.MaxStddevY == nil {
		return 0.04
	}
	return *c.MaxStddevY
}

// GetTrimMADMultiplier returns the trim_mad_multiplier value or the default.
func (c *TuningConfig) GetTrimMADMultiplier() float64 {
	if c.TrimMADMultiplier == nil {
		return 2.5
	}
	return *c.TrimMADMultiplier
}

// GetRidgeLambda returns the ridge_lambda value or the default.
func (c *TuningConfig) GetRidgeLambda() float64 {
	if c.RidgeLambda == nil {
		return 0.25
	}
	return *c.RidgeLambda
}

// GetDeadzoneMultiplier returns the deadzone_multiplier value or the default.
func (c *TuningConfig) GetDeadzoneMultiplier() float64 {
	if c.DeadzoneMultiplier == nil {
		return 1.0
	}
	return *c.DeadzoneMultiplier
}

// GetMinSamplesPerBucket returns the min_samples_per_bucket value or the default.
func (c *TuningConfig) GetMinSamplesPerBucket() int {
	if c.MinSamplesPerBucket == nil {
		return 25
	}
	return *c.MinSamplesPerBucket
}

// GetMaxRetries returns the max_retries value or the default.
func (c *TuningConfig) GetMaxRetries() int {
	if c.MaxRetries == nil {
		return 4
	}
	return *c.MaxRetries
}

// GetCountdown returns the pre-collection countdown per point.
func (c *TuningConfig) GetCountdown() time.Duration {
	return durationOr(c.Countdown, time.Second)
}

// GetCollectionDuration returns the per-point calibration collection window.
func (c *TuningConfig) GetCollectionDuration() time.Duration {
	return durationOr(c.CollectionDuration, 1200*time.Millisecond)
}

// GetValidationDuration returns the per-target validation collection window.
func (c *TuningConfig) GetValidationDuration() time.Duration {
	return durationOr(c.ValidationDuration, 800*time.Millisecond)
}

// GetSampleInterval returns the sampling period inside collection windows.
func (c *TuningConfig) GetSampleInterval() time.Duration {
	return durationOr(c.SampleInterval, 40*time.Millisecond)
}

// GetMinOverallAccuracy returns the min_overall_accuracy value or the default.
func (c *TuningConfig) GetMinOverallAccuracy() float64 {
	if c.MinOverallAccuracy == nil {
		return 0.8
	}
	return *c.MinOverallAccuracy
}

// GetMinCenterAccuracy returns the min_center_accuracy value or the default.
func (c *TuningConfig) GetMinCenterAccuracy() float64 {
	if c.MinCenterAccuracy == nil {
		return 0.7
	}
	return *c.MinCenterAccuracy
}

// GetValidationCenterPointID returns the validation_center_point_id value or the default.
func (c *TuningConfig) GetValidationCenterPointID() string {
	if c.ValidationCenterPointID == nil || *c.ValidationCenterPointID == "" {
		return "validation-center"
	}
	return *c.ValidationCenterPointID
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5
	}
	return *c.SmoothingWindow
}

// GetIntentWindow returns the intent filter's wall-clock window.
func (c *TuningConfig) GetIntentWindow() time.Duration {
	return durationOr(c.IntentWindow, 2*time.Second)
}

// GetMinSideConfidence returns the confidence a LEFT or RIGHT output needs
// before it votes for an intent.
func (c *TuningConfig) GetMinSideConfidence() float64 {
	if c.MinSideConfidence == nil {
		return 0.45
	}
	return *c.MinSideConfidence
}
