package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.MinSamples == nil || *cfg.MinSamples != 20 {
		t.Errorf("Expected MinSamples 20, got %v", cfg.MinSamples)
	}
	if cfg.CollectionDuration == nil || *cfg.CollectionDuration != "1.2s" {
		t.Errorf("Expected CollectionDuration '1.2s', got %v", cfg.CollectionDuration)
	}

	// Getters agree with the populated values and with the nil fallbacks.
	empty := EmptyTuningConfig()
	checks := []struct {
		name      string
		got, want any
	}{
		{"min_samples", cfg.GetMinSamples(), empty.GetMinSamples()},
		{"max_stddev_x", cfg.GetMaxStddevX(), empty.GetMaxStddevX()},
		{"max_stddev_y", cfg.GetMaxStddevY(), empty.GetMaxStddevY()},
		{"trim_mad_multiplier", cfg.GetTrimMADMultiplier(), empty.GetTrimMADMultiplier()},
		{"ridge_lambda", cfg.GetRidgeLambda(), empty.GetRidgeLambda()},
		{"deadzone_multiplier", cfg.GetDeadzoneMultiplier(), empty.GetDeadzoneMultiplier()},
		{"min_samples_per_bucket", cfg.GetMinSamplesPerBucket(), empty.GetMinSamplesPerBucket()},
		{"max_retries", cfg.GetMaxRetries(), empty.GetMaxRetries()},
		{"countdown", cfg.GetCountdown(), empty.GetCountdown()},
		{"collection_duration", cfg.GetCollectionDuration(), empty.GetCollectionDuration()},
		{"validation_duration", cfg.GetValidationDuration(), empty.GetValidationDuration()},
		{"sample_interval", cfg.GetSampleInterval(), empty.GetSampleInterval()},
		{"min_overall_accuracy", cfg.GetMinOverallAccuracy(), empty.GetMinOverallAccuracy()},
		{"min_center_accuracy", cfg.GetMinCenterAccuracy(), empty.GetMinCenterAccuracy()},
		{"validation_center_point_id", cfg.GetValidationCenterPointID(), empty.GetValidationCenterPointID()},
		{"smoothing_window", cfg.GetSmoothingWindow(), empty.GetSmoothingWindow()},
		{"intent_window", cfg.GetIntentWindow(), empty.GetIntentWindow()},
		{"min_side_confidence", cfg.GetMinSideConfidence(), empty.GetMinSideConfidence()},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: populated %v, default %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "min_samples": 12,
  "ridge_lambda": 0.5,
  "collection_duration": "2s",
  "validation_center_point_id": "vc"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMinSamples() != 12 {
		t.Errorf("GetMinSamples() = %d, want 12", cfg.GetMinSamples())
	}
	if cfg.GetRidgeLambda() != 0.5 {
		t.Errorf("GetRidgeLambda() = %f, want 0.5", cfg.GetRidgeLambda())
	}
	if cfg.GetCollectionDuration() != 2*time.Second {
		t.Errorf("GetCollectionDuration() = %v, want 2s", cfg.GetCollectionDuration())
	}
	if cfg.GetValidationCenterPointID() != "vc" {
		t.Errorf("GetValidationCenterPointID() = %q, want vc", cfg.GetValidationCenterPointID())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetMaxRetries() != 4 {
		t.Errorf("GetMaxRetries() = %d, want 4", cfg.GetMaxRetries())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigRejectsExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "big.json")
	if err := os.WriteFile(configPath, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "min_samples": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")
	if err := os.WriteFile(configPath, []byte(`{"min_overall_accuracy": 1.5}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults file does not validate: %v", err)
	}

	// The defaults file and the built-in defaults must not drift apart.
	builtin := DefaultTuningConfig()
	if cfg.GetMinSamplesPerBucket() != builtin.GetMinSamplesPerBucket() {
		t.Errorf("min_samples_per_bucket drift: file %d, builtin %d", cfg.GetMinSamplesPerBucket(), builtin.GetMinSamplesPerBucket())
	}
	if cfg.GetSampleInterval() != builtin.GetSampleInterval() {
		t.Errorf("sample_interval drift: file %v, builtin %v", cfg.GetSampleInterval(), builtin.GetSampleInterval())
	}
	if cfg.GetIntentWindow() != builtin.GetIntentWindow() {
		t.Errorf("intent_window drift: file %v, builtin %v", cfg.GetIntentWindow(), builtin.GetIntentWindow())
	}
	if cfg.GetDeadzoneMultiplier() != builtin.GetDeadzoneMultiplier() {
		t.Errorf("deadzone_multiplier drift: file %v, builtin %v", cfg.GetDeadzoneMultiplier(), builtin.GetDeadzoneMultiplier())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultTuningConfig()},
		{name: "empty config is valid", cfg: &TuningConfig{}},
		{name: "negative min samples", cfg: &TuningConfig{MinSamples: ptrInt(-1)}, wantErr: true},
		{name: "zero stddev x", cfg: &TuningConfig{MaxStddevX: ptrFloat64(0)}, wantErr: true},
		{name: "negative stddev y", cfg: &TuningConfig{MaxStddevY: ptrFloat64(-0.1)}, wantErr: true},
		{name: "zero trim multiplier", cfg: &TuningConfig{TrimMADMultiplier: ptrFloat64(0)}, wantErr: true},
		{name: "negative lambda", cfg: &TuningConfig{RidgeLambda: ptrFloat64(-1)}, wantErr: true},
		{name: "zero lambda", cfg: &TuningConfig{RidgeLambda: ptrFloat64(0)}, wantErr: true},
		{name: "zero deadzone multiplier", cfg: &TuningConfig{DeadzoneMultiplier: ptrFloat64(0)}, wantErr: true},
		{name: "zero bucket minimum", cfg: &TuningConfig{MinSamplesPerBucket: ptrInt(0)}, wantErr: true},
		{name: "negative retries", cfg: &TuningConfig{MaxRetries: ptrInt(-1)}, wantErr: true},
		{name: "zero retries allowed", cfg: &TuningConfig{MaxRetries: ptrInt(0)}},
		{name: "zero smoothing window", cfg: &TuningConfig{SmoothingWindow: ptrInt(0)}, wantErr: true},
		{name: "overall accuracy above one", cfg: &TuningConfig{MinOverallAccuracy: ptrFloat64(1.1)}, wantErr: true},
		{name: "center accuracy below zero", cfg: &TuningConfig{MinCenterAccuracy: ptrFloat64(-0.1)}, wantErr: true},
		{name: "side confidence above one", cfg: &TuningConfig{MinSideConfidence: ptrFloat64(1.5)}, wantErr: true},
		{name: "negative side confidence", cfg: &TuningConfig{MinSideConfidence: ptrFloat64(-0.1)}, wantErr: true},
		{name: "zero side confidence allowed", cfg: &TuningConfig{MinSideConfidence: ptrFloat64(0)}},
		{name: "empty center point id", cfg: &TuningConfig{ValidationCenterPointID: ptrString("")}, wantErr: true},
		{name: "invalid countdown", cfg: &TuningConfig{Countdown: ptrString("soon")}, wantErr: true},
		{name: "negative collection duration", cfg: &TuningConfig{CollectionDuration: ptrString("-1s")}, wantErr: true},
		{name: "zero sample interval", cfg: &TuningConfig{SampleInterval: ptrString("0s")}, wantErr: true},
		{name: "invalid intent window", cfg: &TuningConfig{IntentWindow: ptrString("2 seconds")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationGetters(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		get  func(*TuningConfig) time.Duration
		want time.Duration
	}{
		{"countdown set", &TuningConfig{Countdown: ptrString("3s")}, (*TuningConfig).GetCountdown, 3 * time.Second},
		{"countdown nil", &TuningConfig{}, (*TuningConfig).GetCountdown, time.Second},
		{"collection empty string", &TuningConfig{CollectionDuration: ptrString("")}, (*TuningConfig).GetCollectionDuration, 1200 * time.Millisecond},
		{"validation invalid", &TuningConfig{ValidationDuration: ptrString("invalid")}, (*TuningConfig).GetValidationDuration, 800 * time.Millisecond},
		{"sample interval set", &TuningConfig{SampleInterval: ptrString("20ms")}, (*TuningConfig).GetSampleInterval, 20 * time.Millisecond},
		{"intent window nil", &TuningConfig{}, (*TuningConfig).GetIntentWindow, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(tt.cfg); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
