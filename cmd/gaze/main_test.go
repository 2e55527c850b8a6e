package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/gaze.intent/internal/db"
	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/gaze/storage/sqlite"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

func TestLoadTuning(t *testing.T) {
	cfg, err := loadTuning("")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.GetSmoothingWindow() < 1 {
		t.Errorf("smoothing window = %d", cfg.GetSmoothingWindow())
	}

	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(`{"smoothing_window": 9}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadTuning(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.GetSmoothingWindow(); got != 9 {
		t.Errorf("smoothing window = %d, want 9", got)
	}

	if _, err := loadTuning(filepath.Join(t.TempDir(), "tuning.yaml")); err == nil {
		t.Error("expected error for non-json config")
	}
}

func TestRestoreProfile(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "gaze.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer database.Close()

	stores := sqlite.NewStores(database.DB, timeutil.NewMockClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	pipeline := live.New(3, nil)

	restoreProfile(t.Context(), stores, pipeline)
	if pipeline.Profile() != nil {
		t.Fatal("expected pipeline to stay uncalibrated")
	}

	p := gaze.CalibrationProfile{
		Version:       gaze.ProfileVersion,
		CreatedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Regression:    gaze.Regression{W: 3, B: -1.5, Lambda: 0.25},
		DeadzoneScore: 0.2,
	}
	if _, err := stores.Profiles.Save(t.Context(), p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	restoreProfile(t.Context(), stores, pipeline)
	got := pipeline.Profile()
	if got == nil || got.Regression != p.Regression {
		t.Fatalf("restored profile = %+v, want %+v", got, p)
	}
}
