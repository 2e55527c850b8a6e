// Command gaze-offline rebuilds a calibration from a recorded session file
// and writes the attempt record, the fitted profile, an HTML report and a
// score histogram into an output directory.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/gaze.intent/internal/config"
	"github.com/banshee-data/gaze.intent/internal/gaze/report"
	"github.com/banshee-data/gaze.intent/internal/gaze/session"
	"github.com/banshee-data/gaze.intent/internal/security"
)

// maxSessionBytes caps the recorded session file.
const maxSessionBytes = 16 << 20

// Config holds the command's options.
type Config struct {
	SessionFile string
	OutputDir   string
	ConfigFile  string
	AssetsHost  string
	Now         time.Time
}

// Summary is printed to stdout once the outputs are written.
type Summary struct {
	Status   string            `json:"status"`
	Reason   string            `json:"reason"`
	Degraded bool              `json:"degraded"`
	Profile  bool              `json:"profile"`
	Files    map[string]string `json:"files"`
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.SessionFile, "session", "", "Recorded session JSON ({pointSamples, validationSamples, ...})")
	flag.StringVar(&cfg.OutputDir, "out", "gaze-offline-out", "Output directory (within the working or temp directory)")
	flag.StringVar(&cfg.ConfigFile, "config", "", "Tuning config JSON (defaults apply when empty)")
	flag.StringVar(&cfg.AssetsHost, "assets-host", "", "Local echarts asset host for the report")
	flag.Parse()

	if cfg.SessionFile == "" {
		log.Fatal("-session is required")
	}
	cfg.Now = time.Now()

	if err := run(cfg, os.Stdout); err != nil {
		log.Fatalf("gaze-offline: %v", err)
	}
}

func run(cfg Config, stdout io.Writer) error {
	if err := security.ValidateOutputDir(cfg.OutputDir); err != nil {
		return err
	}

	tuning := config.EmptyTuningConfig()
	if cfg.ConfigFile != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(cfg.ConfigFile); err != nil {
			return err
		}
	}

	rec, err := readSession(cfg.SessionFile)
	if err != nil {
		return err
	}

	outcome, err := session.Assemble(rec, session.ConfigFromTuning(tuning), cfg.Now)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	summary := Summary{
		Status:   string(outcome.Attempt.Status),
		Reason:   outcome.Attempt.Reason,
		Degraded: outcome.Degraded,
		Profile:  outcome.Profile != nil,
		Files:    map[string]string{},
	}

	write := func(key, name string, fn func(io.Writer) error) error {
		path, err := security.OutputPath(cfg.OutputDir, name)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := fn(&buf); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		summary.Files[key] = path
		return nil
	}

	if err := write("attempt", "attempt.json", jsonWriter(outcome.Attempt)); err != nil {
		return err
	}

	page := report.PageInput{
		Samples:    rec.PointSamples,
		Profile:    outcome.Profile,
		Attempt:    &outcome.Attempt,
		AssetsHost: cfg.AssetsHost,
	}
	if err := write("report", "report.html", func(w io.Writer) error { return report.CalibrationPage(w, page) }); err != nil {
		return err
	}

	if outcome.Profile != nil {
		if err := write("profile", "profile.json", jsonWriter(outcome.Profile)); err != nil {
			return err
		}
		err := write("histogram", "scores.png", func(w io.Writer) error {
			return report.WriteScoreHistogramPNG(w, *outcome.Profile, outcome.Points.Pools)
		})
		if err != nil && !errors.Is(err, report.ErrNoScores) {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func readSession(path string) (session.Recording, error) {
	var rec session.Recording
	f, err := os.Open(path)
	if err != nil {
		return rec, fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(io.LimitReader(f, maxSessionBytes)).Decode(&rec); err != nil {
		return rec, fmt.Errorf("parse session %s: %w", path, err)
	}
	if rec.RetryCount < 0 {
		return rec, fmt.Errorf("parse session %s: negative retryCount", path)
	}
	return rec, nil
}

func jsonWriter(v interface{}) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
