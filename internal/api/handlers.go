package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/ingest"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/gaze/report"
	"github.com/banshee-data/gaze.intent/internal/gaze/session"
	"github.com/banshee-data/gaze.intent/internal/gaze/storage/sqlite"
	"github.com/banshee-data/gaze.intent/internal/version"
)

const (
	defaultAttemptLimit = 20
	maxAttemptLimit     = 500
)

// LiveResponse is the body of GET /api/live.
type LiveResponse struct {
	Output     gaze.Output `json:"output"`
	Timestamp  string      `json:"timestamp,omitempty"`
	Calibrated bool        `json:"calibrated"`
	Window     int         `json:"window"`
	Stats      live.Stats  `json:"stats"`
}

// CalibrationResponse is the body of POST /api/calibration.
type CalibrationResponse struct {
	AttemptID string             `json:"attemptId,omitempty"`
	ProfileID string             `json:"profileId,omitempty"`
	Attempt   gaze.AttemptRecord `json:"attempt"`
	Applied   bool               `json:"applied"`
	Degraded  bool               `json:"degraded"`
	Warning   string             `json:"warning,omitempty"`
}

// handleClassify runs one landmark frame through the live pipeline. The
// body uses the UDP datagram layout.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read body: %v", err))
		return
	}
	frame, err := ingest.DecodeFrame(body, s.clock.Now())
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.intent.Process(frame))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	out, at := s.pipeline.Latest()
	resp := LiveResponse{
		Output:     out,
		Calibrated: s.pipeline.Profile() != nil,
		Window:     s.pipeline.Window(),
		Stats:      s.pipeline.Stats(),
	}
	if !at.IsZero() {
		resp.Timestamp = gaze.FormatTimestamp(at)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLiveWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req struct {
		Window int `json:"window"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid body: %v", err))
		return
	}
	if req.Window < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "window must be at least 1")
		return
	}
	s.pipeline.SetWindow(req.Window)
	s.writeJSON(w, http.StatusOK, map[string]int{"window": s.pipeline.Window()})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p := s.pipeline.Profile()
		if p == nil {
			s.writeJSONError(w, http.StatusNotFound, "No calibration profile")
			return
		}
		s.writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read body: %v", err))
			return
		}
		p, err := gaze.DecodeProfile(body)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp := map[string]interface{}{"profile": p}
		if s.stores != nil {
			id, err := s.stores.Profiles.Save(r.Context(), *p)
			if err != nil {
				s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save profile: %v", err))
				return
			}
			resp["profileId"] = id
		}
		s.pipeline.SetProfile(p)
		s.writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		if s.stores != nil {
			if err := s.stores.Clear(r.Context()); err != nil {
				s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to clear calibration: %v", err))
				return
			}
		}
		s.pipeline.SetProfile(nil)
		s.mu.Lock()
		s.last = nil
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCalibration assembles a client-recorded session into a profile
// and attempt.
func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var rec session.Recording
	if err := decodeBody(w, r, &rec); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid recording: %v", err))
		return
	}
	if rec.RetryCount < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "retryCount must not be negative")
		return
	}

	outcome, err := session.Assemble(rec, s.cfg, s.clock.Now())
	if err != nil {
		s.writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := s.applyOutcome(r.Context(), rec, outcome)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save calibration: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// applyOutcome persists an assembled run and swaps its profile into the
// live pipeline. Any fitted profile is applied, including degraded or
// unvalidated ones; the response carries a warning in that case.
func (s *Server) applyOutcome(ctx context.Context, rec session.Recording, outcome *session.Outcome) (CalibrationResponse, error) {
	resp := CalibrationResponse{Attempt: outcome.Attempt, Degraded: outcome.Degraded}
	switch {
	case outcome.Profile == nil:
		resp.Warning = "No profile could be fitted. Recalibrate."
	case outcome.Attempt.Status != gaze.AttemptSuccess:
		resp.Warning = fmt.Sprintf("Calibration saved with low quality (%s). Rerun recommended.", outcome.Attempt.Reason)
	}

	if s.stores != nil {
		id, err := s.stores.Attempts.Save(ctx, outcome.Attempt)
		if err != nil {
			return resp, fmt.Errorf("save attempt: %w", err)
		}
		resp.AttemptID = id
		if outcome.Profile != nil {
			if resp.ProfileID, err = s.stores.Profiles.Save(ctx, *outcome.Profile); err != nil {
				return resp, fmt.Errorf("save profile: %w", err)
			}
		}
	}
	if outcome.Profile != nil {
		s.pipeline.SetProfile(outcome.Profile)
		resp.Applied = true
	}

	s.mu.Lock()
	s.last = &lastCalibration{recording: rec, outcome: outcome}
	s.mu.Unlock()
	return resp, nil
}

func (s *Server) handleLatestAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.stores == nil {
		s.writeJSONError(w, http.StatusNotFound, "Storage disabled")
		return
	}
	a, err := s.stores.Attempts.Latest(r.Context())
	if errors.Is(err, sqlite.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "No calibration attempts")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load attempt: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.stores == nil {
		s.writeJSON(w, http.StatusOK, []sqlite.StoredAttempt{})
		return
	}
	limit := defaultAttemptLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxAttemptLimit {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'limit' parameter (1-%d)", maxAttemptLimit))
			return
		}
		limit = parsed
	}
	list, err := s.stores.Attempts.List(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list attempts: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// reportInput gathers what the report routes draw: the last submitted
// session when there is one, otherwise the stored attempt and profile.
func (s *Server) reportInput(r *http.Request) (report.PageInput, *session.Outcome) {
	in := report.PageInput{Profile: s.pipeline.Profile(), AssetsHost: s.assetsHost}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		in.Samples = last.recording.PointSamples
		attempt := last.outcome.Attempt
		in.Attempt = &attempt
		return in, last.outcome
	}

	if s.stores != nil {
		if a, err := s.stores.Attempts.Latest(r.Context()); err == nil {
			in.Attempt = &a.Record
		}
	}
	return in, nil
}

func (s *Server) handleCalibrationReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	in, _ := s.reportInput(r)
	if in.Profile == nil && in.Attempt == nil {
		s.writeJSONError(w, http.StatusNotFound, "No calibration to report")
		return
	}
	var buf bytes.Buffer
	if err := report.CalibrationPage(&buf, in); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCalibrationHistogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	_, outcome := s.reportInput(r)
	if outcome == nil || outcome.Profile == nil {
		s.writeJSONError(w, http.StatusNotFound, "No calibration samples in memory")
		return
	}
	var buf bytes.Buffer
	if err := report.WriteScoreHistogramPNG(&buf, *outcome.Profile, outcome.Points.Pools); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
		"server_now": s.clock.Now().UTC().Format(time.RFC3339),
	})
}
