// Package api exposes the gaze engine over HTTP JSON and a gRPC stream.
//
// Dependency rule: api wires gaze/live, gaze/session, gaze/report and
// gaze/storage/sqlite together; it holds no calibration logic itself.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/gaze/session"
	"github.com/banshee-data/gaze.intent/internal/gaze/smoothing"
	"github.com/banshee-data/gaze.intent/internal/gaze/storage/sqlite"
	"github.com/banshee-data/gaze.intent/internal/monitoring"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

var logf = monitoring.Component("api")

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes caps request bodies. A recorded session of nine points and
// three validation points is well under this.
const maxBodyBytes = 4 << 20

type Server struct {
	pipeline   *live.Pipeline
	stores     *sqlite.Stores
	cfg        session.Config
	clock      timeutil.Clock
	assetsHost string
	intent     *IntentTracker
	run        *calibrationRun
	baseCtx    context.Context

	mu   sync.Mutex
	last *lastCalibration
}

// lastCalibration keeps the most recent submitted session in memory so the
// report routes can draw its samples. Attempt records do not store samples.
type lastCalibration struct {
	recording session.Recording
	outcome   *session.Outcome
}

// NewServer creates the API server. stores may be nil, in which case
// nothing is persisted. A nil clock uses the real clock.
func NewServer(pipeline *live.Pipeline, stores *sqlite.Stores, cfg session.Config, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		pipeline: pipeline,
		stores:   stores,
		cfg:      cfg,
		clock:    clock,
		intent:   NewIntentTracker(pipeline, smoothing.DefaultIntentWindow, clock),
		run:      newCalibrationRun(),
		baseCtx:  context.Background(),
	}
}

// SetBaseContext parents calibration runs started after the call on ctx,
// so cancelling it stops them.
func (s *Server) SetBaseContext(ctx context.Context) {
	s.baseCtx = ctx
}

// Intent returns the tracker frames should be fed through so the intent
// route sees them. The ingest listener uses it as its handler.
func (s *Server) Intent() *IntentTracker {
	return s.intent
}

// SetAssetsHost points rendered chart pages at a local echarts asset
// mirror instead of the public CDN.
func (s *Server) SetAssetsHost(host string) {
	s.assetsHost = host
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/classify", s.handleClassify)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/api/live/window", s.handleLiveWindow)
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/calibration", s.handleCalibration)
	mux.HandleFunc("/api/calibration/report", s.handleCalibrationReport)
	mux.HandleFunc("/api/calibration/histogram.png", s.handleCalibrationHistogram)
	mux.HandleFunc("/api/calibration/run", s.handleCalibrationRun)
	mux.HandleFunc("/api/intent", s.handleIntent)
	mux.HandleFunc("/api/attempts", s.handleAttempts)
	mux.HandleFunc("/api/attempts/latest", s.handleLatestAttempt)
	mux.HandleFunc("/api/version", s.handleVersion)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf("failed to write response: %v", err)
	}
}

// decodeBody reads a size-capped JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
