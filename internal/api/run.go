package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/calibration"
	"github.com/banshee-data/gaze.intent/internal/gaze/session"
)

// Run states reported by /api/calibration/run.
const (
	RunIdle      = "idle"
	RunRunning   = "running"
	RunDone      = "done"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// RunStatus describes the server-driven calibration run.
type RunStatus struct {
	State      string               `json:"state"`
	Stage      string               `json:"stage,omitempty"`
	PointID    string               `json:"pointId,omitempty"`
	Hint       string               `json:"hint,omitempty"`
	IsRetry    bool                 `json:"isRetry,omitempty"`
	Evaluated  int                  `json:"evaluated"`
	RetryCount int                  `json:"retryCount"`
	StartedAt  string               `json:"startedAt,omitempty"`
	Error      string               `json:"error,omitempty"`
	Result     *CalibrationResponse `json:"result,omitempty"`
}

// calibrationRun tracks at most one runner goroutine sampling the live
// pipeline.
type calibrationRun struct {
	mu     sync.Mutex
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

func newCalibrationRun() *calibrationRun {
	return &calibrationRun{status: RunStatus{State: RunIdle}}
}

func (c *calibrationRun) snapshot() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *calibrationRun) update(fn func(*RunStatus)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

// runObserver mirrors runner events into the run status.
type runObserver struct{ run *calibrationRun }

func (o runObserver) PointStarted(task session.Task, point calibration.PointDef) {
	o.run.update(func(st *RunStatus) {
		st.Stage = "point"
		st.PointID = point.ID
		st.Hint = point.Hint
		st.IsRetry = task.IsRetry
	})
}

func (o runObserver) PointEvaluated(_ session.Task, _ calibration.PointQualityResult, q session.Queue) {
	o.run.update(func(st *RunStatus) {
		st.Evaluated++
		st.RetryCount = q.RetryCount()
	})
}

func (o runObserver) ValidationStarted(point calibration.ValidationPointDef) {
	o.run.update(func(st *RunStatus) {
		st.Stage = "validation"
		st.PointID = point.ID
		st.Hint = ""
		st.IsRetry = false
	})
}

// startRun launches a runner over the live pipeline. It reports false when
// a run is already in progress.
func (s *Server) startRun() (RunStatus, bool) {
	c := s.run
	c.mu.Lock()
	if c.status.State == RunRunning {
		st := c.status
		c.mu.Unlock()
		return st, false
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.status = RunStatus{State: RunRunning, StartedAt: gaze.FormatTimestamp(s.clock.Now())}
	st := c.status
	done := c.done
	c.mu.Unlock()

	runner := session.NewRunner(s.cfg, s.pipeline, s.clock, runObserver{run: c})
	go func() {
		defer close(done)
		defer cancel()
		res, err := runner.Run(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			logf("calibration run cancelled")
			c.update(func(st *RunStatus) { st.State = RunCancelled })
			return
		case err != nil:
			logf("calibration run failed: %v", err)
			c.update(func(st *RunStatus) { st.State = RunFailed; st.Error = err.Error() })
			return
		}
		resp, err := s.applyOutcome(ctx, res.Recording, res.Outcome)
		c.update(func(st *RunStatus) {
			st.Stage = ""
			st.PointID = ""
			st.Hint = ""
			st.IsRetry = false
			if err != nil {
				st.State = RunFailed
				st.Error = err.Error()
				return
			}
			st.State = RunDone
			st.Result = &resp
		})
	}()
	return st, true
}

// cancelRun stops a running calibration and waits for the runner to exit.
func (s *Server) cancelRun() bool {
	c := s.run
	c.mu.Lock()
	if c.status.State != RunRunning {
		c.mu.Unlock()
		return false
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return true
}

// StopRun cancels the current or most recent calibration run and waits for
// its goroutine to exit. Callers use it before closing the database.
func (s *Server) StopRun() {
	c := s.run
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Server) handleCalibrationRun(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.run.snapshot())
	case http.MethodPost:
		st, ok := s.startRun()
		if !ok {
			s.writeJSONError(w, http.StatusConflict, "Calibration run already in progress")
			return
		}
		s.writeJSON(w, http.StatusAccepted, st)
	case http.MethodDelete:
		if !s.cancelRun() {
			s.writeJSONError(w, http.StatusConflict, "No calibration run in progress")
			return
		}
		s.writeJSON(w, http.StatusOK, s.run.snapshot())
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
