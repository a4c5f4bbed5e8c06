package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/edgefleet/internal/orchestration"
)

// RunStatus describes the last run started over HTTP.
type RunStatus struct {
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
	Summary    *orchestration.Summary `json:"summary,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// DeployStatus is the body of GET /api/deploy/status.
type DeployStatus struct {
	Running bool       `json:"running"`
	Last    *RunStatus `json:"last,omitempty"`
}

// handleDeploy starts a run that outlives the request and answers 202 at
// once. Failures then surface in /api/deploy/status and as the terminal
// error event on /api/progress. With ?wait=true the handler blocks until the
// run ends and answers with its RunStatus: 200 on success, 500 when the run
// failed. A client that disconnects while waiting does not cancel the run.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.starting || s.cfg.Deployer.Running() {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, orchestration.ErrRunInProgress)
		return
	}
	s.starting = true
	status := &RunStatus{StartedAt: time.Now().UTC()}
	s.last = status
	s.mu.Unlock()

	// The run outlives the request.
	ctx := logr.NewContext(context.Background(), s.cfg.Logger)
	done := make(chan struct{})
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer close(done)
		summary, err := s.cfg.Deployer.Run(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.starting = false
		finished := time.Now().UTC()
		status.FinishedAt = &finished
		status.Summary = summary
		if err != nil {
			status.Error = err.Error()
			if !errors.Is(err, orchestration.ErrRunInProgress) {
				s.log.Error(err, "deployment failed")
			}
		}
	}()

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
		s.mu.Lock()
		result := *status
		s.mu.Unlock()

		code := http.StatusOK
		if result.Error != "" {
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, result)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Deployment started",
		"status":  "/api/deploy/status",
		"events":  "/api/progress",
	})
}

func (s *Server) handleDeployStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := DeployStatus{Running: s.starting || s.cfg.Deployer.Running()}
	if s.last != nil {
		last := *s.last
		resp.Last = &last
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}
