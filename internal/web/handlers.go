package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/salesetl/internal/logging"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
	"github.com/JonMunkholm/salesetl/internal/report"
)

// maxSampleRows caps the limit query parameter of the sample endpoint.
const maxSampleRows = 1000

var noRunYet = pipeline.UserMessage{
	Message: "No run has completed yet",
	Action:  "Trigger a run with POST /api/runs",
	Code:    "RUN004",
	Status:  http.StatusNotFound,
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	running, since := s.pipeline.Guard().Running()
	body := map[string]any{"status": "ok", "running": running}
	if running {
		body["running_since"] = since
	}
	writeJSON(w, http.StatusOK, body)
}

// handleRun executes a run synchronously and returns its result. A run that
// started is returned even when it failed, with the mapped status code.
// ?dry_run=true validates without loading.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	// A started run finishes even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	if s.pipeline.Options().Timeout <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	run := s.pipeline.Run
	if dry, _ := strconv.ParseBool(r.URL.Query().Get("dry_run")); dry {
		run = s.pipeline.Validate
	}

	res, err := run(ctx)
	if res == nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = pipeline.MapError(err).Status
		logger := logging.FromContext(r.Context())
		if errors.Is(err, pipeline.ErrValidationFailed) {
			logger.Warn("run blocked by validation", "run_id", res.RunID, "failed", res.Summary.Failed)
		} else {
			logger.Error("run failed", "run_id", res.RunID, "stage", res.Stage, "error", err)
		}
	}
	writeJSON(w, status, res)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	res := s.pipeline.Latest()
	if res == nil {
		respondErrorJSON(w, noRunYet)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLatestPage(w http.ResponseWriter, r *http.Request) {
	templ.Handler(report.Page(s.pipeline.Latest())).ServeHTTP(w, r)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	limit := parseIntParam(r, "limit", 0)
	if limit > maxSampleRows {
		limit = maxSampleRows
	}

	sample, err := s.pipeline.Sample(r.Context(), table, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
