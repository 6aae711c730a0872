// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit validates and enqueues a conversion job.
	Submit(ctx context.Context, spec model.JobSpec) (model.JobRecord, error)

	// Job returns the record for one job.
	Job(ctx context.Context, jobID string) (model.JobRecord, error)

	// Jobs lists job records, newest first.
	Jobs(ctx context.Context, limit int) ([]model.JobRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	jobsHandler   *JobsHandler
	probesHandler *ProbesHandler
	docsHandler   *docsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		jobsHandler:   NewJobsHandler(deps),
		probesHandler: NewProbesHandler(),
		docsHandler:   newDocsHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/jobs", MetricsMiddleware(s.jobsHandler.HandleJobs, "jobs"))
	mux.HandleFunc("/jobs/", MetricsMiddleware(s.jobsHandler.HandleGetJob, "job"))
	mux.HandleFunc("/probes", MetricsMiddleware(s.probesHandler.HandleBuildProbe, "probes"))
	mux.HandleFunc("/api-docs", s.docsHandler.HandleDocs)
	mux.HandleFunc("/openapi.yaml", s.docsHandler.HandleSpec)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

// ackResponse acknowledges a job submission.
type ackResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Streams []string `json:"available_streams,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
