// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/rdarie/spikepipe/internal/adapters/readers"
	"github.com/rdarie/spikepipe/internal/adapters/repository"
	service "github.com/rdarie/spikepipe/internal/app"
	"github.com/rdarie/spikepipe/internal/domain/model"
)

// JobsHandler handles job submission and lookup.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// HandleJobs handles POST /jobs and GET /jobs requests.
func (h *JobsHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleSubmit handles POST /jobs requests.
func (h *JobsHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_job"

	var spec model.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, err := h.deps.Submit(r.Context(), spec)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: rec.JobID})
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", JobID: rec.JobID, Duplicate: true})
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case errors.Is(err, service.ErrBadSpec):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		if streams, ok := streamPayload(err); ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    "stream_selection",
				Message: err.Error(),
				Streams: streams,
			})
			return
		}
		if isSourceError(err) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// isSourceError reports whether err stems from the submitted recording
// itself rather than the service.
func isSourceError(err error) bool {
	return errors.Is(err, readers.ErrUnknownFormat) ||
		errors.Is(err, readers.ErrExternalFormat) ||
		errors.Is(err, readers.ErrBadMetadata) ||
		errors.Is(err, fs.ErrNotExist)
}

// handleList handles GET /jobs?limit=N requests.
func (h *JobsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_jobs"

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	jobs, err := h.deps.Jobs(r.Context(), limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// HandleGetJob handles GET /jobs/{job_id} requests.
func (h *JobsHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	rec, err := h.deps.Job(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// streamPayload surfaces the streams a source offers when a submission
// failed on stream selection.
func streamPayload(err error) ([]string, bool) {
	var se *readers.StreamError
	if errors.As(err, &se) {
		return se.Available, true
	}
	return nil, false
}
