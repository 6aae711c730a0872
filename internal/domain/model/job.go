// Package model contains domain models passed between layers.
package model

import "time"

// JobState is the lifecycle state of a conversion job.
type JobState string

// Job lifecycle states. Transitions: queued -> converting -> sorting ->
// done, with failed reachable from any active state. Jobs that skip the
// copy stage move straight from queued to sorting (or done).
const (
	StateQueued     JobState = "queued"
	StateConverting JobState = "converting"
	StateSorting    JobState = "sorting"
	StateDone       JobState = "done"
	StateFailed     JobState = "failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// JobSpec describes what a job should do. Fields mirror the POST /jobs schema.
type JobSpec struct {
	// RecordingPath points at the source recording (file or directory
	// depending on format).
	RecordingPath string `json:"recording_path"`

	// Stream selects a stream when the source holds several (e.g. "ap").
	Stream string `json:"stream,omitempty"`

	// OutputDir receives the converted binary, sidecar, probe and sorter
	// results. Defaults to <data_dir>/<job_id>.
	OutputDir string `json:"output_dir,omitempty"`

	// ChunkFrames overrides the configured conversion chunk size.
	ChunkFrames int `json:"chunk_frames,omitempty"`

	// ProbePath points at an existing probeinterface JSON file. When empty
	// the probe is derived from recording metadata where possible.
	ProbePath string `json:"probe_path,omitempty"`

	// Convert controls the copy stage. When false the sorter reads the
	// source file directly; only valid for flat-binary sources.
	Convert bool `json:"convert"`

	// Sort controls whether the external sorter runs after conversion.
	Sort bool `json:"sort"`
}

// Job couples a spec with its identity.
type Job struct {
	JobID       string
	SubmittedAt time.Time
	Spec        JobSpec
}

// JobRecord is the stored view of a job's progress.
type JobRecord struct {
	JobID       string    `json:"job_id"`
	State       JobState  `json:"state"`
	Spec        JobSpec   `json:"spec"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`

	// Progress.
	FramesTotal  int64 `json:"frames_total"`
	FramesDone   int64 `json:"frames_done"`
	BytesWritten int64 `json:"bytes_written"`

	// Outputs.
	BinaryPath string   `json:"binary_path,omitempty"`
	ProbePath  string   `json:"probe_path,omitempty"`
	ResultsDir string   `json:"results_dir,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty"`

	// Error holds the failure message for failed jobs.
	Error string `json:"error,omitempty"`
}
