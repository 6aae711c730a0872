// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors are wrapped via this package's sentinel kinds.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// DataDir is the default root for job output directories.
	DataDir string `koanf:"data_dir"`

	// JobQueueSize bounds the number of jobs waiting for a runner.
	JobQueueSize int `koanf:"job_queue_size"`

	// JobWorkers sets how many jobs may run concurrently.
	JobWorkers int `koanf:"job_workers"`

	// ChunkQueueSize bounds the per-job chunk task queue.
	ChunkQueueSize int `koanf:"chunk_queue_size"`

	// ChunkWorkers sets the number of chunk copy workers per job.
	ChunkWorkers int `koanf:"chunk_workers"`

	// ChunkFrames is the number of frames per conversion chunk.
	ChunkFrames int `koanf:"chunk_frames"`

	// DedupeSize sets the size of the job idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxJobsLimit caps GET /jobs?limit.
	MaxJobsLimit int `koanf:"max_jobs_limit"`

	// SorterCommand is the external spike sorter executable. Empty disables
	// the sorting stage.
	SorterCommand string `koanf:"sorter_command"`

	// SorterArgs is the sorter argv template. Placeholders {binary}, {probe},
	// {results}, {n_chan} and {fs} are substituted per run.
	SorterArgs []string `koanf:"sorter_args"`

	// SorterTimeoutSec bounds a single sorter run.
	SorterTimeoutSec int `koanf:"sorter_timeout_sec"`
}

// Default values for New.
const (
	defaultAddr             = ":9090"
	defaultDataDir          = "data"
	defaultJobQueueSize     = 256
	defaultJobWorkers       = 2
	defaultChunkQueueSize   = 64
	defaultChunkFrames      = 30_000 // one second at 30 kHz
	defaultDedupeSize       = 50_000
	defaultMaxJobsLimit     = 100
	defaultSorterTimeoutSec = 3600
)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           defaultAddr,
		DataDir:        defaultDataDir,
		JobQueueSize:   defaultJobQueueSize,
		JobWorkers:     defaultJobWorkers,
		ChunkQueueSize: defaultChunkQueueSize,
		ChunkWorkers:   runtime.NumCPU(),
		ChunkFrames:    defaultChunkFrames,
		DedupeSize:     defaultDedupeSize,
		MaxJobsLimit:   defaultMaxJobsLimit,
		SorterCommand:  "",
		SorterArgs: []string{
			"--binary", "{binary}",
			"--probe", "{probe}",
			"--results", "{results}",
			"--n-chan", "{n_chan}",
			"--fs", "{fs}",
		},
		SorterTimeoutSec: defaultSorterTimeoutSec,
	}
}
