// Package service provides the core conversion service that implements the
// dependencies required by the HTTP API: job intake, the conversion
// pipeline, probe export and the external sorter handoff.
package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rdarie/spikepipe/internal/adapters/pipeline"
	"github.com/rdarie/spikepipe/internal/adapters/readers"
	"github.com/rdarie/spikepipe/internal/adapters/repository"
	"github.com/rdarie/spikepipe/internal/adapters/sorter"
	"github.com/rdarie/spikepipe/internal/domain/convert"
	"github.com/rdarie/spikepipe/internal/domain/dedupe"
	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/internal/domain/probe"
	"github.com/rdarie/spikepipe/internal/domain/recording"
	"github.com/rdarie/spikepipe/pkg/logger"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// Output file names inside a job's output directory.
const (
	outputBinaryName  = "recording.bin"
	outputProbeName   = "probe.json"
	outputChanMapName = "chanmap.json"
	resultsDirName    = "results"
)

// Service implements the API dependencies for the conversion pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        repository.Store
	deduper      dedupe.Deduper
	jobQueue     chan model.Job
	sorterRunner *sorter.Runner

	// Configuration
	dataDir        string
	jobQueueSize   int
	jobWorkers     int
	chunkQueueSize int
	chunkWorkers   int
	chunkFrames    int
	dedupeSize     int

	// State
	started    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	activeJobs atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets a custom job store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDataDir sets the root directory for job outputs.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dataDir = dir
		}
	}
}

// WithJobQueueSize bounds the number of queued jobs.
func WithJobQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.jobQueueSize = size
		}
	}
}

// WithJobWorkers sets how many jobs run concurrently.
func WithJobWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.jobWorkers = count
		}
	}
}

// WithChunkQueueSize bounds the per-job chunk queue.
func WithChunkQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkQueueSize = size
		}
	}
}

// WithChunkWorkers sets the per-job conversion pool size.
func WithChunkWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.chunkWorkers = count
		}
	}
}

// WithChunkFrames sets the default conversion chunk size in frames.
func WithChunkFrames(frames int) Option {
	return func(s *Service) {
		if frames > 0 {
			s.chunkFrames = frames
		}
	}
}

// WithDedupeSize sets the size of the idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSorterRunner sets the external sorter runner.
func WithSorterRunner(r *sorter.Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.sorterRunner = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dataDir:        "data",
		jobQueueSize:   256,
		jobWorkers:     2,
		chunkQueueSize: 64,
		chunkWorkers:   runtime.NumCPU(),
		chunkFrames:    convert.DefaultChunkFrames,
		dedupeSize:     50_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting conversion service")

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.jobQueue = make(chan model.Job, s.jobQueueSize)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for i := 0; i < s.jobWorkers; i++ {
		s.wg.Add(1)
		go s.jobLoop(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "conversion service started",
		logger.Int("job_workers", s.jobWorkers),
		logger.Int("chunk_workers", s.chunkWorkers),
		logger.String("data_dir", s.dataDir),
	)
	return nil
}

// Stop gracefully shuts down the service. Queued jobs that have not started
// stay queued in the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping conversion service")

	close(s.jobQueue)
	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info(context.Background(), "conversion service stopped")
}

// Submit validates and enqueues a job. Resubmitting an identical spec
// returns the already-tracked record with ErrDuplicate; a full queue
// returns ErrBusy.
func (s *Service) Submit(ctx context.Context, spec model.JobSpec) (model.JobRecord, error) {
	// Held across the enqueue so Stop cannot close the queue mid-submit.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.JobRecord{}, ErrNotStarted
	}
	if spec.RecordingPath == "" {
		return model.JobRecord{}, fmt.Errorf("%w: recording_path is required", ErrBadSpec)
	}
	if !spec.Convert && !spec.Sort {
		return model.JobRecord{}, fmt.Errorf("%w: nothing to do, enable convert or sort", ErrBadSpec)
	}

	// Probe the source up front so the caller learns about missing files,
	// unreadable formats and ambiguous streams at submit time, not from a
	// failed job.
	src, err := readers.Open(ctx, spec.RecordingPath, readers.Options{Stream: spec.Stream})
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("probe recording: %w", err)
	}
	src.Close()

	key := specFingerprint(spec)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordJobDuplicate()
		if rec, err := s.store.Get(ctx, key); err == nil {
			return rec, ErrDuplicate
		}
		// Tracked by the deduper but missing from the store (evicted or
		// raced); treat as duplicate without a record.
		return model.JobRecord{JobID: key}, ErrDuplicate
	}

	job := model.Job{
		JobID:       key,
		SubmittedAt: time.Now().UTC(),
		Spec:        spec,
	}
	rec := model.JobRecord{
		JobID:       job.JobID,
		State:       model.StateQueued,
		Spec:        spec,
		SubmittedAt: job.SubmittedAt,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.deduper.Unrecord(ctx, key)
		return model.JobRecord{}, fmt.Errorf("register job: %w", err)
	}

	select {
	case s.jobQueue <- job:
		metrics.RecordJobSubmitted()
		s.logger.Info(ctx, "job queued",
			logger.String("job_id", job.JobID),
			logger.String("recording", spec.RecordingPath),
		)
		return rec, nil
	default:
		s.deduper.Unrecord(ctx, key)
		_, _ = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
			r.State = model.StateFailed
			r.Error = "job queue full"
		})
		metrics.RecordErrorByComponent("service", "queue_full")
		return model.JobRecord{}, ErrBusy
	}
}

// Job returns the record for one job.
func (s *Service) Job(ctx context.Context, jobID string) (model.JobRecord, error) {
	return s.store.Get(ctx, jobID)
}

// Jobs lists job records, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) ([]model.JobRecord, error) {
	return s.store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"job_workers":   s.jobWorkers,
		"chunk_workers": s.chunkWorkers,
		"chunk_frames":  s.chunkFrames,
	}
	if s.started {
		stats["queued_jobs"] = len(s.jobQueue)
		stats["active_jobs"] = s.activeJobs.Load()
		stats["total_jobs"] = s.store.Count(context.Background())
		stats["dedupe_size"] = s.deduper.Size()
		stats["sorter_enabled"] = s.sorterRunner != nil && s.sorterRunner.Enabled()
	}
	return stats
}

// jobLoop consumes queued jobs until the queue closes.
func (s *Service) jobLoop(ctx context.Context) {
	defer s.wg.Done()
	for job := range s.jobQueue {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

// runJob drives one job through its stages and records the outcome.
func (s *Service) runJob(ctx context.Context, job model.Job) {
	n := s.activeJobs.Add(1)
	metrics.UpdateActiveJobs(int(n))
	start := time.Now()
	defer func() {
		metrics.UpdateActiveJobs(int(s.activeJobs.Add(-1)))
		metrics.RecordJobDuration(time.Since(start).Seconds())
	}()

	log := s.logger.Named("job")
	log.Info(ctx, "job started",
		logger.String("job_id", job.JobID),
		logger.String("recording", job.Spec.RecordingPath),
	)

	if err := s.executeJob(ctx, job); err != nil {
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("service", "job_failed")
		log.Error(ctx, "job failed",
			logger.String("job_id", job.JobID),
			logger.Error(err),
		)
		_, _ = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
			r.State = model.StateFailed
			r.FinishedAt = time.Now().UTC()
			r.Error = err.Error()
		})
		return
	}

	metrics.RecordJobCompleted()
	log.Info(ctx, "job done",
		logger.String("job_id", job.JobID),
		logger.Duration("elapsed", time.Since(start)),
	)
}

// executeJob runs the stages: open, convert (or reuse the source binary),
// probe export, sorter.
func (s *Service) executeJob(ctx context.Context, job model.Job) error {
	_, err := s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.StartedAt = time.Now().UTC()
	})
	if err != nil {
		return err
	}

	rec, err := readers.Open(ctx, job.Spec.RecordingPath, readers.Options{Stream: job.Spec.Stream})
	if err != nil {
		return err
	}
	defer rec.Close()
	info := rec.Info()

	outputDir := job.Spec.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(s.dataDir, job.JobID)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	_, _ = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.FramesTotal = info.Frames
	})

	binaryPath, err := s.stageBinary(ctx, job, rec, outputDir)
	if err != nil {
		return err
	}
	probePath, err := s.stageProbe(job, rec, outputDir)
	if err != nil {
		return err
	}
	_, _ = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.BinaryPath = binaryPath
		r.ProbePath = probePath
	})

	if job.Spec.Sort {
		if err := s.stageSorter(ctx, job, info, binaryPath, probePath, outputDir); err != nil {
			return err
		}
	}

	_, err = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.State = model.StateDone
		r.FinishedAt = time.Now().UTC()
	})
	return err
}

// stageBinary produces the flat int16 binary the sorter reads. With
// convert=false the source file is used in place, which only works for
// sources that are already offset-free int16.
func (s *Service) stageBinary(ctx context.Context, job model.Job, rec readers.Recording, outputDir string) (string, error) {
	info := rec.Info()

	if !job.Spec.Convert {
		if !readers.IsFlatInt16(rec) {
			return "", fmt.Errorf("%w: %s source is %s", ErrNeedsConvert, info.Format, info.DType)
		}
		path, ok := readers.BinaryPath(rec)
		if !ok {
			return "", fmt.Errorf("%w: source has no single backing file", ErrNeedsConvert)
		}
		_, _ = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
			r.FramesDone = info.Frames
		})
		return path, nil
	}

	_, err := s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.State = model.StateConverting
	})
	if err != nil {
		return "", err
	}

	outInfo := info
	outInfo.Format = string(readers.FormatBinary)
	outInfo.DType = recording.Int16

	binaryPath := filepath.Join(outputDir, outputBinaryName)
	w, err := convert.NewWriter(binaryPath, outInfo, job.Spec.RecordingPath)
	if err != nil {
		return "", err
	}

	chunkFrames := job.Spec.ChunkFrames
	if chunkFrames <= 0 {
		chunkFrames = s.chunkFrames
	}
	chunks := convert.Plan(info.Frames, chunkFrames, outInfo.OutputBytesPerFrame())

	runErr := pipeline.Run(ctx, rec, w, chunks, pipeline.Options{
		QueueSize: s.chunkQueueSize,
		Workers:   s.chunkWorkers,
		OnChunk: func(c model.Chunk, bytes int) {
			_, _ = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
				r.FramesDone += c.Frames
				r.BytesWritten += int64(bytes)
			})
		},
	})
	if runErr != nil {
		w.Close()
		return "", fmt.Errorf("conversion: %w", runErr)
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return binaryPath, nil
}

// stageProbe writes the probeinterface document and the sorter channel map
// next to the binary. The probe comes from, in order of preference: the
// spec's probe file, the recording's own geometry metadata, a generated
// linear layout.
func (s *Service) stageProbe(job model.Job, rec readers.Recording, outputDir string) (string, error) {
	group, err := resolveProbe(job.Spec, rec)
	if err != nil {
		return "", err
	}

	probePath := filepath.Join(outputDir, outputProbeName)
	if err := group.Save(probePath); err != nil {
		return "", err
	}

	cm, err := group.Probes[0].SorterChanMap()
	if err != nil {
		return "", err
	}
	if err := cm.Save(filepath.Join(outputDir, outputChanMapName)); err != nil {
		return "", err
	}
	return probePath, nil
}

// resolveProbe picks the probe source for a job.
func resolveProbe(spec model.JobSpec, rec readers.Recording) (*probe.Group, error) {
	if spec.ProbePath != "" {
		group, err := probe.Load(spec.ProbePath)
		if err != nil {
			return nil, err
		}
		if err := group.Validate(); err != nil {
			return nil, err
		}
		return group, nil
	}

	if glx, ok := rec.(interface{ GeomMap() string }); ok {
		if geom := glx.GeomMap(); geom != "" {
			p, err := probe.FromSpikeGLXGeom(geom)
			if err != nil {
				return nil, err
			}
			return probe.NewGroup(p), nil
		}
	}

	return probe.NewGroup(probe.Linear(rec.Info().Channels, 0)), nil
}

// stageSorter hands the binary off to the external sorter.
func (s *Service) stageSorter(ctx context.Context, job model.Job, info recording.Info, binaryPath, probePath, outputDir string) error {
	if s.sorterRunner == nil || !s.sorterRunner.Enabled() {
		return ErrSorterDisabled
	}

	_, err := s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.State = model.StateSorting
	})
	if err != nil {
		return err
	}

	resultsDir := filepath.Join(outputDir, resultsDirName)
	artifacts, err := s.sorterRunner.Run(ctx, sorter.Request{
		BinaryPath: binaryPath,
		ProbePath:  probePath,
		ResultsDir: resultsDir,
		Settings: sorter.Settings{
			NChanBin: info.Channels,
			FS:       info.SampleRate,
		},
	})
	if err != nil {
		return fmt.Errorf("sorting: %w", err)
	}

	_, err = s.store.Update(ctx, job.JobID, func(r *model.JobRecord) {
		r.ResultsDir = resultsDir
		r.Artifacts = artifacts
	})
	return err
}

// specFingerprint derives the idempotency key (and job ID) from the fields
// that define what a job does.
func specFingerprint(spec model.JobSpec) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%t|%t",
		spec.RecordingPath, spec.Stream, spec.OutputDir,
		spec.ChunkFrames, spec.ProbePath, spec.Convert, spec.Sort)
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil)).String()
}
