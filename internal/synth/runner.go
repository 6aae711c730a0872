package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/pkg/logger"
)

// Config holds configuration for one generator run.
type Config struct {
	ScenarioFile string        // Scenario YAML; empty uses DefaultScenario
	OutputDir    string        // Where the .bin/.meta pair is written
	BaseURL      string        // Service URL; empty skips submission
	Sort         bool          // Request sorting on the submitted job
	PollInterval time.Duration // Job poll cadence
	Timeout      time.Duration // HTTP request timeout
}

// defaultPollInterval paces job status polling.
const defaultPollInterval = 200 * time.Millisecond

// Run generates a recording and, when a service URL is configured, submits
// it as a conversion job and waits for the terminal state.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("synth")

	scenario := DefaultScenario()
	if cfg.ScenarioFile != "" {
		loaded, err := LoadScenario(cfg.ScenarioFile)
		if err != nil {
			return err
		}
		scenario = loaded
	}

	log.Info(ctx, "generating recording",
		logger.String("scenario", scenario.Name),
		logger.Int("channels", scenario.Channels),
		logger.Int64("frames", scenario.Frames()),
	)
	samples := Generate(scenario)

	binPath, err := WriteSpikeGLX(cfg.OutputDir, scenario, samples)
	if err != nil {
		return err
	}
	log.Info(ctx, "recording written", logger.String("binary", binPath))

	if cfg.BaseURL == "" {
		return nil
	}
	return submitAndWait(ctx, cfg, log, binPath)
}

// submitAndWait drives the generated recording through the service.
func submitAndWait(ctx context.Context, cfg *Config, log logger.Logger, binPath string) error {
	client := newClient(cfg.BaseURL, cfg.Timeout)

	ack, err := client.SubmitJob(ctx, model.JobSpec{
		RecordingPath: binPath,
		Convert:       true,
		Sort:          cfg.Sort,
	})
	if err != nil {
		return err
	}
	log.Info(ctx, "job submitted",
		logger.String("job_id", ack.JobID),
		logger.String("status", ack.Status),
	)

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	for {
		rec, err := client.GetJob(ctx, ack.JobID)
		if err != nil {
			return err
		}
		if rec.State.Terminal() {
			if rec.State == model.StateFailed {
				return fmt.Errorf("%w: %s", ErrJobFailed, rec.Error)
			}
			log.Info(ctx, "job done",
				logger.String("binary", rec.BinaryPath),
				logger.String("probe", rec.ProbePath),
				logger.Int64("frames", rec.FramesDone),
			)
			return nil
		}
		log.Debug(ctx, "job running",
			logger.String("state", string(rec.State)),
			logger.Int64("frames_done", rec.FramesDone),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for job %s: %w", ack.JobID, ctx.Err())
		case <-time.After(interval):
		}
	}
}
