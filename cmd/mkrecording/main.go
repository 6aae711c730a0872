package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rdarie/spikepipe/internal/synth"
	"github.com/rdarie/spikepipe/pkg/logger"
)

// Default configuration constants.
const (
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		scenario = flag.String("scenario", "", "Scenario YAML file (default: built-in scenario)")
		outDir   = flag.String("out", "synthetic", "Output directory for the recording")
		baseURL  = flag.String("url", "", "Base URL of the service; empty skips submission")
		sort     = flag.Bool("sort", false, "Request sorting on the submitted job")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		synth.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &synth.Config{
		ScenarioFile: *scenario,
		OutputDir:    *outDir,
		BaseURL:      *baseURL,
		Sort:         *sort,
		Timeout:      *timeout,
	}

	if err := synth.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("generation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
