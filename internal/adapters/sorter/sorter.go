// Package sorter invokes an external spike sorter on a converted binary.
//
// The sorter is a separate process (typically a Python entry point wrapping
// Kilosort or SpikeInterface). This package owns the handoff contract: the
// flat int16 binary, the probe file, a results directory, and a settings
// file describing the binary's shape.
package sorter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rdarie/spikepipe/pkg/logger"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// Argument placeholders substituted into the configured command line.
const (
	placeholderBinary  = "{binary}"
	placeholderProbe   = "{probe}"
	placeholderResults = "{results}"
	placeholderNChan   = "{n_chan}"
	placeholderFS      = "{fs}"
)

// settingsFileName is written into the results directory before the sorter
// starts.
const settingsFileName = "settings.json"

// defaultTimeout bounds one sorter run.
const defaultTimeout = time.Hour

// expectedArtifacts are the outputs a Kilosort-compatible sorter produces.
// Their absence after a clean exit is suspicious but not fatal.
var expectedArtifacts = []string{"spike_times.npy", "spike_clusters.npy"}

// Settings is the shape description handed to the sorter process.
type Settings struct {
	NChanBin int     `json:"n_chan_bin"`
	FS       float64 `json:"fs"`
}

// Request describes one sorter invocation.
type Request struct {
	// BinaryPath is the flat int16 recording to sort.
	BinaryPath string

	// ProbePath is the probeinterface JSON file.
	ProbePath string

	// ResultsDir receives settings.json and the sorter's outputs.
	ResultsDir string

	Settings Settings
}

// Runner executes the configured sorter command.
type Runner struct {
	command string
	args    []string
	timeout time.Duration
	logger  logger.Logger
}

// NewRunner creates a sorter runner. Command is the executable; args may
// contain the {binary}, {probe}, {results}, {n_chan} and {fs} placeholders.
func NewRunner(command string, args []string, opts ...Option) *Runner {
	r := &Runner{
		command: command,
		args:    args,
		timeout: defaultTimeout,
		logger:  logger.Get().Named("sorter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether a sorter command is configured.
func (r *Runner) Enabled() bool { return r.command != "" }

// Run executes the sorter and returns the artifacts found in the results
// directory afterwards.
func (r *Runner) Run(ctx context.Context, req Request) ([]string, error) {
	if !r.Enabled() {
		return nil, ErrNotConfigured
	}
	if req.Settings.NChanBin <= 0 || req.Settings.FS <= 0 {
		return nil, fmt.Errorf("%w: n_chan_bin=%d fs=%g", ErrBadRequest, req.Settings.NChanBin, req.Settings.FS)
	}

	if err := os.MkdirAll(req.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	if err := writeSettings(req.ResultsDir, req.Settings); err != nil {
		return nil, err
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := r.expandArgs(req)
	cmd := exec.CommandContext(runCtx, r.command, args...)
	cmd.Dir = req.ResultsDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach sorter stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach sorter stderr: %w", err)
	}

	r.logger.Info(ctx, "starting sorter",
		logger.String("command", r.command),
		logger.String("args", strings.Join(args, " ")),
		logger.String("results_dir", req.ResultsDir),
	)
	metrics.RecordSorterRun()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.RecordSorterFailure()
		metrics.RecordErrorByComponent("sorter", "start_failed")
		return nil, fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}

	// Long sorter runs log as they go; the tail survives for the error
	// message.
	var tail outputTail
	var wg sync.WaitGroup
	wg.Add(2)
	go r.streamOutput(ctx, "stdout", stdout, &tail, &wg)
	go r.streamOutput(ctx, "stderr", stderr, &tail, &wg)
	wg.Wait()

	err = cmd.Wait()
	elapsed := time.Since(start)
	metrics.RecordSorterDuration(elapsed.Seconds())

	if err != nil {
		metrics.RecordSorterFailure()
		metrics.RecordErrorByComponent("sorter", "process_failed")
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, elapsed.Round(time.Second), runCtx.Err())
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrProcessFailed, err, tail.String())
	}

	artifacts, err := collectArtifacts(req.ResultsDir)
	if err != nil {
		return nil, err
	}
	for _, want := range expectedArtifacts {
		if !contains(artifacts, want) {
			r.logger.Warn(ctx, "sorter finished without expected artifact",
				logger.String("artifact", want))
		}
	}

	r.logger.Info(ctx, "sorter finished",
		logger.Duration("elapsed", elapsed),
		logger.Int("artifacts", len(artifacts)),
	)
	return artifacts, nil
}

// expandArgs substitutes request values into the configured argument
// template.
func (r *Runner) expandArgs(req Request) []string {
	replacer := strings.NewReplacer(
		placeholderBinary, req.BinaryPath,
		placeholderProbe, req.ProbePath,
		placeholderResults, req.ResultsDir,
		placeholderNChan, strconv.Itoa(req.Settings.NChanBin),
		placeholderFS, strconv.FormatFloat(req.Settings.FS, 'f', -1, 64),
	)
	args := make([]string, len(r.args))
	for i, a := range r.args {
		args[i] = replacer.Replace(a)
	}
	return args
}

func writeSettings(dir string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, settingsFileName), data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// collectArtifacts lists regular files in the results directory, sorted by
// name.
func collectArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list results dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// streamOutput forwards one process pipe to the logger line by line.
func (r *Runner) streamOutput(ctx context.Context, name string, pipe io.Reader, tail *outputTail, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.add(line)
		r.logger.Debug(ctx, "sorter "+name, logger.String("line", line))
	}
}

// tailBytes bounds how much process output error messages carry.
const tailBytes = 512

// outputTail keeps the last stretch of process output. Safe for use from
// both pipe readers.
type outputTail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *outputTail) add(line string) {
	t.mu.Lock()
	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')
	if len(t.buf) > tailBytes {
		t.buf = t.buf[len(t.buf)-tailBytes:]
	}
	t.mu.Unlock()
}

func (t *outputTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
