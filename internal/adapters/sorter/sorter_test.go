package sorter

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunInvokesCommand(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "results")

	// The fake sorter records its argv and produces the expected outputs.
	r := NewRunner("sh", []string{
		"-c",
		`echo "$0 $1 $2 $3" > invoked.txt; touch spike_times.npy spike_clusters.npy`,
		placeholderBinary,
		placeholderProbe,
		placeholderNChan,
		placeholderFS,
	})

	artifacts, err := r.Run(context.Background(), Request{
		BinaryPath: filepath.Join(dir, "rec.bin"),
		ProbePath:  filepath.Join(dir, "probe.json"),
		ResultsDir: results,
		Settings:   Settings{NChanBin: 384, FS: 30000},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"invoked.txt", "settings.json", "spike_clusters.npy", "spike_times.npy"} {
		found := false
		for _, a := range artifacts {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Errorf("artifacts %v missing %s", artifacts, want)
		}
	}

	invoked, err := os.ReadFile(filepath.Join(results, "invoked.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "rec.bin") + " " + filepath.Join(dir, "probe.json") + " 384 30000\n"
	if string(invoked) != want {
		t.Errorf("argv = %q, want %q", invoked, want)
	}

	raw, err := os.ReadFile(filepath.Join(results, "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatal(err)
	}
	if s.NChanBin != 384 || s.FS != 30000 {
		t.Errorf("settings = %+v", s)
	}
}

func TestRunProcessFailure(t *testing.T) {
	r := NewRunner("sh", []string{"-c", "echo broken pipe >&2; exit 3"})
	_, err := r.Run(context.Background(), Request{
		ResultsDir: t.TempDir(),
		Settings:   Settings{NChanBin: 4, FS: 1000},
	})
	if !errors.Is(err, ErrProcessFailed) {
		t.Errorf("err = %v, want ErrProcessFailed", err)
	}
	if !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("err = %v, want the process output tail in the message", err)
	}
}

func TestRunStreamsChattyOutput(t *testing.T) {
	// A sorter that prints far more than the error tail retains on both
	// pipes must still complete, and a failing one must surface its last
	// lines rather than its first.
	chatty := `i=0; while [ $i -lt 200 ]; do echo "progress line $i"; echo "diag $i" >&2; i=$((i+1)); done`

	r := NewRunner("sh", []string{"-c", chatty + "; touch spike_times.npy spike_clusters.npy"})
	artifacts, err := r.Run(context.Background(), Request{
		ResultsDir: t.TempDir(),
		Settings:   Settings{NChanBin: 4, FS: 1000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) == 0 {
		t.Error("expected artifacts from a clean run")
	}

	// All failure output on one pipe keeps its ordering, so the tail must
	// end with the last line and have dropped the first.
	failScript := `i=0; while [ $i -lt 200 ]; do echo "diag $i" >&2; i=$((i+1)); done; echo "final diagnosis" >&2; exit 9`
	failing := NewRunner("sh", []string{"-c", failScript})
	_, err = failing.Run(context.Background(), Request{
		ResultsDir: t.TempDir(),
		Settings:   Settings{NChanBin: 4, FS: 1000},
	})
	if !errors.Is(err, ErrProcessFailed) {
		t.Fatalf("err = %v, want ErrProcessFailed", err)
	}
	if !strings.Contains(err.Error(), "final diagnosis") {
		t.Errorf("err = %v, want the last output lines", err)
	}
	if strings.Contains(err.Error(), "diag 0\n") {
		t.Errorf("err = %v, should not carry the start of the output", err)
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner("sh", []string{"-c", "sleep 5"}, WithTimeout(50*time.Millisecond))
	_, err := r.Run(context.Background(), Request{
		ResultsDir: t.TempDir(),
		Settings:   Settings{NChanBin: 4, FS: 1000},
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestRunValidation(t *testing.T) {
	r := NewRunner("sh", []string{"-c", "true"})
	_, err := r.Run(context.Background(), Request{ResultsDir: t.TempDir()})
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}

	unconfigured := NewRunner("", nil)
	if unconfigured.Enabled() {
		t.Error("empty command should report disabled")
	}
	_, err = unconfigured.Run(context.Background(), Request{
		ResultsDir: t.TempDir(),
		Settings:   Settings{NChanBin: 4, FS: 1000},
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
