package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rdarie/spikepipe/internal/adapters/sorter"
	"github.com/rdarie/spikepipe/internal/domain/convert"
	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/internal/domain/probe"
)

func writeSpikeGLXFixture(t *testing.T, dir string, channels int, frames int64) string {
	t.Helper()

	samples := make([]int16, frames*int64(channels))
	for i := range samples {
		samples[i] = int16(i % 500)
	}
	binPath := filepath.Join(dir, "run_g0_t0.imec0.ap.bin")
	if err := os.WriteFile(binPath, convert.EncodeInt16(samples), 0o644); err != nil {
		t.Fatal(err)
	}
	meta := fmt.Sprintf(
		"nSavedChans=%d\nimSampRate=30000\nfileSizeBytes=%d\nimAiRangeMin=-0.6\nimAiRangeMax=0.6\n",
		channels, frames*int64(channels)*2)
	metaPath := filepath.Join(dir, "run_g0_t0.imec0.ap.meta")
	if err := os.WriteFile(metaPath, []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	return binPath
}

func startService(t *testing.T, opts ...Option) *Service {
	t.Helper()

	base := []Option{
		WithDataDir(filepath.Join(t.TempDir(), "data")),
		WithChunkFrames(64),
		WithChunkWorkers(2),
	}
	svc := New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func waitForTerminal(t *testing.T, svc *Service, jobID string) model.JobRecord {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := svc.Job(context.Background(), jobID)
		if err != nil {
			t.Fatal(err)
		}
		if rec.State.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return model.JobRecord{}
}

func TestSubmitConvertJob(t *testing.T) {
	const channels, frames = 4, 300
	srcDir := t.TempDir()
	binPath := writeSpikeGLXFixture(t, srcDir, channels, frames)
	svc := startService(t)

	rec, err := svc.Submit(context.Background(), model.JobSpec{
		RecordingPath: binPath,
		Convert:       true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != model.StateQueued {
		t.Errorf("state = %s, want queued", rec.State)
	}

	final := waitForTerminal(t, svc, rec.JobID)
	if final.State != model.StateDone {
		t.Fatalf("state = %s (%s), want done", final.State, final.Error)
	}
	if final.FramesTotal != frames || final.FramesDone != frames {
		t.Errorf("frames = %d/%d, want %d/%d", final.FramesDone, final.FramesTotal, frames, frames)
	}
	if final.BytesWritten != frames*channels*2 {
		t.Errorf("bytes written = %d, want %d", final.BytesWritten, frames*channels*2)
	}

	// Output binary matches the source byte for byte (int16 passthrough).
	got, err := os.ReadFile(final.BinaryPath)
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Error("converted binary differs from int16 source")
	}

	// Sidecar, probe and channel map sit next to the binary.
	if _, err := convert.ReadSidecar(convert.SidecarPath(final.BinaryPath)); err != nil {
		t.Error(err)
	}
	group, err := probe.Load(final.ProbePath)
	if err != nil {
		t.Fatal(err)
	}
	if group.Probes[0].NumContacts() != channels {
		t.Errorf("probe contacts = %d, want %d", group.Probes[0].NumContacts(), channels)
	}
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(final.BinaryPath), "chanmap.json"))
	if err != nil {
		t.Fatal(err)
	}
	var cm probe.ChanMap
	if err := json.Unmarshal(raw, &cm); err != nil {
		t.Fatal(err)
	}
	if cm.NChan != channels {
		t.Errorf("chanmap n_chan = %d, want %d", cm.NChan, channels)
	}
}

func TestSubmitDuplicate(t *testing.T) {
	binPath := writeSpikeGLXFixture(t, t.TempDir(), 2, 100)
	svc := startService(t)
	ctx := context.Background()

	spec := model.JobSpec{RecordingPath: binPath, Convert: true}
	first, err := svc.Submit(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}

	again, err := svc.Submit(ctx, spec)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("resubmit err = %v, want ErrDuplicate", err)
	}
	if again.JobID != first.JobID {
		t.Errorf("duplicate returned job %s, want %s", again.JobID, first.JobID)
	}

	// A different spec is a different job.
	other, err := svc.Submit(ctx, model.JobSpec{RecordingPath: binPath, ChunkFrames: 10, Convert: true})
	if err != nil {
		t.Fatal(err)
	}
	if other.JobID == first.JobID {
		t.Error("distinct specs must get distinct job IDs")
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, model.JobSpec{Convert: true}); !errors.Is(err, ErrBadSpec) {
		t.Errorf("missing path err = %v, want ErrBadSpec", err)
	}
	if _, err := svc.Submit(ctx, model.JobSpec{RecordingPath: "/x"}); !errors.Is(err, ErrBadSpec) {
		t.Errorf("no-op spec err = %v, want ErrBadSpec", err)
	}

	stopped := New()
	if _, err := stopped.Submit(ctx, model.JobSpec{RecordingPath: "/x", Convert: true}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("unstarted err = %v, want ErrNotStarted", err)
	}
}

func TestSubmitBusy(t *testing.T) {
	dir := t.TempDir()
	// A slow sorter keeps the single worker occupied.
	runner := sorter.NewRunner("sh", []string{"-c", "sleep 2"})
	svc := startService(t,
		WithJobWorkers(1),
		WithJobQueueSize(1),
		WithSorterRunner(runner),
	)
	ctx := context.Background()

	fixture := func(name string) string {
		sub := filepath.Join(dir, name)
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatal(err)
		}
		return writeSpikeGLXFixture(t, sub, 2, 50)
	}

	// First job occupies the single worker inside the slow sorter.
	first, err := svc.Submit(ctx, model.JobSpec{RecordingPath: fixture("rec0"), Convert: true, Sort: true})
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := svc.Job(ctx, first.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if rec.State == model.StateSorting {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first job stuck in %s", rec.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Second job fills the queue, third bounces.
	if _, err := svc.Submit(ctx, model.JobSpec{RecordingPath: fixture("rec1"), Convert: true, Sort: true}); err != nil {
		t.Fatal(err)
	}
	_, err = svc.Submit(ctx, model.JobSpec{RecordingPath: fixture("rec2"), Convert: true, Sort: true})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("overflow err = %v, want ErrBusy", err)
	}
}

func TestNoCopyJob(t *testing.T) {
	binPath := writeSpikeGLXFixture(t, t.TempDir(), 2, 100)
	results := filepath.Join(t.TempDir(), "out")
	runner := sorter.NewRunner("sh", []string{"-c", "touch spike_times.npy spike_clusters.npy"})
	svc := startService(t, WithSorterRunner(runner))

	rec, err := svc.Submit(context.Background(), model.JobSpec{
		RecordingPath: binPath,
		OutputDir:     results,
		Convert:       false,
		Sort:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
	final := waitForTerminal(t, svc, rec.JobID)
	if final.State != model.StateDone {
		t.Fatalf("state = %s (%s), want done", final.State, final.Error)
	}
	// The sorter read the source file in place.
	if final.BinaryPath != binPath {
		t.Errorf("binary path = %s, want source %s", final.BinaryPath, binPath)
	}
	if len(final.Artifacts) == 0 {
		t.Error("no artifacts recorded")
	}
	if final.ResultsDir == "" {
		t.Error("no results dir recorded")
	}
}

func TestSortWithoutSorter(t *testing.T) {
	binPath := writeSpikeGLXFixture(t, t.TempDir(), 2, 100)
	svc := startService(t)

	rec, err := svc.Submit(context.Background(), model.JobSpec{
		RecordingPath: binPath,
		Convert:       true,
		Sort:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
	final := waitForTerminal(t, svc, rec.JobID)
	if final.State != model.StateFailed {
		t.Fatalf("state = %s, want failed", final.State)
	}
	if final.Error == "" {
		t.Error("failed job should carry an error message")
	}
}

func TestJobsListing(t *testing.T) {
	binPath := writeSpikeGLXFixture(t, t.TempDir(), 2, 50)
	svc := startService(t)
	ctx := context.Background()

	rec, err := svc.Submit(ctx, model.JobSpec{RecordingPath: binPath, Convert: true})
	if err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, svc, rec.JobID)

	jobs, err := svc.Jobs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].JobID != rec.JobID {
		t.Errorf("jobs = %+v, want the one submitted job", jobs)
	}

	stats := svc.GetStats()
	if stats["started"] != true {
		t.Error("stats should report started")
	}
	if stats["total_jobs"] != 1 {
		t.Errorf("total_jobs = %v, want 1", stats["total_jobs"])
	}
}
