package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rdarie/spikepipe/internal/domain/convert"
	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/internal/domain/recording"
)

// seqSource serves interleaved samples numbered by flat position.
type seqSource struct {
	channels int
}

func (s *seqSource) Traces(ctx context.Context, start, frames int64) ([]int16, error) {
	out := make([]int16, frames*int64(s.channels))
	base := start * int64(s.channels)
	for i := range out {
		out[i] = int16(base + int64(i))
	}
	return out, nil
}

type failSource struct{ err error }

func (s *failSource) Traces(ctx context.Context, start, frames int64) ([]int16, error) {
	return nil, s.err
}

func TestRunWritesWholeRecording(t *testing.T) {
	const channels = 3
	const frames = 1000
	const chunkFrames = 64

	info := recording.Info{
		Format:     "binary",
		SampleRate: 30000,
		Channels:   channels,
		Frames:     frames,
		DType:      recording.Int16,
	}
	binPath := filepath.Join(t.TempDir(), "out.bin")
	w, err := convert.NewWriter(binPath, info, "test")
	if err != nil {
		t.Fatal(err)
	}

	chunks := convert.Plan(frames, chunkFrames, info.OutputBytesPerFrame())
	var mu sync.Mutex
	var progressFrames int64
	err = Run(context.Background(), &seqSource{channels: channels}, w, chunks, Options{
		QueueSize: 4,
		Workers:   3,
		OnChunk: func(c model.Chunk, bytes int) {
			mu.Lock()
			progressFrames += c.Frames
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if progressFrames != frames {
		t.Errorf("progress frames = %d, want %d", progressFrames, frames)
	}

	raw, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != frames*channels*2 {
		t.Fatalf("output size = %d, want %d", len(raw), frames*channels*2)
	}
	// Spot-check samples across chunk boundaries.
	for _, pos := range []int{0, chunkFrames*channels - 1, chunkFrames * channels, frames*channels - 1} {
		got := int16(uint16(raw[pos*2]) | uint16(raw[pos*2+1])<<8)
		if got != int16(pos) {
			t.Errorf("sample %d = %d, want %d", pos, got, int16(pos))
		}
	}

	sc, err := convert.ReadSidecar(convert.SidecarPath(binPath))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Frames != frames || sc.Channels != channels {
		t.Errorf("sidecar %+v does not match recording shape", sc)
	}
}

func TestRunStopsOnSourceError(t *testing.T) {
	wantErr := errors.New("device gone")
	info := recording.Info{
		Format:     "binary",
		SampleRate: 30000,
		Channels:   1,
		Frames:     10_000,
		DType:      recording.Int16,
	}
	w, err := convert.NewWriter(filepath.Join(t.TempDir(), "out.bin"), info, "test")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	chunks := convert.Plan(info.Frames, 100, info.OutputBytesPerFrame())
	err = Run(context.Background(), &failSource{err: wantErr}, w, chunks, Options{QueueSize: 2, Workers: 2})
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() = %v, want %v", err, wantErr)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := recording.Info{
		Format:     "binary",
		SampleRate: 30000,
		Channels:   1,
		Frames:     10_000,
		DType:      recording.Int16,
	}
	w, err := convert.NewWriter(filepath.Join(t.TempDir(), "out.bin"), info, "test")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	chunks := convert.Plan(info.Frames, 10, info.OutputBytesPerFrame())
	err = Run(ctx, &seqSource{channels: 1}, w, chunks, Options{QueueSize: 1, Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
