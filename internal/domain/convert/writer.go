package convert

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rdarie/spikepipe/internal/domain/recording"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// File permission constants.
const (
	binFilePermission     = 0o644
	sidecarFilePermission = 0o644
)

// Sidecar is the JSON description written next to a converted binary so the
// file can be reopened as a recording without external metadata.
type Sidecar struct {
	DType        string  `json:"dtype"`
	Channels     int     `json:"num_channels"`
	SampleRate   float64 `json:"sample_rate"`
	Frames       int64   `json:"num_frames"`
	ByteOffset   int64   `json:"byte_offset"`
	GainToUV     float64 `json:"gain_to_uv,omitempty"`
	ScaleToInt16 float64 `json:"scale_to_int16,omitempty"`
	Source       string  `json:"source,omitempty"`
}

// SidecarPath returns the sidecar location for a binary file.
func SidecarPath(binPath string) string {
	return binPath + ".json"
}

// ReadSidecar loads a sidecar file.
func ReadSidecar(path string) (Sidecar, error) {
	var sc Sidecar
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read sidecar: %w", err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	return sc, nil
}

// Writer produces the flat int16 output binary. WriteChunkAt is safe for
// concurrent use by the chunk workers because every chunk owns a disjoint
// byte range.
type Writer struct {
	f       *os.File
	path    string
	info    recording.Info
	source  string
	written atomic.Int64
	clipped atomic.Int64
}

// NewWriter creates (truncating) the output file and preallocates it to its
// final size so concurrent WriteAt calls never race on extension.
func NewWriter(path string, info recording.Info, source string) (*Writer, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, binFilePermission)
	if err != nil {
		return nil, fmt.Errorf("create output binary: %w", err)
	}
	size := info.Frames * int64(info.OutputBytesPerFrame())
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("preallocate output binary: %w", err)
	}
	return &Writer{f: f, path: path, info: info, source: source}, nil
}

// Path returns the output binary location.
func (w *Writer) Path() string { return w.path }

// BytesWritten returns the number of bytes written so far.
func (w *Writer) BytesWritten() int64 { return w.written.Load() }

// AddClipped accumulates clipped-sample counts reported by scaling.
func (w *Writer) AddClipped(n int64) {
	if n > 0 {
		w.clipped.Add(n)
		metrics.RecordClippedSamples(n)
	}
}

// Clipped returns the total number of clamped samples.
func (w *Writer) Clipped() int64 { return w.clipped.Load() }

// WriteChunkAt encodes samples little-endian and writes them at the given
// byte offset.
func (w *Writer) WriteChunkAt(samples []int16, byteOffset int64) (int, error) {
	buf := EncodeInt16(samples)
	n, err := w.f.WriteAt(buf, byteOffset)
	if err != nil {
		return n, fmt.Errorf("%w: offset %d: %w", ErrWrite, byteOffset, err)
	}
	w.written.Add(int64(n))
	metrics.RecordBytesWritten(int64(n))
	return n, nil
}

// Close syncs and closes the binary, then writes the sidecar.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync output binary: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close output binary: %w", err)
	}

	sc := Sidecar{
		DType:      string(recording.Int16),
		Channels:   w.info.Channels,
		SampleRate: w.info.SampleRate,
		Frames:     w.info.Frames,
		ByteOffset: 0,
		GainToUV:   w.info.GainToUV,
		Source:     w.source,
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(SidecarPath(w.path), data, sidecarFilePermission); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
