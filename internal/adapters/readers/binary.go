package readers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rdarie/spikepipe/internal/domain/convert"
	"github.com/rdarie/spikepipe/internal/domain/recording"
)

// BinaryRecording reads a flat interleaved binary described by this
// service's own JSON sidecar. Converted outputs reopen through this reader.
type BinaryRecording struct {
	f          *os.File
	info       recording.Info
	byteOffset int64
	scale      float64
}

// OpenBinary opens a flat binary plus sidecar pair. Path may be the binary
// or the sidecar itself.
func OpenBinary(ctx context.Context, path string, opts Options) (*BinaryRecording, error) {
	binPath := path
	if strings.HasSuffix(path, ".json") {
		binPath = strings.TrimSuffix(path, ".json")
	}
	sc, err := convert.ReadSidecar(convert.SidecarPath(binPath))
	if err != nil {
		return nil, err
	}
	if opts.Stream != "" {
		return nil, &StreamError{Kind: ErrStreamNotFound, Requested: opts.Stream}
	}

	dtype, err := recording.ParseDType(sc.DType)
	if err != nil {
		return nil, fmt.Errorf("%w: sidecar for %s: %v", ErrBadMetadata, binPath, err)
	}
	if sc.Channels <= 0 {
		return nil, fmt.Errorf("%w: sidecar for %s: num_channels %d", ErrBadMetadata, binPath, sc.Channels)
	}

	f, err := os.Open(binPath)
	if err != nil {
		return nil, fmt.Errorf("open flat binary: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat flat binary: %w", err)
	}

	info := recording.Info{
		Format:     string(FormatBinary),
		SampleRate: sc.SampleRate,
		Channels:   sc.Channels,
		DType:      dtype,
		GainToUV:   sc.GainToUV,
	}
	if sc.ByteOffset < 0 || sc.ByteOffset > st.Size() {
		f.Close()
		return nil, fmt.Errorf("%w: sidecar for %s: byte offset %d of %d-byte file",
			ErrBadMetadata, binPath, sc.ByteOffset, st.Size())
	}

	// Frames from the sidecar, clamped to what the file actually holds.
	available := (st.Size() - sc.ByteOffset) / int64(info.NativeBytesPerFrame())
	info.Frames = sc.Frames
	if info.Frames <= 0 || info.Frames > available {
		info.Frames = available
	}
	if err := info.Validate(); err != nil {
		f.Close()
		return nil, err
	}

	scale := sc.ScaleToInt16
	if scale == 0 {
		scale = scaleFor(info)
	}
	return &BinaryRecording{f: f, info: info, byteOffset: sc.ByteOffset, scale: scale}, nil
}

// Info implements recording.Recording.
func (r *BinaryRecording) Info() recording.Info { return r.info }

// Traces implements recording.Recording.
func (r *BinaryRecording) Traces(ctx context.Context, start, frames int64) ([]int16, error) {
	return readInt16Frames(ctx, r.f, r.info, r.byteOffset, start, frames, r.scale)
}

// Close implements recording.Recording.
func (r *BinaryRecording) Close() error { return r.f.Close() }

// IsFlatInt16 reports whether a recording is already stored as offset-free
// little-endian int16, so conversion can be skipped entirely.
func IsFlatInt16(r Recording) bool {
	b, ok := r.(*BinaryRecording)
	if ok {
		return b.info.DType == recording.Int16 && b.byteOffset == 0
	}
	info := r.Info()
	return info.DType == recording.Int16 &&
		(info.Format == string(FormatSpikeGLX) || info.Format == string(FormatOpenEphys))
}

// BinaryPath returns the on-disk binary behind a recording when it is a
// plain flat file, for no-copy job handling.
func BinaryPath(r Recording) (string, bool) {
	switch rec := r.(type) {
	case *BinaryRecording:
		return rec.f.Name(), true
	case *SpikeGLXRecording:
		return rec.f.Name(), true
	case *OpenEphysRecording:
		return rec.f.Name(), true
	}
	return "", false
}
