// Package recording defines the handle through which the rest of the service
// reads extracellular recordings, independent of the on-disk format.
package recording

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DType names the native sample encoding of a source recording.
type DType string

// Supported native sample encodings. Output is always int16.
const (
	Int16   DType = "int16"
	Uint16  DType = "uint16"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidInfo = errors.New("invalid recording info")
	ErrOutOfRange  = errors.New("frame range out of bounds")
	ErrBadDType    = errors.New("unsupported dtype")
)

// ParseDType validates a dtype name.
func ParseDType(s string) (DType, error) {
	switch DType(s) {
	case Int16, Uint16, Float32, Float64:
		return DType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadDType, s)
}

// Size returns the byte width of one sample.
func (d DType) Size() int {
	switch d {
	case Int16, Uint16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Info describes a recording's shape and encoding.
type Info struct {
	// Format is the reader that produced this recording (spikeglx,
	// openephys, binary).
	Format string

	// Stream is the selected stream within the source, if any.
	Stream string

	// SampleRate in Hz.
	SampleRate float64

	// Channels is the number of saved channels per frame.
	Channels int

	// Frames is the total number of frames.
	Frames int64

	// DType is the native sample encoding of the source.
	DType DType

	// GainToUV converts one native unit to microvolts. Zero means unknown.
	GainToUV float64
}

// Validate checks the invariants every reader must guarantee.
func (i Info) Validate() error {
	switch {
	case i.Channels <= 0:
		return fmt.Errorf("%w: channel count %d", ErrInvalidInfo, i.Channels)
	case i.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %g", ErrInvalidInfo, i.SampleRate)
	case i.Frames < 0:
		return fmt.Errorf("%w: frame count %d", ErrInvalidInfo, i.Frames)
	case i.DType.Size() == 0:
		return fmt.Errorf("%w: dtype %q", ErrInvalidInfo, i.DType)
	}
	return nil
}

// NativeBytesPerFrame is the source byte width of one frame.
func (i Info) NativeBytesPerFrame() int {
	return i.Channels * i.DType.Size()
}

// OutputBytesPerFrame is the byte width of one frame in the converted
// int16 binary.
func (i Info) OutputBytesPerFrame() int {
	return i.Channels * int16Size
}

// Duration is the recording length.
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(i.Frames) / i.SampleRate * float64(time.Second))
}

const int16Size = 2

// Recording is an open handle on a dataset. Traces returns interleaved
// frames already scaled to the int16 output encoding.
type Recording interface {
	Info() Info

	// Traces reads frames [start, start+frames). Requests past the end are
	// clamped; a negative start or a start beyond the end is an error.
	Traces(ctx context.Context, start, frames int64) ([]int16, error)

	Close() error
}

// ClampRange bounds a read request against total frames. It returns the
// clamped frame count, which may be zero when start == total.
func ClampRange(start, frames, total int64) (int64, error) {
	if start < 0 || start > total {
		return 0, fmt.Errorf("%w: start %d of %d", ErrOutOfRange, start, total)
	}
	if frames < 0 {
		return 0, fmt.Errorf("%w: negative frame count %d", ErrOutOfRange, frames)
	}
	if start+frames > total {
		frames = total - start
	}
	return frames, nil
}
