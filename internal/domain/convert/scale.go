package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rdarie/spikepipe/internal/domain/recording"
)

// uint16Center recentres unsigned samples around zero.
const uint16Center = 32768

// ToInt16 decodes raw little-endian samples of the given dtype into int16
// values. Float samples are multiplied by scale (1.0 when zero), rounded and
// clamped to the int16 range. The clipped return counts clamped samples.
func ToInt16(raw []byte, dtype recording.DType, scale float64) (samples []int16, clipped int64, err error) {
	width := dtype.Size()
	if width == 0 {
		return nil, 0, fmt.Errorf("%w: %q", recording.ErrBadDType, dtype)
	}
	if len(raw)%width != 0 {
		return nil, 0, fmt.Errorf("%w: %d raw bytes for dtype %s", ErrShortRead, len(raw), dtype)
	}
	if scale == 0 {
		scale = 1.0
	}

	n := len(raw) / width
	samples = make([]int16, n)

	switch dtype {
	case recording.Int16:
		for i := 0; i < n; i++ {
			samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case recording.Uint16:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint16(raw[i*2:])) - uint16Center
			samples[i] = int16(v)
		}
	case recording.Float32:
		for i := 0; i < n; i++ {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
			samples[i], clipped = clampRound(v*scale, clipped)
		}
	case recording.Float64:
		for i := 0; i < n; i++ {
			v := math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
			samples[i], clipped = clampRound(v*scale, clipped)
		}
	}
	return samples, clipped, nil
}

func clampRound(v float64, clipped int64) (int16, int64) {
	r := math.Round(v)
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16, clipped + 1
	case r < math.MinInt16:
		return math.MinInt16, clipped + 1
	case math.IsNaN(r):
		return 0, clipped + 1
	}
	return int16(r), clipped
}

// EncodeInt16 serializes samples as little-endian bytes.
func EncodeInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
