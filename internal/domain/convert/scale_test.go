package convert

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/rdarie/spikepipe/internal/domain/recording"
)

func TestToInt16Passthrough(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	raw := EncodeInt16(in)

	out, clipped, err := ToInt16(raw, recording.Int16, 0)
	if err != nil {
		t.Fatalf("ToInt16 failed: %v", err)
	}
	if clipped != 0 {
		t.Errorf("clipped = %d, want 0", clipped)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], in[i])
		}
	}
}

func TestToInt16Uint16Recentre(t *testing.T) {
	raw := make([]byte, 6)
	binary.LittleEndian.PutUint16(raw[0:], 32768) // midpoint -> 0
	binary.LittleEndian.PutUint16(raw[2:], 0)     // floor -> -32768
	binary.LittleEndian.PutUint16(raw[4:], 65535) // ceiling -> 32767

	out, _, err := ToInt16(raw, recording.Uint16, 0)
	if err != nil {
		t.Fatalf("ToInt16 failed: %v", err)
	}
	want := []int16{0, -32768, 32767}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], want[i])
		}
	}
}

func TestToInt16Float32Scaling(t *testing.T) {
	vals := []float32{0, 1.4, -2.6, 1e6, -1e6, float32(math.NaN())}
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	out, clipped, err := ToInt16(raw, recording.Float32, 10)
	if err != nil {
		t.Fatalf("ToInt16 failed: %v", err)
	}
	want := []int16{0, 14, -26, math.MaxInt16, math.MinInt16, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], want[i])
		}
	}
	// Two out-of-range values plus the NaN.
	if clipped != 3 {
		t.Errorf("clipped = %d, want 3", clipped)
	}
}

func TestToInt16Float64DefaultScale(t *testing.T) {
	vals := []float64{100.2, -7.5}
	raw := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	out, _, err := ToInt16(raw, recording.Float64, 0)
	if err != nil {
		t.Fatalf("ToInt16 failed: %v", err)
	}
	// math.Round half away from zero: -7.5 -> -8.
	if out[0] != 100 || out[1] != -8 {
		t.Errorf("got %v, want [100 -8]", out)
	}
}

func TestToInt16Errors(t *testing.T) {
	if _, _, err := ToInt16([]byte{1, 2, 3}, recording.Int16, 0); err == nil {
		t.Error("expected error for odd byte count")
	}
	if _, _, err := ToInt16([]byte{1, 2}, "int8", 0); err == nil {
		t.Error("expected error for unknown dtype")
	}
}

func TestEncodeInt16RoundTrip(t *testing.T) {
	in := []int16{12, -345, 6789, math.MinInt16}
	out, _, err := ToInt16(EncodeInt16(in), recording.Int16, 0)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], in[i])
		}
	}
}
