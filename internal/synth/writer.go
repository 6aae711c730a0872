package synth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rdarie/spikepipe/internal/domain/convert"
)

// File permission constants.
const (
	outDirPermission  = 0o755
	outFilePermission = 0o644
)

// Synthetic acquisition voltage range, matching a unity-gain imec stream.
const (
	aiRangeMin = -0.6
	aiRangeMax = 0.6
)

// contactPitchUM spaces the generated linear geometry.
const contactPitchUM = 20

// WriteSpikeGLX writes the rendered samples as a SpikeGLX stream pair
// (<run>.<stream>.bin plus .meta) under dir and returns the binary path.
// The meta carries a single-shank geometry map so the converted job gets a
// real probe instead of the generated fallback.
func WriteSpikeGLX(dir string, s *Scenario, samples []int16) (string, error) {
	if err := os.MkdirAll(dir, outDirPermission); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	binPath := filepath.Join(dir, fmt.Sprintf("%s.%s.bin", s.Run, s.Stream))
	raw := convert.EncodeInt16(samples)
	if err := os.WriteFile(binPath, raw, outFilePermission); err != nil {
		return "", fmt.Errorf("write binary: %w", err)
	}

	meta := buildMeta(s, int64(len(raw)))
	metaPath := strings.TrimSuffix(binPath, ".bin") + ".meta"
	if err := os.WriteFile(metaPath, []byte(meta), outFilePermission); err != nil {
		return "", fmt.Errorf("write meta: %w", err)
	}
	return binPath, nil
}

func buildMeta(s *Scenario, sizeBytes int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "nSavedChans=%d\n", s.Channels)
	fmt.Fprintf(&b, "imSampRate=%g\n", s.SampleRate)
	fmt.Fprintf(&b, "fileSizeBytes=%d\n", sizeBytes)
	fmt.Fprintf(&b, "imAiRangeMin=%g\n", aiRangeMin)
	fmt.Fprintf(&b, "imAiRangeMax=%g\n", aiRangeMax)
	b.WriteString(geomMap(s.Channels))
	b.WriteByte('\n')
	return b.String()
}

// geomMap renders a single-shank linear layout in ~snsGeomMap syntax.
func geomMap(channels int) string {
	var b strings.Builder
	b.WriteString("~snsGeomMap=(SYNTH,1,0,70)")
	for i := 0; i < channels; i++ {
		fmt.Fprintf(&b, "(0:0:%d:1)", i*contactPitchUM)
	}
	return b.String()
}
