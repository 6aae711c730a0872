package readers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rdarie/spikepipe/internal/domain/convert"
	"github.com/rdarie/spikepipe/internal/domain/recording"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// SpikeGLX meta keys used by this reader.
const (
	metaKeyNSavedChans   = "nSavedChans"
	metaKeyFileSizeBytes = "fileSizeBytes"
	metaKeyGeomMap       = "~snsGeomMap"
)

// adcResolution is the code range of the 16-bit acquisition ADC.
const adcResolution = 65536

// SpikeGLXRecording reads the int16 .bin file of a SpikeGLX stream, with
// shape and scaling taken from the .meta sidecar.
type SpikeGLXRecording struct {
	f    *os.File
	info recording.Info
	meta map[string]string
}

// OpenSpikeGLX opens a SpikeGLX source. Path may be a run directory (stream
// selection applies), a .bin file, or a .meta file.
func OpenSpikeGLX(ctx context.Context, path string, opts Options) (*SpikeGLXRecording, error) {
	binPath, stream, err := resolveSpikeGLXBin(path, opts.Stream)
	if err != nil {
		return nil, err
	}

	meta, err := parseSpikeGLXMeta(spikeGLXMetaPath(binPath))
	if err != nil {
		return nil, err
	}

	channels, err := metaInt(meta, metaKeyNSavedChans)
	if err != nil {
		return nil, err
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %s=%d", ErrBadMetadata, metaKeyNSavedChans, channels)
	}
	rate, err := metaRate(meta)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(binPath)
	if err != nil {
		return nil, fmt.Errorf("open spikeglx binary: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat spikeglx binary: %w", err)
	}
	size := st.Size()
	// A run interrupted mid-write can leave the binary shorter than the
	// meta claims; trust whichever is smaller.
	if declared, err := metaInt64(meta, metaKeyFileSizeBytes); err == nil && declared < size {
		size = declared
	}

	info := recording.Info{
		Format:     string(FormatSpikeGLX),
		Stream:     stream,
		SampleRate: rate,
		Channels:   channels,
		Frames:     size / int64(channels*2),
		DType:      recording.Int16,
		GainToUV:   metaGainToUV(meta),
	}
	if err := info.Validate(); err != nil {
		f.Close()
		return nil, err
	}
	return &SpikeGLXRecording{f: f, info: info, meta: meta}, nil
}

// Info implements recording.Recording.
func (r *SpikeGLXRecording) Info() recording.Info { return r.info }

// GeomMap returns the raw ~snsGeomMap value, empty when the meta has none.
// probe.FromSpikeGLXGeom turns it into contact geometry.
func (r *SpikeGLXRecording) GeomMap() string { return r.meta[metaKeyGeomMap] }

// Traces implements recording.Recording.
func (r *SpikeGLXRecording) Traces(ctx context.Context, start, frames int64) ([]int16, error) {
	return readInt16Frames(ctx, r.f, r.info, 0, start, frames, scaleFor(r.info))
}

// Close implements recording.Recording.
func (r *SpikeGLXRecording) Close() error { return r.f.Close() }

// resolveSpikeGLXBin maps the user-supplied path plus stream option to one
// .bin file.
func resolveSpikeGLXBin(path, stream string) (string, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat spikeglx source: %w", err)
	}

	if !st.IsDir() {
		if strings.EqualFold(filepath.Ext(path), ".meta") {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".bin"
		}
		return path, streamOfBin(path), nil
	}

	bins, err := filepath.Glob(filepath.Join(path, "*.bin"))
	if err != nil || len(bins) == 0 {
		return "", "", fmt.Errorf("%w: no .bin files in %s", ErrBadMetadata, path)
	}
	sort.Strings(bins)

	byStream := make(map[string]string, len(bins))
	streams := make([]string, 0, len(bins))
	for _, b := range bins {
		s := streamOfBin(b)
		if _, dup := byStream[s]; !dup {
			byStream[s] = b
			streams = append(streams, s)
		}
	}

	if stream == "" {
		if len(streams) == 1 {
			return byStream[streams[0]], streams[0], nil
		}
		return "", "", &StreamError{Kind: ErrStreamRequired, Available: streams}
	}
	b, ok := byStream[stream]
	if !ok {
		return "", "", &StreamError{Kind: ErrStreamNotFound, Requested: stream, Available: streams}
	}
	return b, stream, nil
}

// streamOfBin derives the stream name from a SpikeGLX binary file name:
// run_g0_t0.imec0.ap.bin -> imec0.ap, run_g0_t0.nidq.bin -> nidq.
func streamOfBin(binPath string) string {
	base := strings.TrimSuffix(filepath.Base(binPath), filepath.Ext(binPath))
	if i := strings.Index(base, "."); i >= 0 {
		return base[i+1:]
	}
	return base
}

func spikeGLXMetaPath(binPath string) string {
	return strings.TrimSuffix(binPath, filepath.Ext(binPath)) + ".meta"
}

// parseSpikeGLXMeta reads the key=value lines of a .meta file.
func parseSpikeGLXMeta(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spikeglx meta: %w", err)
	}
	defer f.Close()

	meta := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // geom maps get long
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %q in %s", ErrBadMetadata, line, path)
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read spikeglx meta: %w", err)
	}
	return meta, nil
}

func metaInt(meta map[string]string, key string) (int, error) {
	v, err := metaInt64(meta, key)
	return int(v), err
}

func metaInt64(meta map[string]string, key string) (int64, error) {
	raw, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrBadMetadata, key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadMetadata, key, raw)
	}
	return v, nil
}

// metaRate finds the sample rate key for the stream type (imec, nidq, obx).
func metaRate(meta map[string]string) (float64, error) {
	for _, key := range []string{"imSampRate", "niSampRate", "obSampRate"} {
		if raw, ok := meta[key]; ok {
			rate, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s=%q", ErrBadMetadata, key, raw)
			}
			return rate, nil
		}
	}
	return 0, fmt.Errorf("%w: no sample rate key", ErrBadMetadata)
}

// metaGainToUV derives microvolts per bit from the ADC voltage range.
// Per-channel amplifier gains (imro table) are not applied here.
func metaGainToUV(meta map[string]string) float64 {
	for _, pair := range [][2]string{
		{"imAiRangeMin", "imAiRangeMax"},
		{"niAiRangeMin", "niAiRangeMax"},
	} {
		minRaw, okMin := meta[pair[0]]
		maxRaw, okMax := meta[pair[1]]
		if !okMin || !okMax {
			continue
		}
		vMin, errMin := strconv.ParseFloat(minRaw, 64)
		vMax, errMax := strconv.ParseFloat(maxRaw, 64)
		if errMin != nil || errMax != nil || vMax <= vMin {
			continue
		}
		return (vMax - vMin) / adcResolution * 1e6
	}
	return 0
}

// readInt16Frames is the shared flat-binary read path: clamp the request,
// pread the native bytes, decode to int16.
func readInt16Frames(ctx context.Context, f *os.File, info recording.Info, byteOffset, start, frames int64, scale float64) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frames, err := recording.ClampRange(start, frames, info.Frames)
	if err != nil {
		return nil, err
	}
	if frames == 0 {
		return nil, nil
	}

	bpf := int64(info.NativeBytesPerFrame())
	raw := make([]byte, frames*bpf)
	n, err := f.ReadAt(raw, byteOffset+start*bpf)
	if n != len(raw) {
		return nil, fmt.Errorf("%w: %d of %d bytes at frame %d: %v",
			convert.ErrShortRead, n, len(raw), start, err)
	}

	samples, clipped, err := convert.ToInt16(raw, info.DType, scale)
	if err != nil {
		return nil, err
	}
	if clipped > 0 {
		metrics.RecordClippedSamples(clipped)
	}
	return samples, nil
}

// scaleFor returns the float->int16 scale for non-integer sources.
func scaleFor(info recording.Info) float64 {
	if info.DType == recording.Float32 || info.DType == recording.Float64 {
		if info.GainToUV > 0 {
			// Float sources are in physical units; one output count per
			// native gain unit keeps round trips stable.
			return 1 / info.GainToUV
		}
	}
	return 1
}
