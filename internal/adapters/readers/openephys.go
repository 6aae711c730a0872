package readers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rdarie/spikepipe/internal/domain/recording"
)

// oebinDocument is the subset of structure.oebin this reader needs.
type oebinDocument struct {
	Continuous []oebinContinuous `json:"continuous"`
}

type oebinContinuous struct {
	FolderName  string         `json:"folder_name"`
	SampleRate  float64        `json:"sample_rate"`
	NumChannels int            `json:"num_channels"`
	Channels    []oebinChannel `json:"channels"`
}

type oebinChannel struct {
	ChannelName string  `json:"channel_name"`
	BitVolts    float64 `json:"bit_volts"`
}

// OpenEphysRecording reads one continuous stream of an Open Ephys binary
// session: int16 frames in continuous/<stream>/continuous.dat, described by
// the session's structure.oebin.
type OpenEphysRecording struct {
	f    *os.File
	info recording.Info
}

// OpenOpenEphys opens a continuous stream from an Open Ephys binary session
// directory. Path is the directory holding structure.oebin.
func OpenOpenEphys(ctx context.Context, path string, opts Options) (*OpenEphysRecording, error) {
	doc, err := parseOebin(filepath.Join(path, openEphysStructureFile))
	if err != nil {
		return nil, err
	}
	entry, err := selectOebinStream(doc, opts.Stream)
	if err != nil {
		return nil, err
	}
	if entry.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: stream %s declares %d channels",
			ErrBadMetadata, oebinStreamName(entry), entry.NumChannels)
	}

	datPath := filepath.Join(path, "continuous", oebinStreamName(entry), "continuous.dat")
	f, err := os.Open(datPath)
	if err != nil {
		return nil, fmt.Errorf("open openephys data: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat openephys data: %w", err)
	}

	info := recording.Info{
		Format:     string(FormatOpenEphys),
		Stream:     oebinStreamName(entry),
		SampleRate: entry.SampleRate,
		Channels:   entry.NumChannels,
		Frames:     st.Size() / int64(entry.NumChannels*2),
		DType:      recording.Int16,
		GainToUV:   oebinGainToUV(entry),
	}
	if err := info.Validate(); err != nil {
		f.Close()
		return nil, err
	}
	return &OpenEphysRecording{f: f, info: info}, nil
}

// Info implements recording.Recording.
func (r *OpenEphysRecording) Info() recording.Info { return r.info }

// Traces implements recording.Recording.
func (r *OpenEphysRecording) Traces(ctx context.Context, start, frames int64) ([]int16, error) {
	return readInt16Frames(ctx, r.f, r.info, 0, start, frames, scaleFor(r.info))
}

// Close implements recording.Recording.
func (r *OpenEphysRecording) Close() error { return r.f.Close() }

func parseOebin(path string) (*oebinDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read structure.oebin: %w", err)
	}
	var doc oebinDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: structure.oebin: %v", ErrBadMetadata, err)
	}
	if len(doc.Continuous) == 0 {
		return nil, fmt.Errorf("%w: structure.oebin has no continuous streams", ErrBadMetadata)
	}
	return &doc, nil
}

func selectOebinStream(doc *oebinDocument, stream string) (*oebinContinuous, error) {
	if stream == "" {
		if len(doc.Continuous) == 1 {
			return &doc.Continuous[0], nil
		}
		return nil, &StreamError{Kind: ErrStreamRequired, Available: oebinStreamNames(doc)}
	}
	for i := range doc.Continuous {
		if oebinStreamName(&doc.Continuous[i]) == stream {
			return &doc.Continuous[i], nil
		}
	}
	return nil, &StreamError{Kind: ErrStreamNotFound, Requested: stream, Available: oebinStreamNames(doc)}
}

func oebinStreamNames(doc *oebinDocument) []string {
	names := make([]string, len(doc.Continuous))
	for i := range doc.Continuous {
		names[i] = oebinStreamName(&doc.Continuous[i])
	}
	return names
}

// oebinStreamName normalises folder_name, which the GUI writes with a
// trailing slash.
func oebinStreamName(entry *oebinContinuous) string {
	return strings.TrimRight(entry.FolderName, "/")
}

// oebinGainToUV reports bit_volts as microvolts per bit when all channels
// agree, zero otherwise. Mixed-gain streams keep raw counts.
func oebinGainToUV(entry *oebinContinuous) float64 {
	if len(entry.Channels) == 0 {
		return 0
	}
	gain := entry.Channels[0].BitVolts
	for _, ch := range entry.Channels[1:] {
		if ch.BitVolts != gain {
			return 0
		}
	}
	return gain
}
