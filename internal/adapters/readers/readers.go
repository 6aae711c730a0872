// Package readers detects and opens on-disk recordings as
// recording.Recording handles.
//
// Natively parsed sources are the "flat int16 plus sidecar" family:
// SpikeGLX (.bin/.meta), Open Ephys binary (structure.oebin), and flat
// binaries described by this service's own JSON sidecar. Container formats
// (NWB, Blackrock, Neuralynx, Intan) are detected but referred to external
// conversion tooling.
package readers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rdarie/spikepipe/internal/domain/recording"
)

// Recording is the handle type produced by this package.
type Recording = recording.Recording

// Format identifies a recording source layout.
type Format string

// Known formats.
const (
	FormatSpikeGLX  Format = "spikeglx"
	FormatOpenEphys Format = "openephys"
	FormatBinary    Format = "binary"

	// Recognised but externally owned.
	FormatNWB       Format = "nwb"
	FormatBlackrock Format = "blackrock"
	FormatNeuralynx Format = "neuralynx"
	FormatIntan     Format = "intan"
)

// openEphysStructureFile marks an Open Ephys binary session directory.
const openEphysStructureFile = "structure.oebin"

// Options control how a source is opened.
type Options struct {
	// Stream selects one stream when the source holds several.
	Stream string
}

// Detect inspects a path and reports its recording format.
func Detect(path string) (Format, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat recording: %w", err)
	}

	if st.IsDir() {
		if _, err := os.Stat(filepath.Join(path, openEphysStructureFile)); err == nil {
			return FormatOpenEphys, nil
		}
		if metas, _ := filepath.Glob(filepath.Join(path, "*.meta")); len(metas) > 0 {
			return FormatSpikeGLX, nil
		}
		return "", fmt.Errorf("%w: directory %s", ErrUnknownFormat, path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".nwb":
		return FormatNWB, nil
	case ".ns1", ".ns2", ".ns3", ".ns4", ".ns5", ".ns6", ".nev":
		return FormatBlackrock, nil
	case ".ncs":
		return FormatNeuralynx, nil
	case ".rhd", ".rhs":
		return FormatIntan, nil
	case ".bin", ".dat":
		if _, err := os.Stat(spikeGLXMetaPath(path)); err == nil {
			return FormatSpikeGLX, nil
		}
		if _, err := os.Stat(path + ".json"); err == nil {
			return FormatBinary, nil
		}
		return "", fmt.Errorf("%w: %s has neither a .meta nor a .json sidecar", ErrUnknownFormat, path)
	case ".meta":
		return FormatSpikeGLX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Open detects the format at path and returns an open recording handle.
func Open(ctx context.Context, path string, opts Options) (Recording, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSpikeGLX:
		return OpenSpikeGLX(ctx, path, opts)
	case FormatOpenEphys:
		return OpenOpenEphys(ctx, path, opts)
	case FormatBinary:
		return OpenBinary(ctx, path, opts)
	case FormatNWB, FormatBlackrock, FormatNeuralynx, FormatIntan:
		return nil, &ExternalFormatError{Format: format, Path: path}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}
