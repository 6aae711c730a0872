package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Default geometry constants in micrometers.
const (
	defaultContactRadius = 5.0
	defaultLinearPitch   = 20.0
)

// Linear builds a single-shank probe with n contacts spaced pitchUM apart
// along the probe axis. Device channel indices default to identity.
func Linear(n int, pitchUM float64) *Probe {
	if pitchUM <= 0 {
		pitchUM = defaultLinearPitch
	}
	p := newProbe(n)
	for i := 0; i < n; i++ {
		p.ContactPositions[i] = [2]float64{0, float64(i) * pitchUM}
		p.DeviceChannelIndices[i] = i
	}
	return p
}

// Grid builds a rows x cols contact grid with the given pitches. Contacts
// are numbered column-major within a row, bottom row first, matching the
// channel order of multi-column silicon probes.
func Grid(rows, cols int, xPitchUM, yPitchUM float64) *Probe {
	p := newProbe(rows * cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			p.ContactPositions[i] = [2]float64{float64(c) * xPitchUM, float64(r) * yPitchUM}
			p.DeviceChannelIndices[i] = i
		}
	}
	return p
}

func newProbe(n int) *Probe {
	p := &Probe{
		NDim:                 2,
		SIUnits:              "um",
		ContactPositions:     make([][2]float64, n),
		ContactShapes:        make([]string, n),
		ContactShapeParams:   make([]ShapeParams, n),
		ShankIDs:             make([]string, n),
		DeviceChannelIndices: make([]int, n),
	}
	for i := 0; i < n; i++ {
		p.ContactShapes[i] = ShapeCircle
		p.ContactShapeParams[i] = ShapeParams{Radius: defaultContactRadius}
		p.ShankIDs[i] = "0"
	}
	return p
}

// FromSpikeGLXGeom parses a SpikeGLX ~snsGeomMap value into a probe. The
// map has a header block and one block per saved channel:
//
//	(PartNumber,numShanks,shankPitch,shankWidth)(shank:x:z:used)(...)
//
// x and z are micrometers within a shank; the shank pitch offsets x across
// shanks. Channels flagged unused get device index -1.
func FromSpikeGLXGeom(geom string) (*Probe, error) {
	blocks := splitParenBlocks(geom)
	if len(blocks) < 2 {
		return nil, fmt.Errorf("%w: need header and at least one contact", ErrBadGeomMap)
	}

	header := strings.Split(blocks[0], ",")
	if len(header) != 4 {
		return nil, fmt.Errorf("%w: header %q", ErrBadGeomMap, blocks[0])
	}
	shankPitch, err := strconv.ParseFloat(header[2], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: shank pitch %q", ErrBadGeomMap, header[2])
	}

	n := len(blocks) - 1
	p := newProbe(n)
	p.Annotations = map[string]string{"part_number": header[0]}
	for i, block := range blocks[1:] {
		parts := strings.Split(block, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("%w: contact %q", ErrBadGeomMap, block)
		}
		shank, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: shank id %q", ErrBadGeomMap, parts[0])
		}
		x, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: x %q", ErrBadGeomMap, parts[1])
		}
		z, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: z %q", ErrBadGeomMap, parts[2])
		}
		used := parts[3] != "0"

		p.ContactPositions[i] = [2]float64{x + float64(shank)*shankPitch, z}
		p.ContactShapes[i] = ShapeSquare
		p.ContactShapeParams[i] = ShapeParams{Width: 12, Height: 12}
		p.ShankIDs[i] = strconv.Itoa(shank)
		if used {
			p.DeviceChannelIndices[i] = i
		} else {
			p.DeviceChannelIndices[i] = -1
		}
	}
	return p, nil
}

// splitParenBlocks splits "(a)(b)(c)" into ["a", "b", "c"].
func splitParenBlocks(s string) []string {
	var blocks []string
	s = strings.TrimSpace(s)
	for {
		open := strings.IndexByte(s, '(')
		if open < 0 {
			break
		}
		closing := strings.IndexByte(s[open:], ')')
		if closing < 0 {
			break
		}
		blocks = append(blocks, s[open+1:open+closing])
		s = s[open+closing+1:]
	}
	return blocks
}
