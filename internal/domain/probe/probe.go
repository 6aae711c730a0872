// Package probe models electrode geometry and serializes it in the two file
// layouts the sorting pipeline needs: probeinterface JSON for interchange and
// the sorter channel-map JSON (chanMap/xc/yc/kcoords) consumed by Kilosort.
package probe

import (
	"errors"
	"fmt"
)

// Contact shape names used in shape params.
const (
	ShapeCircle = "circle"
	ShapeSquare = "square"
)

// Sentinel error kinds for this package.
var (
	// ErrNoDeviceIndices is returned when a probe is serialized before its
	// device channel indices are set. Mirrors the refusal upstream probe
	// tooling raises in the same situation.
	ErrNoDeviceIndices = errors.New("device channel indices not set")
	ErrInconsistent    = errors.New("inconsistent probe arrays")
	ErrBadGeomMap      = errors.New("malformed geometry map")
	ErrBadDocument     = errors.New("malformed probe document")
)

// ShapeParams carries the parameters of a contact shape.
type ShapeParams struct {
	Radius float64 `json:"radius,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Probe describes one probe's contact layout in micrometers.
type Probe struct {
	NDim                 int               `json:"ndim"`
	SIUnits              string            `json:"si_units"`
	Annotations          map[string]string `json:"annotations,omitempty"`
	ContactPositions     [][2]float64      `json:"contact_positions"`
	ContactShapes        []string          `json:"contact_shapes"`
	ContactShapeParams   []ShapeParams     `json:"contact_shape_params"`
	ShankIDs             []string          `json:"shank_ids"`
	DeviceChannelIndices []int             `json:"device_channel_indices,omitempty"`
}

// NumContacts returns the contact count.
func (p *Probe) NumContacts() int {
	return len(p.ContactPositions)
}

// SetDeviceChannelIndices wires probe contacts to device channels. The
// index slice must cover every contact exactly once; -1 marks a contact
// that is not recorded.
func (p *Probe) SetDeviceChannelIndices(indices []int) error {
	if len(indices) != p.NumContacts() {
		return fmt.Errorf("%w: %d indices for %d contacts",
			ErrInconsistent, len(indices), p.NumContacts())
	}
	p.DeviceChannelIndices = append([]int(nil), indices...)
	return nil
}

// Validate checks the invariants required before serialization.
func (p *Probe) Validate() error {
	n := p.NumContacts()
	if n == 0 {
		return fmt.Errorf("%w: no contacts", ErrInconsistent)
	}
	if len(p.ContactShapes) != n || len(p.ContactShapeParams) != n || len(p.ShankIDs) != n {
		return fmt.Errorf("%w: positions=%d shapes=%d params=%d shanks=%d",
			ErrInconsistent, n, len(p.ContactShapes), len(p.ContactShapeParams), len(p.ShankIDs))
	}
	if len(p.DeviceChannelIndices) != n {
		return fmt.Errorf("%w: set them before saving (%d of %d contacts wired)",
			ErrNoDeviceIndices, len(p.DeviceChannelIndices), n)
	}
	seen := make(map[int]struct{}, n)
	for _, idx := range p.DeviceChannelIndices {
		if idx < 0 {
			continue // unconnected contact
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate device channel %d", ErrInconsistent, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// Group is a set of probes sharing one document, mirroring the
// probeinterface on-disk layout.
type Group struct {
	Specification string   `json:"specification"`
	Version       string   `json:"version"`
	Probes        []*Probe `json:"probes"`
}

// Validate validates every probe in the group.
func (g *Group) Validate() error {
	if len(g.Probes) == 0 {
		return fmt.Errorf("%w: empty group", ErrInconsistent)
	}
	for i, p := range g.Probes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("probe %d: %w", i, err)
		}
	}
	return nil
}
