package probe

import (
	"encoding/json"
	"fmt"
	"os"
)

// Probe document constants.
const (
	specificationName = "probeinterface"
	specVersion       = "0.2.21"

	probeFilePermission = 0o644
)

// NewGroup wraps probes into a serializable document.
func NewGroup(probes ...*Probe) *Group {
	return &Group{
		Specification: specificationName,
		Version:       specVersion,
		Probes:        probes,
	}
}

// MarshalDocument validates the group and renders the probeinterface JSON.
func (g *Group) MarshalDocument() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode probe document: %w", err)
	}
	return data, nil
}

// Save writes the probeinterface JSON document to path.
func (g *Group) Save(path string) error {
	data, err := g.MarshalDocument()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, probeFilePermission); err != nil {
		return fmt.Errorf("write probe file: %w", err)
	}
	return nil
}

// Load reads a probeinterface JSON document from path.
func Load(path string) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read probe file: %w", err)
	}
	var g Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDocument, err)
	}
	if g.Specification != specificationName {
		return nil, fmt.Errorf("%w: specification %q", ErrBadDocument, g.Specification)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}
