package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ChanMap is the channel-map document the external sorter consumes: one
// entry per connected contact, with coordinates and shank group.
type ChanMap struct {
	ChanMap []int     `json:"chanMap"`
	Xc      []float64 `json:"xc"`
	Yc      []float64 `json:"yc"`
	Kcoords []int     `json:"kcoords"`
	NChan   int       `json:"n_chan"`
}

// SorterChanMap flattens a probe into the sorter channel map, skipping
// unconnected contacts (device index -1).
func (p *Probe) SorterChanMap() (*ChanMap, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cm := &ChanMap{}
	for i, idx := range p.DeviceChannelIndices {
		if idx < 0 {
			continue
		}
		shank, err := strconv.Atoi(p.ShankIDs[i])
		if err != nil {
			shank = 0
		}
		cm.ChanMap = append(cm.ChanMap, idx)
		cm.Xc = append(cm.Xc, p.ContactPositions[i][0])
		cm.Yc = append(cm.Yc, p.ContactPositions[i][1])
		cm.Kcoords = append(cm.Kcoords, shank)
	}
	cm.NChan = len(cm.ChanMap)
	if cm.NChan == 0 {
		return nil, fmt.Errorf("%w: no connected contacts", ErrInconsistent)
	}
	return cm, nil
}

// Save writes the channel map JSON to path.
func (c *ChanMap) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode channel map: %w", err)
	}
	if err := os.WriteFile(path, data, probeFilePermission); err != nil {
		return fmt.Errorf("write channel map: %w", err)
	}
	return nil
}
