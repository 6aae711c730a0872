// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rdarie/spikepipe/internal/domain/probe"
)

// Probe layout kinds accepted by POST /probes.
const (
	probeKindLinear   = "linear"
	probeKindGrid     = "grid"
	probeKindSpikeGLX = "spikeglx"
)

// probeRequest mirrors the OpenAPI schema for POST /probes.
type probeRequest struct {
	Kind string `json:"kind"`

	// Linear layout.
	Channels int     `json:"channels,omitempty"`
	PitchUM  float64 `json:"pitch_um,omitempty"`

	// Grid layout.
	Rows     int     `json:"rows,omitempty"`
	Cols     int     `json:"cols,omitempty"`
	XPitchUM float64 `json:"x_pitch_um,omitempty"`
	YPitchUM float64 `json:"y_pitch_um,omitempty"`

	// SpikeGLX geometry map.
	GeomMap string `json:"geom_map,omitempty"`

	// DeviceChannelIndices overrides the generated wiring.
	DeviceChannelIndices []int `json:"device_channel_indices,omitempty"`
}

// probeResponse carries both output layouts for a built probe.
type probeResponse struct {
	Probe   *probe.Group   `json:"probe"`
	ChanMap *probe.ChanMap `json:"chanmap"`
}

// ProbesHandler builds probe documents without running a job.
type ProbesHandler struct{}

// NewProbesHandler creates a new probes handler.
func NewProbesHandler() *ProbesHandler {
	return &ProbesHandler{}
}

// HandleBuildProbe handles POST /probes requests.
func (h *ProbesHandler) HandleBuildProbe(w http.ResponseWriter, r *http.Request) {
	const op = "api.build_probe"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req probeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	p, err := buildProbe(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.DeviceChannelIndices) > 0 {
		if err := p.SetDeviceChannelIndices(req.DeviceChannelIndices); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	cm, err := p.SorterChanMap()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, probeResponse{
		Probe:   probe.NewGroup(p),
		ChanMap: cm,
	})
}

// buildProbe dispatches on the requested layout kind.
func buildProbe(req probeRequest) (*probe.Probe, error) {
	switch strings.ToLower(req.Kind) {
	case probeKindLinear:
		if req.Channels <= 0 {
			return nil, NewKind("api.build_probe", ErrBadRequest)
		}
		return probe.Linear(req.Channels, req.PitchUM), nil
	case probeKindGrid:
		if req.Rows <= 0 || req.Cols <= 0 {
			return nil, NewKind("api.build_probe", ErrBadRequest)
		}
		return probe.Grid(req.Rows, req.Cols, req.XPitchUM, req.YPitchUM), nil
	case probeKindSpikeGLX:
		return probe.FromSpikeGLXGeom(req.GeomMap)
	}
	return nil, NewKind("api.build_probe", ErrBadRequest)
}
