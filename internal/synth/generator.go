package synth

import (
	"math"
	"math/rand"
)

// spikeSpread is the fraction of a spike's amplitude that bleeds onto each
// neighboring channel.
const spikeSpread = 0.4

// Generate renders the scenario into interleaved int16 frames.
func Generate(s *Scenario) []int16 {
	rng := rand.New(rand.NewSource(s.Seed))
	frames := s.Frames()
	samples := make([]int16, frames*int64(s.Channels))

	// Background noise.
	for i := range samples {
		samples[i] = clampInt16(rng.NormFloat64() * s.NoiseRMS)
	}

	// Spike trains. Spike times jitter around the unit's mean interval so
	// trains do not lock to each other.
	for _, u := range s.Units {
		interval := s.SampleRate / u.RateHz
		width := int(u.WidthMS / 1000 * s.SampleRate)
		if width < 3 {
			width = 3
		}
		wave := spikeWaveform(width, u.Amplitude)

		for t := interval * rng.Float64(); t < float64(frames); t += interval * (0.8 + 0.4*rng.Float64()) {
			addSpike(samples, s.Channels, int64(t), u.Channel, wave)
		}
	}
	return samples
}

// spikeWaveform builds a biphasic spike: a sharp negative trough followed
// by a shallow positive rebound.
func spikeWaveform(width int, amplitude float64) []float64 {
	wave := make([]float64, width)
	trough := float64(width) / 3
	for i := range wave {
		x := float64(i)
		wave[i] = -amplitude*math.Exp(-sq(x-trough)/(2*sq(trough/2))) +
			0.3*amplitude*math.Exp(-sq(x-2*trough)/(2*sq(trough)))
	}
	return wave
}

// addSpike mixes the waveform into the home channel and, attenuated, into
// its direct neighbors.
func addSpike(samples []int16, channels int, start int64, channel int, wave []float64) {
	frames := int64(len(samples)) / int64(channels)
	for i, v := range wave {
		frame := start + int64(i)
		if frame >= frames {
			return
		}
		for _, tap := range []struct {
			ch   int
			gain float64
		}{
			{channel, 1},
			{channel - 1, spikeSpread},
			{channel + 1, spikeSpread},
		} {
			if tap.ch < 0 || tap.ch >= channels {
				continue
			}
			idx := frame*int64(channels) + int64(tap.ch)
			samples[idx] = clampInt16(float64(samples[idx]) + v*tap.gain)
		}
	}
}

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(math.RoundToEven(v))
}

func sq(x float64) float64 { return x * x }
