package synth

import "os"

// ShowHelp prints usage information for the recording generator.
func ShowHelp() {
	os.Stdout.WriteString(`spikepipe recording generator
=============================

Generates a synthetic SpikeGLX recording (noise plus spike trains) and
optionally drives it through a running spikepipe service.

Usage:
  mkrecording [options]

Options:
  -scenario string
        Scenario YAML file (default: built-in scenario)
  -out string
        Output directory for the .bin/.meta pair (default "synthetic")
  -url string
        spikepipe base URL; when set, the recording is submitted as a job
  -sort
        Request sorting on the submitted job
  -timeout duration
        HTTP request timeout (default 30s)
  -help
        Show this help message

Scenario file:
  name: demo
  channels: 64
  sample_rate: 30000
  duration_sec: 5
  noise_rms: 10
  seed: 42
  units:
    - channel: 7
      rate_hz: 12
      amplitude: 500
    - channel: 40
      rate_hz: 4
      amplitude: 800
      width_ms: 1.5

Examples:
  # Generate with the built-in scenario
  mkrecording -out /tmp/rec

  # Generate and run through a local service, with sorting
  mkrecording -scenario demo.yaml -out /tmp/rec -url http://localhost:9090 -sort
`)
}
