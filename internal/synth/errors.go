package synth

import "errors"

// Sentinel kinds for generator errors.
var (
	ErrBadScenario    = errors.New("invalid scenario")
	ErrSubmitRejected = errors.New("service rejected request")
	ErrJobFailed      = errors.New("job failed")
)
