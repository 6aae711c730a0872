package metrics

import "errors"

// Sentinel error kinds for this package.
var (
	ErrRegistration = errors.New("metrics registration failed")
)
