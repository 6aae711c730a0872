package convert

import "errors"

// Sentinel error kinds for this package.
var (
	ErrShortRead = errors.New("short read from source")
	ErrWrite     = errors.New("binary write failed")
)
