package sorter

import "errors"

// Sentinel kinds for sorter errors.
var (
	ErrNotConfigured = errors.New("no sorter command configured")
	ErrBadRequest    = errors.New("invalid sorter request")
	ErrProcessFailed = errors.New("sorter process failed")
	ErrTimeout       = errors.New("sorter timed out")
)
