package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBadSpec        = errors.New("invalid job spec")
	ErrDuplicate      = errors.New("duplicate job submission")
	ErrBusy           = errors.New("job queue full")
	ErrNeedsConvert   = errors.New("source cannot be sorted in place")
	ErrSorterDisabled = errors.New("sorting requested but no sorter configured")
)
