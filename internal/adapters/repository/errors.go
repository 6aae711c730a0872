package repository

import "errors"

// Sentinel kinds for job store errors.
var (
	ErrNotFound      = errors.New("job not found")
	ErrAlreadyExists = errors.New("job already exists")
	ErrInvalidLimit  = errors.New("invalid job list limit")
)
