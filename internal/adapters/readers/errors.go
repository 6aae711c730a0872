package readers

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for this package.
var (
	ErrUnknownFormat  = errors.New("unknown recording format")
	ErrExternalFormat = errors.New("format requires external conversion tooling")
	ErrStreamRequired = errors.New("stream selection required")
	ErrStreamNotFound = errors.New("stream not found")
	ErrBadMetadata    = errors.New("malformed recording metadata")
)

// StreamError reports a stream-selection problem together with the streams
// the source actually offers, so callers can surface them to the user.
type StreamError struct {
	Kind      error
	Requested string
	Available []string
}

func (e *StreamError) Error() string {
	if e.Requested == "" {
		return fmt.Sprintf("%v: available streams: %s", e.Kind, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("%v: %q; available streams: %s", e.Kind, e.Requested, strings.Join(e.Available, ", "))
}

func (e *StreamError) Unwrap() error { return e.Kind }

// ExternalFormatError names a recognised vendor format this service does not
// parse natively.
type ExternalFormatError struct {
	Format Format
	Path   string
}

func (e *ExternalFormatError) Error() string {
	return fmt.Sprintf("%v: %s file %s; convert it to flat binary with the vendor's own tooling first",
		ErrExternalFormat, e.Format, e.Path)
}

func (e *ExternalFormatError) Unwrap() error { return ErrExternalFormat }
