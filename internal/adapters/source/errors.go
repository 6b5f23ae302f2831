package source

import "errors"

// Sentinel kinds for reading errors.
var (
	// ErrMalformed marks input that cannot be read as a table at all.
	ErrMalformed   = errors.New("malformed input")
	ErrUnsupported = errors.New("unsupported file type")
	ErrNoInput     = errors.New("no readable files")
)
