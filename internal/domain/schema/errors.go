package schema

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidSchema  = errors.New("invalid schema")
	ErrDuplicateField = errors.New("duplicate field")
	ErrDuplicateTable = errors.New("duplicate table")
	ErrUnknownTable   = errors.New("unknown table")
)
