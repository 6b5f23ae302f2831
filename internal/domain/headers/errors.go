package headers

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrDuplicateTarget   = errors.New("duplicate target field")
	ErrIncompleteMapping = errors.New("mapping does not cover columns")
)
