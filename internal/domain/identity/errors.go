package identity

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoIdentity = errors.New("table declares no identity")
	ErrNotIndexed = errors.New("referenced entity not indexed")
)
