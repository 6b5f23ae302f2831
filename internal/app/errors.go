package service

import "errors"

// Sentinel error kinds for the pipeline and service.
var (
	// ErrStructural marks a table that could not be normalized at all.
	ErrStructural       = errors.New("structural error")
	ErrEntityNotIndexed = errors.New("referenced entity not indexed")
	ErrUnknownTable     = errors.New("unknown table")
	ErrDuplicateTable   = errors.New("table already processed in this run")
	ErrNotStarted       = errors.New("service not started")
	ErrQueueFull        = errors.New("run queue is full")
	ErrRunNotFound      = errors.New("run not found")
)
