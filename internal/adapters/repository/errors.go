package repository

import "errors"

// Sentinel kinds for feature log errors.
var (
	ErrClosed       = errors.New("feature log closed")
	ErrUnknownRun   = errors.New("unknown run")
	ErrInvalidLimit = errors.New("invalid feature limit")
)
