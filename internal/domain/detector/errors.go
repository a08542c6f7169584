package detector

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidDimensions = errors.New("sensor dimensions must be positive")
)
