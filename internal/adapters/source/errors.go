package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrMalformedRecord   = errors.New("malformed event record")
	ErrUnsupportedFormat = errors.New("unsupported input format")
	ErrOutOfOrder        = errors.New("event timestamp went backwards")
)
