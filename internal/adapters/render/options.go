package render

import "github.com/okian/efast/pkg/logger"

// Option applies a configuration option to the Accumulator.
type Option func(*Accumulator)

// WithInterval sets the frame length in event-time microseconds.
func WithInterval(us int64) Option {
	return func(a *Accumulator) {
		if us > 0 {
			a.interval = us
		}
	}
}

// WithMarkRadius sets the arm length of the feature cross.
func WithMarkRadius(r int) Option {
	return func(a *Accumulator) {
		if r >= 0 {
			a.markRadius = r
		}
	}
}

// WithActiveSet marks the active feature set on each frame instead of the
// features detected during the frame.
func WithActiveSet(s Snapshotter) Option {
	return func(a *Accumulator) {
		a.active = s
	}
}

// WithHandlers appends frame handlers.
func WithHandlers(hs ...FrameHandler) Option {
	return func(a *Accumulator) {
		for _, h := range hs {
			if h != nil {
				a.handlers = append(a.handlers, h)
			}
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Accumulator) {
		if l != nil {
			a.logger = l
		}
	}
}
