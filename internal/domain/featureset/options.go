package featureset

// A sensor can never hold more active pixels than it has, so the default is
// unbounded.
const defaultMaxSize = 0

// Option applies a configuration option to the in-memory set.
type Option func(*inMemorySet)

// WithMaxSize bounds the number of active pixels.
// If maxSize > 0 the oldest pixel is evicted on overflow.
// If maxSize <= 0 the set is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(s *inMemorySet) {
		s.maxSize = maxSize
	}
}
