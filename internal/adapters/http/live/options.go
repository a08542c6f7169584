package live

import "github.com/okian/efast/pkg/logger"

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithBufferSize sets how many messages may wait for broadcast.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithActiveSet lets clients request the active feature set. Use
// Hub.SetActiveSet when the set is only known after the hub is built.
func WithActiveSet(s Snapshotter) Option {
	return func(h *Hub) {
		h.active = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
