package source

import (
	"github.com/okian/efast/pkg/logger"
)

const defaultPacketSize = 1024

type options struct {
	packetSize  int
	strictOrder bool
	logger      logger.Logger
}

// Option applies a configuration option to a reader.
type Option func(*options)

// WithPacketSize sets how many text-format events are grouped per packet.
func WithPacketSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.packetSize = n
		}
	}
}

// WithStrictOrder makes readers fail with ErrOutOfOrder when a timestamp
// decreases. Enabled by default.
func WithStrictOrder(strict bool) Option {
	return func(o *options) {
		o.strictOrder = strict
	}
}

// WithLogger sets a custom logger for the reader.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		packetSize:  defaultPacketSize,
		strictOrder: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("source")
	}
	return o
}
