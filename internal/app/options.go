package service

import (
	"io"
	"time"

	"github.com/okian/efast/internal/adapters/mq/worker"
	"github.com/okian/efast/internal/adapters/render"
	"github.com/okian/efast/internal/adapters/repository"
	"github.com/okian/efast/internal/adapters/source"
	"github.com/okian/efast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSensor sets the sensor resolution.
func WithSensor(width, height int) Option {
	return func(s *Service) {
		if width > 0 && height > 0 {
			s.width = width
			s.height = height
		}
	}
}

// WithMaxScale sets the scale used for the border margin.
func WithMaxScale(scale int) Option {
	return func(s *Service) {
		if scale > 0 {
			s.maxScale = scale
		}
	}
}

// WithInput sets the file and container format to replay.
func WithInput(path, format string) Option {
	return func(s *Service) {
		s.input = path
		if format != "" {
			s.format = format
		}
	}
}

// WithSource replays src on the next Run instead of opening the configured
// input. The service closes src when that run ends.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		s.src = src
	}
}

// WithTextPacketSize sets how many text events form a packet.
func WithTextPacketSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.textPacketSize = n
		}
	}
}

// WithQueueSize sets the capacity of the packet queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithFeatureSetSize bounds the active feature set. The default is unbounded.
func WithFeatureSetSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.featureSetSize = size
		}
	}
}

// WithStore records every packet in store. The caller keeps ownership.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithTextLog writes the text feature log to w. The service closes w when
// the run ends if it is an io.Closer.
func WithTextLog(w io.Writer) Option {
	return func(s *Service) {
		s.textLog = w
	}
}

// WithFrames renders frames of intervalUS event-time microseconds and hands
// them to handlers.
func WithFrames(intervalUS int64, markRadius int, handlers ...render.FrameHandler) Option {
	return func(s *Service) {
		if intervalUS > 0 {
			s.frameInterval = intervalUS
		}
		if markRadius >= 0 {
			s.markRadius = markRadius
		}
		s.frameHandlers = append(s.frameHandlers, handlers...)
	}
}

// WithSinks adds sinks that receive every packet result.
func WithSinks(sinks ...worker.Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithMetricsInterval sets how often runtime metrics are sampled.
func WithMetricsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.metricsInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
