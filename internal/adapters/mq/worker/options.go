// Package worker runs the detector over packets taken from the queue.
package worker

import (
	"github.com/okian/efast/internal/domain/featureset"
	"github.com/okian/efast/pkg/logger"
)

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxScale sets the scale used for the border margin.
func WithMaxScale(scale int) Option {
	return func(w *Worker) {
		if scale > 0 {
			w.maxScale = scale
		}
	}
}

// WithFeatureSet makes the worker keep set up to date with every verdict.
func WithFeatureSet(set featureset.Set) Option {
	return func(w *Worker) {
		w.features = set
	}
}

// WithSinks appends sinks that receive every packet result.
func WithSinks(sinks ...Sink) Option {
	return func(w *Worker) {
		for _, s := range sinks {
			if s != nil {
				w.sinks = append(w.sinks, s)
			}
		}
	}
}
