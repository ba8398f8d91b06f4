// Package worker runs the projection pool that turns collected tracking
// events into persisted record projections.
package worker

import (
	"github.com/propely/engage/pkg/logger"
)

// Option applies a configuration option to the ProjectionWorker.
type Option func(*ProjectionWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *ProjectionWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *ProjectionWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
