package worker

import "github.com/okian/rally/pkg/logger"

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
			w.log = logger.Named(name)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}
