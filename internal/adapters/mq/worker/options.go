package worker

import (
	"github.com/okian/drowsywatch/pkg/logger"
)

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSink registers a sink; sinks are called in registration order.
func WithSink(name string, sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, namedSink{name: name, sink: sink})
		}
	}
}
