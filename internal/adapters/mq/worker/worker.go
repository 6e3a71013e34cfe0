// Package worker drains the snapshot queue and fans each snapshot out to the
// registered sinks (websocket hub, ...).
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/logger"
	"github.com/okian/drowsywatch/pkg/metrics"
)

const workerShutdownTimeout = 5 * time.Second

// Snapshot abstracts what the worker reads off the queue.
type Snapshot = model.Snapshot

// Queue defines how the worker receives snapshots.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Snapshot
}

// Sink receives every published snapshot. Implementations must not block
// for long; a slow sink delays all others.
type Sink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, s Snapshot) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, s Snapshot) error { return f(ctx, s) } //nolint:gocritic // hugeParam

// Worker publishes queued snapshots until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, the queue closes or
	// Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

type namedSink struct {
	name string
	sink Sink
}

// Publisher implements Worker with a single goroutine so sinks observe
// snapshots in frame order.
type Publisher struct {
	queue Queue
	sinks []namedSink
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewPublisher creates a publisher reading from queue.
func NewPublisher(queue Queue, opts ...Option) *Publisher {
	p := &Publisher{
		queue:    queue,
		name:     "publisher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.name != "publisher" {
		p.logger = p.logger.Named(p.name)
	}
	return p
}

// Run starts the worker loop.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)

	ch := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			p.publish(ctx, s)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, s Snapshot) { //nolint:gocritic // hugeParam
	for _, ns := range p.sinks {
		if err := ns.sink.Publish(ctx, s); err != nil {
			metrics.RecordErrorByComponent("publisher", ns.name)
			p.logger.Warn(ctx, "sink publish failed",
				logger.String("sink", ns.name),
				logger.Int("frames", s.Frames),
				logger.Error(err),
			)
		}
	}
}

// Shutdown stops the worker. Calling it more than once is safe.
func (p *Publisher) Shutdown(ctx context.Context) error {
	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}

	ctx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
