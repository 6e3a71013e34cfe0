package service

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/drowsywatch/internal/adapters/mq/worker"
	"github.com/okian/drowsywatch/internal/adapters/repository"
	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/landmarks"
	"github.com/okian/drowsywatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCamera sets the frame source. The service closes it on Stop.
func WithCamera(c Camera) Option {
	return func(s *Service) {
		if c != nil {
			s.camera = c
		}
	}
}

// WithDetector sets the landmark detector. The service closes it on Stop.
func WithDetector(d Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithDisplay sets the preview display.
func WithDisplay(d Display) Option {
	return func(s *Service) {
		if d != nil {
			s.display = d
		}
	}
}

// WithAlerter sets the audio alerter.
func WithAlerter(a Alerter) Option {
	return func(s *Service) {
		if a != nil {
			s.alerter = a
		}
	}
}

// WithStore sets the session store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithMapper sets the landmark mapper.
func WithMapper(m *landmarks.Mapper) Option {
	return func(s *Service) {
		if m != nil {
			s.mapper = m
		}
	}
}

// WithThresholds sets the alert thresholds. Invalid values are ignored.
func WithThresholds(t alert.Thresholds) Option {
	return func(s *Service) {
		if t.Validate() == nil {
			s.thresholds = t
		}
	}
}

// WithModelPath sets the model file passed to the detector on Start.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithReadBackoff sets the pause after a failed camera read.
func WithReadBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.readBackoff = d
		}
	}
}

// WithMaxReadFailures ends Run after n consecutive failed reads. Zero
// retries forever.
func WithMaxReadFailures(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxReadFailures = n
		}
	}
}

// WithMaxFPS caps the sampling rate. Zero disables the cap.
func WithMaxFPS(fps float64) Option {
	return func(s *Service) {
		if fps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(fps), 1)
		}
	}
}

// WithQueueSize sets the capacity of the snapshot queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSink registers a snapshot sink fed by the publisher worker.
func WithSink(name string, sink worker.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, worker.WithSink(name, sink))
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
