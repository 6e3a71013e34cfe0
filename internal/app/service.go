// Package service runs the frame loop: capture, detect, measure, debounce,
// alert and publish. It also implements the dependencies of the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/drowsywatch/internal/adapters/audio"
	"github.com/okian/drowsywatch/internal/adapters/detector/stub"
	"github.com/okian/drowsywatch/internal/adapters/display"
	snapshotqueue "github.com/okian/drowsywatch/internal/adapters/mq/queue"
	"github.com/okian/drowsywatch/internal/adapters/mq/worker"
	"github.com/okian/drowsywatch/internal/adapters/repository"
	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/landmarks"
	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/logger"
	"github.com/okian/drowsywatch/pkg/metrics"
)

const (
	defaultReadBackoff = 100 * time.Millisecond
	defaultQueueSize   = 256
	defaultModelPath   = "models/face_landmarker.task"
)

// Camera yields frames until closed.
type Camera interface {
	Read(ctx context.Context) (model.Frame, error)
	Close() error
}

// Detector finds at most one face per frame. No face is an empty result.
type Detector interface {
	Init(ctx context.Context, modelPath string) error
	Detect(ctx context.Context, frame model.Frame) ([]model.Face, error)
	Close() error
}

// Display renders a frame with its overlay and reports whether the user
// asked to quit.
type Display interface {
	Show(ctx context.Context, frame model.Frame, ov model.Overlay) bool
	Close() error
}

// Alerter plays the alert sound without blocking.
type Alerter interface {
	Play(ctx context.Context)
	Close() error
}

// Service owns the frame loop and its collaborators.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	camera   Camera
	detector Detector
	display  Display
	alerter  Alerter
	store    repository.Store
	mapper   *landmarks.Mapper

	// Configuration
	thresholds      alert.Thresholds
	modelPath       string
	readBackoff     time.Duration
	maxReadFailures int
	limiter         *rate.Limiter
	queueSize       int
	sinks           []worker.Option

	// Publishing
	queue     *snapshotqueue.InMemoryQueue
	publisher *worker.Publisher
	pubCancel context.CancelFunc

	// Frame state, owned by the loop
	stateMu sync.Mutex
	state   alert.State

	lastFrame atomic.Pointer[model.Frame]

	framesProcessed atomic.Int64
	framesSkipped   atomic.Int64
	readFailures    atomic.Int64
	detectorErrors  atomic.Int64
	facesMissing    atomic.Int64

	started bool
	stopped bool

	logger logger.Logger
}

// New constructs a Service. Collaborators not supplied fall back to no-op
// implementations, except the camera which Start requires.
func New(opts ...Option) *Service {
	s := &Service{
		detector:    stub.Detector{},
		display:     display.Nop{},
		alerter:     audio.Nop{},
		thresholds:  alert.DefaultThresholds(),
		modelPath:   defaultModelPath,
		readBackoff: defaultReadBackoff,
		queueSize:   defaultQueueSize,
		logger:      logger.Get().Named("monitor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewSessionStore()
	}
	if s.mapper == nil {
		s.mapper = landmarks.NewMapper()
	}
	return s
}

// Start initializes the detector and the snapshot publisher. A detector
// that cannot start aborts the run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.camera == nil {
		return ErrNoCamera
	}

	s.logger.Info(ctx, "starting drowsiness monitor...",
		logger.String("model", s.modelPath),
		logger.Float64("eye_ar", s.thresholds.EyeAR),
		logger.Float64("mouth_ar", s.thresholds.MouthAR),
		logger.Int("eye_frames", s.thresholds.EyeFrames),
		logger.Int("mouth_frames", s.thresholds.MouthFrames),
	)

	if err := s.detector.Init(ctx, s.modelPath); err != nil {
		s.logger.Error(ctx, "detector initialization failed", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrDetectorInit, err)
	}

	s.queue = snapshotqueue.NewInMemoryQueue(snapshotqueue.WithCapacity(s.queueSize))
	s.publisher = worker.NewPublisher(s.queue, s.sinks...)
	pubCtx, cancel := context.WithCancel(context.Background())
	s.pubCancel = cancel
	go s.publisher.Run(pubCtx)

	s.started = true
	s.stopped = false
	s.logger.Info(ctx, "drowsiness monitor started", logger.Int("queueSize", s.queueSize))
	return nil
}

// Run drives the frame loop until ctx is done, the display asks to quit or
// the camera is lost. Per-frame failures are logged and skipped.
func (s *Service) Run(ctx context.Context) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	failures := 0
	for {
		if ctx.Err() != nil {
			s.logger.Info(ctx, "frame loop cancelled")
			return nil
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		frame, err := s.camera.Read(ctx)
		if err != nil {
			failures++
			s.readFailures.Add(1)
			s.framesSkipped.Add(1)
			metrics.RecordFrameSkipped("camera_read")
			s.logger.Warn(ctx, "failed to read frame", logger.Int("consecutive", failures), logger.Error(err))
			if s.maxReadFailures > 0 && failures >= s.maxReadFailures {
				s.logger.Error(ctx, "camera lost; ending session", logger.Int("failures", failures))
				return fmt.Errorf("%w: %d consecutive failures: %w", ErrCameraLost, failures, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.readBackoff):
			}
			continue
		}
		failures = 0
		s.lastFrame.Store(&frame)

		start := time.Now()
		faces, err := s.detector.Detect(ctx, frame)
		if err != nil {
			s.detectorErrors.Add(1)
			s.framesSkipped.Add(1)
			metrics.RecordFrameSkipped("detector_error")
			metrics.RecordErrorByComponent("detector", "detect")
			s.logger.Warn(ctx, "landmark detection failed", logger.Int("seq", int(frame.Seq)), logger.Error(err))
			continue
		}

		ov, snap, err := s.Process(ctx, frame, faces)
		if err != nil {
			continue
		}
		metrics.RecordFrameLatency(float64(time.Since(start).Milliseconds()))

		if s.display.Show(ctx, frame, ov) {
			s.logger.Info(ctx, "user quit the application")
			return nil
		}
		s.publish(ctx, snap)
	}
}

// Process turns one detector result into a reading, advances the alert
// state and applies its side effects. A frame whose landmarks cannot be
// mapped is skipped and leaves the counters untouched.
func (s *Service) Process(ctx context.Context, frame model.Frame, faces []model.Face) (model.Overlay, model.Snapshot, error) { //nolint:gocritic // hugeParam
	reading := model.Reading{
		Seq:    frame.Seq,
		Time:   frame.Captured,
		EAR:    1.0,
		MAR:    0.0,
		Status: alert.Awake,
	}
	if reading.Time.IsZero() {
		reading.Time = time.Now()
	}

	var (
		ov model.Overlay
		d  alert.Decision
	)

	s.stateMu.Lock()
	if len(faces) == 0 {
		s.facesMissing.Add(1)
		metrics.RecordFaceMissing()
	} else {
		regions, err := s.mapper.Map(faces[0], frame.Width, frame.Height)
		if err != nil {
			s.stateMu.Unlock()
			s.detectorErrors.Add(1)
			s.framesSkipped.Add(1)
			metrics.RecordFrameSkipped("landmarks")
			s.logger.Warn(ctx, "landmark set unusable", logger.Int("seq", int(frame.Seq)), logger.Error(err))
			return model.Overlay{}, model.Snapshot{}, err
		}
		ear, mar := regions.Ratios()
		s.state, d = s.thresholds.Step(s.state, ear, mar)

		reading.FaceFound = true
		reading.EAR, reading.MAR = ear, mar
		reading.Status = d.Status
		ov.LeftEye, ov.RightEye, ov.Mouth = regions.LeftEye, regions.RightEye, regions.Mouth
	}
	reading.ClosedEyes = s.state.ClosedEyes
	reading.MouthOpen = s.state.MouthOpen
	// Recorded under stateMu so a concurrent Reset lands between frames.
	snap := s.store.Record(ctx, reading, d)
	s.stateMu.Unlock()

	ov.Alert = d
	ov.EAR, ov.MAR = reading.EAR, reading.MAR

	if d.MouthTriggered {
		s.logger.Warn(ctx, "drowsiness sign detected (mouth open)",
			logger.Float64("mar", reading.MAR),
			logger.Int("frames", reading.MouthOpen),
		)
	}
	if d.EyesTriggered {
		s.logger.Error(ctx, "drowsiness alert: eyes detected as closed",
			logger.Float64("ear", reading.EAR),
			logger.Int("frames", reading.ClosedEyes),
		)
		s.alerter.Play(ctx)
	}

	s.framesProcessed.Add(1)
	metrics.RecordFrameProcessed()
	metrics.UpdateAspectRatios(reading.EAR, reading.MAR)
	metrics.UpdateStatus(int(reading.Status))
	metrics.UpdateCounters(reading.ClosedEyes, reading.MouthOpen)

	return ov, snap, nil
}

func (s *Service) publish(ctx context.Context, snap model.Snapshot) { //nolint:gocritic // hugeParam
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return
	}
	if !q.Enqueue(ctx, snap) {
		s.logger.Debug(ctx, "snapshot dropped", logger.Int("frames", snap.Frames))
	}
}

// Stop releases every collaborator. It is safe to call on any exit path
// and more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	ctx := context.Background()
	l := s.logger
	l.Info(ctx, "stopping drowsiness monitor...")

	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Shutdown(ctx); err != nil {
			l.Warn(ctx, "publisher shutdown", logger.Error(err))
		}
	}
	if s.pubCancel != nil {
		s.pubCancel()
	}

	closers := []struct {
		name string
		c    interface{ Close() error }
	}{
		{"display", s.display},
		{"alerter", s.alerter},
		{"detector", s.detector},
		{"camera", s.camera},
	}
	for _, c := range closers {
		if c.c == nil {
			continue
		}
		if err := c.c.Close(); err != nil {
			l.Warn(ctx, "close failed", logger.String("component", c.name), logger.Error(err))
		}
	}

	s.started = false
	l.Info(ctx, "drowsiness monitor stopped",
		logger.Int("frames", int(s.framesProcessed.Load())),
		logger.Int("skipped", int(s.framesSkipped.Load())),
	)
}

// Snapshot returns the current session summary.
func (s *Service) Snapshot(ctx context.Context) model.Snapshot {
	return s.store.Snapshot(ctx)
}

// History returns the most recent alert records.
func (s *Service) History(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	return s.store.History(ctx, limit)
}

// Series returns the most recent EAR, MAR and vigilance samples.
func (s *Service) Series(ctx context.Context, limit int) (model.Series, error) {
	return s.store.Series(ctx, limit)
}

// Reset clears the session and the consecutive-frame counters.
func (s *Service) Reset(ctx context.Context) model.Snapshot {
	s.stateMu.Lock()
	s.state = alert.State{}
	snap := s.store.Reset(ctx)
	s.stateMu.Unlock()
	s.logger.Info(ctx, "session reset", logger.String("session", snap.SessionID))
	return snap
}

// LatestFrame returns the most recently captured frame.
func (s *Service) LatestFrame() (model.Frame, bool) {
	f := s.lastFrame.Load()
	if f == nil {
		return model.Frame{}, false
	}
	return *f, true
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.stateMu.Lock()
	state := s.state
	s.stateMu.Unlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"framesProcessed": s.framesProcessed.Load(),
		"framesSkipped":   s.framesSkipped.Load(),
		"readFailures":    s.readFailures.Load(),
		"detectorErrors":  s.detectorErrors.Load(),
		"facesMissing":    s.facesMissing.Load(),
		"closedEyes":      state.ClosedEyes,
		"mouthOpen":       state.MouthOpen,
		"queueSize":       s.queueSize,
		"thresholds": map[string]interface{}{
			"eyeAR":       s.thresholds.EyeAR,
			"mouthAR":     s.thresholds.MouthAR,
			"eyeFrames":   s.thresholds.EyeFrames,
			"mouthFrames": s.thresholds.MouthFrames,
		},
	}
	if s.started && s.queue != nil {
		stats["queueLength"] = s.queue.Len(context.Background())
	}
	return stats
}
