package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/metrics"
)

const (
	defaultInitialScore = 100
	defaultMouthPenalty = 10
	defaultEyesPenalty  = 20
	defaultMaxSamples   = 54_000 // 30 minutes at 30 fps
	evictChunkDivisor   = 4
)

// SessionStore is the in-memory Store. It lives for the process lifetime and
// never touches disk.
type SessionStore struct {
	initialScore int
	mouthPenalty int
	eyesPenalty  int
	maxSamples   int
	now          func() time.Time

	mu      sync.RWMutex
	id      string
	started time.Time
	score   int
	frames  int
	latest  model.Reading
	events  int
	history []model.HistoryRecord
	ear     []float64
	mar     []float64
	vig     []int

	// lifetime sums; eviction never reduces them
	sumEAR float64
	sumMAR float64
	sumVig int
}

// NewSessionStore creates a store with a fresh session.
func NewSessionStore(opts ...Option) *SessionStore {
	s := &SessionStore{
		initialScore: defaultInitialScore,
		mouthPenalty: defaultMouthPenalty,
		eyesPenalty:  defaultEyesPenalty,
		maxSamples:   defaultMaxSamples,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	return s
}

// Record implements Store.
func (s *SessionStore) Record(_ context.Context, r model.Reading, d alert.Decision) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.MouthTriggered {
		s.score = max(s.score-s.mouthPenalty, 0)
		s.appendHistory(alert.Drowsy)
	}
	if d.EyesTriggered {
		s.score = max(s.score-s.eyesPenalty, 0)
		s.appendHistory(alert.DeepSleep)
	}

	s.frames++
	s.latest = r
	s.ear = append(s.ear, r.EAR)
	s.mar = append(s.mar, r.MAR)
	s.vig = append(s.vig, s.score)
	s.sumEAR += r.EAR
	s.sumMAR += r.MAR
	s.sumVig += s.score
	s.evictLocked()

	metrics.UpdateVigilanceScore(s.score)
	return s.snapshotLocked()
}

func (s *SessionStore) appendHistory(status alert.Status) {
	s.events++
	s.history = append(s.history, model.HistoryRecord{
		ID:     uuid.NewString(),
		Time:   s.now(),
		Status: status,
	})
	metrics.RecordAlert(status.String())
}

// evictLocked lets the retained slices grow a quarter past maxSamples and
// then trims them back in one copy. Queries never see more than maxSamples.
func (s *SessionStore) evictLocked() {
	if s.maxSamples == 0 {
		return
	}
	limit := s.maxSamples + max(s.maxSamples/evictChunkDivisor, 1)
	if len(s.ear) >= limit {
		s.ear = trim(s.ear, s.maxSamples)
		s.mar = trim(s.mar, s.maxSamples)
		s.vig = trim(s.vig, s.maxSamples)
	}
	if len(s.history) >= limit {
		s.history = trim(s.history, s.maxSamples)
	}
}

func trim[T any](in []T, keep int) []T {
	return append(make([]T, 0, keep), in[len(in)-keep:]...)
}

func (s *SessionStore) retained(limit int) int {
	if s.maxSamples > 0 && (limit == 0 || limit > s.maxSamples) {
		return s.maxSamples
	}
	return limit
}

// Snapshot implements Store.
func (s *SessionStore) Snapshot(_ context.Context) model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SessionStore) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		SessionID:    s.id,
		Started:      s.started,
		Latest:       s.latest,
		Frames:       s.frames,
		Events:       s.events,
		Vigilance:    s.score,
		AvgVigilance: float64(s.initialScore),
	}
	if n := s.frames; n > 0 {
		snap.AvgVigilance = float64(s.sumVig) / float64(n)
		snap.AvgEAR = s.sumEAR / float64(n)
		snap.AvgMAR = s.sumMAR / float64(n)
	}
	return snap
}

// History implements Store.
func (s *SessionStore) History(_ context.Context, limit int) ([]model.HistoryRecord, error) {
	if limit < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.HistoryRecord(nil), tail(s.history, s.retained(limit))...), nil
}

// Series implements Store.
func (s *SessionStore) Series(_ context.Context, limit int) (model.Series, error) {
	if limit < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return model.Series{}, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = s.retained(limit)
	return model.Series{
		EAR:       append([]float64{}, tail(s.ear, limit)...),
		MAR:       append([]float64{}, tail(s.mar, limit)...),
		Vigilance: append([]int{}, tail(s.vig, limit)...),
	}, nil
}

// Reset implements Store.
func (s *SessionStore) Reset(_ context.Context) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	metrics.RecordSessionReset()
	metrics.UpdateVigilanceScore(s.score)
	return s.snapshotLocked()
}

func (s *SessionStore) resetLocked() {
	s.id = uuid.NewString()
	s.started = s.now()
	s.score = s.initialScore
	s.frames = 0
	s.events = 0
	s.latest = model.Reading{}
	s.history = nil
	s.ear, s.mar, s.vig = nil, nil, nil
	s.sumEAR, s.sumMAR, s.sumVig = 0, 0, 0
}

func tail[T any](in []T, limit int) []T {
	if limit == 0 || limit >= len(in) {
		return in
	}
	return in[len(in)-limit:]
}
