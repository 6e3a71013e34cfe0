package repository

import "time"

// Option applies a configuration option to the SessionStore.
type Option func(*SessionStore)

// WithInitialScore sets the vigilance score a session starts from.
func WithInitialScore(score int) Option {
	return func(s *SessionStore) {
		if score > 0 {
			s.initialScore = score
		}
	}
}

// WithPenalties sets the score lost per frame for each tripped condition.
func WithPenalties(mouth, eyes int) Option {
	return func(s *SessionStore) {
		if mouth >= 0 {
			s.mouthPenalty = mouth
		}
		if eyes >= 0 {
			s.eyesPenalty = eyes
		}
	}
}

// WithMaxSamples caps how many samples each series and the history return.
// Older entries are evicted first; session totals and averages still cover
// every frame. Zero keeps everything.
func WithMaxSamples(n int) Option {
	return func(s *SessionStore) {
		if n >= 0 {
			s.maxSamples = n
		}
	}
}

// WithClock overrides the time source for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}
