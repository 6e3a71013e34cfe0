// Package alert implements the consecutive-frame debounce that turns per-frame
// EAR/MAR readings into an alert status.
//
// The step function is pure: callers own the State and feed it back on the
// next frame. Status is recomputed every frame and never latches.
package alert

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the alert level derived for one frame.
type Status int

const (
	Awake Status = iota
	Drowsy
	DeepSleep
)

var statusNames = [...]string{
	Awake:     "AWAKE",
	Drowsy:    "DROWSY",
	DeepSleep: "DEEP SLEEP",
}

// String returns the display label.
func (s Status) String() string {
	if s < Awake || s > DeepSleep {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus accepts the display labels case-insensitively; "DEEP_SLEEP" is
// also accepted.
func ParseStatus(v string) (Status, error) {
	norm := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(v)), "_", " ")
	for i, name := range statusNames {
		if name == norm {
			return Status(i), nil
		}
	}
	return Awake, fmt.Errorf("%w: %q", ErrUnknownStatus, v)
}

// MarshalText encodes the status as its display label.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a display label.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Errors returned by this package.
var (
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrUnknownStatus     = errors.New("unknown status")
)

// Thresholds configures the debounce.
type Thresholds struct {
	// EyeAR is the EAR below which eyes count as closed.
	EyeAR float64
	// MouthAR is the MAR above which the mouth counts as open.
	MouthAR float64
	// EyeFrames consecutive closed-eye frames raise DeepSleep.
	EyeFrames int
	// MouthFrames consecutive open-mouth frames raise Drowsy.
	MouthFrames int
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EyeAR:       0.25,
		MouthAR:     0.5,
		EyeFrames:   20,
		MouthFrames: 35,
	}
}

// Validate rejects non-positive ratios and frame counts.
func (t Thresholds) Validate() error {
	if t.EyeAR <= 0 || t.MouthAR <= 0 {
		return fmt.Errorf("%w: ratios must be positive", ErrInvalidThresholds)
	}
	if t.EyeFrames < 1 || t.MouthFrames < 1 {
		return fmt.Errorf("%w: frame counts must be at least 1", ErrInvalidThresholds)
	}
	return nil
}

// State carries the consecutive-frame counters between frames.
type State struct {
	ClosedEyes int `json:"closed_eyes"`
	MouthOpen  int `json:"mouth_open"`
}

// Decision is the outcome of one step.
type Decision struct {
	Status Status
	// MouthTriggered is set when the open-mouth run reached MouthFrames.
	MouthTriggered bool
	// EyesTriggered is set when the closed-eye run reached EyeFrames.
	EyesTriggered bool
}

// Triggered reports whether any condition tripped this frame.
func (d Decision) Triggered() bool {
	return d.MouthTriggered || d.EyesTriggered
}

// Step advances the counters with one frame's ratios. The mouth check runs
// first; a tripped eye check overrides its status.
func (t Thresholds) Step(s State, ear, mar float64) (State, Decision) {
	var d Decision

	if mar > t.MouthAR {
		s.MouthOpen++
	} else {
		s.MouthOpen = 0
	}
	if s.MouthOpen >= t.MouthFrames {
		d.Status = Drowsy
		d.MouthTriggered = true
	}

	if ear < t.EyeAR {
		s.ClosedEyes++
	} else {
		s.ClosedEyes = 0
	}
	if s.ClosedEyes >= t.EyeFrames {
		d.Status = DeepSleep
		d.EyesTriggered = true
	}

	return s, d
}
