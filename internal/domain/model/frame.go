// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/geometry"
	"github.com/okian/drowsywatch/internal/domain/landmarks"
)

// Frame is one captured video frame.
type Frame struct {
	Seq      uint64    // monotonically increasing per camera
	Width    int       // pixel width after any resize
	Height   int       // pixel height after any resize
	Captured time.Time // capture timestamp
	JPEG     []byte    // RGB frame encoded for the detector and /frame.jpg
}

// Face is the landmark set of one detected face.
type Face = landmarks.Set

// Reading is the per-frame signal computed from a frame.
type Reading struct {
	Seq        uint64       `json:"seq"`
	Time       time.Time    `json:"time"`
	FaceFound  bool         `json:"face_found"`
	EAR        float64      `json:"ear"`
	MAR        float64      `json:"mar"`
	Status     alert.Status `json:"status"`
	ClosedEyes int          `json:"closed_eyes"`
	MouthOpen  int          `json:"mouth_open"`
}

// Overlay describes what the display draws on top of a frame.
type Overlay struct {
	Alert    alert.Decision
	LeftEye  []geometry.Point
	RightEye []geometry.Point
	Mouth    []geometry.Point
	EAR      float64
	MAR      float64
}
