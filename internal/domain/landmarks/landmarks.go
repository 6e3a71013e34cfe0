// Package landmarks maps a face-mesh landmark set onto the eye and mouth
// point sequences consumed by the geometry package.
package landmarks

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/drowsywatch/internal/domain/geometry"
)

// FaceMeshSize is the number of landmarks the face mesh produces per face.
const FaceMeshSize = 468

// ErrIndexOutOfRange is returned when a table index is beyond the landmark set.
var ErrIndexOutOfRange = errors.New("landmark index out of range")

// Face-mesh indices for each region. The mouth table lists 317 twice; MAR
// reads positions 0..10 only.
var (
	LeftEyeIndices  = []int{33, 160, 158, 133, 153, 144}
	RightEyeIndices = []int{362, 385, 387, 263, 373, 380}
	MouthIndices    = []int{78, 308, 13, 14, 17, 82, 87, 317, 314, 402, 317, 324}
)

// Landmark is a normalized face-mesh point; X and Y are in [0,1] of the frame.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Set is the ordered landmark sequence for one face.
type Set []Landmark

// Regions holds the projected pixel points for each tracked region.
type Regions struct {
	LeftEye  []geometry.Point
	RightEye []geometry.Point
	Mouth    []geometry.Point
}

// Ratios returns the mean EAR of both eyes and the MAR of the mouth.
func (r Regions) Ratios() (ear, mar float64) {
	left := geometry.EyeAspectRatio(r.LeftEye)
	right := geometry.EyeAspectRatio(r.RightEye)
	return (left + right) / 2, geometry.MouthAspectRatio(r.Mouth)
}

// Project scales the landmarks at indices into pixel space, rounding each
// coordinate to the nearest whole pixel.
func Project(set Set, indices []int, width, height int) ([]geometry.Point, error) {
	out := make([]geometry.Point, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(set) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(set))
		}
		lm := set[idx]
		out[i] = geometry.Point{
			X: math.Round(lm.X * float64(width)),
			Y: math.Round(lm.Y * float64(height)),
		}
	}
	return out, nil
}

// Mapper projects the fixed region tables for a frame size.
type Mapper struct {
	leftEye  []int
	rightEye []int
	mouth    []int
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithIndices overrides the region tables. Empty tables keep the defaults.
func WithIndices(leftEye, rightEye, mouth []int) Option {
	return func(m *Mapper) {
		if len(leftEye) > 0 {
			m.leftEye = leftEye
		}
		if len(rightEye) > 0 {
			m.rightEye = rightEye
		}
		if len(mouth) > 0 {
			m.mouth = mouth
		}
	}
}

// NewMapper returns a Mapper using the face-mesh tables.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		leftEye:  LeftEyeIndices,
		rightEye: RightEyeIndices,
		mouth:    MouthIndices,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map projects every region of set into a width x height frame.
func (m *Mapper) Map(set Set, width, height int) (Regions, error) {
	var (
		r   Regions
		err error
	)
	if r.LeftEye, err = Project(set, m.leftEye, width, height); err != nil {
		return Regions{}, fmt.Errorf("left eye: %w", err)
	}
	if r.RightEye, err = Project(set, m.rightEye, width, height); err != nil {
		return Regions{}, fmt.Errorf("right eye: %w", err)
	}
	if r.Mouth, err = Project(set, m.mouth, width, height); err != nil {
		return Regions{}, fmt.Errorf("mouth: %w", err)
	}
	return r, nil
}
