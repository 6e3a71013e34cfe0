// Package geometry computes the eye and mouth aspect ratios used to detect
// closed eyes and yawns from facial landmark points.
package geometry

import "math"

// Minimum point counts required by the ratio formulas.
const (
	EyePointCount  = 6
	MouthMinPoints = 11
)

// Point is a 2-D pixel-space coordinate.
type Point struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio returns the ratio of eye opening height to width for six
// ordered eye points: (|p1-p5| + |p2-p4|) / (2 |p0-p3|).
// Short input or coincident corner points yield 0.
func EyeAspectRatio(points []Point) float64 {
	if len(points) < EyePointCount {
		return 0
	}
	return ratio(
		Distance(points[1], points[5])+Distance(points[2], points[4]),
		Distance(points[0], points[3]),
	)
}

// MouthAspectRatio returns the ratio of mouth opening height to width:
// (|p2-p10| + |p4-p8|) / (2 |p0-p6|). Short input or coincident corner points
// yield 0.
func MouthAspectRatio(points []Point) float64 {
	if len(points) < MouthMinPoints {
		return 0
	}
	return ratio(
		Distance(points[2], points[10])+Distance(points[4], points[8]),
		Distance(points[0], points[6]),
	)
}

func ratio(vertical, horizontal float64) float64 {
	if horizontal == 0 {
		return 0
	}
	return vertical / (2 * horizontal)
}
