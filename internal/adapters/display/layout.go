// Package display lays out the frame annotations and provides the headless
// display used when no preview window is wanted.
package display

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/okian/drowsywatch/internal/domain/geometry"
	"github.com/okian/drowsywatch/internal/domain/model"
)

// Overlay text shown while an alert condition holds.
const (
	DrowsyText = "Drowsiness sign detected - consider resting"
	AlertText  = "*** ALERT: Drowsiness detected ***"
)

// Annotation colors.
var (
	EyeColor   = color.RGBA{G: 255, A: 255}
	MouthColor = color.RGBA{B: 255, A: 255}
	AlertColor = color.RGBA{R: 255, A: 255}
	InfoColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Dot is a filled landmark marker.
type Dot struct {
	At    image.Point
	Color color.RGBA
}

// Text is a line of overlay text.
type Text struct {
	At    image.Point
	Body  string
	Color color.RGBA
}

// Layout is everything drawn on one frame.
type Layout struct {
	Dots  []Dot
	Texts []Text
}

// Plan computes the annotations for ov.
func Plan(ov model.Overlay) Layout {
	var l Layout
	l.Dots = appendDots(l.Dots, ov.LeftEye, EyeColor)
	l.Dots = appendDots(l.Dots, ov.RightEye, EyeColor)
	l.Dots = appendDots(l.Dots, ov.Mouth, MouthColor)

	if ov.Alert.MouthTriggered {
		l.Texts = append(l.Texts, Text{At: image.Pt(10, 60), Body: DrowsyText, Color: AlertColor})
	}
	if ov.Alert.EyesTriggered {
		l.Texts = append(l.Texts,
			Text{At: image.Pt(10, 30), Body: AlertText, Color: AlertColor},
			Text{At: image.Pt(10, 300), Body: AlertText, Color: AlertColor},
		)
	}
	l.Texts = append(l.Texts, Text{
		At:    image.Pt(10, 460),
		Body:  fmt.Sprintf("%s  EAR %.3f  MAR %.3f", ov.Alert.Status, ov.EAR, ov.MAR),
		Color: InfoColor,
	})
	return l
}

func appendDots(dst []Dot, pts []geometry.Point, c color.RGBA) []Dot {
	for _, p := range pts {
		dst = append(dst, Dot{At: image.Pt(int(p.X), int(p.Y)), Color: c})
	}
	return dst
}

// Nop is the headless display. It never asks to quit.
type Nop struct{}

// Show does nothing.
func (Nop) Show(context.Context, model.Frame, model.Overlay) bool { return false } //nolint:gocritic // hugeParam

// Close does nothing.
func (Nop) Close() error { return nil }
