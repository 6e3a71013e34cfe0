package camera

import (
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/okian/drowsywatch/internal/adapters/display"
	"github.com/okian/drowsywatch/internal/domain/model"
)

const dotRadius = 2

// Window previews the device's latest frame with the overlay drawn on it.
// gocv windows must be driven from the goroutine that created them.
type Window struct {
	dev *Device
	win *gocv.Window

	once sync.Once
}

// NewWindow opens a preview window titled title.
func NewWindow(title string, dev *Device) *Window {
	return &Window{dev: dev, win: gocv.NewWindow(title)}
}

// Show draws ov on the latest captured frame and polls the keyboard.
// It returns true when the user pressed q.
func (w *Window) Show(_ context.Context, _ model.Frame, ov model.Overlay) bool { //nolint:gocritic // hugeParam
	w.dev.mu.Lock()
	if w.dev.closed || w.dev.frame.Empty() {
		w.dev.mu.Unlock()
		return false
	}
	img := w.dev.frame.Clone()
	w.dev.mu.Unlock()
	defer func() { _ = img.Close() }()

	l := display.Plan(ov)
	for _, d := range l.Dots {
		gocv.Circle(&img, d.At, dotRadius, d.Color, -1)
	}
	for _, t := range l.Texts {
		gocv.PutText(&img, t.Body, t.At, gocv.FontHersheySimplex, 0.6, t.Color, 2)
	}

	w.win.IMShow(img)
	return w.win.WaitKey(1)&0xFF == 'q'
}

// Close destroys the window.
func (w *Window) Close() error {
	var err error
	w.once.Do(func() { err = w.win.Close() })
	return err
}
