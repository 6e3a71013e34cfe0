// Package camera captures frames from a local video device and renders the
// annotated preview window. It is the only package that links OpenCV.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/logger"
)

// Errors returned by the device.
var (
	ErrOpen       = errors.New("camera cannot be opened")
	ErrReadFailed = errors.New("camera read failed")
	ErrClosed     = errors.New("camera closed")
)

// Option configures a Device.
type Option func(*Device)

// WithSize resizes every captured frame to width x height. Zero keeps the
// native size.
func WithSize(width, height int) Option {
	return func(d *Device) {
		if width > 0 && height > 0 {
			d.size = image.Pt(width, height)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.log = l
		}
	}
}

// Device owns one capture device for its lifetime.
type Device struct {
	index int
	size  image.Point
	log   logger.Logger

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	raw    gocv.Mat
	frame  gocv.Mat // last frame after resize; the window draws on it
	seq    uint64
	closed bool
}

// Open acquires the capture device at index.
func Open(index int, opts ...Option) (*Device, error) {
	d := &Device{index: index}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("camera")
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %w", ErrOpen, index, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: index %d", ErrOpen, index)
	}
	d.cap = vc
	d.raw = gocv.NewMat()
	d.frame = gocv.NewMat()

	d.log.Info(context.Background(), "camera opened",
		logger.Int("index", index),
		logger.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		logger.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return d, nil
}

// Read grabs the next frame and encodes it as JPEG.
func (d *Device) Read(_ context.Context) (model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return model.Frame{}, ErrClosed
	}
	if ok := d.cap.Read(&d.raw); !ok || d.raw.Empty() {
		return model.Frame{}, ErrReadFailed
	}

	if d.size.X > 0 {
		gocv.Resize(d.raw, &d.frame, d.size, 0, 0, gocv.InterpolationLinear)
	} else {
		d.raw.CopyTo(&d.frame)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.frame)
	if err != nil {
		return model.Frame{}, fmt.Errorf("%w: encode: %w", ErrReadFailed, err)
	}
	defer buf.Close()

	d.seq++
	return model.Frame{
		Seq:      d.seq,
		Width:    d.frame.Cols(),
		Height:   d.frame.Rows(),
		Captured: time.Now(),
		JPEG:     append([]byte(nil), buf.GetBytes()...),
	}, nil
}

// Close releases the device. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.raw.Close()
	_ = d.frame.Close()
	err := d.cap.Close()
	d.log.Info(context.Background(), "camera released", logger.Int("index", d.index))
	return err
}
