package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/drowsywatch/internal/app"
	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/landmarks"
	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const (
	frameW = 1000
	frameH = 1000

	openEyes   = 0.015 // EAR 0.3
	closedEyes = 0.005 // EAR 0.1
	closedLips = 0.02  // MAR 0.2
	yawning    = 0.08  // MAR 0.8
)

// face builds a full mesh whose eye half-height and mouth half-opening are
// given in normalized units. On a 1000x1000 frame EAR = 20*eye and
// MAR = 10*mouth.
func face(eye, mouth float64) model.Face {
	set := make(landmarks.Set, landmarks.FaceMeshSize)
	put := func(idx int, x, y float64) { set[idx] = landmarks.Landmark{X: x, Y: y} }

	put(33, 0.30, 0.40)
	put(160, 0.33, 0.40-eye)
	put(158, 0.37, 0.40-eye)
	put(133, 0.40, 0.40)
	put(153, 0.37, 0.40+eye)
	put(144, 0.33, 0.40+eye)

	put(362, 0.60, 0.40)
	put(385, 0.63, 0.40-eye)
	put(387, 0.67, 0.40-eye)
	put(263, 0.70, 0.40)
	put(373, 0.67, 0.40+eye)
	put(380, 0.63, 0.40+eye)

	put(78, 0.40, 0.70)
	put(87, 0.60, 0.70)
	put(13, 0.50, 0.70-mouth)
	put(317, 0.50, 0.70+mouth)
	put(17, 0.45, 0.70-mouth)
	put(314, 0.45, 0.70+mouth)
	return set
}

func frame(seq uint64) model.Frame {
	return model.Frame{Seq: seq, Width: frameW, Height: frameH, Captured: time.Now()}
}

type fakeCamera struct {
	mu     sync.Mutex
	frames int
	fail   bool
	seq    uint64
	closed atomic.Int32
}

func (c *fakeCamera) Read(context.Context) (model.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || (c.frames > 0 && int(c.seq) >= c.frames) {
		return model.Frame{}, errors.New("no frame")
	}
	c.seq++
	return frame(c.seq), nil
}

func (c *fakeCamera) Close() error {
	c.closed.Add(1)
	return nil
}

type fakeDetector struct {
	initErr error
	faces   func(seq uint64) ([]model.Face, error)
	closed  atomic.Int32
}

func (d *fakeDetector) Init(context.Context, string) error { return d.initErr }

func (d *fakeDetector) Detect(_ context.Context, f model.Frame) ([]model.Face, error) { //nolint:gocritic // hugeParam
	if d.faces == nil {
		return nil, nil
	}
	return d.faces(f.Seq)
}

func (d *fakeDetector) Close() error {
	d.closed.Add(1)
	return nil
}

type fakeDisplay struct {
	quitAt uint64
	shown  atomic.Int32
	closed atomic.Int32
}

func (d *fakeDisplay) Show(_ context.Context, f model.Frame, _ model.Overlay) bool { //nolint:gocritic // hugeParam
	d.shown.Add(1)
	return d.quitAt > 0 && f.Seq >= d.quitAt
}

func (d *fakeDisplay) Close() error {
	d.closed.Add(1)
	return nil
}

type fakeAlerter struct {
	plays  atomic.Int32
	closed atomic.Int32
}

func (a *fakeAlerter) Play(context.Context) { a.plays.Add(1) }

func (a *fakeAlerter) Close() error {
	a.closed.Add(1)
	return nil
}

func processN(svc *service.Service, n int, f model.Face) (model.Overlay, model.Snapshot) {
	var (
		ov   model.Overlay
		snap model.Snapshot
	)
	for i := 1; i <= n; i++ {
		var err error
		ov, snap, err = svc.Process(context.Background(), frame(uint64(i)), []model.Face{f})
		So(err, ShouldBeNil)
	}
	return ov, snap
}

func TestService_ProcessDuringReset(t *testing.T) {
	Convey("Given a service without an explicit logger", t, func() {
		ctx := context.Background()
		svc := service.New()
		closed := face(closedEyes, closedLips)

		Convey("When frames are processed while the session is reset", func() {
			var (
				wg         sync.WaitGroup
				mismatched atomic.Int32
				failed     atomic.Int32
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 1; i <= 500; i++ {
					_, snap, err := svc.Process(ctx, frame(uint64(i)), []model.Face{closed})
					if err != nil {
						failed.Add(1)
						continue
					}
					// every frame closes the eyes, so the run length equals the session's frame count
					if snap.Latest.ClosedEyes != snap.Frames {
						mismatched.Add(1)
					}
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = svc.Reset(ctx)
				}
			}()
			wg.Wait()

			Convey("Then no frame should straddle two sessions", func() {
				So(failed.Load(), ShouldEqual, 0)
				So(mismatched.Load(), ShouldEqual, 0)
				snap := svc.Snapshot(ctx)
				So(snap.Latest.ClosedEyes, ShouldEqual, snap.Frames)
			})
		})
	})
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 256)
			th := stats["thresholds"].(map[string]interface{})
			So(th["eyeAR"], ShouldEqual, 0.25)
			So(th["mouthFrames"], ShouldEqual, 35)
		})
	})

	Convey("Given invalid thresholds", t, func() {
		svc := service.New(service.WithThresholds(alert.Thresholds{EyeAR: -1}))

		Convey("Then the defaults should be kept", func() {
			th := svc.GetStats()["thresholds"].(map[string]interface{})
			So(th["eyeFrames"], ShouldEqual, 20)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without a camera", t, func() {
		svc := service.New()

		Convey("When starting", func() {
			err := svc.Start(context.Background())

			Convey("Then ErrNoCamera should be returned", func() {
				So(errors.Is(err, service.ErrNoCamera), ShouldBeTrue)
			})
		})
	})

	Convey("Given a detector that cannot initialize", t, func() {
		det := &fakeDetector{initErr: errors.New("model missing")}
		svc := service.New(service.WithCamera(&fakeCamera{}), service.WithDetector(det))

		Convey("When starting", func() {
			err := svc.Start(context.Background())

			Convey("Then ErrDetectorInit should wrap the cause", func() {
				So(errors.Is(err, service.ErrDetectorInit), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "model missing")
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a service with a camera", t, func() {
		svc := service.New(service.WithCamera(&fakeCamera{}))
		defer svc.Stop()

		Convey("When starting twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})
		})
	})
}

func TestService_Process(t *testing.T) {
	Convey("Given a service with a recording alerter", t, func() {
		al := &fakeAlerter{}
		svc := service.New(service.WithAlerter(al))
		ctx := context.Background()

		Convey("When no face is found", func() {
			ov, snap, err := svc.Process(ctx, frame(1), nil)

			Convey("Then neutral ratios should be reported and the frame recorded", func() {
				So(err, ShouldBeNil)
				So(snap.Latest.FaceFound, ShouldBeFalse)
				So(snap.Latest.EAR, ShouldEqual, 1.0)
				So(snap.Latest.MAR, ShouldEqual, 0.0)
				So(snap.Latest.Status, ShouldEqual, alert.Awake)
				So(snap.Frames, ShouldEqual, 1)
				So(ov.LeftEye, ShouldBeEmpty)
				So(svc.GetStats()["facesMissing"], ShouldEqual, int64(1))
			})
		})

		Convey("When the eyes are open", func() {
			ov, snap := processN(svc, 1, face(openEyes, closedLips))

			Convey("Then the ratios should come from the landmarks", func() {
				So(snap.Latest.EAR, ShouldAlmostEqual, 0.3, 1e-9)
				So(snap.Latest.MAR, ShouldAlmostEqual, 0.2, 1e-9)
				So(ov.LeftEye, ShouldHaveLength, 6)
				So(ov.Mouth, ShouldHaveLength, 12)
				So(ov.Alert.Status, ShouldEqual, alert.Awake)
			})
		})

		Convey("When the eyes stay closed for the eye threshold", func() {
			ov, snap := processN(svc, 20, face(closedEyes, closedLips))

			Convey("Then DEEP SLEEP should be raised with audio and a penalty", func() {
				So(ov.Alert.Status, ShouldEqual, alert.DeepSleep)
				So(ov.Alert.EyesTriggered, ShouldBeTrue)
				So(al.plays.Load(), ShouldEqual, 1)
				So(snap.Vigilance, ShouldEqual, 80)
				So(snap.Latest.ClosedEyes, ShouldEqual, 20)
			})

			Convey("And another closed frame should alert again", func() {
				_, snap, err := svc.Process(ctx, frame(21), []model.Face{face(closedEyes, closedLips)})
				So(err, ShouldBeNil)
				So(al.plays.Load(), ShouldEqual, 2)
				So(snap.Vigilance, ShouldEqual, 60)
			})
		})

		Convey("When the mouth stays open for the mouth threshold", func() {
			ov, snap := processN(svc, 35, face(openEyes, yawning))

			Convey("Then DROWSY should be raised without audio", func() {
				So(ov.Alert.Status, ShouldEqual, alert.Drowsy)
				So(ov.Alert.MouthTriggered, ShouldBeTrue)
				So(al.plays.Load(), ShouldEqual, 0)
				So(snap.Vigilance, ShouldEqual, 90)
				So(snap.Events, ShouldEqual, 1)
			})
		})

		Convey("When a frame has no face mid-run", func() {
			processN(svc, 10, face(closedEyes, closedLips))
			_, snap, err := svc.Process(ctx, frame(11), nil)

			Convey("Then the counters should be left as they were", func() {
				So(err, ShouldBeNil)
				So(snap.Latest.ClosedEyes, ShouldEqual, 10)
				So(snap.Latest.Status, ShouldEqual, alert.Awake)
			})
		})

		Convey("When the landmark set is too short", func() {
			_, _, err := svc.Process(ctx, frame(1), []model.Face{make(landmarks.Set, 10)})

			Convey("Then the frame should be skipped", func() {
				So(errors.Is(err, landmarks.ErrIndexOutOfRange), ShouldBeTrue)
				So(svc.Snapshot(ctx).Frames, ShouldEqual, 0)
				So(svc.GetStats()["framesSkipped"], ShouldEqual, int64(1))
			})
		})

		Convey("When the session is reset mid-run", func() {
			processN(svc, 15, face(closedEyes, closedLips))
			before := svc.Snapshot(ctx)
			after := svc.Reset(ctx)

			Convey("Then counters and session should start over", func() {
				So(after.SessionID, ShouldNotEqual, before.SessionID)
				So(svc.GetStats()["closedEyes"], ShouldEqual, 0)
				_, snap := processN(svc, 1, face(closedEyes, closedLips))
				So(snap.Latest.ClosedEyes, ShouldEqual, 1)
				So(snap.Frames, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithCamera(&fakeCamera{}))

		Convey("Then Run should refuse", func() {
			So(errors.Is(svc.Run(context.Background()), service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a camera that stops delivering frames", t, func() {
		cam := &fakeCamera{frames: 5}
		disp := &fakeDisplay{}
		svc := service.New(
			service.WithCamera(cam),
			service.WithDisplay(disp),
			service.WithReadBackoff(time.Millisecond),
			service.WithMaxReadFailures(3),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When running", func() {
			err := svc.Run(context.Background())

			Convey("Then the loop should end with ErrCameraLost", func() {
				So(errors.Is(err, service.ErrCameraLost), ShouldBeTrue)
				So(disp.shown.Load(), ShouldEqual, 5)
				stats := svc.GetStats()
				So(stats["framesProcessed"], ShouldEqual, int64(5))
				So(stats["readFailures"], ShouldEqual, int64(3))
			})

			Convey("And the latest frame should be kept", func() {
				f, ok := svc.LatestFrame()
				So(ok, ShouldBeTrue)
				So(f.Seq, ShouldEqual, 5)
			})
		})
	})

	Convey("Given a display that asks to quit", t, func() {
		disp := &fakeDisplay{quitAt: 3}
		svc := service.New(service.WithCamera(&fakeCamera{}), service.WithDisplay(disp))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When running", func() {
			err := svc.Run(context.Background())

			Convey("Then the loop should end cleanly on that frame", func() {
				So(err, ShouldBeNil)
				So(disp.shown.Load(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a detector failing on one frame", t, func() {
		det := &fakeDetector{faces: func(seq uint64) ([]model.Face, error) {
			if seq == 2 {
				return nil, errors.New("boom")
			}
			return []model.Face{face(openEyes, closedLips)}, nil
		}}
		svc := service.New(
			service.WithCamera(&fakeCamera{frames: 4}),
			service.WithDetector(det),
			service.WithMaxReadFailures(1),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When running", func() {
			err := svc.Run(context.Background())

			Convey("Then the frame should be skipped and the loop continue", func() {
				So(errors.Is(err, service.ErrCameraLost), ShouldBeTrue)
				stats := svc.GetStats()
				So(stats["framesProcessed"], ShouldEqual, int64(3))
				So(stats["detectorErrors"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given a cancelled context", t, func() {
		svc := service.New(service.WithCamera(&fakeCamera{fail: true}))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then Run should return without error", func() {
			So(svc.Run(ctx), ShouldBeNil)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		cam := &fakeCamera{}
		det := &fakeDetector{}
		disp := &fakeDisplay{}
		al := &fakeAlerter{}
		svc := service.New(
			service.WithCamera(cam),
			service.WithDetector(det),
			service.WithDisplay(disp),
			service.WithAlerter(al),
		)
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When stopping more than once", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then every collaborator should be closed exactly once", func() {
				So(cam.closed.Load(), ShouldEqual, 1)
				So(det.closed.Load(), ShouldEqual, 1)
				So(disp.closed.Load(), ShouldEqual, 1)
				So(al.closed.Load(), ShouldEqual, 1)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}
