package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/landmarks"
	"github.com/okian/drowsywatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(&bytes.Buffer{}))
}

func ratios(n int, ear, mar float64) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "{\"ear\":%g,\"mar\":%g}\n", ear, mar)
	}
	return b.String()
}

// faceLine encodes a mesh whose EAR is 20*eye and MAR is 10*mouth on a
// 1000x1000 frame.
func faceLine(eye, mouth float64) string {
	points := make([][]float64, landmarks.FaceMeshSize)
	for i := range points {
		points[i] = []float64{0, 0}
	}
	put := func(idx int, x, y float64) { points[idx] = []float64{x, y} }
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

	data, _ := json.Marshal(Record{Width: 1000, Height: 1000, Landmarks: points})
	return string(data) + "\n"
}

func run(input string, quiet bool) (Stats, string, error) {
	var out bytes.Buffer
	cfg := &Config{Thresholds: alert.DefaultThresholds(), Quiet: quiet}
	stats, err := Run(context.Background(), cfg, strings.NewReader(input), &out)
	return stats, out.String(), err
}

func TestRunRatios(t *testing.T) {
	Convey("Given twenty frames of closed eyes after an open one", t, func() {
		input := ratios(1, 0.3, 0.2) + ratios(20, 0.1, 0.2)

		Convey("When replayed", func() {
			stats, out, err := run(input, false)

			Convey("Then the last frame should trip the eyes", func() {
				So(err, ShouldBeNil)
				So(stats.Frames, ShouldEqual, 21)
				So(stats.EyeTrips, ShouldEqual, 1)
				So(stats.DeepFrames, ShouldEqual, 1)
				So(stats.AwakeFrames, ShouldEqual, 20)
				So(stats.Vigilance, ShouldEqual, 80)
			})

			Convey("And one line per frame should be printed", func() {
				lines := strings.Split(strings.TrimSpace(out), "\n")
				So(lines, ShouldHaveLength, 21)
				So(lines[0], ShouldEqual, `frame=1 ear=0.300 mar=0.200 status="AWAKE" closed=0 open=0 vigilance=100`)
				So(lines[20], ShouldEqual, `frame=21 ear=0.100 mar=0.200 status="DEEP SLEEP" closed=20 open=0 vigilance=80`)
			})
		})
	})

	Convey("Given a long yawn", t, func() {
		stats, _, err := run(ratios(36, 0.3, 0.8), true)

		Convey("Then the last two frames should be drowsy", func() {
			So(err, ShouldBeNil)
			So(stats.MouthTrips, ShouldEqual, 2)
			So(stats.DrowsyFrames, ShouldEqual, 2)
			So(stats.Vigilance, ShouldEqual, 80)
		})
	})

	Convey("Given quiet mode", t, func() {
		_, out, err := run(ratios(5, 0.3, 0.2), true)

		Convey("Then nothing should be printed", func() {
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}

func TestRunLandmarks(t *testing.T) {
	Convey("Given landmark records", t, func() {
		input := faceLine(0.015, 0.02) + faceLine(0.005, 0.02)

		Convey("When replayed", func() {
			stats, out, err := run(input, false)

			Convey("Then ratios should be derived from the mesh", func() {
				So(err, ShouldBeNil)
				So(stats.Frames, ShouldEqual, 2)
				So(stats.NoFace, ShouldEqual, 0)
				So(out, ShouldContainSubstring, "frame=1 ear=0.300 mar=0.200")
				So(out, ShouldContainSubstring, "frame=2 ear=0.100 mar=0.200")
				So(out, ShouldContainSubstring, "closed=1")
			})
		})
	})

	Convey("Given an empty landmark list between closed-eye frames", t, func() {
		input := ratios(2, 0.1, 0.2) + `{"width":640,"height":480,"landmarks":[]}` + "\n" + ratios(1, 0.1, 0.2)

		Convey("When replayed", func() {
			stats, out, err := run(input, false)

			Convey("Then the faceless frame should be awake and keep the counters", func() {
				So(err, ShouldBeNil)
				So(stats.Frames, ShouldEqual, 4)
				So(stats.NoFace, ShouldEqual, 1)
				So(out, ShouldContainSubstring, `frame=3 ear=1.000 mar=0.000 status="AWAKE" closed=2`)
				So(out, ShouldContainSubstring, "frame=4 ear=0.100 mar=0.200 status=\"AWAKE\" closed=3")
			})
		})
	})
}

func TestRunBadInput(t *testing.T) {
	Convey("Given input with comments, blanks and broken lines", t, func() {
		input := strings.Join([]string{
			"# recorded session",
			"",
			`{"ear":0.3,"mar":0.2}`,
			`not json`,
			`{"ear":0.3}`,
			`{}`,
			`{"landmarks":[[0.1,0.2]]}`,
			`{"width":10,"height":10,"landmarks":[[0.1,0.2]]}`,
			`{"width":10,"height":10,"landmarks":[[0.1]]}`,
			`{"ear":0.3,"mar":0.2}`,
		}, "\n")

		Convey("When replayed", func() {
			stats, _, err := run(input, true)

			Convey("Then only valid records should count", func() {
				So(err, ShouldBeNil)
				So(stats.Frames, ShouldEqual, 2)
				So(stats.Skipped, ShouldEqual, 6)
			})
		})
	})

	Convey("Given invalid thresholds", t, func() {
		cfg := &Config{Thresholds: alert.Thresholds{EyeAR: 0.25, MouthAR: 0.5}}
		_, err := Run(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})

		Convey("Then the run should be refused", func() {
			So(errors.Is(err, alert.ErrInvalidThresholds), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := &Config{Thresholds: alert.DefaultThresholds()}
		_, err := Run(ctx, cfg, strings.NewReader(ratios(3, 0.3, 0.2)), &bytes.Buffer{})

		Convey("Then the run should stop", func() {
			So(err, ShouldEqual, context.Canceled)
		})
	})
}

func TestGenerate(t *testing.T) {
	Convey("Given a seed", t, func() {
		var a, b, c bytes.Buffer
		So(Generate(&a, 2000, 7), ShouldBeNil)
		So(Generate(&b, 2000, 7), ShouldBeNil)
		So(Generate(&c, 2000, 8), ShouldBeNil)

		Convey("Then output should be deterministic per seed", func() {
			So(a.String(), ShouldEqual, b.String())
			So(a.String(), ShouldNotEqual, c.String())
		})

		Convey("And every line should be a ratio record", func() {
			sc := bufio.NewScanner(bytes.NewReader(a.Bytes()))
			n := 0
			for sc.Scan() {
				var rec Record
				So(json.Unmarshal(sc.Bytes(), &rec), ShouldBeNil)
				So(rec.EAR, ShouldNotBeNil)
				So(rec.MAR, ShouldNotBeNil)
				n++
			}
			So(n, ShouldEqual, 2000)
		})

		Convey("And the output should replay cleanly", func() {
			stats, _, err := run(a.String(), true)
			So(err, ShouldBeNil)
			So(stats.Frames, ShouldEqual, 2000)
			So(stats.Skipped, ShouldEqual, 0)
		})
	})
}
