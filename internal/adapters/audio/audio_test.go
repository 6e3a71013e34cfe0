package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/drowsywatch/internal/adapters/audio"
	"github.com/okian/drowsywatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPlayer(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}

	Convey("Given a sound file", t, func() {
		ctx := context.Background()
		sound := filepath.Join(t.TempDir(), "music.wav")
		So(os.WriteFile(sound, []byte("RIFF"), 0o600), ShouldBeNil)

		Convey("When the file is missing", func() {
			_, err := audio.NewPlayer(filepath.Join(t.TempDir(), "nope.wav"), audio.WithCommand("true"))

			Convey("Then ErrSoundMissing should be returned", func() {
				So(errors.Is(err, audio.ErrSoundMissing), ShouldBeTrue)
			})
		})

		Convey("When the player binary does not exist", func() {
			_, err := audio.NewPlayer(sound, audio.WithCommand("definitely-not-a-player-binary"))

			Convey("Then construction should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When playing with a slow player", func() {
			p, err := audio.NewPlayer(sound, audio.WithCommand("sh", "-c", "sleep 0.3"))
			So(err, ShouldBeNil)

			p.Play(ctx)
			p.Play(ctx)
			p.Play(ctx)

			Convey("Then overlapping calls should coalesce into one playback", func() {
				So(p.Plays(), ShouldEqual, 1)
				So(p.Close(), ShouldBeNil)
			})

			Convey("Then a call after the playback ends should start a new one", func() {
				So(p.Close(), ShouldBeNil)
				p.Play(ctx)
				So(p.Plays(), ShouldEqual, 2)
				So(p.Close(), ShouldBeNil)
			})
		})

		Convey("When the player exits with an error", func() {
			p, err := audio.NewPlayer(sound, audio.WithCommand("false"))
			So(err, ShouldBeNil)

			Convey("Then Play should swallow the failure", func() {
				So(func() { p.Play(ctx) }, ShouldNotPanic)
				So(p.Close(), ShouldBeNil)
				deadline := time.Now().Add(time.Second)
				for p.Plays() == 0 && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				So(p.Plays(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given the no-op alerter", t, func() {
		var n audio.Nop

		Convey("Then it should do nothing", func() {
			So(func() { n.Play(context.Background()) }, ShouldNotPanic)
			So(n.Close(), ShouldBeNil)
		})
	})
}
