package stub_test

import (
	"context"
	"testing"

	"github.com/okian/drowsywatch/internal/adapters/detector/stub"
	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDetector(t *testing.T) {
	convey.Convey("Given the stub detector", t, func() {
		var d stub.Detector
		ctx := context.Background()

		convey.Convey("Then every call should succeed without faces", func() {
			convey.So(d.Init(ctx, "ignored"), convey.ShouldBeNil)
			faces, err := d.Detect(ctx, model.Frame{Width: 640, Height: 480})
			convey.So(err, convey.ShouldBeNil)
			convey.So(faces, convey.ShouldBeEmpty)
			convey.So(d.Close(), convey.ShouldBeNil)
		})
	})
}
