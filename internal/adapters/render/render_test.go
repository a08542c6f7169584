package render

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
)

func init() {
	_ = logger.InitWithWriter(io.Discard)
}

type frameRecorder struct {
	frames []Frame
}

func (r *frameRecorder) HandleFrame(_ context.Context, f Frame) error {
	r.frames = append(r.frames, f)
	return nil
}

type fixedSet []model.Point

func (s fixedSet) Snapshot(context.Context) []model.Point { return s }

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
)

func result(events ...model.Event) model.PacketResult {
	return model.PacketResult{Events: events, Verdicts: make([]bool, len(events))}
}

func TestAccumulatorFrames(t *testing.T) {
	Convey("Given an accumulator with a 100us interval", t, func() {
		ctx := context.Background()
		rec := &frameRecorder{}
		a := NewAccumulator(10, 8, WithInterval(100), WithHandlers(rec))

		Convey("Events within one interval stay in a single frame", func() {
			So(a.HandlePacket(ctx, result(
				model.Event{X: 1, Y: 1, T: 0, On: true},
				model.Event{X: 2, Y: 1, T: 50, On: false},
				model.Event{X: 3, Y: 1, T: 100, On: true},
			)), ShouldBeNil)
			So(rec.frames, ShouldBeEmpty)

			Convey("And Flush emits it with both polarity colours", func() {
				So(a.Flush(ctx), ShouldBeNil)
				So(rec.frames, ShouldHaveLength, 1)
				img := rec.frames[0].Image
				So(img.RGBAAt(1, 1), ShouldResemble, red)
				So(img.RGBAAt(2, 1), ShouldResemble, green)
				So(img.RGBAAt(3, 1), ShouldResemble, red)
				So(img.RGBAAt(0, 0), ShouldResemble, black)

				So(a.Flush(ctx), ShouldBeNil)
				So(rec.frames, ShouldHaveLength, 1)
			})
		})

		Convey("An event past the interval closes the frame", func() {
			So(a.HandlePacket(ctx, result(
				model.Event{X: 1, Y: 1, T: 10, On: true},
				model.Event{X: 2, Y: 2, T: 111, On: true},
			)), ShouldBeNil)

			So(rec.frames, ShouldHaveLength, 1)
			f := rec.frames[0]
			So(f.Seq, ShouldEqual, 0)
			So(f.Start, ShouldEqual, 10)
			So(f.End, ShouldEqual, 111)
			So(f.Image.RGBAAt(1, 1), ShouldResemble, red)
			So(f.Image.RGBAAt(2, 2), ShouldResemble, black)

			So(a.Flush(ctx), ShouldBeNil)
			So(rec.frames, ShouldHaveLength, 2)
			So(rec.frames[1].Seq, ShouldEqual, 1)
			So(rec.frames[1].Image.RGBAAt(2, 2), ShouldResemble, red)
		})

		Convey("Features detected in the frame are marked with a cross", func() {
			r := result(model.Event{X: 5, Y: 4, T: 0, On: false})
			r.Verdicts[0] = true
			So(a.HandlePacket(ctx, r), ShouldBeNil)
			So(a.Flush(ctx), ShouldBeNil)

			img := rec.frames[0].Image
			for _, p := range [][2]int{{3, 4}, {4, 4}, {5, 4}, {6, 4}, {7, 4}, {5, 2}, {5, 3}, {5, 5}, {5, 6}} {
				So(img.RGBAAt(p[0], p[1]), ShouldResemble, white)
			}
			So(img.RGBAAt(4, 3), ShouldResemble, black)
		})
	})
}

func TestAccumulatorActiveSet(t *testing.T) {
	Convey("Given an accumulator marking the active set", t, func() {
		ctx := context.Background()
		rec := &frameRecorder{}
		a := NewAccumulator(6, 6,
			WithInterval(10),
			WithMarkRadius(1),
			WithActiveSet(fixedSet{{X: 0, Y: 0}, {X: 5, Y: 5}}),
			WithHandlers(rec),
		)

		So(a.HandlePacket(ctx, result(model.Event{X: 3, Y: 3, T: 1, On: true})), ShouldBeNil)
		So(a.Flush(ctx), ShouldBeNil)

		Convey("Crosses near the edge are clipped", func() {
			img := rec.frames[0].Image
			So(img.RGBAAt(0, 0), ShouldResemble, white)
			So(img.RGBAAt(1, 0), ShouldResemble, white)
			So(img.RGBAAt(0, 1), ShouldResemble, white)
			So(img.RGBAAt(5, 5), ShouldResemble, white)
			So(img.RGBAAt(4, 5), ShouldResemble, white)
			So(img.RGBAAt(3, 3), ShouldResemble, red)
		})
	})
}

func TestAccumulatorHandlerError(t *testing.T) {
	Convey("A failing handler does not stop the others", t, func() {
		ctx := context.Background()
		rec := &frameRecorder{}
		failing := FrameHandlerFunc(func(context.Context, Frame) error { return errors.New("boom") })
		a := NewAccumulator(4, 4, WithHandlers(failing, rec))

		So(a.HandlePacket(ctx, result(model.Event{X: 1, Y: 1, T: 0, On: true})), ShouldBeNil)
		So(a.Flush(ctx), ShouldNotBeNil)
		So(rec.frames, ShouldHaveLength, 1)
	})
}

func TestDirWriter(t *testing.T) {
	Convey("Given a frame directory", t, func() {
		dir := filepath.Join(t.TempDir(), "frames")
		w, err := NewDirWriter(dir)
		So(err, ShouldBeNil)

		a := NewAccumulator(4, 3, WithHandlers(w))
		ctx := context.Background()
		So(a.HandlePacket(ctx, result(model.Event{X: 2, Y: 1, T: 0, On: true})), ShouldBeNil)
		So(a.Flush(ctx), ShouldBeNil)

		Convey("Frames are written as decodable PNG files", func() {
			data, err := os.ReadFile(filepath.Join(dir, "frame_000000.png"))
			So(err, ShouldBeNil)

			img, err := png.Decode(bytes.NewReader(data))
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 4)
			So(img.Bounds().Dy(), ShouldEqual, 3)
			r, g, _, _ := img.At(2, 1).RGBA()
			So(r, ShouldEqual, 0xffff)
			So(g, ShouldEqual, 0)
		})
	})
}
