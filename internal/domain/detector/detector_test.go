package detector_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/efast/internal/domain/detector"
	"github.com/okian/efast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	sensorHeight = 260
	sensorWidth  = 346
)

var (
	ring3 = [][2]int{
		{0, 3}, {1, 3}, {2, 2}, {3, 1}, {3, 0}, {3, -1}, {2, -2}, {1, -3},
		{0, -3}, {-1, -3}, {-2, -2}, {-3, -1}, {-3, 0}, {-3, 1}, {-2, 2}, {-1, 3},
	}
	ring4 = [][2]int{
		{0, 4}, {1, 4}, {2, 3}, {3, 2}, {4, 1}, {4, 0}, {4, -1}, {3, -2}, {2, -3}, {1, -4},
		{0, -4}, {-1, -4}, {-2, -3}, {-3, -2}, {-4, -1}, {-4, 0}, {-4, 1}, {-3, 2}, {-2, 3}, {-1, 4},
	}
)

func mustNew(height, width int) *detector.Detector {
	d, err := detector.New(height, width)
	if err != nil {
		panic(err)
	}
	return d
}

// setArc writes t at ring[start..start+length-1] around (x, y).
func setArc(d *detector.Detector, pol int, ring [][2]int, x, y, start, length int, t int64) {
	for j := 0; j < length; j++ {
		o := ring[(start+j)%len(ring)]
		d.SAE().Update(pol, x+o[0], y+o[1], t)
	}
}

func TestNew(t *testing.T) {
	Convey("Given sensor dimensions", t, func() {
		Convey("When they are positive", func() {
			d, err := detector.New(sensorHeight, sensorWidth)

			Convey("Then the detector is created with zeroed grids", func() {
				So(err, ShouldBeNil)
				So(d.Height(), ShouldEqual, sensorHeight)
				So(d.Width(), ShouldEqual, sensorWidth)
				So(d.SAE().Read(model.PolarityOn, 10, 10), ShouldEqual, 0.0)
				So(d.SAE().Read(model.PolarityOff, 345, 259), ShouldEqual, 0.0)
			})
		})

		Convey("When either dimension is zero or negative", func() {
			for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 10}, {10, -5}} {
				d, err := detector.New(dims[0], dims[1])
				So(d, ShouldBeNil)
				So(errors.Is(err, detector.ErrInvalidDimensions), ShouldBeTrue)
			}
		})
	})
}

func TestSAEMonotonicity(t *testing.T) {
	Convey("Given a stream of events at one pixel with non-decreasing timestamps", t, func() {
		d := mustNew(sensorHeight, sensorWidth)
		ts := []int64{0, 5, 5, 17, 1000, 1000, 99999}

		Convey("Then the stored timestamp never decreases", func() {
			prev := d.SAE().Read(model.PolarityOn, 50, 60)
			for _, tt := range ts {
				d.Classify(model.Event{X: 50, Y: 60, T: tt, On: true}, 1)
				cur := d.SAE().Read(model.PolarityOn, 50, 60)
				So(cur, ShouldBeGreaterThanOrEqualTo, prev)
				So(cur, ShouldEqual, float64(tt))
				prev = cur
			}
		})

		Convey("Then the other polarity grid is untouched", func() {
			for _, tt := range ts {
				d.Classify(model.Event{X: 50, Y: 60, T: tt, On: true}, 1)
			}
			So(d.SAE().Read(model.PolarityOff, 50, 60), ShouldEqual, 0.0)
		})
	})
}

func TestBorderGuard(t *testing.T) {
	Convey("Given a 260x346 detector and max scale 1", t, func() {
		d := mustNew(sensorHeight, sensorWidth)

		Convey("When an event lies inside the margin", func() {
			Convey("Then it is rejected as border regardless of SAE content", func() {
				setArc(d, model.PolarityOn, ring3, 3, 130, 0, 4, 100)
				So(d.Classify(model.Event{X: 3, Y: 130, T: 200, On: true}, 1), ShouldEqual, detector.OutcomeBorder)
				So(d.IsBorder(0, 130, 1), ShouldBeTrue)
				So(d.IsBorder(342, 130, 1), ShouldBeTrue)
				So(d.IsBorder(100, 3, 1), ShouldBeTrue)
				So(d.IsBorder(100, 256, 1), ShouldBeTrue)
			})
		})

		Convey("When an event lies exactly on the margin", func() {
			Convey("Then it proceeds to the streak tests", func() {
				So(d.IsBorder(4, 130, 1), ShouldBeFalse)
				So(d.IsBorder(341, 255, 1), ShouldBeFalse)
				So(d.Classify(model.Event{X: 4, Y: 130, T: 200, On: true}, 1), ShouldNotEqual, detector.OutcomeBorder)
			})
		})

		Convey("When the max scale grows", func() {
			Convey("Then the margin grows with it", func() {
				So(d.IsBorder(7, 130, 2), ShouldBeTrue)
				So(d.IsBorder(8, 130, 2), ShouldBeFalse)
			})
		})

		Convey("When the max scale is not positive", func() {
			Convey("Then the minimum margin still applies", func() {
				So(d.IsBorder(3, 130, 0), ShouldBeTrue)
				So(d.IsBorder(4, 130, -2), ShouldBeFalse)
			})
		})
	})
}

func TestIsFeature(t *testing.T) {
	Convey("Given a fresh detector", t, func() {
		d := mustNew(sensorHeight, sensorWidth)
		x, y := 100, 120

		Convey("When every cell holds the same timestamp", func() {
			for yy := 0; yy < sensorHeight; yy++ {
				for xx := 0; xx < sensorWidth; xx++ {
					d.SAE().Update(model.PolarityOn, xx, yy, 50)
				}
			}
			out := d.Classify(model.Event{X: uint16(x), Y: uint16(y), T: 50, On: true}, 1)

			Convey("Then the event is not a feature", func() {
				So(out, ShouldEqual, detector.OutcomeNoStage3)
			})
		})

		Convey("When both rings hold a dominant arc", func() {
			setArc(d, model.PolarityOn, ring3, x, y, 0, 4, 100)
			setArc(d, model.PolarityOn, ring4, x, y, 0, 5, 100)
			e := model.Event{X: uint16(x), Y: uint16(y), T: 200, On: true}

			Convey("Then the event is a feature", func() {
				So(d.Classify(e, 1), ShouldEqual, detector.OutcomeFeature)
				So(d.IsFeature(e, 1), ShouldBeTrue)
			})
		})

		Convey("When only the radius-3 ring holds a dominant arc", func() {
			setArc(d, model.PolarityOn, ring3, x, y, 0, 4, 100)
			e := model.Event{X: uint16(x), Y: uint16(y), T: 200, On: true}

			Convey("Then the confirmation stage rejects it", func() {
				So(d.Classify(e, 1), ShouldEqual, detector.OutcomeNoStage4)
				So(d.IsFeature(e, 1), ShouldBeFalse)
			})
		})

		Convey("When only the radius-4 ring holds a dominant arc", func() {
			setArc(d, model.PolarityOn, ring4, x, y, 3, 6, 100)
			e := model.Event{X: uint16(x), Y: uint16(y), T: 200, On: true}

			Convey("Then the candidate stage rejects it", func() {
				So(d.Classify(e, 1), ShouldEqual, detector.OutcomeNoStage3)
			})
		})

		Convey("When the arcs exist on the opposite polarity", func() {
			setArc(d, model.PolarityOn, ring3, x, y, 0, 4, 100)
			setArc(d, model.PolarityOn, ring4, x, y, 0, 5, 100)
			e := model.Event{X: uint16(x), Y: uint16(y), T: 200, On: false}

			Convey("Then the event is tested against its own polarity and rejected", func() {
				So(d.IsFeature(e, 1), ShouldBeFalse)
			})
		})
	})
}

func TestDeterminism(t *testing.T) {
	Convey("Given a fixed pseudo-random event sequence", t, func() {
		const height, width = 60, 80
		rng := rand.New(rand.NewSource(7))
		events := make([]model.Event, 20000)
		var ts int64
		for i := range events {
			ts += int64(rng.Intn(3))
			events[i] = model.Event{
				X:  uint16(rng.Intn(width)),
				Y:  uint16(rng.Intn(height)),
				T:  ts,
				On: rng.Intn(2) == 1,
			}
		}

		run := func() []detector.Outcome {
			d := mustNew(height, width)
			out := make([]detector.Outcome, len(events))
			for i, e := range events {
				out[i] = d.Classify(e, 1)
			}
			return out
		}

		Convey("Then two fresh detectors agree on every event", func() {
			So(run(), ShouldResemble, run())
		})
	})
}

func TestNoOutOfBoundsAccess(t *testing.T) {
	Convey("Given a small sensor with random SAE content", t, func() {
		const height, width = 17, 23
		rng := rand.New(rand.NewSource(11))

		for _, scale := range []int{1, 2, 3} {
			d := mustNew(height, width)
			for yy := 0; yy < height; yy++ {
				for xx := 0; xx < width; xx++ {
					d.SAE().Update(model.PolarityOff, xx, yy, int64(rng.Intn(1000)))
				}
			}

			Convey("Then classifying every pixel never panics at scale "+string(rune('0'+scale)), func() {
				So(func() {
					for yy := 0; yy < height; yy++ {
						for xx := 0; xx < width; xx++ {
							d.Classify(model.Event{X: uint16(xx), Y: uint16(yy), T: 1000}, scale)
						}
					}
				}, ShouldNotPanic)
			})
		}
	})

	Convey("Given a sensor smaller than twice the margin", t, func() {
		d := mustNew(6, 6)

		Convey("Then every pixel is border", func() {
			for yy := 0; yy < 6; yy++ {
				for xx := 0; xx < 6; xx++ {
					So(d.Classify(model.Event{X: uint16(xx), Y: uint16(yy), T: 1}, 1), ShouldEqual, detector.OutcomeBorder)
				}
			}
		})
	})
}

func TestContains(t *testing.T) {
	Convey("Given a 260x346 detector", t, func() {
		d := mustNew(sensorHeight, sensorWidth)

		Convey("Then only on-sensor coordinates are contained", func() {
			So(d.Contains(0, 0), ShouldBeTrue)
			So(d.Contains(345, 259), ShouldBeTrue)
			So(d.Contains(346, 0), ShouldBeFalse)
			So(d.Contains(0, 260), ShouldBeFalse)
			So(d.Contains(-1, 5), ShouldBeFalse)
		})
	})
}

func TestOutcomeString(t *testing.T) {
	Convey("Given each outcome", t, func() {
		Convey("Then it has a stable label", func() {
			So(detector.OutcomeBorder.String(), ShouldEqual, "border")
			So(detector.OutcomeNoStage3.String(), ShouldEqual, "no_stage3")
			So(detector.OutcomeNoStage4.String(), ShouldEqual, "no_stage4")
			So(detector.OutcomeFeature.String(), ShouldEqual, "feature")
			So(detector.Outcome(42).String(), ShouldEqual, "unknown")
		})
	})
}
