package model_test

import (
	"testing"

	model "github.com/okian/efast/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEvent(t *testing.T) {
	convey.Convey("Given an Event", t, func() {
		convey.Convey("When the polarity flag is on", func() {
			e := model.Event{X: 10, Y: 20, T: 1000, On: true}

			convey.Convey("Then it selects the on grid", func() {
				convey.So(e.Polarity(), convey.ShouldEqual, model.PolarityOn)
			})
		})

		convey.Convey("When the polarity flag is off", func() {
			e := model.Event{X: 10, Y: 20, T: 1000}

			convey.Convey("Then it selects the off grid", func() {
				convey.So(e.Polarity(), convey.ShouldEqual, model.PolarityOff)
			})
		})

		convey.Convey("When it is the zero value", func() {
			e := model.Event{}

			convey.Convey("Then every field is zero", func() {
				convey.So(e.X, convey.ShouldEqual, 0)
				convey.So(e.Y, convey.ShouldEqual, 0)
				convey.So(e.T, convey.ShouldEqual, 0)
				convey.So(e.On, convey.ShouldBeFalse)
			})
		})
	})
}

func TestFeatureFromEvent(t *testing.T) {
	convey.Convey("Given a classified event", t, func() {
		e := model.Event{X: 100, Y: 50, T: 123456789, On: true}

		convey.Convey("When converting it to a feature", func() {
			f := model.FeatureFromEvent(e)

			convey.Convey("Then coordinates, time and polarity carry over", func() {
				convey.So(f.X, convey.ShouldEqual, e.X)
				convey.So(f.Y, convey.ShouldEqual, e.Y)
				convey.So(f.T, convey.ShouldEqual, e.T)
				convey.So(f.On, convey.ShouldBeTrue)
			})
		})
	})
}
