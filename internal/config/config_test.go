package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/efast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.SensorWidth, convey.ShouldEqual, 346)
			convey.So(cfg.SensorHeight, convey.ShouldEqual, 260)
			convey.So(cfg.MaxScale, convey.ShouldEqual, 1)
			convey.So(cfg.InputFormat, convey.ShouldEqual, config.FormatCBOR)
			convey.So(cfg.FrameIntervalUS, convey.ShouldEqual, 16666)
			convey.So(cfg.MarkRadius, convey.ShouldEqual, 2)
			convey.So(cfg.MetricsInterval, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"zero width", func(c *config.Config) { c.SensorWidth = 0 }},
			{"negative height", func(c *config.Config) { c.SensorHeight = -1 }},
			{"oversized sensor", func(c *config.Config) { c.SensorWidth = 1 << 17 }},
			{"zero scale", func(c *config.Config) { c.MaxScale = 0 }},
			{"unknown format", func(c *config.Config) { c.InputFormat = "aedat" }},
			{"empty queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"empty text packet", func(c *config.Config) { c.TextPacketSize = 0 }},
			{"zero frame span", func(c *config.Config) { c.FrameIntervalUS = 0 }},
			{"negative radius", func(c *config.Config) { c.MarkRadius = -1 }},
			{"live without addr", func(c *config.Config) { c.Live = true; c.Addr = "" }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
