package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/swiss/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.TieBreak, convey.ShouldEqual, "random")
			convey.So(cfg.DefaultTopCut, convey.ShouldEqual, 8)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configs", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero queue", func(c *config.Config) { c.ReportQueueSize = 0 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"negative top cut", func(c *config.Config) { c.DefaultTopCut = -1 }},
			{"negative cap", func(c *config.Config) { c.MaxPlayers = -5 }},
			{"unknown store", func(c *config.Config) { c.Store = "redis" }},
			{"sqlite no path", func(c *config.Config) { c.Store = config.StoreSQLite; c.SQLitePath = "" }},
			{"unknown tiebreak", func(c *config.Config) { c.TieBreak = "coin" }},
			{"unknown format", func(c *config.Config) { c.LogFormat = "xml" }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()

			convey.Convey("Then "+tc.name+" should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
