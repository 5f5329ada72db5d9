package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given no configuration sources", t, func() {
		cfg, err := Load(context.Background())

		Convey("Then defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.QueueSize, ShouldEqual, 10_000)
			So(cfg.WorkerCount, ShouldEqual, runtime.NumCPU())
			So(cfg.DebounceWindowMS, ShouldEqual, 650)
			So(cfg.TxnMaxAttempts, ShouldEqual, 16)
			So(cfg.OutboxCapacity, ShouldEqual, 1000)
			So(cfg.MaxLeaderboardLimit, ShouldEqual, 100)
			So(cfg.RateLimitRPS, ShouldEqual, 0)
		})

		Convey("And the debounce window converts to a duration", func() {
			So(cfg.DebounceWindow(), ShouldEqual, 650*time.Millisecond)
		})
	})
}

func TestEnvOverrides(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		t.Setenv("RALLY_ADDR", ":7070")
		t.Setenv("RALLY_QUEUE_SIZE", "500")
		t.Setenv("RALLY_DEBOUNCE_WINDOW_MS", "100")
		t.Setenv("RALLY_LOG_LEVEL", "debug")

		cfg, err := Load(context.Background())

		Convey("Then env values win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.QueueSize, ShouldEqual, 500)
			So(cfg.DebounceWindowMS, ShouldEqual, 100)
			So(cfg.LogLevel, ShouldEqual, "debug")

			Convey("And untouched fields keep their defaults", func() {
				So(cfg.DedupeSize, ShouldEqual, 10_000)
			})
		})
	})
}

func TestFileSource(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		path := filepath.Join(t.TempDir(), "rally.yaml")
		yaml := "addr: \":6060\"\nworker_count: 3\nrate_limit_rps: 25\n"
		So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
		t.Setenv("RALLY_CONFIG", path)

		Convey("When loading", func() {
			cfg, err := Load(context.Background())

			Convey("Then file values layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.WorkerCount, ShouldEqual, 3)
				So(cfg.RateLimitRPS, ShouldEqual, 25)
			})
		})

		Convey("When env vars are also set", func() {
			t.Setenv("RALLY_ADDR", ":5050")
			cfg, err := Load(context.Background())

			Convey("Then env wins over the file", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
				So(cfg.WorkerCount, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a missing config file", t, func() {
		t.Setenv("RALLY_CONFIG", "/does/not/exist.yaml")

		_, err := Load(context.Background())

		Convey("Then loading fails with a load error", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrLoadConfig), ShouldBeTrue)
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Given invalid overrides", t, func() {
		cases := map[string]string{
			"RALLY_QUEUE_SIZE":         "0",
			"RALLY_WORKER_COUNT":       "-1",
			"RALLY_DEBOUNCE_WINDOW_MS": "-5",
		}
		for key, value := range cases {
			Convey("When "+key+" is "+value, func() {
				t.Setenv(key, value)

				_, err := Load(context.Background())

				Convey("Then validation rejects the config", func() {
					So(err, ShouldNotBeNil)
					So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
				})
			})
		}
	})
}
