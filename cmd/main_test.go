package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/swiss/internal/adapters/notify"
	"github.com/okian/swiss/internal/adapters/repository"
	service "github.com/okian/swiss/internal/app"
	"github.com/okian/swiss/internal/config"
	"github.com/okian/swiss/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithLevel("error")); err != nil {
		panic(err)
	}
}

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("SWISS_ADDR", ":8080")
		t.Setenv("SWISS_QUEUE_SIZE", "1000")
		t.Setenv("SWISS_WORKER_COUNT", "4")
		t.Setenv("SWISS_STORE", "sqlite")
		t.Setenv("SWISS_SQLITE_PATH", filepath.Join(t.TempDir(), "swiss.db"))

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)

			convey.Convey("And the sqlite store should open", func() {
				store, err := openStore(context.Background(), cfg)
				convey.So(err, convey.ShouldBeNil)
				_, ok := store.(*repository.SQLiteStore)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(store.Close(), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an invalid address", t, func() {
		t.Setenv("SWISS_ADDR", "")

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestMainComponents(t *testing.T) {
	log := logger.Get()

	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("Then the memory store is selected", func() {
			store, err := openStore(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*repository.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("Then the local publisher is selected", func() {
			pub, err := openPublisher(cfg, log)
			convey.So(err, convey.ShouldBeNil)
			_, ok := pub.(*notify.LocalPublisher)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(pub.Close(), convey.ShouldBeNil)
		})

		convey.Convey("Then an embedded NATS publisher can be started", func() {
			cfg.NATSEmbedded = true
			pub, err := openPublisher(cfg, log)
			convey.So(err, convey.ShouldBeNil)
			np, ok := pub.(*notify.NATSPublisher)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(np.URL(), convey.ShouldStartWith, "nats://")
			convey.So(pub.Close(), convey.ShouldBeNil)
		})

		convey.Convey("Then an unreachable NATS server is an error", func() {
			cfg.NATSURL = "nats://127.0.0.1:1"
			_, err := openPublisher(cfg, log)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then the pairing engine follows tie_break", func() {
			cfg.TieBreak = "id"
			cfg.PairingSeed = 42
			engine, err := newEngine(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(engine, convey.ShouldNotBeNil)

			cfg.TieBreak = "coin"
			_, err = newEngine(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMainRouter(t *testing.T) {
	convey.Convey("Given a started service behind the router", t, func() {
		ctx := context.Background()
		cfg := config.New()
		svc := service.New(service.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(svc.Stop)

		h := newRouter(ctx, cfg, svc)

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return rec
		}

		convey.Convey("Then the API, docs and landing page are mounted", func() {
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/stats").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/tournaments").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then a tournament can be created over HTTP", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tournaments", strings.NewReader(`{"name":"Friday"}`))
			req.Header.Set("Content-Type", "application/json")
			h.ServeHTTP(rec, req)
			convey.So(rec.Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"name":"Friday"`)
		})
	})
}

func TestSystemMetricsUpdater(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then it returns when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("updater did not stop")
			}
		})

		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
