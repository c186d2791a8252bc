package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/swiss/internal/adapters/notify"
	logging "github.com/okian/swiss/pkg/logger"
)

func init() {
	_ = logging.Init(logging.WithLevel("error"))
}

func TestLocalPublisher(t *testing.T) {
	Convey("Given a local publisher", t, func() {
		ctx := context.Background()
		p := notify.NewLocalPublisher(notify.WithBuffer(1))
		Reset(func() { _ = p.Close() })

		Convey("Every subscriber receives the event", func() {
			a, b := p.Subscribe(), p.Subscribe()
			So(p.Subscribers(), ShouldEqual, 2)

			e := notify.Event{Type: notify.EventRoundPaired, TournamentID: "t1", Round: 1}
			So(p.Publish(ctx, e), ShouldBeNil)
			So((<-a).Round, ShouldEqual, 1)
			So((<-b).Type, ShouldEqual, notify.EventRoundPaired)
		})

		Convey("A full subscriber misses events without blocking", func() {
			ch := p.Subscribe()
			So(p.Publish(ctx, notify.Event{Type: "x", Round: 1}), ShouldBeNil)
			So(p.Publish(ctx, notify.Event{Type: "x", Round: 2}), ShouldBeNil)
			So((<-ch).Round, ShouldEqual, 1)
			So(len(ch), ShouldEqual, 0)
		})

		Convey("Unsubscribe closes the channel", func() {
			ch := p.Subscribe()
			p.Unsubscribe(ch)
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			So(p.Subscribers(), ShouldEqual, 0)
		})

		Convey("Publishing after close fails", func() {
			ch := p.Subscribe()
			So(p.Close(), ShouldBeNil)
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			So(errors.Is(p.Publish(ctx, notify.Event{}), notify.ErrClosed), ShouldBeTrue)
		})

		Convey("A cancelled context is honoured", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(p.Publish(cctx, notify.Event{}), context.Canceled), ShouldBeTrue)
		})
	})
}

func TestNATSPublisher(t *testing.T) {
	Convey("Given a publisher backed by an embedded server", t, func() {
		ctx := context.Background()
		p, err := notify.NewEmbeddedNATSPublisher(notify.WithSubjectPrefix("test"))
		So(err, ShouldBeNil)
		Reset(func() { _ = p.Close() })

		nc, err := nats.Connect(p.URL())
		So(err, ShouldBeNil)
		Reset(nc.Close)

		sub, err := nc.SubscribeSync("test.t1.>")
		So(err, ShouldBeNil)
		So(nc.Flush(), ShouldBeNil)

		Convey("Events land on prefix.tournament.type as JSON", func() {
			e := notify.Event{
				Type:         notify.EventStandingsUpdated,
				TournamentID: "t1",
				Round:        3,
				At:           time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
				Payload:      map[string]int{"players": 8},
			}
			So(p.Subject(e), ShouldEqual, "test.t1.standings.updated")
			So(p.Publish(ctx, e), ShouldBeNil)

			msg, err := sub.NextMsg(5 * time.Second)
			So(err, ShouldBeNil)
			So(msg.Subject, ShouldEqual, "test.t1.standings.updated")

			var got struct {
				Type         string         `json:"type"`
				TournamentID string         `json:"tournament_id"`
				Round        int            `json:"round"`
				Payload      map[string]int `json:"payload"`
			}
			So(json.Unmarshal(msg.Data, &got), ShouldBeNil)
			So(got.Type, ShouldEqual, notify.EventStandingsUpdated)
			So(got.Round, ShouldEqual, 3)
			So(got.Payload["players"], ShouldEqual, 8)
		})

		Convey("Other tournaments are on other subjects", func() {
			So(p.Publish(ctx, notify.Event{Type: notify.EventRoundPaired, TournamentID: "t2"}), ShouldBeNil)
			_, err := sub.NextMsg(200 * time.Millisecond)
			So(errors.Is(err, nats.ErrTimeout), ShouldBeTrue)
		})

		Convey("Close is idempotent and later publishes fail", func() {
			So(p.Close(), ShouldBeNil)
			So(p.Close(), ShouldBeNil)
			So(errors.Is(p.Publish(ctx, notify.Event{TournamentID: "t1", Type: "x"}), notify.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestNewNATSPublisher_BadURL(t *testing.T) {
	Convey("Connecting to nothing fails", t, func() {
		_, err := notify.NewNATSPublisher("nats://127.0.0.1:1")
		So(err, ShouldNotBeNil)
	})
}
