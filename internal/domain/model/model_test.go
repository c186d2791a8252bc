package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/swiss/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestResultCode(t *testing.T) {
	convey.Convey("Given result codes", t, func() {
		convey.Convey("When the zero value is used", func() {
			var r model.ResultCode

			convey.Convey("Then it should be unreported", func() {
				convey.So(r, convey.ShouldEqual, model.Unreported)
				convey.So(r.String(), convey.ShouldEqual, "unreported")
			})
		})

		convey.Convey("When parsing a known name", func() {
			r, err := model.ParseResultCode("player_b_disqualified")

			convey.Convey("Then it should return the matching code", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r, convey.ShouldEqual, model.PlayerBDisqualified)
			})
		})

		convey.Convey("When parsing an unknown name", func() {
			_, err := model.ParseResultCode("forfeit")

			convey.Convey("Then it should fail with ErrUnknownResult", func() {
				convey.So(errors.Is(err, model.ErrUnknownResult), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an out of range code is marshalled", func() {
			_, err := json.Marshal(model.ResultCode(42))

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(model.ResultCode(42).String(), convey.ShouldEqual, "result(42)")
			})
		})

		convey.Convey("When a report is decoded from JSON", func() {
			var ev model.ReportEvent
			err := json.Unmarshal([]byte(`{"report_id":"r1","round":2,"table_number":3,"result":"intentional_draw","games_won_a":1,"games_won_b":1}`), &ev)

			convey.Convey("Then the result should be decoded by name", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ev.Result, convey.ShouldEqual, model.IntentionalDraw)
				convey.So(ev.TableNumber, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a result is not a string", func() {
			var ev model.ReportEvent
			err := json.Unmarshal([]byte(`{"result":3}`), &ev)

			convey.Convey("Then decoding should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestByes(t *testing.T) {
	convey.Convey("Given matches and pairings without an opponent", t, func() {
		m := model.MatchRecord{PlayerAID: "p1"}
		p := model.Pairing{TableNumber: 4, PlayerAID: "p1"}

		convey.Convey("Then both should be byes", func() {
			convey.So(m.IsBye(), convey.ShouldBeTrue)
			convey.So(p.IsBye(), convey.ShouldBeTrue)
		})

		convey.Convey("And a bye pairing should omit player_b_id on the wire", func() {
			b, err := json.Marshal(p)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldNotContainSubstring, "player_b_id")
		})
	})
}
