package standings_test

import (
	"math"
	"testing"

	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

const third = 1.0 / 3.0

func win(a, b string, ga, gb int) model.MatchRecord {
	return model.MatchRecord{PlayerAID: a, PlayerBID: b, Result: model.PlayerAWin, GamesWonA: ga, GamesWonB: gb}
}

func bye(a string) model.MatchRecord {
	return model.MatchRecord{PlayerAID: a, Result: model.PlayerAWin}
}

func byID(rows []model.PlayerStanding) map[string]model.PlayerStanding {
	out := make(map[string]model.PlayerStanding, len(rows))
	for _, r := range rows {
		out[r.UserID] = r
	}
	return out
}

func ids(rows []model.PlayerStanding) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.UserID
	}
	return out
}

func TestCalculate_TwoRoundExample(t *testing.T) {
	Convey("Given four players after two rounds", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"p1", "p2", "p3", "p4"},
			Names:     map[string]string{"p1": "Alice", "p2": "Bob"},
			Matches: []model.MatchRecord{
				win("p1", "p2", 2, 0),
				win("p3", "p4", 2, 0),
				win("p1", "p3", 2, 1),
				bye("p2"),
			},
		}

		rows := standings.Calculate(in)
		got := byID(rows)

		Convey("Then the order should be points first, OMW% second", func() {
			So(ids(rows), ShouldResemble, []string{"p1", "p2", "p3", "p4"})
			So(got["p1"].Points, ShouldEqual, 6)
			So(got["p2"].Points, ShouldEqual, 3)
			So(got["p3"].Points, ShouldEqual, 3)
			So(got["p4"].Points, ShouldEqual, 0)
		})

		Convey("And p1's OMW% should average its opponents' floored win rates", func() {
			So(got["p1"].OMWPercent, ShouldAlmostEqual, (math.Max(0.5, third)+math.Max(0.5, third))/2, 1e-9)
			So(got["p2"].OMWPercent, ShouldAlmostEqual, 1.0, 1e-9)
			So(got["p3"].OMWPercent, ShouldAlmostEqual, (1.0+third)/2, 1e-9)
		})

		Convey("And game-based tiebreakers should follow the reported games", func() {
			So(got["p1"].GWPercent, ShouldAlmostEqual, 0.8, 1e-9)
			So(got["p3"].GWPercent, ShouldAlmostEqual, 0.6, 1e-9)
			So(got["p1"].OGWPercent, ShouldAlmostEqual, 0.3, 1e-9)
			So(got["p1"].OOMWPercent, ShouldAlmostEqual, (1.0+(1.0+third)/2)/2, 1e-9)
		})

		Convey("And the bye should be recorded without games or opponents", func() {
			So(got["p2"].ReceivedBye, ShouldBeTrue)
			So(got["p2"].MatchWins, ShouldEqual, 1)
			So(got["p2"].MatchLosses, ShouldEqual, 1)
			So(got["p2"].GameWins, ShouldEqual, 0)
			So(got["p2"].GameLosses, ShouldEqual, 2)
		})

		Convey("And names should be carried through", func() {
			So(got["p1"].Name, ShouldEqual, "Alice")
			So(got["p3"].Name, ShouldEqual, "")
		})
	})
}

func TestCalculate_Coverage(t *testing.T) {
	Convey("Given players with no matches", t, func() {
		rows := standings.Calculate(standings.Input{PlayerIDs: []string{"c", "a", "b"}})

		Convey("Then every player should get one standing", func() {
			So(len(rows), ShouldEqual, 3)
		})

		Convey("And a player without opponents should have the OMW% floor", func() {
			for _, r := range rows {
				So(r.OMWPercent, ShouldAlmostEqual, third, 1e-12)
				So(r.Points, ShouldEqual, 0)
			}
		})

		Convey("And full ties should be broken by user id", func() {
			So(ids(rows), ShouldResemble, []string{"a", "b", "c"})
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[2].Rank, ShouldEqual, 3)
		})
	})

	Convey("Given duplicate player ids", t, func() {
		rows := standings.Calculate(standings.Input{PlayerIDs: []string{"a", "a", "b"}})

		Convey("Then each id should appear once", func() {
			So(ids(rows), ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given an empty input", t, func() {
		rows := standings.Calculate(standings.Input{})

		Convey("Then the standings should be empty", func() {
			So(rows, ShouldBeEmpty)
		})
	})
}

func TestCalculate_ResultCodes(t *testing.T) {
	Convey("Given every kind of result", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
			Matches: []model.MatchRecord{
				{PlayerAID: "a", PlayerBID: "b", Result: model.Draw, GamesWonA: 1, GamesWonB: 1},
				{PlayerAID: "c", PlayerBID: "d", Result: model.IntentionalDraw},
				{PlayerAID: "e", PlayerBID: "f", Result: model.DoubleLoss, GamesWonA: 1, GamesWonB: 0},
				{PlayerAID: "g", PlayerBID: "h", Result: model.PlayerADisqualified, GamesWonA: 2, GamesWonB: 0},
			},
		}
		got := byID(standings.Calculate(in))

		Convey("Then draws should give one point each", func() {
			So(got["a"].Points, ShouldEqual, 1)
			So(got["b"].Points, ShouldEqual, 1)
			So(got["c"].MatchDraws, ShouldEqual, 1)
			So(got["d"].MatchDraws, ShouldEqual, 1)
		})

		Convey("And a double loss should record a loss on both sides", func() {
			So(got["e"].Points, ShouldEqual, 0)
			So(got["f"].Points, ShouldEqual, 0)
			So(got["e"].MatchLosses, ShouldEqual, 1)
			So(got["f"].MatchLosses, ShouldEqual, 1)
			So(got["e"].GameWins, ShouldEqual, 1)
		})

		Convey("And a disqualification should be a win for the other side only", func() {
			So(got["h"].Points, ShouldEqual, 3)
			So(got["h"].MatchWins, ShouldEqual, 1)
			So(got["g"].Points, ShouldEqual, 0)
			So(got["g"].MatchLosses, ShouldEqual, 1)
		})

		Convey("And game counts should be kept even when the result overrides them", func() {
			So(got["g"].GameWins, ShouldEqual, 2)
			So(got["h"].GameLosses, ShouldEqual, 2)
		})
	})

	Convey("Given an unreported match", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"a", "b"},
			Matches:   []model.MatchRecord{{PlayerAID: "a", PlayerBID: "b", Result: model.Unreported, GamesWonA: 2}},
		}
		got := byID(standings.Calculate(in))

		Convey("Then it should contribute nothing", func() {
			So(got["a"].Points, ShouldEqual, 0)
			So(got["a"].GameWins, ShouldEqual, 0)
			So(got["a"].MatchLosses+got["a"].MatchWins, ShouldEqual, 0)
			So(got["a"].OMWPercent, ShouldAlmostEqual, third, 1e-12)
		})
	})

	Convey("Given a match against an unknown player", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"a"},
			Matches: []model.MatchRecord{
				win("a", "ghost", 2, 0),
				win("ghost", "a", 2, 0),
			},
		}
		rows := standings.Calculate(in)

		Convey("Then it should be skipped", func() {
			So(len(rows), ShouldEqual, 1)
			So(rows[0].Points, ShouldEqual, 0)
			So(rows[0].GameWins, ShouldEqual, 0)
		})
	})
}

func TestCalculate_Tiebreakers(t *testing.T) {
	Convey("Given an opponent faced twice", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"p1", "p2", "p3"},
			Matches: []model.MatchRecord{
				{PlayerAID: "p1", PlayerBID: "p2", Result: model.Draw},
				{PlayerAID: "p1", PlayerBID: "p2", Result: model.Draw},
				{PlayerAID: "p1", PlayerBID: "p3", Result: model.PlayerBWin},
			},
		}
		got := byID(standings.Calculate(in))

		Convey("Then the repeat opponent should count twice in OMW%", func() {
			So(got["p1"].OMWPercent, ShouldAlmostEqual, (0.5+0.5+1.0)/3, 1e-9)
		})
	})

	Convey("Given an opponent who lost every match", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"p1", "p2"},
			Matches:   []model.MatchRecord{win("p1", "p2", 2, 0)},
		}
		got := byID(standings.Calculate(in))

		Convey("Then the opponent should contribute exactly the floor", func() {
			So(got["p1"].OMWPercent, ShouldEqual, third)
		})
	})

	Convey("Given two standings whose OMW% differ by less than the tolerance", t, func() {
		a := model.PlayerStanding{UserID: "z", Points: 3, OMWPercent: 0.50004, GWPercent: 0.9}
		b := model.PlayerStanding{UserID: "a", Points: 3, OMWPercent: 0.5, GWPercent: 0.1}

		Convey("Then the next tiebreaker should decide", func() {
			So(standings.Compare(a, b), ShouldBeLessThan, 0)
			So(standings.CompareDesc(0.50004, 0.5), ShouldEqual, 0)
			So(standings.CompareDesc(0.5002, 0.5), ShouldEqual, -1)
		})
	})

	Convey("Given a dropped player", t, func() {
		in := standings.Input{
			PlayerIDs: []string{"a", "b"},
			Dropped:   map[string]int{"b": 2},
		}
		got := byID(standings.Calculate(in))

		Convey("Then the drop should be reflected", func() {
			So(got["b"].IsDropped, ShouldBeTrue)
			So(got["b"].DroppedAfterRound, ShouldEqual, 2)
			So(got["a"].IsDropped, ShouldBeFalse)
		})
	})
}

func TestCalculate_Properties(t *testing.T) {
	Convey("Given a mixed event history", t, func() {
		players := []string{"a", "b", "c", "d", "e", "f", "g"}
		matches := []model.MatchRecord{
			win("a", "b", 2, 1),
			{PlayerAID: "c", PlayerBID: "d", Result: model.Draw, GamesWonA: 1, GamesWonB: 1},
			{PlayerAID: "e", PlayerBID: "f", Result: model.PlayerBWin, GamesWonA: 0, GamesWonB: 2},
			bye("g"),
			win("a", "c", 2, 0),
			{PlayerAID: "f", PlayerBID: "b", Result: model.DoubleLoss},
			{PlayerAID: "d", PlayerBID: "g", Result: model.IntentionalDraw},
			bye("e"),
		}
		rows := standings.Calculate(standings.Input{PlayerIDs: players, Matches: matches})

		Convey("Then points should be conserved", func() {
			var points, wins, draws int
			for _, r := range rows {
				points += r.Points
				wins += r.MatchWins
				draws += r.MatchDraws
			}
			So(points, ShouldEqual, 3*wins+draws)
		})

		Convey("And ranks should be a permutation of 1..N", func() {
			seen := make(map[int]bool)
			for _, r := range rows {
				seen[r.Rank] = true
			}
			So(len(seen), ShouldEqual, len(players))
			for i := 1; i <= len(players); i++ {
				So(seen[i], ShouldBeTrue)
			}
		})

		Convey("And recomputing should give the same standings", func() {
			again := standings.Calculate(standings.Input{PlayerIDs: players, Matches: matches})
			So(again, ShouldResemble, rows)
		})
	})
}

func TestBuildPlayerRecords(t *testing.T) {
	Convey("Given standings and their match history", t, func() {
		matches := []model.MatchRecord{
			win("a", "b", 2, 0),
			bye("c"),
			win("b", "a", 2, 1),
			{PlayerAID: "a", PlayerBID: "c", Result: model.Unreported},
			win("a", "ghost", 2, 0),
		}
		rows := standings.Calculate(standings.Input{PlayerIDs: []string{"a", "b", "c"}, Matches: matches})
		records := standings.BuildPlayerRecords(rows, matches)

		Convey("Then records should follow standings order", func() {
			So(len(records), ShouldEqual, 3)
			for i := range records {
				So(records[i].UserID, ShouldEqual, rows[i].UserID)
				So(records[i].Points, ShouldEqual, rows[i].Points)
			}
		})

		Convey("And opponent lists should keep repeats and skip byes and unreported matches", func() {
			byUser := make(map[string][]string)
			for _, r := range records {
				byUser[r.UserID] = r.OpponentIDs
			}
			So(byUser["a"], ShouldResemble, []string{"b", "b"})
			So(byUser["b"], ShouldResemble, []string{"a", "a"})
			So(byUser["c"], ShouldBeEmpty)
		})
	})
}
