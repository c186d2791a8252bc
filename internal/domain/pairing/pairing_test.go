package pairing_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/internal/domain/pairing"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(id string, points int, omw float64, bye bool, opponents ...string) model.PlayerRecord {
	return model.PlayerRecord{
		PlayerStanding: model.PlayerStanding{UserID: id, Points: points, OMWPercent: omw, ReceivedBye: bye},
		OpponentIDs:    opponents,
	}
}

func tables(res pairing.Result) []string {
	out := make([]string, 0, len(res.Pairings))
	for _, p := range res.Pairings {
		out = append(out, fmt.Sprintf("%d:%s-%s", p.TableNumber, p.PlayerAID, p.PlayerBID))
	}
	return out
}

func seatCounts(res pairing.Result) map[string]int {
	seen := make(map[string]int)
	for _, p := range res.Pairings {
		seen[p.PlayerAID]++
		if p.PlayerBID != "" {
			seen[p.PlayerBID]++
		}
	}
	return seen
}

func TestGeneratePairingsTrivial(t *testing.T) {
	Convey("Given an engine", t, func() {
		e := pairing.NewEngine(pairing.WithSeed(1))

		Convey("When there are no players", func() {
			res := e.GeneratePairings(nil, true)

			Convey("Then the result should be empty", func() {
				So(res.Pairings, ShouldBeEmpty)
				So(res.ByePlayerID, ShouldEqual, "")
				So(res.Unpaired, ShouldBeEmpty)
			})
		})

		Convey("When there is a single player", func() {
			res := e.GeneratePairings([]model.PlayerRecord{rec("solo", 6, 0.5, true)}, true)

			Convey("Then they should get the bye at table one", func() {
				So(res.ByePlayerID, ShouldEqual, "solo")
				So(tables(res), ShouldResemble, []string{"1:solo-"})
				So(res.Pairings[0].IsBye(), ShouldBeTrue)
			})
		})
	})
}

func TestGeneratePairingsExample(t *testing.T) {
	Convey("Given five fresh players on zero points", t, func() {
		players := []model.PlayerRecord{
			rec("p1", 0, 0, false), rec("p2", 0, 0, false), rec("p3", 0, 0, false),
			rec("p4", 0, 0, false), rec("p5", 0, 0, false),
		}
		res := pairing.NewEngine().GeneratePairings(players, true)

		Convey("Then two tables and one bye should be produced", func() {
			So(res.Pairings, ShouldHaveLength, 3)
			So(res.ByePlayerID, ShouldNotBeEmpty)
			So(res.Unpaired, ShouldBeEmpty)
			for i, p := range res.Pairings {
				So(p.TableNumber, ShouldEqual, i+1)
			}
			So(res.Pairings[2].IsBye(), ShouldBeTrue)
			So(res.Pairings[2].PlayerAID, ShouldEqual, res.ByePlayerID)
			So(res.Pairings[0].IsBye(), ShouldBeFalse)
			So(res.Pairings[1].IsBye(), ShouldBeFalse)
		})

		Convey("And every player should be seated once", func() {
			seen := seatCounts(res)
			So(seen, ShouldHaveLength, 5)
			for _, n := range seen {
				So(n, ShouldEqual, 1)
			}
		})
	})
}

func TestGeneratePairingsBuckets(t *testing.T) {
	Convey("Given a deterministic engine", t, func() {
		e := pairing.NewEngine(pairing.WithTieBreak(pairing.TieBreakByID))

		Convey("When buckets are even", func() {
			players := []model.PlayerRecord{
				rec("d", 0, 0.5, false), rec("c", 0, 0.5, false),
				rec("b", 3, 0.4, false), rec("a", 3, 0.6, false),
			}
			res := e.GeneratePairings(players, false)

			Convey("Then the top bucket should be paired first", func() {
				So(tables(res), ShouldResemble, []string{"1:a-b", "2:c-d"})
			})
		})

		Convey("When players are ordered by OMW inside a bucket", func() {
			players := []model.PlayerRecord{
				rec("a", 3, 0.40, false), rec("b", 3, 0.70, false),
				rec("c", 3, 0.55, false), rec("d", 3, 0.60, false),
			}
			res := e.GeneratePairings(players, false)

			Convey("Then the best OMW player should sit at table one", func() {
				So(tables(res), ShouldResemble, []string{"1:b-d", "2:c-a"})
			})
		})

		Convey("When OMW differences are inside the tolerance", func() {
			players := []model.PlayerRecord{
				rec("b", 0, 0.50005, false), rec("a", 0, 0.5, false),
			}
			res := e.GeneratePairings(players, false)

			Convey("Then the tie-break should decide", func() {
				So(tables(res), ShouldResemble, []string{"1:a-b"})
			})
		})

		Convey("When the top bucket is odd", func() {
			players := []model.PlayerRecord{
				rec("a", 6, 0.5, false), rec("b", 6, 0.5, false), rec("c", 6, 0.5, false),
				rec("d", 3, 0.5, false), rec("e", 3, 0.5, false), rec("f", 3, 0.5, false),
			}
			res := e.GeneratePairings(players, false)

			Convey("Then the leftover should float into the next bucket", func() {
				So(tables(res), ShouldResemble, []string{"1:a-b", "2:c-d", "3:e-f"})
				So(res.Unpaired, ShouldBeEmpty)
			})
		})
	})
}

func TestGeneratePairingsBye(t *testing.T) {
	Convey("Given a deterministic engine and an odd field", t, func() {
		e := pairing.NewEngine(pairing.WithTieBreak(pairing.TieBreakByID))

		Convey("When the lowest bucket has fresh players", func() {
			players := []model.PlayerRecord{
				rec("a", 3, 0.5, false), rec("b", 3, 0.5, false),
				rec("c", 0, 0.6, false), rec("d", 0, 0.2, true), rec("e", 0, 0.4, false),
			}
			res := e.GeneratePairings(players, true)

			Convey("Then the lowest OMW player without a bye should get it", func() {
				So(res.ByePlayerID, ShouldEqual, "e")
				So(tables(res), ShouldResemble, []string{"1:a-b", "2:c-d", "3:e-"})
			})
		})

		Convey("When everyone in the lowest bucket already had a bye", func() {
			players := []model.PlayerRecord{
				rec("a", 3, 0.5, false), rec("b", 3, 0.5, false), rec("c", 3, 0.4, false),
				rec("d", 0, 0.6, true), rec("e", 0, 0.4, true),
			}
			res := e.GeneratePairings(players, true)

			Convey("Then the next bucket up should give up the bye", func() {
				So(res.ByePlayerID, ShouldEqual, "c")
				So(tables(res), ShouldResemble, []string{"1:a-b", "2:d-e", "3:c-"})
			})
		})

		Convey("When every player already had a bye", func() {
			players := []model.PlayerRecord{
				rec("a", 3, 0.5, true),
				rec("b", 0, 0.6, true), rec("c", 0, 0.4, true),
			}
			res := e.GeneratePairings(players, true)

			Convey("Then the last player of the lowest bucket should sit out", func() {
				So(res.ByePlayerID, ShouldEqual, "c")
				So(tables(res), ShouldResemble, []string{"1:a-b", "2:c-"})
			})
		})
	})
}

func TestGeneratePairingsRematches(t *testing.T) {
	Convey("Given four players where a already met b", t, func() {
		e := pairing.NewEngine(pairing.WithTieBreak(pairing.TieBreakByID))
		players := []model.PlayerRecord{
			rec("a", 0, 0.5, false, "b"), rec("b", 0, 0.5, false, "a"),
			rec("c", 0, 0.5, false, "d"), rec("d", 0, 0.5, false, "c"),
		}

		Convey("When rematches are avoided", func() {
			res := e.GeneratePairings(players, true)

			Convey("Then a should skip b", func() {
				So(tables(res), ShouldResemble, []string{"1:a-c", "2:b-d"})
				So(res.Rematches, ShouldEqual, 0)
			})
		})

		Convey("When rematches are allowed", func() {
			res := e.GeneratePairings(players, false)

			Convey("Then the first candidate should be taken", func() {
				So(tables(res), ShouldResemble, []string{"1:a-b", "2:c-d"})
				So(res.Rematches, ShouldEqual, 0)
			})
		})
	})

	Convey("Given two players who met twice", t, func() {
		e := pairing.NewEngine(pairing.WithTieBreak(pairing.TieBreakByID))
		players := []model.PlayerRecord{
			rec("a", 3, 0.5, false, "b", "b"), rec("b", 3, 0.5, false, "a", "a"),
		}
		res := e.GeneratePairings(players, true)

		Convey("Then they should be paired again rather than left out", func() {
			So(tables(res), ShouldResemble, []string{"1:a-b"})
			So(res.Rematches, ShouldEqual, 1)
		})
	})
}

func TestGeneratePairingsFloaterEdge(t *testing.T) {
	Convey("Given a bye that empties the bucket below an odd bucket", t, func() {
		e := pairing.NewEngine(pairing.WithTieBreak(pairing.TieBreakByID))
		players := []model.PlayerRecord{
			rec("a", 6, 0.5, false), rec("b", 6, 0.5, false), rec("c", 6, 0.5, false),
			rec("d", 3, 0.5, false),
			rec("e", 0, 0.5, true),
		}
		res := e.GeneratePairings(players, true)

		Convey("Then the floater should be left unpaired for the round", func() {
			So(res.ByePlayerID, ShouldEqual, "d")
			So(tables(res), ShouldResemble, []string{"1:a-b", "2:d-"})
			So(res.Unpaired, ShouldResemble, []string{"c", "e"})
		})
	})
}

func TestGeneratePairingsProperties(t *testing.T) {
	Convey("Given random fields of every size", t, func() {
		gen := rand.New(rand.NewSource(99))

		for n := 2; n <= 31; n++ {
			players := make([]model.PlayerRecord, n)
			for i := range players {
				id := fmt.Sprintf("u%02d", i)
				var opps []string
				for range gen.Intn(4) {
					opps = append(opps, fmt.Sprintf("u%02d", gen.Intn(n)))
				}
				players[i] = rec(id, 3*gen.Intn(4), gen.Float64(), false, opps...)
			}
			res := pairing.NewEngine(pairing.WithSeed(int64(n))).GeneratePairings(players, n%3 != 0)

			seen := seatCounts(res)
			So(seen, ShouldHaveLength, n)
			for _, count := range seen {
				So(count, ShouldEqual, 1)
			}
			So(res.Unpaired, ShouldBeEmpty)
			if n%2 == 0 {
				So(res.Pairings, ShouldHaveLength, n/2)
				So(res.ByePlayerID, ShouldEqual, "")
			} else {
				So(res.Pairings, ShouldHaveLength, (n-1)/2+1)
				So(res.ByePlayerID, ShouldNotBeEmpty)
			}
			for i, p := range res.Pairings {
				So(p.TableNumber, ShouldEqual, i+1)
			}
		}
	})
}

func TestGeneratePairingsDeterminism(t *testing.T) {
	Convey("Given identical input", t, func() {
		players := make([]model.PlayerRecord, 12)
		for i := range players {
			players[i] = rec(fmt.Sprintf("u%02d", i), 3*(i%2), 0.5, false)
		}

		Convey("Then the same seed should give the same pairings", func() {
			a := pairing.NewEngine(pairing.WithSeed(42)).GeneratePairings(players, true)
			b := pairing.NewEngine(pairing.WithRand(rand.New(rand.NewSource(42)))).GeneratePairings(players, true)
			So(tables(a), ShouldResemble, tables(b))
		})

		Convey("And the id tie-break should not depend on input order", func() {
			e := pairing.NewEngine(pairing.WithTieBreak(pairing.TieBreakByID))
			reversed := make([]model.PlayerRecord, len(players))
			for i, p := range players {
				reversed[len(players)-1-i] = p
			}
			So(tables(e.GeneratePairings(players, true)), ShouldResemble, tables(e.GeneratePairings(reversed, true)))
		})

		Convey("And the input should not be modified", func() {
			before := make([]model.PlayerRecord, len(players))
			copy(before, players)
			pairing.NewEngine(pairing.WithSeed(3)).GeneratePairings(players, true)
			So(players, ShouldResemble, before)
		})
	})
}

func TestEngineConcurrentUse(t *testing.T) {
	Convey("Given one engine shared by many callers", t, func() {
		e := pairing.NewEngine(pairing.WithSeed(5))
		players := make([]model.PlayerRecord, 9)
		for i := range players {
			players[i] = rec(fmt.Sprintf("u%d", i), 0, 0.5, false)
		}

		var wg sync.WaitGroup
		results := make([]pairing.Result, 16)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = e.GeneratePairings(players, true)
			}(i)
		}
		wg.Wait()

		Convey("Then every call should produce a complete round", func() {
			for _, res := range results {
				So(res.Pairings, ShouldHaveLength, 5)
				So(seatCounts(res), ShouldHaveLength, 9)
			}
		})
	})
}

func TestParseTieBreak(t *testing.T) {
	Convey("Given tie-break names", t, func() {
		tb, err := pairing.ParseTieBreak("id")
		So(err, ShouldBeNil)
		So(tb, ShouldEqual, pairing.TieBreakByID)

		tb, err = pairing.ParseTieBreak("")
		So(err, ShouldBeNil)
		So(tb, ShouldEqual, pairing.TieBreakRandom)

		_, err = pairing.ParseTieBreak("coin")
		So(err, ShouldEqual, pairing.ErrUnknownTieBreak)
	})
}
