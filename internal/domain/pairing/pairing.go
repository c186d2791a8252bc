// Package pairing produces the next round of a Swiss event.
//
// Players are grouped by points, each group is paired greedily from the top
// down and an odd player out floats one group lower. The matching never
// backtracks, so a floater that finds no one below is left unpaired for the
// round and reported in Result.Unpaired.
package pairing

import (
	"maps"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/internal/domain/standings"
)

// Result is the output of one pairing pass.
type Result struct {
	// Pairings holds contested tables first, then the bye if any.
	Pairings []model.Pairing `json:"pairings"`
	// ByePlayerID is empty when no bye was assigned.
	ByePlayerID string `json:"bye_player_id,omitempty"`
	// Unpaired lists floaters that found no opponent this pass.
	Unpaired []string `json:"unpaired,omitempty"`
	// Rematches counts tables where rematch avoidance had to give way.
	Rematches int `json:"rematches"`
}

// Engine generates Swiss pairings. It is safe for concurrent use; the only
// shared state is the random source, which is guarded.
type Engine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	tieBreak TieBreak
}

// NewEngine creates an engine. Without options it shuffles ties with a
// time-seeded source.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // pairing order is not security sensitive
		tieBreak: TieBreakRandom,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// bucket is every player on one point total, best first.
type bucket struct {
	points  int
	players []model.PlayerRecord
}

// GeneratePairings pairs players for the next round. When avoidRematches is
// set each player prefers the first candidate they have not met yet, and
// falls back to a rematch rather than staying unpaired.
func (e *Engine) GeneratePairings(players []model.PlayerRecord, avoidRematches bool) Result {
	switch len(players) {
	case 0:
		return Result{Pairings: []model.Pairing{}}
	case 1:
		return Result{
			Pairings:    []model.Pairing{{TableNumber: 1, PlayerAID: players[0].UserID}},
			ByePlayerID: players[0].UserID,
		}
	}

	buckets := e.bucketize(players)

	var res Result
	if len(players)%2 == 1 {
		res.ByePlayerID = takeBye(buckets)
	}

	table := 1
	add := func(a, b model.PlayerRecord) {
		res.Pairings = append(res.Pairings, model.Pairing{TableNumber: table, PlayerAID: a.UserID, PlayerBID: b.UserID})
		table++
		if avoidRematches && slices.Contains(a.OpponentIDs, b.UserID) {
			res.Rematches++
		}
	}

	var floater *model.PlayerRecord
	for i := len(buckets) - 1; i >= 0; i-- {
		pool := buckets[i].players

		if floater != nil {
			if len(pool) == 0 {
				res.Unpaired = append(res.Unpaired, floater.UserID)
			} else {
				j := findBestOpponent(*floater, pool, avoidRematches)
				add(*floater, pool[j])
				pool = slices.Delete(pool, j, j+1)
			}
			floater = nil
		}

		for len(pool) >= 2 {
			p, rest := pool[0], pool[1:]
			j := findBestOpponent(p, rest, avoidRematches)
			add(p, rest[j])
			pool = slices.Delete(rest, j, j+1)
		}

		if len(pool) == 1 {
			f := pool[0]
			floater = &f
		}
	}
	if floater != nil {
		res.Unpaired = append(res.Unpaired, floater.UserID)
	}

	if res.ByePlayerID != "" {
		res.Pairings = append(res.Pairings, model.Pairing{TableNumber: table, PlayerAID: res.ByePlayerID})
	}
	if res.Pairings == nil {
		res.Pairings = []model.Pairing{}
	}
	return res
}

// bucketize groups players by points, lowest total first. Inside a bucket
// players are ordered by OMW% descending, remaining ties by the engine's
// tie-break.
func (e *Engine) bucketize(players []model.PlayerRecord) []bucket {
	byPoints := make(map[int][]model.PlayerRecord)
	for _, p := range players {
		byPoints[p.Points] = append(byPoints[p.Points], p)
	}

	// Walk the totals in order so a seeded source is consumed the same way
	// on every call.
	totals := slices.Sorted(maps.Keys(byPoints))
	out := make([]bucket, 0, len(totals))
	for _, pts := range totals {
		group := byPoints[pts]
		e.orderTies(group)
		slices.SortStableFunc(group, func(a, b model.PlayerRecord) int {
			return standings.CompareDesc(a.OMWPercent, b.OMWPercent)
		})
		out = append(out, bucket{points: pts, players: group})
	}
	return out
}

func (e *Engine) orderTies(group []model.PlayerRecord) {
	if e.tieBreak == TieBreakByID {
		slices.SortFunc(group, func(a, b model.PlayerRecord) int { return strings.Compare(a.UserID, b.UserID) })
		return
	}
	e.mu.Lock()
	e.rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
	e.mu.Unlock()
}

// takeBye removes and returns the bye player. Buckets are scanned from the
// lowest points up; the first bucket with someone who has not had a bye
// yet gives up its lowest-OMW such player. If everyone has had a bye the
// last player of the lowest bucket sits out again. An emptied bucket stays
// in place.
func takeBye(buckets []bucket) string {
	for i := range buckets {
		pick := -1
		for j, p := range buckets[i].players {
			if p.ReceivedBye {
				continue
			}
			if pick < 0 || standings.CompareDesc(p.OMWPercent, buckets[i].players[pick].OMWPercent) >= 0 {
				pick = j
			}
		}
		if pick >= 0 {
			return removeAt(&buckets[i], pick)
		}
	}
	for i := range buckets {
		if n := len(buckets[i].players); n > 0 {
			return removeAt(&buckets[i], n-1)
		}
	}
	panic(ErrNoByeCandidate)
}

func removeAt(b *bucket, i int) string {
	id := b.players[i].UserID
	b.players = slices.Delete(b.players, i, i+1)
	return id
}

// findBestOpponent returns the index in candidates of p's opponent.
// candidates must not be empty.
func findBestOpponent(p model.PlayerRecord, candidates []model.PlayerRecord, avoidRematches bool) int {
	if avoidRematches {
		for i, c := range candidates {
			if !slices.Contains(p.OpponentIDs, c.UserID) {
				return i
			}
		}
	}
	return 0
}
