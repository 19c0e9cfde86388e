// SPDX-License-Identifier: AGPL-3.0-or-later

// Package suggest implements the collaborative-filter suggest
// engine: accounts similar to me are those who liked the people I
// liked, with similarity weighted by how close in time the two likes
// were; their other likes, minus my own, are the suggestions.
package suggest

import (
	"sort"

	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/iter"
	"github.com/loveindex/queryserver/internal/qserror"
)

// similarity accumulates one candidate liker's score against me.
type similarity struct {
	AccountID int32
	Score     float64
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Suggest answers the suggest endpoint: rank other likers
// of my likees by timestamp-proximity similarity, then emit their
// likees that I haven't liked yet, in descending peer-id order within
// each liker, until limit ids are gathered.
func Suggest(reg *filterql.Registry, myID int32, lf *filterql.LocationFilter, limit int) ([]int32, error) {
	me := reg.Store.Get(myID)
	if me.Empty() {
		return nil, qserror.NewNotFound("suggest: unknown account")
	}

	liked := make(map[int32]struct{}, len(me.Likes))
	for _, e := range me.Likes {
		liked[e.AccountID] = struct{}{}
	}

	// Every stored edge contributes its own 1/|dt| term: duplicate
	// likes of the same likee are deliberately not collapsed first.
	scores := make(map[int32]float64)
	for _, fwd := range me.Likes {
		likee := reg.Store.Get(fwd.AccountID)
		if likee.Empty() {
			continue
		}
		for _, bwd := range likee.BackwardLikes {
			if bwd.AccountID == myID {
				continue
			}
			d := abs32(fwd.Timestamp - bwd.Timestamp)
			if d == 0 {
				scores[bwd.AccountID] += 1.0
			} else {
				scores[bwd.AccountID] += 1.0 / float64(d)
			}
		}
	}

	ranked := make([]similarity, 0, len(scores))
	for id, s := range scores {
		ranked = append(ranked, similarity{AccountID: id, Score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].AccountID > ranked[j].AccountID
	})

	out := make([]int32, 0, limit)
	emitted := make(map[int32]struct{}, limit)
	for _, sim := range ranked {
		if len(out) >= limit {
			break
		}
		similar := reg.Store.Get(sim.AccountID)
		if similar.Empty() || !lf.Matches(similar) {
			continue
		}
		edges := make([]iter.Edge, len(similar.Likes))
		for i, e := range similar.Likes {
			edges[i] = iter.Edge{AccountID: e.AccountID}
		}
		it := iter.NewEdges(edges)
		for len(out) < limit {
			id, ok := it.Next()
			if !ok {
				break
			}
			if id == myID {
				continue
			}
			if _, already := liked[id]; already {
				continue
			}
			if _, already := emitted[id]; already {
				continue
			}
			emitted[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}
