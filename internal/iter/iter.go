// SPDX-License-Identifier: AGPL-3.0-or-later

// Package iter implements the descending-id iterator family:
// every iterator produced anywhere in the system, whether backed by
// a list, a like-edge adjacency, or an intersection of two other
// iterators, yields strictly decreasing account ids.
package iter

// Iterator walks account ids in strictly descending order.
type Iterator interface {
	// Next advances the iterator and returns the next id. ok is false
	// once the iterator is exhausted.
	Next() (id int32, ok bool)

	// Size returns the best available estimate of remaining elements;
	// exact for a List, cardinality-based for a bitmap-backed source,
	// an upper bound for an Intersect.
	Size() int
}

// List iterates a plain slice of ids, assumed already sorted
// descending by the caller.
type List struct {
	ids []int32
	pos int
}

func NewList(ids []int32) *List {
	return &List{ids: ids}
}

func (l *List) Next() (int32, bool) {
	if l.pos >= len(l.ids) {
		return 0, false
	}
	id := l.ids[l.pos]
	l.pos++
	return id, true
}

func (l *List) Size() int {
	return len(l.ids) - l.pos
}

// Edges iterates a like-edge adjacency list, yielding only the peer
// account id and deduplicating consecutive repeats of the same peer:
// two likes of the same account collapse to one id in the edge walk.
type Edges struct {
	edges []Edge
	pos   int
	last  int32
	first bool
}

// Edge is the minimal shape iter.Edges needs; callers copy the peer ids
// out of their internal/store.LikeEdge slices into Edge values.
type Edge struct {
	AccountID int32
}

func NewEdges(edges []Edge) *Edges {
	return &Edges{edges: edges, first: true}
}

func (e *Edges) Next() (int32, bool) {
	for e.pos < len(e.edges) {
		ed := e.edges[e.pos]
		e.pos++
		if !e.first && ed.AccountID == e.last {
			continue
		}
		e.first = false
		e.last = ed.AccountID
		return ed.AccountID, true
	}
	return 0, false
}

func (e *Edges) Size() int {
	return len(e.edges) - e.pos
}

// Intersect merges two descending iterators, yielding ids present in
// both. Size is the minimum of the two inputs' remaining sizes, an
// upper bound rather than an exact count.
type Intersect struct {
	a, b     Iterator
	av, bv   int32
	aok, bok bool
	started  bool
}

func NewIntersect(a, b Iterator) *Intersect {
	return &Intersect{a: a, b: b}
}

func (x *Intersect) Size() int {
	sa, sb := x.a.Size(), x.b.Size()
	if sa < sb {
		return sa
	}
	return sb
}

func (x *Intersect) Next() (int32, bool) {
	if !x.started {
		x.av, x.aok = x.a.Next()
		x.bv, x.bok = x.b.Next()
		x.started = true
	}
	for x.aok && x.bok {
		switch {
		case x.av == x.bv:
			id := x.av
			x.av, x.aok = x.a.Next()
			x.bv, x.bok = x.b.Next()
			return id, true
		case x.av > x.bv:
			x.av, x.aok = x.a.Next()
		default:
			x.bv, x.bok = x.b.Next()
		}
	}
	return 0, false
}

// Collect drains it into a slice, stopping once limit elements have
// been gathered (limit <= 0 means unbounded).
func Collect(it Iterator, limit int) []int32 {
	out := make([]int32, 0, 16)
	for {
		if limit > 0 && len(out) >= limit {
			break
		}
		id, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out
}
