// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"sort"
	"strconv"
	"strings"

	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/group"
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// GroupQuery is a parsed group-by request: the breakdown fields the
// client named, in the order it named them, plus any
// equality filters narrowing the population being grouped.
type GroupQuery struct {
	Keys    []string
	Filters []filterql.Filter
	// Descending selects count order: true for order=-1, false for
	// order=+1. Ties always break ascending by field-value string
	// regardless of this flag.
	Descending bool
	Limit      int
}

// GroupRow is one output bucket: Values holds one value per
// GroupQuery.Keys entry, in that same order.
type GroupRow struct {
	Values []int32
	Count  int64
}

// RunGroup answers the group-query endpoint by trying four rewrites
// in decreasing order of cheapness: combine the requested keys and any
// cached-breakdown filters into one cached histogram; serve an
// unfiltered cached histogram verbatim; drive a selectivity lookup and
// aggregate on the fly; or fall back to a full scan. Whichever rewrite
// answers the query, the result is sorted and limited identically.
func RunGroup(reg *filterql.Registry, cache *group.Cache, gq *GroupQuery) []GroupRow {
	if rows, ok := tryFilterBreakdownCached(cache, gq); ok {
		return finalize(rows, reg, gq)
	}
	if rows, ok := tryNoFilterCached(cache, gq); ok {
		return finalize(rows, reg, gq)
	}
	if rows, ok := trySelectivityLookup(reg, gq); ok {
		return finalize(rows, reg, gq)
	}
	return finalize(fullScanGroup(reg, gq), reg, gq)
}

// tryFilterBreakdownCached is the filter-as-extra-key rewrite: only
// attempted when there are at most two filters and every one of them
// names a cached-breakdown field (an interests filter only when it pins
// exactly one known interest and interests is not also a requested
// key; other interests filters go to the lookup path). The requested keys and the filter
// fields are combined into one canonical key set; if that combination
// is itself cached, the cache is filtered by each filter's pinned
// value and projected back onto the requested key order. A filter
// whose pinned value was never interned (ValueID == invalid) matches
// nothing, since no live tuple ever holds that sentinel — this is how
// "unknown dictionary value" queries correctly fall out to zero rows
// without a special case.
func tryFilterBreakdownCached(cache *group.Cache, gq *GroupQuery) ([]GroupRow, bool) {
	if len(gq.Filters) == 0 || len(gq.Filters) > 2 {
		return nil, false
	}
	for _, f := range gq.Filters {
		if !group.IsCachedBreakdown(f.Name()) {
			return nil, false
		}
		// Interests is multi-valued: pinning it to one value would drop
		// a matching account's other interests from an interests key.
		if f.Name() == group.Interests && (f.ValueID() < 0 || indexOf(gq.Keys, group.Interests) >= 0) {
			return nil, false
		}
	}

	combined := unionNames(gq.Keys, filterNames(gq.Filters))
	if len(combined) > 3 {
		return nil, false
	}
	hist, ok := cache.Get(combined)
	if !ok {
		return nil, false
	}

	canon := sortedCopy(combined)
	pinned := make(map[int]int32, len(gq.Filters))
	for _, f := range gq.Filters {
		pinned[indexOf(canon, f.Name())] = f.ValueID()
	}
	keyIdx := make([]int, len(gq.Keys))
	for i, k := range gq.Keys {
		keyIdx[i] = indexOf(canon, k)
	}

	agg := make(map[[3]int32]int64, len(hist))
	for t, count := range hist {
		if count <= 0 {
			continue
		}
		match := true
		for idx, val := range pinned {
			if t.V[idx] != val {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		var proj [3]int32
		for i, idx := range keyIdx {
			proj[i] = t.V[idx]
		}
		agg[proj] += count
	}

	out := make([]GroupRow, 0, len(agg))
	for proj, count := range agg {
		out = append(out, GroupRow{Values: append([]int32(nil), proj[:len(gq.Keys)]...), Count: count})
	}
	return out, true
}

// tryNoFilterCached: an unfiltered request for a cached breakdown is served straight from
// the cache, reordered from canonical to the client's requested key
// order.
func tryNoFilterCached(cache *group.Cache, gq *GroupQuery) ([]GroupRow, bool) {
	if len(gq.Filters) != 0 || len(gq.Keys) == 0 || len(gq.Keys) > 3 {
		return nil, false
	}
	hist, ok := cache.Get(gq.Keys)
	if !ok {
		return nil, false
	}
	canon := sortedCopy(gq.Keys)
	keyIdx := make([]int, len(gq.Keys))
	for i, k := range gq.Keys {
		keyIdx[i] = indexOf(canon, k)
	}
	out := make([]GroupRow, 0, len(hist))
	for t, count := range hist {
		if count <= 0 {
			continue
		}
		vals := make([]int32, len(gq.Keys))
		for i, idx := range keyIdx {
			vals[i] = t.V[idx]
		}
		out = append(out, GroupRow{Values: vals, Count: count})
	}
	return out, true
}

// trySelectivityLookup is the selectivity-driven path: the cheapest
// lookup-capable filter walks its index,
// every other filter checks residually, and surviving accounts fold
// into a scratch histogram built fresh for this one query.
func trySelectivityLookup(reg *filterql.Registry, gq *GroupQuery) ([]GroupRow, bool) {
	driver, driverIdx := pickDriver(gq.Filters)
	if driver == nil {
		return nil, false
	}
	hist := make(group.Histogram)
	it := driver.Lookup()
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		a := reg.Store.Get(id)
		if a.Empty() {
			continue
		}
		if matchesResidual(gq.Filters, driverIdx, a) {
			group.AggregateAccount(gq.Keys, a, hist)
		}
	}
	return histToRows(hist, gq.Keys), true
}

// fullScanGroup is the last-resort rewrite: every live account is
// tested against every filter and, if it survives, folded into the
// scratch histogram.
func fullScanGroup(reg *filterql.Registry, gq *GroupQuery) []GroupRow {
	hist := make(group.Histogram)
	for id := int32(store.MaxID); id >= 1; id-- {
		a := reg.Store.Get(id)
		if a.Empty() {
			continue
		}
		if !matchesAll(gq.Filters, a) {
			continue
		}
		group.AggregateAccount(gq.Keys, a, hist)
	}
	return histToRows(hist, gq.Keys)
}

func matchesAll(filters []filterql.Filter, a *store.Account) bool {
	for _, f := range filters {
		if !f.Matches(a) {
			return false
		}
	}
	return true
}

func histToRows(hist group.Histogram, keys []string) []GroupRow {
	out := make([]GroupRow, 0, len(hist))
	for t, count := range hist {
		if count <= 0 {
			continue
		}
		out = append(out, GroupRow{Values: append([]int32(nil), t.V[:len(keys)]...), Count: count})
	}
	return out
}

// FieldValueString resolves one group field's raw id back to the
// string a client expects in a response:
// enum names for sex/status, interned names for country/city/interest,
// and the plain calendar year for the two extended fields.
func FieldValueString(reg *filterql.Registry, name string, id int32) (string, error) {
	switch name {
	case group.Sex:
		return store.Sex(id).String(), nil
	case group.Status:
		return store.Status(id).String(), nil
	case group.Country:
		return reg.Countries.Value(int8(id))
	case group.City:
		return reg.Cities.Value(int16(id))
	case group.Interests:
		return reg.Interests.Value(int8(id))
	case group.BirthYear, group.JoinedYear:
		return strconv.Itoa(int(id) + int(store.BaseYear)), nil
	default:
		return "", qserror.Newf("plan: unknown group field %q", name)
	}
}

// finalize sorts rows by count (direction per gq.Descending), breaking
// ties ascending by the joined field-value strings in the client's key
// order, then truncates to gq.Limit.
func finalize(rows []GroupRow, reg *filterql.Registry, gq *GroupQuery) []GroupRow {
	type scoredRow struct {
		row GroupRow
		tie string
	}
	scored := make([]scoredRow, 0, len(rows))
	for _, r := range rows {
		parts := make([]string, len(r.Values))
		for i, v := range r.Values {
			s, err := FieldValueString(reg, gq.Keys[i], v)
			if err != nil {
				s = ""
			}
			parts[i] = s
		}
		scored = append(scored, scoredRow{row: r, tie: strings.Join(parts, "\x00")})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].row.Count != scored[j].row.Count {
			if gq.Descending {
				return scored[i].row.Count > scored[j].row.Count
			}
			return scored[i].row.Count < scored[j].row.Count
		}
		return scored[i].tie < scored[j].tie
	})
	if gq.Limit > 0 && len(scored) > gq.Limit {
		scored = scored[:gq.Limit]
	}
	out := make([]GroupRow, len(scored))
	for i, s := range scored {
		out[i] = s.row
	}
	return out
}

func unionNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, n := range a {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	for _, n := range b {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

func filterNames(filters []filterql.Filter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = f.Name()
	}
	return out
}

func sortedCopy(names []string) []string {
	cp := append([]string(nil), names...)
	sort.Strings(cp)
	return cp
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
