// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan implements the query planner: given a parsed filter
// set or group-by request, it picks the cheapest way to answer it (an
// index lookup driven by the most selective filter, a precomputed
// group-cache hit, or, failing both, a full scan) and always falls
// back to a correct if slower path rather than erroring.
package plan

import (
	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/store"
)

// RunFilter answers the filter-query endpoint: it picks the filter
// with the smallest estimated output as the driver, walks
// its lookup iterator checking every other filter residually, and
// falls back to a full store scan when no filter supports a lookup.
// Results are in descending account-id order; at most limit ids are
// returned.
func RunFilter(reg *filterql.Registry, set *filterql.Set, limit int) []int32 {
	out := make([]int32, 0, limit)
	driver, driverIdx := pickDriver(set.Filters)

	if driver == nil {
		for id := int32(store.MaxID); id >= 1 && len(out) < limit; id-- {
			a := reg.Store.Get(id)
			if a.Empty() {
				continue
			}
			if set.Matches(a) {
				out = append(out, id)
			}
		}
		return out
	}

	it := driver.Lookup()
	for len(out) < limit {
		id, ok := it.Next()
		if !ok {
			break
		}
		a := reg.Store.Get(id)
		if a.Empty() {
			continue
		}
		if matchesResidual(set.Filters, driverIdx, a) {
			out = append(out, id)
		}
	}
	return out
}

// pickDriver returns the lookup-capable filter with the smallest
// EstimateOutputSize, and its index within set.Filters. Returns (nil,
// -1) if none support a lookup.
func pickDriver(filters []filterql.Filter) (filterql.Filter, int) {
	best := -1
	bestSize := 0
	for i, f := range filters {
		if !f.SupportsLookup() {
			continue
		}
		sz := f.EstimateOutputSize()
		if best == -1 || sz < bestSize {
			best, bestSize = i, sz
		}
	}
	if best == -1 {
		return nil, -1
	}
	return filters[best], best
}

func matchesResidual(filters []filterql.Filter, skip int, a *store.Account) bool {
	for i, f := range filters {
		if i == skip {
			continue
		}
		if !f.Matches(a) {
			return false
		}
	}
	return true
}
