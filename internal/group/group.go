// SPDX-License-Identifier: AGPL-3.0-or-later

// Package group implements the group aggregator: multi-key
// histograms over the account store, plus the precomputed cache of
// enumerated breakdowns of up to 3 fields that the planner
// (internal/plan) rewrites filtered and unfiltered group queries
// against.
package group

import (
	"sort"
	"strings"
	"sync"

	"github.com/loveindex/queryserver/internal/store"
)

// Base fields a client may name in "keys=..."; every one of these is
// also a cached-breakdown field.
const (
	Sex       = "sex"
	Status    = "status"
	Country   = "country"
	City      = "city"
	Interests = "interests"

	// Extended fields: at most one may participate in a key set,
	// whether requested directly through "keys=" or unioned in by the
	// planner's filter-as-extra-key rewrite.
	BirthYear  = "birth"
	JoinedYear = "joined"
)

// baseFields is the enumeration base for the precomputed cache.
var baseFields = []string{Sex, Status, Country, City, Interests}

// extFields is the single allowed "extended" addition to a cached
// breakdown.
var extFields = []string{BirthYear, JoinedYear}

// IsCachedBreakdown reports whether name is one of the fields the
// cache is built over.
func IsCachedBreakdown(name string) bool {
	switch name {
	case Sex, Status, Country, City, Interests, BirthYear, JoinedYear:
		return true
	default:
		return false
	}
}

// Canonical returns the cache index string for a set of field names:
// the names sorted ascending and comma-joined.
func Canonical(names []string) string {
	cp := append([]string(nil), names...)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}

// Tuple is the comparable value-tuple key within one canonical key
// set's histogram: up to 3 dictionary/enum ids, in canonical field
// order.
type Tuple struct {
	V [3]int32
	N int
}

// Values extracts fieldName's contribution(s) for account a. All
// fields but interests contribute exactly one value; interests
// contributes one value per interest held (an account with no
// interests never appears in an interests-keyed histogram at all).
func Values(fieldName string, a *store.Account) []int32 {
	switch fieldName {
	case Sex:
		return []int32{int32(a.Sex)}
	case Status:
		return []int32{int32(a.Status)}
	case Country:
		return []int32{int32(a.CountryID)}
	case City:
		return []int32{int32(a.CityID)}
	case BirthYear:
		return []int32{int32(a.BirthYear)}
	case JoinedYear:
		return []int32{int32(a.JoinedYear)}
	case Interests:
		if len(a.Interests) == 0 {
			return nil
		}
		out := make([]int32, len(a.Interests))
		for i, id := range a.Interests {
			out[i] = int32(id)
		}
		return out
	default:
		return nil
	}
}

// Histogram maps one canonical key set's value tuples to live counts.
type Histogram map[Tuple]int64

// EnumeratedKeySets lists the canonical field-name sets the cache
// precomputes: every non-empty subset of baseFields of size 1..3, plus
// every subset of baseFields of size 0..2 combined with exactly one of
// extFields (so the combined size is still 1..3).
func EnumeratedKeySets() [][]string {
	var out [][]string
	n := len(baseFields)
	for mask := 1; mask < (1 << n); mask++ {
		var subset []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, baseFields[i])
			}
		}
		if len(subset) <= 3 {
			out = append(out, subset)
		}
	}
	for mask := 0; mask < (1 << n); mask++ {
		var subset []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, baseFields[i])
			}
		}
		if len(subset) > 2 {
			continue
		}
		for _, ext := range extFields {
			combined := append(append([]string(nil), subset...), ext)
			out = append(out, combined)
		}
	}
	return out
}

// Cache is the precomputed, incrementally-maintained group-aggregation
// cache. One Histogram exists per canonical key set named by
// EnumeratedKeySets.
type Cache struct {
	mu   sync.RWMutex
	hist map[string]Histogram
}

func NewCache() *Cache {
	c := &Cache{hist: make(map[string]Histogram, 64)}
	for _, ks := range EnumeratedKeySets() {
		c.hist[Canonical(ks)] = make(Histogram)
	}
	return c
}

// Get returns the live histogram for canonical key set names, and
// whether such a breakdown is cached at all.
func (c *Cache) Get(names []string) (Histogram, bool) {
	key := Canonical(names)
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.hist[key]
	if !ok {
		return nil, false
	}
	// Callers only read; hand back a snapshot copy so a concurrent
	// UpdateDelta never races a request building its response.
	cp := make(Histogram, len(h))
	for k, v := range h {
		if v > 0 {
			cp[k] = v
		}
	}
	return cp, true
}

// UpdateDelta applies delta to every cached key set's histogram for
// account a. Called once per mutation (create: +1, update: -1 then +1
// around the field swap).
func (c *Cache) UpdateDelta(a *store.Account, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, hist := range c.hist {
		names := strings.Split(key, ",")
		updateOne(names, 0, [3]int32{}, a, delta, hist)
	}
}

func updateOne(names []string, idx int, cur [3]int32, a *store.Account, delta int64, hist Histogram) {
	if idx == len(names) {
		hist[Tuple{V: cur, N: len(names)}] += delta
		return
	}
	vs := Values(names[idx], a)
	if len(vs) == 0 {
		return
	}
	for _, v := range vs {
		next := cur
		next[idx] = v
		updateOne(names, idx+1, next, a, delta, hist)
	}
}

// AggregateAccount folds one account into a scratch histogram built
// outside the cache (the planner's lookup-driven and full-scan paths).
func AggregateAccount(names []string, a *store.Account, hist Histogram) {
	updateOne(names, 0, [3]int32{}, a, 1, hist)
}
