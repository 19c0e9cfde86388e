// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rebuild implements the index builder: a full
// reconstruction of every inverted index and recommend bucket, plus a
// re-sort of every account's adjacency and interest lists, run after a
// quiet period with no writes. The group cache is deliberately not
// touched here — it is maintained strictly incrementally by the
// mutation controller's deltas.
package rebuild

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/recommend"
	"github.com/loveindex/queryserver/internal/store"
)

// Builder rebuilds the registry's indexes and the recommend buckets
// from the account store.
type Builder struct {
	reg     *filterql.Registry
	buckets *recommend.Buckets
}

func NewBuilder(reg *filterql.Registry, buckets *recommend.Buckets) *Builder {
	return &Builder{reg: reg, buckets: buckets}
}

func add(m map[int32]*roaring.Bitmap, key int32, id int32) {
	b, ok := m[key]
	if !ok {
		b = roaring.New()
		m[key] = b
	}
	b.Add(uint32(id))
}

// Rebuild walks the store from MaxID down, re-sorting each account's
// lists and accumulating fresh index contents, then swaps everything
// in wholesale. Runs exclusively with reads (the admission layer
// rejects requests while a rebuild is in progress).
func (b *Builder) Rebuild() {
	bySex := make(map[int32]*roaring.Bitmap, store.SexCount)
	byStatus := make(map[int32]*roaring.Bitmap, store.StatusCount)
	byCountry := make(map[int32]*roaring.Bitmap, 128)
	byCity := make(map[int32]*roaring.Bitmap, 1024)
	byBirthYear := make(map[int32]*roaring.Bitmap, 64)
	byJoinedYear := make(map[int32]*roaring.Bitmap, 16)
	byInterest := make(map[int32]*roaring.Bitmap, 128)
	byDomain := make(map[string]*roaring.Bitmap, 32)

	var buckets [recommend.BucketCount]map[int8][]int32
	for i := range buckets {
		buckets[i] = make(map[int8][]int32)
	}

	for id := int32(store.MaxID); id >= 1; id-- {
		a := b.reg.Store.Get(id)
		if a.Empty() {
			continue
		}

		sort.Slice(a.Likes, func(i, j int) bool {
			return a.Likes[i].AccountID > a.Likes[j].AccountID
		})
		sort.Slice(a.BackwardLikes, func(i, j int) bool {
			return a.BackwardLikes[i].AccountID > a.BackwardLikes[j].AccountID
		})
		sort.Slice(a.Interests, func(i, j int) bool {
			return a.Interests[i] > a.Interests[j]
		})

		add(bySex, int32(a.Sex), id)
		add(byStatus, int32(a.Status), id)
		add(byCountry, int32(a.CountryID), id)
		add(byCity, int32(a.CityID), id)
		add(byBirthYear, int32(a.BirthYear), id)
		add(byJoinedYear, int32(a.JoinedYear), id)

		if a.EmailDomain != "" {
			d, ok := byDomain[a.EmailDomain]
			if !ok {
				d = roaring.New()
				byDomain[a.EmailDomain] = d
			}
			d.Add(uint32(id))
		}

		bin := recommend.Bucket(a.Sex, a.HasPremiumNow, a.Status)
		for _, interestID := range a.Interests {
			add(byInterest, int32(interestID), id)
			// Appending while walking MaxID down keeps every bucket
			// list descending without a sort pass.
			buckets[bin][interestID] = append(buckets[bin][interestID], id)
		}
	}

	b.reg.BySex.Rebuild(bySex)
	b.reg.ByStatus.Rebuild(byStatus)
	b.reg.ByCountry.Rebuild(byCountry)
	b.reg.ByCity.Rebuild(byCity)
	b.reg.ByBirthYear.Rebuild(byBirthYear)
	b.reg.ByJoinedYear.Rebuild(byJoinedYear)
	b.reg.ByInterest.Rebuild(byInterest)
	b.reg.ByEmailDomain.Rebuild(byDomain)
	b.buckets.Rebuild(buckets)
}
