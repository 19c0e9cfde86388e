// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recommend implements the recommend engine: a 12-bucket
// (sex, premium-now, status) index of per-interest descending id
// lists, and the candidate-scoring walk that turns one bucket sweep
// into a ranked list of opposite-sex accounts sharing interests with
// the requesting user.
package recommend

import (
	"sort"
	"sync"

	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// PremiumCount is the recommend bucket's premium-now axis: active or
// not, independent of the account's historical premium windows.
const PremiumCount = 2

// BucketCount is every (sex, premiumNow, status) combination.
const BucketCount = int(store.SexCount) * PremiumCount * int(store.StatusCount)

// Bucket computes the flat bucket index for a candidate's sex,
// premium-now state and status: status varies fastest, then
// premium-now, then sex.
func Bucket(sex store.Sex, premiumNow bool, status store.Status) int {
	p := 0
	if premiumNow {
		p = 1
	}
	return int(status) + int(store.StatusCount)*(p+int(sex)*PremiumCount)
}

// Buckets holds, per bucket, a descending-id list of accounts for
// every interest they hold. Rebuilt wholesale at quiescence;
// individual writes never touch it.
type Buckets struct {
	mu          sync.RWMutex
	perInterest [BucketCount]map[int8][]int32
}

func NewBuckets() *Buckets {
	b := &Buckets{}
	for i := range b.perInterest {
		b.perInterest[i] = make(map[int8][]int32)
	}
	return b
}

// Rebuild replaces every bucket's contents wholesale.
func (b *Buckets) Rebuild(next [BucketCount]map[int8][]int32) {
	b.mu.Lock()
	b.perInterest = next
	b.mu.Unlock()
}

func (b *Buckets) ids(bucket int, interest int8) []int32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.perInterest[bucket][interest]
}

// candidateScore is one candidate's compatibility input.
type candidateScore struct {
	CandID        int32
	PremiumNow    bool
	Status        store.Status
	NumInterests  int32
	AgeDifference int32
}

// moreCompatible reports whether a should sort ahead of b. Order:
// premium-now first, then ascending status, then more shared
// interests, then smaller age gap, then the larger candidate id.
func moreCompatible(a, b candidateScore) bool {
	if a.PremiumNow != b.PremiumNow {
		return a.PremiumNow
	}
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	if a.NumInterests != b.NumInterests {
		return a.NumInterests > b.NumInterests
	}
	if a.AgeDifference != b.AgeDifference {
		return a.AgeDifference < b.AgeDifference
	}
	return a.CandID > b.CandID
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Recommend answers the recommend endpoint: sweep the
// opposite-sex buckets in premium_now=1,0 then status=0..2 order,
// scoring and ranking candidates within each bucket, until limit
// results are collected or every bucket has been visited.
func Recommend(reg *filterql.Registry, buckets *Buckets, myID int32, lf *filterql.LocationFilter, limit int) ([]int32, error) {
	me := reg.Store.Get(myID)
	if me.Empty() {
		return nil, qserror.NewNotFound("recommend: unknown account")
	}
	matchSex := me.Sex.Opposite()

	out := make([]int32, 0, limit)
	for premiumNow := 1; premiumNow >= 0; premiumNow-- {
		for status := 0; status < int(store.StatusCount); status++ {
			bin := Bucket(matchSex, premiumNow == 1, store.Status(status))
			appendFromBucket(reg, buckets, myID, me, bin, lf, limit, &out)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func appendFromBucket(reg *filterql.Registry, buckets *Buckets, myID int32, me *store.Account, bin int, lf *filterql.LocationFilter, limit int, out *[]int32) {
	common := make(map[int32]int32)
	for _, interestID := range me.Interests {
		for _, candID := range buckets.ids(bin, interestID) {
			if candID == myID {
				continue
			}
			common[candID]++
		}
	}

	scores := make([]candidateScore, 0, len(common))
	for candID, n := range common {
		cand := reg.Store.Get(candID)
		if cand.Empty() {
			continue
		}
		if !lf.Matches(cand) {
			continue
		}
		scores = append(scores, candidateScore{
			CandID:        candID,
			PremiumNow:    cand.HasPremiumNow,
			Status:        cand.Status,
			NumInterests:  n,
			AgeDifference: abs32(me.Birth - cand.Birth),
		})
	}
	sort.Slice(scores, func(i, j int) bool { return moreCompatible(scores[i], scores[j]) })

	for _, s := range scores {
		if len(*out) >= limit {
			break
		}
		*out = append(*out, s.CandID)
	}
}
