// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loveindex/queryserver/internal/dictionary"
	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/group"
	"github.com/loveindex/queryserver/internal/index"
	"github.com/loveindex/queryserver/internal/store"
)

func newTestRegistry() *filterql.Registry {
	return &filterql.Registry{
		Store:         store.Open(0),
		Countries:     dictionary.NewInt8(),
		Cities:        dictionary.NewInt16(),
		Interests:     dictionary.NewInt8(),
		BySex:         index.New(),
		ByStatus:      index.New(),
		ByCountry:     index.New(),
		ByCity:        index.New(),
		ByBirthYear:   index.New(),
		ByJoinedYear:  index.New(),
		ByInterest:    index.New(),
		ByEmailDomain: index.NewString(),
	}
}

func seed(reg *filterql.Registry, cache *group.Cache, a *store.Account) {
	_ = reg.Store.Put(a)
	reg.BySex.Add(int32(a.Sex), a.ID)
	reg.ByCountry.Add(int32(a.CountryID), a.ID)
	reg.ByStatus.Add(int32(a.Status), a.ID)
	cache.UpdateDelta(a, +1)
}

func TestRunFilterDriverAndResidual(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	ru := reg.Countries.GetOrCreate("RU")
	seed(reg, cache, &store.Account{ID: 3, Sex: store.SexMale, CountryID: ru, Status: store.StatusSingle})
	seed(reg, cache, &store.Account{ID: 2, Sex: store.SexFemale, CountryID: ru, Status: store.StatusSingle})
	seed(reg, cache, &store.Account{ID: 1, Sex: store.SexMale, CountryID: ru, Status: store.StatusSingle})

	sexFilter, err := filterql.ParseSelector("sex", "eq", "m", reg)
	require.NoError(t, err)
	set := &filterql.Set{Filters: []filterql.Filter{sexFilter}}

	out := RunFilter(reg, set, 10)
	assert.Equal(t, []int32{3, 1}, out)
}

func TestRunFilterFullScanFallback(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	seed(reg, cache, &store.Account{ID: 5, FName: "Anna"})
	seed(reg, cache, &store.Account{ID: 4, FName: "Anna"})

	fnameFilter, err := filterql.ParseSelector("fname", "eq", "Anna", reg)
	require.NoError(t, err)
	set := &filterql.Set{Filters: []filterql.Filter{fnameFilter}}

	out := RunFilter(reg, set, 10)
	assert.Equal(t, []int32{5, 4}, out)
}

func TestRunGroupNoFilterCached(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	ru := reg.Countries.GetOrCreate("RU")
	us := reg.Countries.GetOrCreate("US")
	seed(reg, cache, &store.Account{ID: 1, CountryID: ru})
	seed(reg, cache, &store.Account{ID: 2, CountryID: ru})
	seed(reg, cache, &store.Account{ID: 3, CountryID: us})

	rows := RunGroup(reg, cache, &GroupQuery{Keys: []string{"country"}, Descending: true, Limit: 10})
	require.Len(t, rows, 2)
	assert.EqualValues(t, 2, rows[0].Count)
	assert.Equal(t, int32(ru), rows[0].Values[0])
}

func TestRunGroupFilterBreakdownCachedZeroRowsOnUnknownValue(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	seed(reg, cache, &store.Account{ID: 1, Sex: store.SexMale, CountryID: reg.Countries.GetOrCreate("RU")})

	countryFilter, err := filterql.ParseSelector("country", "eq", "Nowhere", reg)
	require.NoError(t, err)
	rows := RunGroup(reg, cache, &GroupQuery{
		Keys:       []string{"sex"},
		Filters:    []filterql.Filter{countryFilter},
		Descending: true,
		Limit:      10,
	})
	assert.Empty(t, rows)
}

func TestGroupRewriteMatchesFullScan(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	ru := reg.Countries.GetOrCreate("RU")
	us := reg.Countries.GetOrCreate("US")

	seed(reg, cache, &store.Account{ID: 1, Sex: store.SexMale, CountryID: ru, Status: store.StatusSingle})
	seed(reg, cache, &store.Account{ID: 2, Sex: store.SexFemale, CountryID: ru, Status: store.StatusComplicated})
	seed(reg, cache, &store.Account{ID: 3, Sex: store.SexMale, CountryID: us, Status: store.StatusSingle})
	seed(reg, cache, &store.Account{ID: 4, Sex: store.SexMale, CountryID: ru, Status: store.StatusSingle})

	countryFilter, err := filterql.ParseSelector("country", "eq", "RU", reg)
	require.NoError(t, err)

	// Cached rewrite path: filters non-empty, all cached-breakdown.
	cached := RunGroup(reg, cache, &GroupQuery{
		Keys:       []string{"sex"},
		Filters:    []filterql.Filter{countryFilter},
		Descending: true,
		Limit:      10,
	})

	// Force the full-scan path by going through an empty cache.
	countryFilter2, err := filterql.ParseSelector("country", "eq", "RU", reg)
	require.NoError(t, err)
	naive := fullScanGroup(reg, &GroupQuery{
		Keys:    []string{"sex"},
		Filters: []filterql.Filter{countryFilter2},
		Limit:   10,
	})
	naive = finalize(naive, reg, &GroupQuery{Keys: []string{"sex"}, Descending: true, Limit: 10})

	assert.Equal(t, naive, cached)
}

func TestGroupKeyOrderDoesNotChangeCounts(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	ru := reg.Countries.GetOrCreate("RU")

	seed(reg, cache, &store.Account{ID: 1, Sex: store.SexMale, CountryID: ru, Status: store.StatusSingle})
	seed(reg, cache, &store.Account{ID: 2, Sex: store.SexFemale, CountryID: ru, Status: store.StatusSingle})

	ab := RunGroup(reg, cache, &GroupQuery{Keys: []string{"sex", "country"}, Limit: 10})
	ba := RunGroup(reg, cache, &GroupQuery{Keys: []string{"country", "sex"}, Limit: 10})

	require.Len(t, ba, len(ab))
	for i := range ab {
		assert.Equal(t, ab[i].Count, ba[i].Count)
	}
}

func TestGroupSelectivityLookupPath(t *testing.T) {
	reg := newTestRegistry()
	cache := group.NewCache()
	ru := reg.Countries.GetOrCreate("RU")
	seed(reg, cache, &store.Account{ID: 1, Sex: store.SexMale, CountryID: ru, FName: "Ann"})
	seed(reg, cache, &store.Account{ID: 2, Sex: store.SexFemale, CountryID: ru, FName: "Ann"})
	seed(reg, cache, &store.Account{ID: 3, Sex: store.SexFemale, CountryID: ru, FName: "Bob"})

	// fname is not a cached breakdown, so this must take the
	// lookup/scan path; sex drives, fname checks residually.
	fnameFilter, err := filterql.ParseGroupFilter("fname", "Ann", reg)
	require.NoError(t, err)
	sexFilter, err := filterql.ParseSelector("sex", "eq", "f", reg)
	require.NoError(t, err)

	rows := RunGroup(reg, cache, &GroupQuery{
		Keys:    []string{"country"},
		Filters: []filterql.Filter{fnameFilter, sexFilter},
		Limit:   10,
	})
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0].Count)
}
