// SPDX-License-Identifier: AGPL-3.0-or-later

package filterql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loveindex/queryserver/internal/dictionary"
	"github.com/loveindex/queryserver/internal/index"
	"github.com/loveindex/queryserver/internal/store"
)

func newTestRegistry() *Registry {
	reg := &Registry{
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
	reg.Countries.GetOrCreate("")
	reg.Cities.GetOrCreate("")
	return reg
}

func TestParseSelectorRejectsUnknownPredicate(t *testing.T) {
	reg := newTestRegistry()
	_, err := ParseSelector("sex", "lt", "m", reg)
	assert.Error(t, err)
	_, err = ParseSelector("premium", "eq", "1", reg)
	assert.Error(t, err)
	_, err = ParseSelector("nonsense", "eq", "x", reg)
	assert.Error(t, err)
}

func TestParseSelectorRejectsBadBool(t *testing.T) {
	reg := newTestRegistry()
	_, err := ParseSelector("premium", "now", "yes", reg)
	assert.Error(t, err)
	_, err = ParseSelector("fname", "null", "2", reg)
	assert.Error(t, err)
}

func TestInterestsContainsMerge(t *testing.T) {
	reg := newTestRegistry()
	books := reg.Interests.GetOrCreate("books")
	cars := reg.Interests.GetOrCreate("cars")
	cats := reg.Interests.GetOrCreate("cats")

	f, err := ParseSelector("interests", "contains", "books,cars", reg)
	require.NoError(t, err)

	both := &store.Account{Interests: sortedDesc(books, cars, cats)}
	one := &store.Account{Interests: sortedDesc(books)}
	assert.True(t, f.Matches(both))
	assert.False(t, f.Matches(one))
}

func TestInterestsAnyMerge(t *testing.T) {
	reg := newTestRegistry()
	cars := reg.Interests.GetOrCreate("cars")
	cats := reg.Interests.GetOrCreate("cats")

	f, err := ParseSelector("interests", "any", "books,cars", reg)
	require.NoError(t, err)

	assert.True(t, f.Matches(&store.Account{Interests: sortedDesc(cats, cars)}))
	assert.False(t, f.Matches(&store.Account{Interests: sortedDesc(cats)}))
}

func sortedDesc(ids ...int8) []int8 {
	out := append([]int8(nil), ids...)
	sortDescInt8(out)
	return out
}

func TestLikesContainsMerge(t *testing.T) {
	reg := newTestRegistry()
	f, err := ParseSelector("likes", "contains", "5,2", reg)
	require.NoError(t, err)

	a := &store.Account{Likes: []store.LikeEdge{{AccountID: 7}, {AccountID: 5}, {AccountID: 2}}}
	b := &store.Account{Likes: []store.LikeEdge{{AccountID: 5}}}
	assert.True(t, f.Matches(a))
	assert.False(t, f.Matches(b))
}

func TestLikesLookupViaBackwardIntersection(t *testing.T) {
	reg := newTestRegistry()
	liked := &store.Account{
		ID: 5,
		BackwardLikes: []store.LikeEdge{
			{AccountID: 9}, {AccountID: 3},
		},
	}
	alsoLiked := &store.Account{
		ID: 2,
		BackwardLikes: []store.LikeEdge{
			{AccountID: 9}, {AccountID: 4},
		},
	}
	require.NoError(t, reg.Store.Put(liked))
	require.NoError(t, reg.Store.Put(alsoLiked))

	f, err := ParseSelector("likes", "contains", "5,2", reg)
	require.NoError(t, err)
	require.True(t, f.SupportsLookup())

	it := f.Lookup()
	id, ok := it.Next()
	require.True(t, ok)
	assert.EqualValues(t, 9, id)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestCountryNullOneIsLookup(t *testing.T) {
	reg := newTestRegistry()
	emptyID, _ := reg.Countries.Lookup("")
	reg.ByCountry.Add(int32(emptyID), 4)

	f, err := ParseSelector("country", "null", "1", reg)
	require.NoError(t, err)
	require.True(t, f.SupportsLookup())
	assert.Equal(t, 1, f.EstimateOutputSize())

	id, ok := f.Lookup().Next()
	require.True(t, ok)
	assert.EqualValues(t, 4, id)
}

func TestUnknownCountryMatchesNothing(t *testing.T) {
	reg := newTestRegistry()
	f, err := ParseSelector("country", "eq", "Atlantis", reg)
	require.NoError(t, err)
	assert.False(t, f.Matches(&store.Account{CountryID: 0}))
	assert.Equal(t, 0, f.EstimateOutputSize())
}

func TestGroupFilterUnsupportedFields(t *testing.T) {
	reg := newTestRegistry()
	for _, field := range []string{"email", "phone", "premium"} {
		_, err := ParseGroupFilter(field, "x", reg)
		assert.Error(t, err, field)
	}
}

func TestParseParamsSkipsUnrecognised(t *testing.T) {
	reg := newTestRegistry()
	set, err := ParseParams(map[string]string{
		"sex_eq":        "m",
		"limit":         "10",
		"query_id":      "55",
		"trackingtoken": "zzz",
	}, reg)
	require.NoError(t, err)
	assert.Len(t, set.Filters, 1)
}

func TestLocationFilterMutualExclusion(t *testing.T) {
	reg := newTestRegistry()
	_, err := ParseLocationFilter(map[string]string{"country": "RU", "city": "Moscow"}, reg)
	assert.Error(t, err)

	lf, err := ParseLocationFilter(map[string]string{"country": "RU"}, reg)
	require.NoError(t, err)
	assert.False(t, lf.Matches(&store.Account{}), "unseen country matches nothing")

	lf, err = ParseLocationFilter(map[string]string{"limit": "10"}, reg)
	require.NoError(t, err)
	assert.True(t, lf.Matches(&store.Account{}), "nil filter matches everything")
}
