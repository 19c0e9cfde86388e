// SPDX-License-Identifier: AGPL-3.0-or-later

package mutate

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

func newTestController(t *testing.T) (*Controller, *filterql.Registry, *group.Cache) {
	t.Helper()
	reg := &filterql.Registry{
		Store:         store.Open(1000),
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
	cache := group.NewCache()
	c := NewController(reg, cache, nil)
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Stop() })
	return c, reg, cache
}

func str(s string) *string { return &s }
func i32(v int32) *int32   { return &v }

func validCreate(id int32, email string) *AccountPayload {
	return &AccountPayload{
		ID:     id,
		Email:  str(email),
		Sex:    str("m"),
		Status: str(store.StatusSingleStr),
		Birth:  i32(893884157),
		Joined: i32(1483228800),
	}
}

func TestCreatePopulatesDerivedFields(t *testing.T) {
	c, reg, _ := newTestController(t)

	p := validCreate(1, "ann@mail.ru")
	p.Phone = str("8(974)1210264")
	p.Country = str("RU")
	p.Interests = []string{"books", "cars", "books"}
	require.NoError(t, c.Create(p))

	a := reg.Store.Get(1)
	require.False(t, a.Empty())
	assert.Equal(t, "mail.ru", a.EmailDomain)
	assert.Equal(t, "974", a.PhoneCode)
	assert.EqualValues(t, 1998-store.BaseYear, a.BirthYear)
	assert.Equal(t, "RU", a.Country)
	// Repeated interest entries collapse to a set.
	assert.Len(t, a.Interests, 2)
	assert.EqualValues(t, 1, reg.Store.EmailOwner("ann@mail.ru"))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	c, reg, _ := newTestController(t)

	require.NoError(t, c.Create(validCreate(1, "dup@mail.ru")))
	err := c.Create(validCreate(2, "dup@mail.ru"))
	require.Error(t, err)
	assert.True(t, reg.Store.Get(2).Empty())
}

func TestCreateRejectsOccupiedID(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Create(validCreate(1, "a@mail.ru")))
	assert.Error(t, c.Create(validCreate(1, "b@mail.ru")))
}

func TestCreateAppendsBackwardEdges(t *testing.T) {
	c, reg, _ := newTestController(t)

	require.NoError(t, c.Create(validCreate(2, "likee@mail.ru")))
	p := validCreate(1, "liker@mail.ru")
	p.Likes = []LikePayload{{ID: 2, TS: 500}}
	require.NoError(t, c.Create(p))

	likee := reg.Store.Get(2)
	require.Len(t, likee.BackwardLikes, 1)
	assert.EqualValues(t, 1, likee.BackwardLikes[0].AccountID)
	assert.EqualValues(t, 500, likee.BackwardLikes[0].Timestamp)
}

func TestUpdateSwapsEmailAndCacheDeltas(t *testing.T) {
	c, reg, cache := newTestController(t)

	p := validCreate(1, "old@mail.ru")
	p.Country = str("RU")
	require.NoError(t, c.Create(p))

	ru, ok := reg.Countries.Lookup("RU")
	require.True(t, ok)
	hist, _ := cache.Get([]string{group.Country})
	assert.EqualValues(t, 1, hist[group.Tuple{V: [3]int32{int32(ru)}, N: 1}])

	require.NoError(t, c.Update(1, &AccountPayload{
		Email:   str("new@mail.ru"),
		Country: str("US"),
	}))

	assert.EqualValues(t, 0, reg.Store.EmailOwner("old@mail.ru"))
	assert.EqualValues(t, 1, reg.Store.EmailOwner("new@mail.ru"))

	us, ok := reg.Countries.Lookup("US")
	require.True(t, ok)
	hist, _ = cache.Get([]string{group.Country})
	assert.EqualValues(t, 0, hist[group.Tuple{V: [3]int32{int32(ru)}, N: 1}])
	assert.EqualValues(t, 1, hist[group.Tuple{V: [3]int32{int32(us)}, N: 1}])
}

func TestUpdateRejectsForeignEmail(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Create(validCreate(1, "one@mail.ru")))
	require.NoError(t, c.Create(validCreate(2, "two@mail.ru")))
	assert.Error(t, c.Update(2, &AccountPayload{Email: str("one@mail.ru")}))
}

func TestUpdateUnknownAccount(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.Error(t, c.Update(7, &AccountPayload{FName: str("x")}))
}

func TestApplyLikesValidatesBeforeMutating(t *testing.T) {
	c, reg, _ := newTestController(t)
	require.NoError(t, c.Create(validCreate(1, "a@mail.ru")))
	require.NoError(t, c.Create(validCreate(2, "b@mail.ru")))

	err := c.ApplyLikes([]BatchLike{
		{Liker: 1, Likee: 2, TS: 100},
		{Liker: 1, Likee: 99, TS: 100},
	})
	require.Error(t, err)
	// Whole batch rejected: the valid first triple must not have
	// landed either.
	assert.Empty(t, reg.Store.Get(1).Likes)

	require.NoError(t, c.ApplyLikes([]BatchLike{{Liker: 1, Likee: 2, TS: 100}}))
	require.Len(t, reg.Store.Get(1).Likes, 1)
	require.Len(t, reg.Store.Get(2).BackwardLikes, 1)
}

func TestApplyLikesKeepsDuplicateEdges(t *testing.T) {
	c, reg, _ := newTestController(t)
	require.NoError(t, c.Create(validCreate(1, "a@mail.ru")))
	require.NoError(t, c.Create(validCreate(2, "b@mail.ru")))

	require.NoError(t, c.ApplyLikes([]BatchLike{
		{Liker: 1, Likee: 2, TS: 100},
		{Liker: 1, Likee: 2, TS: 200},
	}))
	assert.Len(t, reg.Store.Get(1).Likes, 2)
	assert.Len(t, reg.Store.Get(2).BackwardLikes, 2)
}
