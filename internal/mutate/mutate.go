// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mutate implements the mutation controller: create,
// update and batch-likes application. All three run on a single-worker
// pool, which is the write serialization the rest of the system
// assumes — readers never lock, writers queue behind one slot.
//
// Each operation validates first and mutates last, so a rejected write
// leaves no state behind. Group-cache maintenance is strictly
// incremental: -1 for the outgoing field values, +1 for the incoming,
// paired around every field swap.
package mutate

import (
	"context"
	"sort"

	"github.com/loveindex/queryserver/internal/concurrency"
	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/group"
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// PremiumPayload is the wire form of a premium window.
type PremiumPayload struct {
	Start  int32 `json:"start"`
	Finish int32 `json:"finish"`
}

// LikePayload is one forward like inside an account payload.
type LikePayload struct {
	ID int32 `json:"id"`
	TS int32 `json:"ts"`
}

// AccountPayload is the wire form of an account for create and update.
// Pointer fields distinguish "absent" from "present but empty"; the
// typed decode at the API edge is what enforces numeric/object shape
// validation (a string birth or a scalar premium fails to unmarshal
// and never reaches this package).
type AccountPayload struct {
	ID        int32           `json:"id"`
	Email     *string         `json:"email"`
	FName     *string         `json:"fname"`
	SName     *string         `json:"sname"`
	Phone     *string         `json:"phone"`
	Sex       *string         `json:"sex"`
	Birth     *int32          `json:"birth"`
	Joined    *int32          `json:"joined"`
	Country   *string         `json:"country"`
	City      *string         `json:"city"`
	Status    *string         `json:"status"`
	Interests []string        `json:"interests"`
	Premium   *PremiumPayload `json:"premium"`
	Likes     []LikePayload   `json:"likes"`
}

// BatchLike is one entry of a POST /accounts/likes/ body.
type BatchLike struct {
	Liker int32 `json:"liker"`
	Likee int32 `json:"likee"`
	TS    int32 `json:"ts"`
}

// LikesPayload is the POST /accounts/likes/ body.
type LikesPayload struct {
	Likes []BatchLike `json:"likes"`
}

type writeJob struct {
	run  func() error
	done chan error
}

// Controller owns the single writer slot.
type Controller struct {
	reg     *filterql.Registry
	cache   *group.Cache
	pool    *concurrency.WorkerPool[writeJob]
	onWrite func()
}

// NewController builds a Controller over reg and cache. onWrite, if
// non-nil, is called after every successful write (the rebuild
// watcher's quiescence signal).
func NewController(reg *filterql.Registry, cache *group.Cache, onWrite func()) *Controller {
	c := &Controller{
		reg:     reg,
		cache:   cache,
		pool:    concurrency.NewWorkerPool[writeJob](1, 512),
		onWrite: onWrite,
	}
	c.pool.SetProcessor(func(_ context.Context, job writeJob) error {
		job.done <- job.run()
		return nil
	})
	return c
}

func (c *Controller) Start() error { return c.pool.Start() }
func (c *Controller) Stop() error  { return c.pool.Stop() }

// submit runs fn on the writer slot and waits for its result.
func (c *Controller) submit(fn func() error) error {
	job := writeJob{run: fn, done: make(chan error, 1)}
	c.pool.Queue(job)
	err := <-job.done
	if err == nil && c.onWrite != nil {
		c.onWrite()
	}
	return err
}

// Create installs a new account.
func (c *Controller) Create(p *AccountPayload) error {
	return c.submit(func() error {
		if p.ID <= 0 || p.ID > store.MaxID {
			return qserror.NewBadRequest("create: account id out of range")
		}
		if !c.reg.Store.Get(p.ID).Empty() {
			return qserror.NewBadRequest("create: account id already in use")
		}
		if err := c.validate(p, true); err != nil {
			return err
		}
		if c.reg.Store.EmailOwner(*p.Email) != 0 {
			return qserror.NewBadRequest("create: email already registered")
		}

		a := &store.Account{ID: p.ID}
		a.CountryID = c.reg.Countries.GetOrCreate("")
		a.CityID = c.reg.Cities.GetOrCreate("")
		c.applyFields(a, p)
		c.appendLikes(a, p.Likes)

		if err := c.reg.Store.Put(a); err != nil {
			return err
		}
		c.reg.Store.ClaimEmail(a.Email, a.ID)
		c.cache.UpdateDelta(a, +1)
		return nil
	})
}

// Update mutates an existing account. The account record
// is copy-swapped so concurrent readers see either the whole old or
// the whole new value; only adjacency appends on peer accounts mutate
// in place, which readers tolerate between rebuilds.
func (c *Controller) Update(id int32, p *AccountPayload) error {
	return c.submit(func() error {
		old := c.reg.Store.Get(id)
		if old.Empty() {
			return qserror.NewNotFound("update: no such account")
		}
		if err := c.validate(p, false); err != nil {
			return err
		}
		if p.Email != nil {
			if owner := c.reg.Store.EmailOwner(*p.Email); owner != 0 && owner != id {
				return qserror.NewBadRequest("update: email already registered")
			}
		}

		next := *old
		c.cache.UpdateDelta(old, -1)
		c.applyFields(&next, p)
		c.appendLikes(&next, p.Likes)
		c.cache.UpdateDelta(&next, +1)

		if err := c.reg.Store.Put(&next); err != nil {
			return err
		}
		if p.Email != nil && *p.Email != old.Email {
			c.reg.Store.ReleaseEmail(old.Email)
			c.reg.Store.ClaimEmail(next.Email, id)
		}
		return nil
	})
}

// ApplyLikes validates then applies one POST /accounts/likes/ batch.
// Edges append at the tail of both adjacency lists; the next rebuild
// restores strict descending order.
func (c *Controller) ApplyLikes(batch []BatchLike) error {
	return c.submit(func() error {
		for _, l := range batch {
			if c.reg.Store.Get(l.Liker).Empty() {
				return qserror.NewBadRequest("likes: unknown liker")
			}
			if c.reg.Store.Get(l.Likee).Empty() {
				return qserror.NewBadRequest("likes: unknown likee")
			}
		}
		for _, l := range batch {
			liker := c.reg.Store.Get(l.Liker)
			likee := c.reg.Store.Get(l.Likee)
			liker.Likes = append(liker.Likes, store.LikeEdge{AccountID: l.Likee, Timestamp: l.TS})
			likee.BackwardLikes = append(likee.BackwardLikes, store.LikeEdge{AccountID: l.Liker, Timestamp: l.TS})
		}
		return nil
	})
}

// validate checks payload legality without touching any state.
// required enforces the create path's mandatory fields; update accepts
// any subset.
func (c *Controller) validate(p *AccountPayload, required bool) error {
	if required {
		if p.Email == nil || *p.Email == "" {
			return qserror.NewBadRequest("email is required")
		}
		if p.Sex == nil || p.Status == nil || p.Birth == nil || p.Joined == nil {
			return qserror.NewBadRequest("sex, status, birth and joined are required")
		}
	}
	if p.Sex != nil {
		if _, ok := store.ParseSex(*p.Sex); !ok {
			return qserror.NewBadRequest("unknown sex value: " + *p.Sex)
		}
	}
	if p.Status != nil {
		if _, ok := store.ParseStatus(*p.Status); !ok {
			return qserror.NewBadRequest("unknown status string: " + *p.Status)
		}
	}
	return nil
}

// applyFields copies every present payload field onto a, recomputing
// each derived field in lock-step with its source.
func (c *Controller) applyFields(a *store.Account, p *AccountPayload) {
	if p.Email != nil {
		a.Email = *p.Email
		a.EmailDomain = store.DeriveEmailDomain(a.Email)
	}
	if p.FName != nil {
		a.FName = *p.FName
	}
	if p.SName != nil {
		a.SName = *p.SName
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
		a.PhoneCode = store.DerivePhoneCode(a.Phone)
	}
	if p.Sex != nil {
		a.Sex, _ = store.ParseSex(*p.Sex)
	}
	if p.Status != nil {
		a.Status, _ = store.ParseStatus(*p.Status)
	}
	if p.Birth != nil {
		a.Birth = *p.Birth
		a.BirthYear = store.YearOffset(a.Birth)
	}
	if p.Joined != nil {
		a.Joined = *p.Joined
		a.JoinedYear = store.YearOffset(a.Joined)
	}
	if p.Country != nil {
		a.Country = *p.Country
		a.CountryID = c.reg.Countries.GetOrCreate(a.Country)
	}
	if p.City != nil {
		a.City = *p.City
		a.CityID = c.reg.Cities.GetOrCreate(a.City)
	}
	if p.Premium != nil {
		a.PremiumStart = p.Premium.Start
		a.PremiumFinish = p.Premium.Finish
		a.HasPremiumNow = store.HasPremiumNow(a.PremiumStart, a.PremiumFinish, c.reg.Store.Now)
	}
	if p.Interests != nil {
		seen := make(map[int8]struct{}, len(p.Interests))
		ids := make([]int8, 0, len(p.Interests))
		for _, name := range p.Interests {
			id := c.reg.Interests.GetOrCreate(name)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
		a.Interests = ids
	}
}

// appendLikes records payload likes as forward edges on a, and as
// backward edges on every likee that is live; dead likees keep the
// forward edge only.
func (c *Controller) appendLikes(a *store.Account, likes []LikePayload) {
	if len(likes) == 0 {
		return
	}
	// Copy-on-write: a may share its Likes backing array with the old
	// record a concurrent reader is still walking.
	a.Likes = append(make([]store.LikeEdge, 0, len(a.Likes)+len(likes)), a.Likes...)
	for _, l := range likes {
		a.Likes = append(a.Likes, store.LikeEdge{AccountID: l.ID, Timestamp: l.TS})
		if likee := c.reg.Store.Get(l.ID); !likee.Empty() {
			likee.BackwardLikes = append(likee.BackwardLikes, store.LikeEdge{AccountID: a.ID, Timestamp: l.TS})
		}
	}
	sort.Slice(a.Likes, func(i, j int) bool { return a.Likes[i].AccountID > a.Likes[j].AccountID })
}
