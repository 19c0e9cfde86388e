// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine wires the store, dictionaries, indexes, group cache,
// recommend buckets, mutation controller and rebuild watcher into one
// value the HTTP layer and the bulk loader share.
package engine

import (
	"time"

	"github.com/loveindex/queryserver/internal/dictionary"
	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/group"
	"github.com/loveindex/queryserver/internal/index"
	"github.com/loveindex/queryserver/internal/mutate"
	"github.com/loveindex/queryserver/internal/rebuild"
	"github.com/loveindex/queryserver/internal/recommend"
	"github.com/loveindex/queryserver/internal/store"
)

// Engine is the composition root.
type Engine struct {
	Reg     *filterql.Registry
	Cache   *group.Cache
	Buckets *recommend.Buckets

	writer  *mutate.Controller
	builder *rebuild.Builder
	watcher *rebuild.Watcher
}

// New builds an Engine whose hasPremiumNow derivations use now.
// quiet configures the rebuild watcher's quiescence period; zero
// selects the default.
func New(now int32, quiet time.Duration) *Engine {
	reg := &filterql.Registry{
		Store:         store.Open(now),
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

	// Intern the empty string up front so the null=1 lookup buckets
	// for country and city always exist.
	reg.Countries.GetOrCreate("")
	reg.Cities.GetOrCreate("")

	e := &Engine{
		Reg:     reg,
		Cache:   group.NewCache(),
		Buckets: recommend.NewBuckets(),
	}
	e.builder = rebuild.NewBuilder(reg, e.Buckets)
	e.watcher = rebuild.NewWatcher(e.builder, quiet)
	e.writer = mutate.NewController(reg, e.Cache, e.watcher.Touch)
	return e
}

// Start brings up the writer pool and the quiescence watcher.
func (e *Engine) Start() error {
	if err := e.writer.Start(); err != nil {
		return err
	}
	e.watcher.Start()
	return nil
}

// Stop shuts both down.
func (e *Engine) Stop() error {
	e.watcher.Stop()
	return e.writer.Stop()
}

// Create installs a new account through the writer slot.
func (e *Engine) Create(p *mutate.AccountPayload) error {
	return e.writer.Create(p)
}

// Update mutates an existing account through the writer slot.
func (e *Engine) Update(id int32, p *mutate.AccountPayload) error {
	return e.writer.Update(id, p)
}

// ApplyLikes applies one batch-likes payload through the writer slot.
func (e *Engine) ApplyLikes(batch []mutate.BatchLike) error {
	return e.writer.ApplyLikes(batch)
}

// RebuildNow runs a full index rebuild synchronously — the bulk
// loader's post-ingest pass, and a test hook.
func (e *Engine) RebuildNow() {
	e.builder.Rebuild()
}

// RebuildInProgress reports whether the background watcher is mid
// rebuild; requests are rejected while it is.
func (e *Engine) RebuildInProgress() bool {
	return e.watcher.InProgress()
}
