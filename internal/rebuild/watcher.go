// SPDX-License-Identifier: AGPL-3.0-or-later

package rebuild

import (
	"sync/atomic"
	"time"

	"codeberg.org/gruf/go-kv"

	"github.com/loveindex/queryserver/internal/log"
)

// DefaultQuiet is how long the writer side must stay idle before a
// rebuild fires.
const DefaultQuiet = 1200 * time.Millisecond

// Watcher tracks writer quiescence on a background ticker and runs a
// full rebuild once writes have been quiet for the configured period.
type Watcher struct {
	builder    *Builder
	quiet      time.Duration
	lastWrite  atomic.Int64 // unix nanos of the most recent write
	dirty      atomic.Bool
	inProgress atomic.Bool
	stop       chan struct{}
}

func NewWatcher(builder *Builder, quiet time.Duration) *Watcher {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Watcher{
		builder: builder,
		quiet:   quiet,
		stop:    make(chan struct{}),
	}
}

// Touch records that a write just landed; the mutation controller
// calls this after every successful create/update/likes.
func (w *Watcher) Touch() {
	w.lastWrite.Store(time.Now().UnixNano())
	w.dirty.Store(true)
}

// InProgress reports whether a rebuild is currently running; the
// admission layer rejects requests while it is.
func (w *Watcher) InProgress() bool {
	return w.inProgress.Load()
}

// Start launches the background quiescence loop.
func (w *Watcher) Start() {
	go w.run()
}

// Stop shuts the loop down. Safe to call once.
func (w *Watcher) Stop() {
	close(w.stop)
}

func (w *Watcher) run() {
	tick := time.NewTicker(w.quiet / 4)
	defer tick.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-tick.C:
		}

		if !w.dirty.Load() {
			continue
		}
		if time.Since(time.Unix(0, w.lastWrite.Load())) < w.quiet {
			continue
		}

		w.dirty.Store(false)
		w.inProgress.Store(true)
		started := time.Now()
		w.builder.Rebuild()
		w.inProgress.Store(false)
		log.Info("index rebuild complete", kv.Field{K: "took", V: time.Since(started)})
	}
}
