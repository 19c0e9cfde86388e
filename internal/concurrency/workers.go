// SPDX-License-Identifier: AGPL-3.0-or-later

// Package concurrency wraps codeberg.org/gruf/go-runners worker pools
// behind a typed message-processing interface. The mutation controller
// runs one of these with a single worker, which is what serializes
// every write against the store.
package concurrency

import (
	"context"
	"errors"
	"path"
	"reflect"
	"runtime"

	"codeberg.org/gruf/go-runners"

	"github.com/loveindex/queryserver/internal/log"
)

// WorkerPool processes MsgType messages on a fixed set of workers.
type WorkerPool[MsgType any] struct {
	workers runners.WorkerPool
	process func(context.Context, MsgType) error
	wc, qc  int    // worker count, queue size
	prefix  string // type prefix for logging
}

// NewWorkerPool returns a WorkerPool with the given worker count and
// queue ratio (queue size = workers * ratio). workers < 1 falls back to
// GOMAXPROCS*4, queueRatio < 1 to 100.
func NewWorkerPool[MsgType any](workers int, queueRatio int) *WorkerPool[MsgType] {
	var zero MsgType

	if workers < 1 {
		workers = runtime.GOMAXPROCS(0) * 4
	}
	if queueRatio < 1 {
		queueRatio = 100
	}

	// Short type string for the msg type, for log lines.
	msgType := reflect.TypeOf(zero).String()
	_, msgType = path.Split(msgType)

	w := &WorkerPool[MsgType]{
		prefix: "worker.Worker[" + msgType + "]",
		wc:     workers,
		qc:     workers * queueRatio,
	}

	log.Infof("%s created with workers=%d queue=%d", w.prefix, w.wc, w.qc)
	return w
}

// Start starts the underlying worker pool.
func (w *WorkerPool[MsgType]) Start() error {
	log.Infof("%s starting", w.prefix)
	if w.process == nil {
		return errors.New("nil Worker.process function")
	}
	if !w.workers.Start(w.wc, w.qc) {
		return errors.New("failed to start Worker pool")
	}
	return nil
}

// Stop stops the underlying worker pool, waiting for queued messages
// to drain.
func (w *WorkerPool[MsgType]) Stop() error {
	log.Infof("%s stopping", w.prefix)
	if !w.workers.Stop() {
		return errors.New("failed to stop Worker pool")
	}
	return nil
}

// SetProcessor sets the function called for each queued message. Must
// be called exactly once, before Start.
func (w *WorkerPool[MsgType]) SetProcessor(fn func(context.Context, MsgType) error) {
	if w.process != nil {
		log.Panicf("%s Worker.process is already set", w.prefix)
	}
	w.process = fn
}

// Queue enqueues msg for processing by the next free worker.
func (w *WorkerPool[MsgType]) Queue(msg MsgType) {
	w.workers.Enqueue(func(ctx context.Context) {
		if err := w.process(ctx, msg); err != nil {
			log.Errorf("%s %v", w.prefix, err)
		}
	})
}
