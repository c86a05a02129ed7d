/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package autosave debounces persistence of an open document: every mutation resets a fixed
// delay and a single save runs once the stream of mutations has gone quiet.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	applog "concepto/internal/log"
)

// SaveFunc persists the current in-memory state.
type SaveFunc func(ctx context.Context) error

// Options tune a Debouncer.
type Options struct {
	// Delay is the quiet period after the last Touch. Default 2s.
	Delay time.Duration
	// Timeout bounds one debounced save. Default 30s.
	Timeout time.Duration
	// OnError receives failures of debounced saves. The state stays dirty.
	OnError func(error)
	// OnSaved is called after every successful save.
	OnSaved func()
	Log     *slog.Logger
}

// Debouncer coalesces Touch calls into delayed saves.
type Debouncer struct {
	save SaveFunc
	opts Options

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	dirty  bool
	closed bool

	// serializes saves so a debounced write never overlaps an explicit one
	saving sync.Mutex
}

// New returns a Debouncer calling save.
func New(save SaveFunc, opts Options) *Debouncer {
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = applog.WithComponent("autosave")
	}
	return &Debouncer{save: save, opts: opts}
}

// Touch marks the state dirty and restarts the quiet period.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.dirty = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.opts.Delay, func() { d.fire(gen) })
}

// Pending reports whether there are changes not yet saved.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Flush cancels any scheduled save and saves immediately.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	d.cancelLocked()
	gen := d.gen
	d.mu.Unlock()
	return d.run(ctx, gen)
}

// Close flushes pending changes and stops scheduling further saves.
func (d *Debouncer) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.cancelLocked()
	dirty, gen := d.dirty, d.gen
	d.mu.Unlock()
	if !dirty {
		return nil
	}
	return d.run(ctx, gen)
}

// Stop drops any scheduled save without running it and ignores later Touch calls.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.dirty = false
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// a timer that already fired sees a newer generation and backs off
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()
	if err := d.run(ctx, gen); err != nil {
		d.opts.Log.Warn("autosave failed", slog.Any("err", err))
		if d.opts.OnError != nil {
			d.opts.OnError(err)
		}
	}
}

func (d *Debouncer) run(ctx context.Context, gen uint64) error {
	d.saving.Lock()
	defer d.saving.Unlock()
	if err := d.save(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	// a Touch during the save keeps the state dirty for the next round
	if d.gen == gen {
		d.dirty = false
	}
	d.mu.Unlock()
	if d.opts.OnSaved != nil {
		d.opts.OnSaved()
	}
	return nil
}
