/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package dynconf

import (
	"context"
	"sync"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

type dyn struct {
	m sync.Mutex

	ctx   context.Context
	cfg   Config
	h     Handler
	miss  Action
	param any
	log   liblog.FuncLog

	entries map[string]*entry

	mtlHead *entry
	mtlTail *entry
	maxTTL  time.Duration
	tm      *time.Timer

	down bool
}

func (o *dyn) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}
	return liblog.GetDefault()
}

func (o *dyn) Len() int {
	o.m.Lock()
	defer o.m.Unlock()
	return len(o.entries)
}

// usable reports whether the entry may still serve its result: it completed a
// lookup and did not outlive the max TTL of its tier. lock held.
func (o *dyn) usable(e *entry, now time.Time) bool {
	if !e.valid || !e.active {
		return false
	}

	var ttl time.Duration
	if e.action == nil {
		ttl = o.cfg.MaxMissTTL.Time()
	} else {
		ttl = o.cfg.MaxHitTTL.Time()
	}

	return ttl < 0 || e.lastUpdate.Add(ttl).After(now)
}

// refresh triggers a lookup when the recheck TTL of the entry's tier aged out.
// The lookup runs outside the lock; it reports false when the entry got
// invalidated meanwhile. lock held.
func (o *dyn) refresh(e *entry, now time.Time) bool {
	if e.lookupRunning {
		return true
	}

	if !e.valid {
		return false
	}

	if e.active {
		var ttl time.Duration
		if e.action == nil {
			ttl = o.cfg.RecheckMissTTL.Time()
		} else {
			ttl = o.cfg.RecheckHitTTL.Time()
		}

		if ttl < 0 || e.lastUpdate.Add(ttl).After(now) {
			return true
		}
	}

	e.lookupRunning = true
	e.lastLookup = now
	o.mtlUnlink(e)

	o.m.Unlock()
	o.h.Lookup(e, e.key, e.lastUpdate, o.param)
	o.m.Lock()

	return e.valid
}

// lock held
func (o *dyn) newEntry(key string, now time.Time) *entry {
	e := &entry{
		d:          o,
		key:        key,
		valid:      true,
		lastUpdate: now,
		lastLookup: now,
	}

	o.entries[key] = e

	if !o.refresh(e, now) {
		return nil
	}

	return e
}

// enter pushes the entry action, or the miss fallback, onto the request. lock
// held.
func (o *dyn) enter(req Request, e *entry) {
	a := e.action
	if a == nil {
		a = o.miss
	}

	if a != nil {
		req.Enter(a)
	}
}

// park registers the request's job reference on the entry. lock held.
func (o *dyn) park(req Request, ctx *Context, e *entry) {
	if !ctx.parked {
		ctx.ref = req.Ref()
		ctx.entry = e
		ctx.parked = true
		e.waiters = append(e.waiters, ctx)
	}
}

// unpark drops a still-parked context. lock held.
func (o *dyn) unpark(ctx *Context) {
	if ctx == nil || !ctx.parked {
		return
	}

	if e := ctx.entry; e != nil && ctx.ref != nil {
		for i, c := range e.waiters {
			if c == ctx {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				break
			}
		}

		ctx.ref.Release()
		ctx.ref = nil
	}

	ctx.parked = false
	ctx.entry = nil
}

func (o *dyn) Handle(req Request, ctx *Context, key string) (Result, liberr.Error) {
	if req == nil || ctx == nil || key == "" {
		return ResultGoOn, ErrorParamEmpty.Error(nil)
	}

	var (
		now   = time.Now()
		e     *entry
		frees []func()
	)

	defer func() {
		for _, f := range frees {
			f()
		}
	}()

	o.m.Lock()
	defer o.m.Unlock()

	if o.down {
		return ResultGoOn, ErrorCacheClosed.Error(nil)
	}

	if ctx.entry != nil && ctx.entry.valid {
		e = ctx.entry
		// not a real round-trip, the entry survived the park
		ctx.tries--

		if o.refresh(e, now) {
			if !o.usable(e, now) {
				return o.parkOrFail(req, ctx, e, key)
			}

			o.enter(req, e)
			o.unpark(ctx)
			return ResultGoOn, nil
		}
	}

	if e = o.entries[key]; e != nil {
		if o.refresh(e, now) {
			if !o.usable(e, now) {
				return o.parkOrFail(req, ctx, e, key)
			}

			o.enter(req, e)
			o.unpark(ctx)
			return ResultGoOn, nil
		}

		return o.fail(ctx, key)
	}

	if e = o.newEntry(key, now); e != nil {
		if !o.usable(e, now) {
			return o.parkOrFail(req, ctx, e, key)
		}

		o.enter(req, e)
		o.unpark(ctx)
		return ResultGoOn, nil
	}

	return o.fail(ctx, key)
}

// parkOrFail parks the request on the pending lookup, unless it already made
// two failed round-trips on this call: that is a lookup loop. lock held.
func (o *dyn) parkOrFail(req Request, ctx *Context, e *entry, key string) (Result, liberr.Error) {
	if ctx.used {
		ctx.tries++
		if ctx.tries > 2 {
			return o.fail(ctx, key)
		}
	} else {
		ctx.used = true
		ctx.tries = 1
	}

	o.park(req, ctx, e)
	return ResultWait, nil
}

// lock held
func (o *dyn) fail(ctx *Context, key string) (Result, liberr.Error) {
	o.logger().Entry(loglvl.ErrorLevel, "cannot get a valid config entry for '%s'", key).Log()
	o.unpark(ctx)
	return ResultGoOn, ErrorLookupFailed.Error(nil)
}

func (o *dyn) HandleCleanup(ctx *Context) {
	if ctx == nil {
		return
	}

	o.m.Lock()
	o.unpark(ctx)
	o.m.Unlock()
}

func (o *dyn) Invalidate(key string) {
	var frees []func()

	o.m.Lock()

	if e := o.entries[key]; e != nil {
		delete(o.entries, key)
		e.valid = false

		o.wakeupEntry(e)

		if !e.lookupRunning {
			o.releaseEntry(e, &frees)
		}
	}

	o.m.Unlock()

	for _, f := range frees {
		f()
	}
}

func (o *dyn) Close() {
	var frees []func()

	o.m.Lock()

	if o.down {
		o.m.Unlock()
		return
	}

	o.down = true

	for key, e := range o.entries {
		delete(o.entries, key)
		e.valid = false

		o.wakeupEntry(e)

		if !e.lookupRunning {
			o.releaseEntry(e, &frees)
		}
	}

	if o.tm != nil {
		o.tm.Stop()
	}

	var (
		miss = o.miss
		h    = o.h
		p    = o.param
	)
	o.miss = nil

	frees = append(frees, func() {
		if miss != nil {
			miss.Release()
		}
		h.FreeParam(p)
	})

	o.m.Unlock()

	for _, f := range frees {
		f()
	}
}

// evict sweeps the head of the max-TTL queue and rearms the eviction timer on
// the new head. lock held.
func (o *dyn) evict(frees *[]func()) {
	now := time.Now()

	for e := o.mtlHead; e != nil; e = o.mtlHead {
		if o.usable(e, now) {
			break
		}

		o.mtlUnlink(e)

		if e.valid {
			delete(o.entries, e.key)
			e.valid = false
		}

		o.wakeupEntry(e)

		if !e.lookupRunning {
			o.releaseEntry(e, frees)
		}
	}

	o.rearm()
}

// lock held
func (o *dyn) rearm() {
	if o.mtlHead == nil || o.down {
		if o.tm != nil {
			o.tm.Stop()
		}
		return
	}

	d := time.Until(o.mtlHead.lastUpdate.Add(o.maxTTL))
	if d < 0 {
		d = 0
	}

	if o.tm == nil {
		o.tm = time.AfterFunc(d, o.onTimer)
	} else {
		o.tm.Stop()
		o.tm.Reset(d)
	}
}

func (o *dyn) onTimer() {
	var frees []func()

	o.m.Lock()
	o.evict(&frees)
	o.m.Unlock()

	for _, f := range frees {
		f()
	}
}
