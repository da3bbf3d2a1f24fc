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

import "time"

// entry is one key of the cache.
//
// valid tracks map membership; active flips once the first lookup completed; a
// new entry is inactive with a running lookup. Requests parked on the entry sit
// in waiters until a lookup result or an eviction wakes them.
type entry struct {
	d *dyn

	key  string
	data any

	valid         bool
	active        bool
	lookupRunning bool
	freed         bool

	lastUpdate time.Time
	lastLookup time.Time

	action Action

	waiters []*Context

	mtlPrev *entry
	mtlNext *entry
	inMTL   bool
}

func (e *entry) Key() string {
	return e.key
}

func (e *entry) Data() any {
	e.d.m.Lock()
	defer e.d.m.Unlock()
	return e.data
}

func (e *entry) SetData(v any) {
	e.d.m.Lock()
	e.data = v
	e.d.m.Unlock()
}

func (e *entry) NotifyContinue() {
	var (
		o     = e.d
		frees []func()
	)

	o.m.Lock()

	if !e.lookupRunning {
		o.m.Unlock()
		panic("dynconf: notify without running lookup")
	}

	e.lastUpdate = e.lastLookup
	e.lookupRunning = false

	o.wakeupEntry(e)

	if e.valid {
		o.mtlQueue(e, &frees)
	} else if !e.freed {
		o.releaseEntry(e, &frees)
	}

	o.m.Unlock()

	for _, f := range frees {
		f()
	}
}

func (e *entry) NotifyUpdate(act Action) {
	var (
		o     = e.d
		old   Action
		frees []func()
	)

	o.m.Lock()

	if !e.lookupRunning {
		o.m.Unlock()
		panic("dynconf: notify without running lookup")
	}

	e.lastUpdate = e.lastLookup
	e.lookupRunning = false

	old = e.action
	e.action = act
	e.active = true

	o.wakeupEntry(e)

	if e.valid {
		o.mtlQueue(e, &frees)
	} else if !e.freed {
		o.releaseEntry(e, &frees)
	}

	o.m.Unlock()

	if old != nil {
		old.Release()
	}

	for _, f := range frees {
		f()
	}
}

// lock held
func (o *dyn) mtlUnlink(e *entry) {
	if !e.inMTL {
		return
	}

	if e.mtlPrev == nil {
		o.mtlHead = e.mtlNext
	} else {
		e.mtlPrev.mtlNext = e.mtlNext
	}

	if e.mtlNext == nil {
		o.mtlTail = e.mtlPrev
	} else {
		e.mtlNext.mtlPrev = e.mtlPrev
	}

	e.mtlPrev = nil
	e.mtlNext = nil
	e.inMTL = false
}

// mtlQueue re-enters the entry at the tail of the eviction queue, then sweeps
// and rearms. lock held.
func (o *dyn) mtlQueue(e *entry, frees *[]func()) {
	o.mtlUnlink(e)

	e.mtlPrev = o.mtlTail
	e.mtlNext = nil
	e.inMTL = true

	if o.mtlTail == nil {
		o.mtlHead = e
	} else {
		o.mtlTail.mtlNext = e
	}
	o.mtlTail = e

	o.evict(frees)
}

// wakeupEntry resumes every request parked on the entry. lock held.
func (o *dyn) wakeupEntry(e *entry) {
	for _, c := range e.waiters {
		c.ref.Post()
		c.ref.Release()
		c.ref = nil
		c.parked = false
		c.entry = nil
	}

	e.waiters = nil
}

// releaseEntry schedules the release of the entry action and handler data; the
// callbacks run after the lock is dropped. lock held.
func (o *dyn) releaseEntry(e *entry, frees *[]func()) {
	if e.freed {
		return
	}

	e.freed = true
	o.mtlUnlink(e)

	var (
		act  = e.action
		key  = e.key
		data = e.data
		h    = o.h
		p    = o.param
	)

	e.action = nil
	e.data = nil

	*frees = append(*frees, func() {
		if act != nil {
			act.Release()
		}
		h.FreeEntry(key, p, data)
	})
}
