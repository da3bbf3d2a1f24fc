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

package backend

import (
	"context"
	"sync"
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	liblog "github.com/nabbar/golib/logger"
)

type bck struct {
	m sync.Mutex

	ctx context.Context
	cfg Config
	log liblog.FuncLog

	active []*bcon

	idleHead *bcon
	idleTail *bcon
	idleLen  int

	waitHead *bwait
	waitTail *bwait
	waitLen  int

	dialing    bool
	dialCancel context.CancelFunc
	down       bool

	tsWait     time.Time
	tsIdle     time.Time
	tsConnect  time.Time
	tsDisabled time.Time
	tsTimeout  time.Time

	tm *time.Timer
}

func (o *bck) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}
	return liblog.GetDefault()
}

func (o *bck) Address() string {
	return o.cfg.Address
}

func (o *bck) ActiveCount() int {
	o.m.Lock()
	defer o.m.Unlock()
	return len(o.active)
}

func (o *bck) IdleCount() int {
	o.m.Lock()
	defer o.m.Unlock()
	return o.idleLen
}

func (o *bck) WaitingCount() int {
	o.m.Lock()
	defer o.m.Unlock()
	return o.waitLen
}

func (o *bck) IsDisabled() bool {
	o.m.Lock()
	defer o.m.Unlock()
	return !o.tsDisabled.IsZero() && !o.tsDisabled.Before(time.Now())
}

// wakeupOne signals the head waiter, transferring pool availability to it.
// lock held.
func (o *bck) wakeupOne() {
	w := o.waitHead
	if w == nil {
		return
	}

	w.ref.Post()
	w.ref.Release()
	w.ref = nil

	o.unlinkWait(w)

	if n := o.waitHead; n != nil {
		o.tsWait = n.deadline
	} else {
		o.tsWait = time.Time{}
	}
	o.recalc()
}

func (o *bck) Get(ref gwjbq.Ref, wt Wait) (Connection, Wait, Status) {
	var (
		now  = time.Now()
		w, _ = wt.(*bwait)
	)

	o.m.Lock()

	if o.down || (w != nil && !now.Before(w.deadline)) {
		if w != nil {
			o.freeWait(w)
		}
		o.m.Unlock()
		return nil, nil, StatusTimeout
	}

	if o.idleLen > 0 {
		c := o.popIdleTail()
		c.active = true
		c.ndx = len(o.active)
		o.active = append(o.active, c)

		if w != nil {
			o.freeWait(w)
		}

		watch := c.watch
		o.m.Unlock()

		// abort the idle watcher read before handing the connection out
		if watch != nil {
			_ = c.conn.SetReadDeadline(time.Now())
			<-watch
			_ = c.conn.SetReadDeadline(time.Time{})
		}

		return c, nil, StatusSuccess
	}

	disabled := !o.tsDisabled.IsZero() && !o.tsDisabled.Before(now)
	full := o.cfg.MaxConnections != -1 && len(o.active)+o.idleLen >= o.cfg.MaxConnections

	if !o.dialing && !disabled && !full {
		// at most one connect in flight per pool
		o.dialing = true
		o.tsConnect = now.Add(o.cfg.ConnectTimeout.Time())
		o.recalc()
		go o.dial(now)
	}

	if w == nil {
		w = &bwait{
			deadline: now.Add(o.cfg.WaitTimeout.Time()),
			ref:      ref,
		}

		o.pushWaitTail(w)

		if o.waitHead == w {
			o.tsWait = w.deadline
			o.recalc()
		}
	} else if w.ref == nil {
		// had been signaled: re-enter at the position its immutable deadline
		// dictates, so FIFO order by first entry is preserved
		w.ref = ref
		o.insertWaitSorted(w)

		if o.waitHead == w {
			o.tsWait = w.deadline
			o.recalc()
		}
	}

	o.m.Unlock()
	return nil, w, StatusWait
}

func (o *bck) Put(ci Connection, closeCon bool) {
	c, k := ci.(*bcon)
	if !k || c == nil {
		return
	}

	o.m.Lock()

	c.requests++
	c.active = false

	closeCon = closeCon || c.broken.Load() || o.down ||
		(o.cfg.MaxRequests != -1 && c.requests >= o.cfg.MaxRequests)

	o.removeActive(c)

	if closeCon {
		o.closeCon(c)
	} else {
		c.idleExp = time.Now().Add(o.cfg.IdleTimeout.Time())

		if o.idleLen == 0 {
			o.tsIdle = c.idleExp
			o.recalc()
		}

		o.pushIdleTail(c)
		o.watchIdle(c)
	}

	o.wakeupOne()

	o.m.Unlock()
}

func (o *bck) WaitStop(wt Wait) {
	w, k := wt.(*bwait)
	if !k || w == nil {
		return
	}

	o.m.Lock()
	o.freeWait(w)
	o.m.Unlock()
}

// freeWait reclaims a ticket. A ticket still in the queue is unlinked; a ticket
// that was already signaled hands the signal to the next waiter. lock held.
func (o *bck) freeWait(w *bwait) {
	if w.ref != nil {
		w.ref.Release()
		w.ref = nil

		first := o.waitHead == w
		o.unlinkWait(w)

		if first {
			if n := o.waitHead; n != nil {
				o.tsWait = n.deadline
			} else {
				o.tsWait = time.Time{}
			}
			o.recalc()
		}
	} else if !w.queued {
		o.wakeupOne()
	}
}

func (o *bck) Close() {
	o.m.Lock()

	if o.down {
		o.m.Unlock()
		return
	}

	o.down = true

	// abort the pending dial
	if o.dialCancel != nil {
		o.dialCancel()
	}

	// drain the idle set
	for c := o.popIdleTail(); c != nil; c = o.popIdleTail() {
		o.closeCon(c)
	}

	// wake every parked waiter so it observes the shutdown
	for o.waitHead != nil {
		o.wakeupOne()
	}

	o.tsIdle = time.Time{}
	o.tsWait = time.Time{}
	o.tsDisabled = time.Time{}
	o.recalc()

	o.m.Unlock()
}
