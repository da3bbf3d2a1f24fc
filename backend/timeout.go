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
	"net"
	"time"

	loglvl "github.com/nabbar/golib/logger/level"
)

// recalc rearms the single pool timer on the earliest pending expiry: waiter
// deadline, idle expiry, connect deadline, disable window. lock held.
func (o *bck) recalc() {
	var t time.Time

	for _, ts := range []time.Time{o.tsWait, o.tsIdle, o.tsConnect, o.tsDisabled} {
		if ts.IsZero() {
			continue
		}
		if t.IsZero() || ts.Before(t) {
			t = ts
		}
	}

	if o.tsTimeout.Equal(t) {
		return
	}

	o.tsTimeout = t

	if t.IsZero() {
		if o.tm != nil {
			o.tm.Stop()
		}
		return
	}

	d := time.Until(t)
	if d < 0 {
		d = 0
	}

	if o.tm == nil {
		o.tm = time.AfterFunc(d, o.onTimeout)
	} else {
		o.tm.Stop()
		o.tm.Reset(d)
	}
}

// onTimeout processes every expired slot and rearms.
func (o *bck) onTimeout() {
	now := time.Now()

	o.m.Lock()

	if !o.tsConnect.IsZero() && !now.Before(o.tsConnect) {
		// the dial goroutine enforces this deadline itself; the slot only
		// keeps the timer cascade aligned
		o.tsConnect = time.Time{}
	}

	if !o.tsDisabled.IsZero() && !now.Before(o.tsDisabled) {
		o.tsDisabled = time.Time{}
		// a still parked waiter retries the connect
		o.wakeupOne()
	}

	if !o.tsIdle.IsZero() && !now.Before(o.tsIdle) {
		for c := o.idleHead; c != nil && !now.Before(c.idleExp); c = o.idleHead {
			o.unlinkIdle(c)
			o.closeCon(c)
		}
	}

	if !o.tsWait.IsZero() && !now.Before(o.tsWait) {
		for w := o.waitHead; w != nil && !now.Before(w.deadline); w = o.waitHead {
			// the waiter wakes, retries Get and collects its timeout
			w.ref.Post()
			w.ref.Release()
			w.ref = nil
			o.unlinkWait(w)
		}

		if h := o.waitHead; h != nil {
			o.tsWait = h.deadline
		} else {
			o.tsWait = time.Time{}
		}
	}

	o.tsTimeout = time.Time{}
	o.recalc()

	o.m.Unlock()
}

// dial performs the single in-flight connection establishment. The disable
// window of a failure is measured from the start of the attempt.
func (o *bck) dial(start time.Time) {
	var (
		d   net.Dialer
		cnl context.CancelFunc
		ctx = o.ctx
	)

	if t := o.cfg.ConnectTimeout.Time(); t > 0 {
		ctx, cnl = context.WithTimeout(ctx, t)
	} else {
		ctx, cnl = context.WithCancel(ctx)
	}

	o.m.Lock()
	if o.down {
		o.dialing = false
		o.tsConnect = time.Time{}
		o.recalc()
		o.m.Unlock()
		cnl()
		return
	}
	o.dialCancel = cnl
	o.m.Unlock()

	conn, err := d.DialContext(ctx, o.cfg.network(), o.cfg.Address)
	cnl()

	o.m.Lock()
	defer o.m.Unlock()

	o.dialing = false
	o.dialCancel = nil
	o.tsConnect = time.Time{}

	if o.down {
		if conn != nil {
			_ = conn.Close()
		}
		o.recalc()
		return
	}

	if err != nil {
		o.logger().Entry(loglvl.ErrorLevel, "cannot connect to backend '%s'", o.cfg.Address).ErrorAdd(true, err).Log()
		o.tsDisabled = start.Add(o.cfg.DisableTime.Time())
		o.recalc()
		return
	}

	c := &bcon{
		bck:  o,
		conn: conn,
		ndx:  -1,
	}

	c.idleExp = time.Now().Add(o.cfg.IdleTimeout.Time())

	if o.idleLen == 0 {
		o.tsIdle = c.idleExp
	}

	o.pushIdleTail(c)
	o.watchIdle(c)

	// one waiter for the new connection, one for the freed connect slot
	o.wakeupOne()
	o.wakeupOne()

	o.recalc()
}
