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
	"net"
	"sync/atomic"
	"time"
)

type bcon struct {
	bck  *bck
	conn net.Conn

	requests int
	active   bool
	closing  bool
	ndx      int

	idleExp  time.Time
	idlePrev *bcon
	idleNext *bcon

	watch  chan struct{}
	broken atomic.Bool
}

func (c *bcon) Conn() net.Conn {
	return c.conn
}

func (c *bcon) Requests() int {
	return c.requests
}

func (c *bcon) MarkBroken() {
	c.broken.Store(true)
}

func (c *bcon) Address() string {
	return c.bck.cfg.Address
}

// lock held
func (o *bck) pushIdleTail(c *bcon) {
	c.idlePrev = o.idleTail
	c.idleNext = nil

	if o.idleTail == nil {
		o.idleHead = c
	} else {
		o.idleTail.idleNext = c
	}

	o.idleTail = c
	o.idleLen++
}

// lock held
func (o *bck) unlinkIdle(c *bcon) {
	if c.idlePrev == nil {
		o.idleHead = c.idleNext
	} else {
		c.idlePrev.idleNext = c.idleNext
	}

	if c.idleNext == nil {
		o.idleTail = c.idlePrev
	} else {
		c.idleNext.idlePrev = c.idlePrev
	}

	c.idlePrev = nil
	c.idleNext = nil
	o.idleLen--

	if h := o.idleHead; h != nil {
		o.tsIdle = h.idleExp
	} else {
		o.tsIdle = time.Time{}
	}
}

// popIdleTail takes the most recently parked connection: LRU reuse is
// most-recent-first, expiry closes from the head. lock held.
func (o *bck) popIdleTail() *bcon {
	c := o.idleTail
	if c == nil {
		return nil
	}

	o.unlinkIdle(c)
	o.recalc()
	return c
}

// lock held
func (o *bck) removeActive(c *bcon) {
	n := len(o.active)
	if n == 0 || c.ndx < 0 {
		return
	}

	if c.ndx != n-1 {
		last := o.active[n-1]
		last.ndx = c.ndx
		o.active[c.ndx] = last
	}

	o.active = o.active[:n-1]
	c.ndx = -1
}

// lock held
func (o *bck) closeCon(c *bcon) {
	c.closing = true
	_ = c.conn.Close()
}

// watchIdle arms the read watcher of an idle connection: an EOF, an error or
// any unexpected byte from the upstream drops the connection immediately and
// frees a slot. lock held.
func (o *bck) watchIdle(c *bcon) {
	c.closing = false
	done := make(chan struct{})
	c.watch = done

	go func() {
		defer close(done)

		var buf [1]byte
		_, _ = c.conn.Read(buf[:])

		o.m.Lock()
		defer o.m.Unlock()

		if c.active || c.closing {
			// checked out or closed under us, nothing to do
			return
		}

		o.unlinkIdle(c)
		o.closeCon(c)
		o.wakeupOne()
		o.recalc()
	}()
}
