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
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
)

// bwait is a parked-request ticket. Its deadline is set once, at first entry;
// the ref is dropped when the ticket is signaled and re-armed when the waiter
// parks again.
type bwait struct {
	deadline time.Time
	ref      gwjbq.Ref

	prev   *bwait
	next   *bwait
	queued bool
}

func (w *bwait) Deadline() time.Time {
	return w.deadline
}

// lock held
func (o *bck) pushWaitTail(w *bwait) {
	if w.queued {
		panic("backend: wait ticket already queued")
	}

	w.prev = o.waitTail
	w.next = nil
	w.queued = true

	if o.waitTail == nil {
		o.waitHead = w
	} else {
		o.waitTail.next = w
	}

	o.waitTail = w
	o.waitLen++
}

// lock held
func (o *bck) unlinkWait(w *bwait) {
	if !w.queued {
		return
	}

	if w.prev == nil {
		o.waitHead = w.next
	} else {
		w.prev.next = w.next
	}

	if w.next == nil {
		o.waitTail = w.prev
	} else {
		w.next.prev = w.prev
	}

	w.prev = nil
	w.next = nil
	w.queued = false
	o.waitLen--
}

// insertWaitSorted re-enters a signaled ticket at the position its deadline
// dictates, keeping the queue sorted by deadline and therefore FIFO by first
// entry. lock held.
func (o *bck) insertWaitSorted(w *bwait) {
	if w.queued {
		panic("backend: wait ticket already queued")
	}

	if o.waitHead == nil || !w.deadline.After(o.waitHead.deadline) {
		w.prev = nil
		w.next = o.waitHead
		w.queued = true

		if o.waitHead == nil {
			o.waitTail = w
		} else {
			o.waitHead.prev = w
		}

		o.waitHead = w
		o.waitLen++
		return
	}

	e := o.waitHead
	for e.next != nil && w.deadline.After(e.next.deadline) {
		e = e.next
	}

	w.prev = e
	w.next = e.next
	w.queued = true

	if e.next == nil {
		o.waitTail = w
	} else {
		e.next.prev = w
	}

	e.next = w
	o.waitLen++
}
