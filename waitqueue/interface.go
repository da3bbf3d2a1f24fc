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

// Package waitqueue implements a timer-ordered queue of waiting elements with a
// single periodic wakeup.
//
// Elements are stamped when pushed, so the list is sorted by insertion order and
// therefore by expiry: one timer armed on the head is enough for the whole queue.
// The wakeup callback is posted as a job on the owning worker's queue, so it always
// runs on the worker loop, like every other dispatch.
//
// List operations are not safe for concurrent use: the queue belongs to exactly one
// worker, which is the only goroutine allowed to touch it.
package waitqueue

import (
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
)

// Elem is an intrusive element of a WaitQueue. It is meant to be embedded in (or
// referenced from) the waiting object; Data carries the owner back to the callback.
// An element sits in at most one queue at a time.
type Elem struct {
	// Data is an opaque reference to the owning object.
	Data any

	ts     time.Time
	queued bool
	prev   *Elem
	next   *Elem
}

// Queued reports whether the element currently sits in a queue.
func (e *Elem) Queued() bool {
	return e != nil && e.queued
}

// Next returns the following element of a detached run returned by PopReady.
func (e *Elem) Next() *Elem {
	if e == nil {
		return nil
	}
	return e.next
}

// WaitQueue is a FIFO of elements expiring delay after their push timestamp.
type WaitQueue interface {
	// Push stamps the element with now and appends it to the tail; an element
	// already queued is detached and re-appended. The timer is armed if idle.
	Push(e *Elem)

	// Pop unlinks and returns the head if it expired, else nil.
	Pop() *Elem

	// PopForce unlinks and returns the head unconditionally, nil when empty.
	PopForce() *Elem

	// PopReady detaches the whole run of expired elements from the head and
	// returns the count together with the head of the detached sublist.
	PopReady() (int, *Elem)

	// Remove unlinks the element if queued; idempotent. Emptying the queue stops
	// the timer.
	Remove(e *Elem)

	// Update rearms the timer to fire at head.ts + delay - now, clamped to a
	// minimum of 50ms; with an empty queue it stops the timer.
	Update()

	// SetDelay changes the queue delay, rearming a live timer.
	SetDelay(d time.Duration)

	// Delay returns the current queue delay.
	Delay() time.Duration

	// Stop disarms the timer. Queued elements stay queued.
	Stop()

	// Length returns the number of queued elements.
	Length() int
}

// New returns a WaitQueue owned by the worker driving the given job queue. The
// callback runs on that worker whenever the timer fires; it is expected to drain
// expired elements with Pop or PopReady and then call Update.
func New(q gwjbq.Queue, delay time.Duration, fn func()) WaitQueue {
	w := &wq{
		q:     q,
		delay: delay,
	}
	w.job = gwjbq.NewJob(fn)
	return w
}
