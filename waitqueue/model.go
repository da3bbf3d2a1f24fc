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

package waitqueue

import (
	"sync"
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
)

const minRepeat = 50 * time.Millisecond

type wq struct {
	q   gwjbq.Queue
	job *gwjbq.Job

	head   *Elem
	tail   *Elem
	length int
	delay  time.Duration

	tm sync.Mutex
	tt *time.Timer
}

func (o *wq) fire() {
	o.q.Now(o.job)
}

func (o *wq) arm(d time.Duration) {
	if d < minRepeat {
		d = minRepeat
	}

	o.tm.Lock()
	if o.tt == nil {
		o.tt = time.AfterFunc(d, o.fire)
	} else {
		o.tt.Stop()
		o.tt.Reset(d)
	}
	o.tm.Unlock()
}

func (o *wq) disarm() {
	o.tm.Lock()
	if o.tt != nil {
		o.tt.Stop()
	}
	o.tm.Unlock()
}

func (o *wq) unlinkHead() *Elem {
	e := o.head

	if e == o.tail {
		o.tail = nil
	} else {
		e.next.prev = nil
	}

	o.head = e.next
	o.length--

	e.ts = time.Time{}
	e.queued = false
	e.prev = nil
	e.next = nil

	return e
}

func (o *wq) Push(e *Elem) {
	e.ts = time.Now()

	if !e.queued {
		e.queued = true
		o.length++

		if o.head == nil {
			o.head = e
			o.tail = e
			e.prev = nil
			e.next = nil
		} else {
			e.prev = o.tail
			e.next = nil
			o.tail.next = e
			o.tail = e
		}

		if o.length == 1 {
			o.arm(o.delay)
		}
		return
	}

	// already queued, move to the tail
	if e == o.tail {
		return
	}

	if e == o.head {
		o.head = e.next
	} else {
		e.prev.next = e.next
	}

	e.next.prev = e.prev
	e.prev = o.tail
	e.next = nil
	o.tail.next = e
	o.tail = e
}

func (o *wq) Pop() *Elem {
	if o.head == nil || time.Since(o.head.ts) < o.delay {
		return nil
	}
	return o.unlinkHead()
}

func (o *wq) PopForce() *Elem {
	if o.head == nil {
		return nil
	}
	return o.unlinkHead()
}

func (o *wq) PopReady() (int, *Elem) {
	var (
		i    int
		run  = o.head
		elem = o.head
	)

	for elem != nil {
		if time.Since(elem.ts) < o.delay {
			if i == 0 {
				return 0, nil
			}
			o.head = elem
			if elem.prev != nil {
				elem.prev.next = nil
				elem.prev = nil
			}
			return i, run
		}

		elem.ts = time.Time{}
		elem.queued = false
		elem = elem.next
		o.length--
		i++
	}

	o.head = nil
	o.tail = nil

	return i, run
}

func (o *wq) Remove(e *Elem) {
	if e == nil || !e.queued {
		return
	}

	if e == o.head {
		o.head = e.next
	} else {
		e.prev.next = e.next
	}

	if e == o.tail {
		o.tail = e.prev
	} else {
		e.next.prev = e.prev
	}

	e.ts = time.Time{}
	e.queued = false
	e.prev = nil
	e.next = nil
	o.length--

	if o.head == nil {
		o.disarm()
	}
}

func (o *wq) Update() {
	if o.head == nil {
		o.disarm()
		return
	}

	o.arm(time.Until(o.head.ts.Add(o.delay)))
}

func (o *wq) SetDelay(d time.Duration) {
	o.delay = d
	if o.head != nil {
		o.Update()
	}
}

func (o *wq) Delay() time.Duration {
	return o.delay
}

func (o *wq) Stop() {
	o.disarm()
}

func (o *wq) Length() int {
	return o.length
}
