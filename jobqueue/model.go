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

package jobqueue

import (
	"context"
	"sync"
	"sync/atomic"
)

// Job is a coalescing unit of deferred work. All link fields are guarded by the
// owning queue's mutex; a job sits in at most one list at a time.
type Job struct {
	fn func()

	next        *Job
	queuedNow   bool
	queuedLater bool
	dead        bool
}

type jobList struct {
	head *Job
	tail *Job
	size int
}

func (l *jobList) push(j *Job) {
	j.next = nil
	if l.tail == nil {
		l.head = j
	} else {
		l.tail.next = j
	}
	l.tail = j
	l.size++
}

func (l *jobList) pop() *Job {
	j := l.head
	if j == nil {
		return nil
	}
	l.head = j.next
	if l.head == nil {
		l.tail = nil
	}
	j.next = nil
	l.size--
	return j
}

func (l *jobList) remove(j *Job) {
	var prev *Job
	for c := l.head; c != nil; c = c.next {
		if c == j {
			if prev == nil {
				l.head = c.next
			} else {
				prev.next = c.next
			}
			if l.tail == c {
				l.tail = prev
			}
			j.next = nil
			l.size--
			return
		}
		prev = c
	}
}

type queue struct {
	m sync.Mutex

	now   jobList
	later jobList

	wake chan struct{}
	stop chan struct{}
	run  atomic.Bool
}

func (o *queue) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *queue) Run(ctx context.Context) {
	o.run.Store(true)
	defer o.run.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stop:
			return
		case <-o.wake:
			o.dispatch()
		}
	}
}

func (o *queue) dispatch() {
	o.m.Lock()

	// the later batch of the previous round becomes runnable now
	for j := o.later.pop(); j != nil; j = o.later.pop() {
		j.queuedLater = false
		if !j.queuedNow {
			j.queuedNow = true
			o.now.push(j)
		}
	}

	for {
		j := o.now.pop()
		if j == nil {
			break
		}
		j.queuedNow = false

		if j.dead || j.fn == nil {
			continue
		}

		fn := j.fn
		o.m.Unlock()
		fn()
		o.m.Lock()
	}

	if o.later.size > 0 {
		o.signal()
	}

	o.m.Unlock()
}

func (o *queue) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

func (o *queue) IsRunning() bool {
	return o.run.Load()
}

func (o *queue) Now(j *Job) {
	if j == nil {
		return
	}

	o.m.Lock()
	if !j.dead && !j.queuedNow {
		j.queuedNow = true
		o.now.push(j)
		o.signal()
	}
	o.m.Unlock()
}

func (o *queue) Later(j *Job) {
	if j == nil {
		return
	}

	o.m.Lock()
	if !j.dead && !j.queuedNow && !j.queuedLater {
		j.queuedLater = true
		o.later.push(j)
		o.signal()
	}
	o.m.Unlock()
}

func (o *queue) Ref(j *Job) Ref {
	return &jobRef{q: o, j: j}
}

func (o *queue) Clear(j *Job) {
	if j == nil {
		return
	}

	o.m.Lock()
	j.dead = true
	if j.queuedNow {
		o.now.remove(j)
		j.queuedNow = false
	}
	if j.queuedLater {
		o.later.remove(j)
		j.queuedLater = false
	}
	o.m.Unlock()
}

func (o *queue) Length() int {
	o.m.Lock()
	defer o.m.Unlock()
	return o.now.size + o.later.size
}

type jobRef struct {
	q *queue
	j *Job
	r atomic.Bool // released
}

func (o *jobRef) Post() {
	if o == nil || o.r.Load() {
		return
	}
	o.q.Now(o.j)
}

func (o *jobRef) Release() {
	if o == nil {
		return
	}
	o.r.Store(true)
}
