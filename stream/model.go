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

package stream

import (
	"sync/atomic"

	gwjbq "github.com/nabbar/gateway/jobqueue"
)

// Stream is a node of the dataflow graph: a source half, a drain half, a
// coalesced job, user data and the data / free callbacks.
type Stream struct {
	refcount int32

	data any

	source Source
	drain  Drain

	srcConnected bool
	drnConnected bool

	handleData StreamCB
	handleFree StreamCB

	job *gwjbq.Job
	jq  gwjbq.Queue
}

// Source returns the stream's producing half.
func (s *Stream) Source() *Source {
	return &s.source
}

// Drain returns the stream's consuming half.
func (s *Stream) Drain() *Drain {
	return &s.drain
}

// Data returns the user data attached at construction.
func (s *Stream) Data() any {
	return s.data
}

// Refs returns the current reference count.
func (s *Stream) Refs() int {
	return int(atomic.LoadInt32(&s.refcount))
}

// Acquire adds a reference. Reviving a dead stream panics.
func (s *Stream) Acquire() {
	if atomic.AddInt32(&s.refcount, 1) <= 1 {
		panic("stream: acquire on released stream")
	}
}

// Release drops a reference; the last one frees the stream and runs the free
// handler, exactly once.
func (s *Stream) Release() {
	if s == nil {
		return
	}

	r := atomic.AddInt32(&s.refcount, -1)

	if r < 0 {
		panic("stream: release without reference")
	}

	if r == 0 {
		s.free()
	}
}

func (s *Stream) free() {
	// connections hold references, so both halves must be unlinked here
	if s.source.drain != nil || s.drain.source != nil {
		panic("stream: freed while connected")
	}

	s.source.Clear()
	s.drain.Clear()

	if s.jq != nil {
		s.jq.Clear(s.job)
		s.jq = nil
	}

	s.handleData = nil

	if fn := s.handleFree; fn != nil {
		s.handleFree = nil
		fn(s)
	}

	s.data = nil
}

// Wakeup posts the stream's job for the current dispatch round.
func (s *Stream) Wakeup() {
	if s.jq != nil && s.handleData != nil {
		s.jq.Now(s.job)
	}
}

// WakeupLater posts the stream's job for the next dispatch round.
func (s *Stream) WakeupLater() {
	if s.jq != nil && s.handleData != nil {
		s.jq.Later(s.job)
	}
}

// Reset tears the stream down hard: callbacks are disabled and both halves are
// disconnected. Use it on errors; prefer Close for a cooperative end.
func (s *Stream) Reset() {
	s.data = nil
	s.handleFree = nil
	s.handleData = nil

	s.source.Disconnect()
	s.drain.Disconnect()
}

// Close ends the stream cooperatively: callbacks are disabled, the drain side is
// disconnected and the outgoing queue is closed, so the downstream drain reads
// EOF and unlinks itself once drained. The stream stays alive until then.
func (s *Stream) Close() {
	s.data = nil
	s.handleFree = nil
	s.handleData = nil

	s.drain.Disconnect()

	if !s.source.cq.IsClosed() {
		s.source.cq.Close()
	}
	s.source.Notify()
}

// dispatch is the coalesced job body: it runs the data handler under a safety
// reference with both halves paused, then eagerly unlinks the drain when the
// upstream reached EOF.
func (s *Stream) dispatch() {
	if s.handleData == nil {
		return
	}

	s.Acquire()
	s.source.NotifyPause()
	s.drain.NotifyPause()

	s.handleData(s)

	if src := s.drain.source; src != nil && src.valid &&
		src.cq.Len() == 0 && src.cq.IsClosed() {
		s.drain.Disconnect()
	}

	s.drain.NotifyContinue()
	s.source.NotifyContinue()
	s.Release()
}

func (s *Stream) sourceWakeup(_ *Source) {
	if s.source.drain == nil {
		if s.srcConnected {
			s.srcConnected = false
			s.Wakeup()
			s.Release()
		}
		return
	}

	if !s.srcConnected {
		s.srcConnected = true
		s.Acquire()
	}

	s.Wakeup()
}

func (s *Stream) drainWakeup(_ *Drain) {
	if s.drain.source == nil {
		if s.drnConnected {
			s.drnConnected = false
			s.Wakeup()
			s.Release()
		}
		return
	}

	if !s.drnConnected {
		s.drnConnected = true
		s.Acquire()
	}

	if cq := s.drain.source.cq; cq.Len() > 0 || cq.IsClosed() {
		s.Wakeup()
	} else {
		s.WakeupLater()
	}
}

func plugData(s *Stream) {
	src := s.drain.Source()
	if src == nil {
		return
	}

	out := s.source.Queue()
	out.StealAll(src.Queue())

	if src.Queue().IsClosed() && !out.IsClosed() {
		out.Close()
	}

	s.source.Notify()
	s.drain.Notify()
}

func nullData(s *Stream) {
	src := s.drain.Source()
	if src == nil {
		return
	}

	src.Queue().SkipAll()
	s.drain.Notify()
}
