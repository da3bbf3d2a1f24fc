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

// Package stream implements the reference-counted dataflow graph that request and
// response bodies travel through.
//
// A Stream is a node with two half-endpoints: its source side owns the outgoing
// chunk queue and may be connected to a downstream drain; its drain side consumes
// from an upstream source. Data always flows source to drain along a connection.
// A connection holds one reference on each endpoint's stream, so a node stays
// alive as long as anything is wired to it; the free handler runs exactly once,
// when the last reference drops.
//
// All wakeups coalesce through the owning worker's job queue: the graph is
// strictly single-worker and never locks. In normal operation the drain is
// responsible for disconnecting after it read the EOF (source queue empty and
// closed); the dispatcher does this eagerly after each data callback.
package stream

import (
	gwchk "github.com/nabbar/gateway/chunk"
	gwjbq "github.com/nabbar/gateway/jobqueue"
)

// SourceCB is the wakeup callback of a source half: it runs on connect, on
// disconnect, and when the connected drain changes its want-data flag.
type SourceCB func(s *Source)

// DrainCB is the wakeup callback of a drain half: it runs on connect, on
// disconnect, and when the connected source's queue changes.
type DrainCB func(d *Drain)

// StreamCB is the data / free callback of a Stream.
type StreamCB func(s *Stream)

// NewSource returns a standalone source half with a fresh outgoing queue. A nil
// callback makes the half ignore wakeups.
func NewSource(cb SourceCB) *Source {
	s := &Source{}
	s.init(cb)
	return s
}

// NewDrain returns a standalone drain half. A nil callback makes the half ignore
// wakeups.
func NewDrain(cb DrainCB) *Drain {
	d := &Drain{}
	d.init(cb)
	return d
}

// NullSourceCB is a source callback doing nothing; use it for sources fed
// externally.
func NullSourceCB(_ *Source) {}

// NullDrainCB is a drain callback dropping every byte it is offered.
func NullDrainCB(d *Drain) {
	if src := d.Source(); src != nil {
		src.Queue().SkipAll()
		d.Notify()
	}
}

// New returns a Stream scheduled on the given job queue with one reference owned
// by the caller. handleData runs on the worker loop for every coalesced wakeup;
// handleFree runs exactly once when the refcount reaches zero.
func New(q gwjbq.Queue, data any, handleData, handleFree StreamCB) *Stream {
	s := &Stream{
		refcount:   1,
		data:       data,
		handleData: handleData,
		handleFree: handleFree,
		jq:         q,
	}

	s.source.init(s.sourceWakeup)
	s.source.owner = s
	s.drain.init(s.drainWakeup)
	s.drain.owner = s

	s.job = gwjbq.NewJob(s.dispatch)

	return s
}

// NewPlug returns a forwarding stream: everything offered to its drain is moved
// to its outgoing queue, and the upstream close propagates downstream.
func NewPlug(q gwjbq.Queue) *Stream {
	return New(q, nil, plugData, nil)
}

// NewNull returns a sink stream: it eats all input unconditionally and its
// outgoing queue is permanently closed.
func NewNull(q gwjbq.Queue) *Stream {
	s := New(q, nil, nullData, nil)
	s.source.cq.Close()
	return s
}

// Connect links a source to a drain so the source's queue feeds the drain.
// Reconnecting an identical pair is a no-op; connecting an endpoint that is
// already wired elsewhere panics. Both halves are notified, limit inheritance
// runs (see PropagateLimit), and a data wakeup fires when the source already has
// buffered bytes or reached EOF.
func Connect(src *Source, dr *Drain) {
	if !src.valid || !dr.valid {
		panic("stream: connect on cleared endpoint")
	}

	if src.drain == dr {
		if dr.source != src {
			panic("stream: half-connected pair")
		}
		return
	}

	if src.drain != nil || dr.source != nil {
		panic("stream: endpoint already connected")
	}

	dr.source = src
	src.drain = dr

	inheritLimit(src, dr)

	src.Notify()
	dr.Notify()
}

// PropagateLimit installs the limit on limitless queues, starting with the queue
// of the given source and walking the connected subgraph downstream; it stops at
// a boundary endpoint or at the first queue that already carries a limit.
func PropagateLimit(src *Source, l gwchk.Limit) {
	for src != nil {
		cq := src.Queue()

		if cq.Limit() != nil {
			return
		}

		cq.SetLimit(l)

		dr := src.Drain()
		if dr == nil || dr.owner == nil {
			return
		}

		src = &dr.owner.source
	}
}
