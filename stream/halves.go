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
	gwchk "github.com/nabbar/gateway/chunk"
)

// Source is the producing half of a stream link: it owns the outgoing chunk
// queue read by the connected drain.
type Source struct {
	cq    gwchk.Queue
	drain *Drain

	wakeup  SourceCB
	entered bool
	delay   uint

	lastClosed  bool
	lastBytesIn int64

	valid bool
	owner *Stream
}

func (s *Source) init(cb SourceCB) {
	s.cq = gwchk.NewQueue()
	s.drain = nil
	s.wakeup = cb
	s.entered = false
	s.lastClosed = false
	s.lastBytesIn = 0
	s.delay = 0
	s.valid = true
}

// Queue returns the outgoing chunk queue.
func (s *Source) Queue() gwchk.Queue {
	return s.cq
}

// Drain returns the connected drain, nil when unconnected.
func (s *Source) Drain() *Drain {
	return s.drain
}

// Valid reports whether the half was not cleared.
func (s *Source) Valid() bool {
	return s != nil && s.valid
}

// Stream returns the owning stream, nil for a standalone half.
func (s *Source) Stream() *Stream {
	return s.owner
}

// Disconnect unlinks the source from its drain; both halves are notified.
func (s *Source) Disconnect() {
	if s == nil || s.drain == nil {
		return
	}
	disconnect(s, s.drain)
}

// Clear disables further callbacks, disconnects and drops the queue. The half is
// unusable afterwards. No callback is triggered on the half itself.
func (s *Source) Clear() {
	if s == nil || s.wakeup == nil {
		return
	}

	s.wakeup = nil

	if s.drain != nil {
		disconnect(s, s.drain)
	}

	s.cq = nil
	s.lastClosed = true
	s.lastBytesIn = 0
	s.valid = false
}

// ResetQueue drops buffered content and reopens the queue, then notifies the
// connected drain. Only a recycled source may use this.
func (s *Source) ResetQueue() {
	s.cq.Reset()
	s.lastClosed = false
	s.lastBytesIn = 0
	s.Notify()
}

// Notify wakes the connected drain after the source queue changed. Re-entry and
// paused halves are skipped.
func (s *Source) Notify() {
	d := s.drain

	if !s.valid || d == nil || !d.valid ||
		d.wakeup == nil || d.entered || d.delay > 0 {
		return
	}

	d.entered = true
	d.wakeup(d)
	d.entered = false
}

// NotifyPause defers wakeups of the connected drain until a matching
// NotifyContinue.
func (s *Source) NotifyPause() {
	s.delay++
}

// NotifyContinue undoes one NotifyPause; dropping to zero re-notifies only when
// the queue state actually changed since the pause.
func (s *Source) NotifyContinue() {
	if s.delay == 0 {
		panic("stream: unbalanced notify continue on source")
	}
	s.delay--

	if s.delay != 0 || !s.valid {
		return
	}

	if s.lastClosed == s.cq.IsClosed() && s.lastBytesIn == s.cq.BytesIn() {
		return
	}

	s.lastClosed = s.cq.IsClosed()
	s.lastBytesIn = s.cq.BytesIn()

	s.Notify()
}

// Drain is the consuming half of a stream link.
type Drain struct {
	wantData bool
	source   *Source

	wakeup  DrainCB
	entered bool
	delay   uint

	valid bool
	owner *Stream
}

func (d *Drain) init(cb DrainCB) {
	d.wantData = true
	d.source = nil
	d.wakeup = cb
	d.entered = false
	d.delay = 0
	d.valid = true
}

// Source returns the connected source, nil when unconnected.
func (d *Drain) Source() *Source {
	return d.source
}

// Valid reports whether the half was not cleared.
func (d *Drain) Valid() bool {
	return d != nil && d.valid
}

// Stream returns the owning stream, nil for a standalone half.
func (d *Drain) Stream() *Stream {
	return d.owner
}

// WantData reports whether the drain is ready for more data.
func (d *Drain) WantData() bool {
	return d.wantData
}

// SetWantData flips the backpressure flag and notifies the connected source.
func (d *Drain) SetWantData(want bool) {
	if d.wantData == want {
		return
	}
	d.wantData = want
	d.Notify()
}

// Disconnect unlinks the drain from its source; both halves are notified.
func (d *Drain) Disconnect() {
	if d == nil || d.source == nil {
		return
	}
	disconnect(d.source, d)
}

// Clear disables further callbacks and disconnects. The half is unusable
// afterwards. No callback is triggered on the half itself.
func (d *Drain) Clear() {
	if d == nil || d.wakeup == nil {
		return
	}

	d.wakeup = nil

	if d.source != nil {
		disconnect(d.source, d)
	}

	d.wantData = false
	d.valid = false
}

// Notify wakes the connected source after reading from its queue or flipping
// want-data. Re-entry and paused halves are skipped.
func (d *Drain) Notify() {
	s := d.source

	if !d.valid || s == nil || !s.valid ||
		s.wakeup == nil || s.entered || s.delay > 0 {
		return
	}

	s.entered = true
	s.wakeup(s)
	s.entered = false
}

// NotifyPause defers wakeups of the connected source until a matching
// NotifyContinue.
func (d *Drain) NotifyPause() {
	d.delay++
}

// NotifyContinue undoes one NotifyPause, re-notifying when the counter drops to
// zero.
func (d *Drain) NotifyContinue() {
	if d.delay == 0 {
		panic("stream: unbalanced notify continue on drain")
	}
	d.delay--

	if d.delay == 0 {
		d.Notify()
	}
}

func disconnect(s *Source, d *Drain) {
	if !s.valid || !d.valid {
		panic("stream: disconnect on cleared endpoint")
	}

	s.drain = nil
	d.source = nil

	// each half observes the unlink through its own callback; pause counters do
	// not defer this, else connection references would leak
	if s.wakeup != nil && !s.entered {
		s.entered = true
		s.wakeup(s)
		s.entered = false
	}

	if d.wakeup != nil && !d.entered {
		d.entered = true
		d.wakeup(d)
		d.entered = false
	}
}

// inheritLimit runs at connect time: when exactly one side of the new link
// carries a limit, the limitless side's contiguous subgraph inherits it.
func inheritLimit(src *Source, dr *Drain) {
	var (
		sl = src.cq.Limit()
		dl gwchk.Limit
	)

	if dr.owner != nil {
		dl = dr.owner.source.cq.Limit()
	}

	switch {
	case sl != nil && dl == nil && dr.owner != nil:
		PropagateLimit(&dr.owner.source, sl)

	case sl == nil && dl != nil:
		propagateUp(src, dl)
	}
}

// propagateUp walks the drain-chain upstream from the given source, installing
// the limit until a boundary endpoint or a pre-limited queue.
func propagateUp(src *Source, l gwchk.Limit) {
	for src != nil {
		cq := src.Queue()

		if cq.Limit() != nil {
			return
		}

		cq.SetLimit(l)

		if src.owner == nil {
			return
		}

		up := src.owner.drain.source
		if up == nil {
			return
		}

		src = up
	}
}
