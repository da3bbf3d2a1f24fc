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

// Package iostream binds a stream pair to a network connection.
//
// The source half produces what the socket delivers: a read pump fills the
// incoming queue while the shared credit limit allows and posts wakeups on the
// owning worker. The drain half consumes the graph's output: whatever the
// connected source produces moves to the outgoing queue, and a write pump pushes
// it to the socket. EOF closes the in side, a write error closes the out side.
//
// An IO stream can migrate between workers: Detach stops the pumps and unhooks
// the worker, Attach rebinds on another one. Migration is only legal while both
// halves are unconnected.
package iostream

import (
	"net"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwstm "github.com/nabbar/gateway/stream"
	gwwtq "github.com/nabbar/gateway/waitqueue"
	liberr "github.com/nabbar/golib/errors"
)

// Event tags the wakeups delivered to the event callback. All events are posted
// on the owning worker's loop.
type Event uint8

const (
	// EventConnected fires when either half becomes connected.
	EventConnected Event = iota

	// EventDisconnected fires when either half becomes disconnected.
	EventDisconnected

	// EventFlushed fires when the outgoing queue drains empty after its close or
	// after the drain was disconnected.
	EventFlushed
)

// EventCB receives lifecycle events of an IO stream.
type EventCB func(io IOStream, ev Event)

// IOStream is a stream specialization bound to a socket.
type IOStream interface {
	// Source returns the half producing the socket's incoming bytes.
	Source() *gwstm.Source

	// Drain returns the half consuming the graph's outgoing bytes.
	Drain() *gwstm.Drain

	// Conn returns the bound connection.
	Conn() net.Conn

	// Data returns the user data attached at construction.
	Data() any

	// CanRead reports whether the read pump is still running.
	CanRead() bool

	// CanWrite reports whether the write pump is still running.
	CanWrite() bool

	// InClosed reports whether EOF or a read error was observed.
	InClosed() bool

	// OutClosed reports whether the write side was shut down or failed.
	OutClosed() bool

	// Shutdown half-closes the socket's write side once the outgoing queue is
	// flushed, and refuses further output.
	Shutdown()

	// Reset tears the IO stream down hard: the socket is closed, pumps stop and
	// both halves disconnect. Idempotent and safe from any goroutine.
	Reset()

	// Detach unbinds the IO stream from its worker: pumps stop, the limit hook
	// is dropped and the jobs are cleared. It fails while a half is connected.
	Detach() liberr.Error

	// Attach rebinds a detached IO stream onto the given worker queue and
	// restarts the pumps.
	Attach(q gwjbq.Queue) liberr.Error

	// TimeoutElem returns the intrusive element for the host's I/O timeout
	// queue.
	TimeoutElem() *gwwtq.Elem
}

// New binds the given connection to a stream pair scheduled on the given worker
// queue and starts the pumps. The callback may be nil.
func New(q gwjbq.Queue, conn net.Conn, cb EventCB, data any) IOStream {
	o := &ios{
		conn: conn,
		cb:   cb,
		data: data,
	}

	o.src = gwstm.NewSource(o.sourceWakeup)
	o.drn = gwstm.NewDrain(o.drainWakeup)
	o.tel.Data = o

	o.bind(q)

	return o
}
