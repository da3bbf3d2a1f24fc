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

// Package backend implements the per-upstream connection pool that multiplexes
// virtual requests onto a bounded set of persistent connections.
//
// A request asks for a connection with Get. When none is available it receives a
// wait ticket: an opaque FIFO token the caller keeps across retries. The pool
// wakes parked requests by posting their job reference; the retry always runs on
// the waiter's own worker. Connection establishment is serialized (at most one
// dial in flight), a failed dial opens a disable window during which no new dial
// starts, and idle connections sit in an LRU watched for unexpected traffic.
//
// All timeouts (waiter deadline, idle expiry, connect deadline, disable window)
// cascade through one timer armed on the earliest of them.
package backend

import (
	"context"
	"net"
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// Status is the outcome of a Get call.
type Status uint8

const (
	// StatusSuccess delivers an active connection to the caller.
	StatusSuccess Status = iota

	// StatusWait parks the caller: its ticket sits in the wait queue and its
	// job reference will be posted when a slot frees.
	StatusWait

	// StatusTimeout reports an expired ticket or a pool shut down; the ticket
	// was reclaimed.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusWait:
		return "wait"
	case StatusTimeout:
		return "timeout"
	}
	return "unknown"
}

// Connection is an upstream connection lent to exactly one virtual request at a
// time.
type Connection interface {
	// Conn returns the underlying network connection.
	Conn() net.Conn

	// Requests returns how many requests this connection already served.
	Requests() int

	// MarkBroken flags the connection unusable: Put will close it regardless of
	// the close flag.
	MarkBroken()

	// Address returns the upstream address the connection is bound to.
	Address() string
}

// Wait is an opaque parked-request ticket. The caller keeps it across Get
// retries; it orders waiters FIFO by first entry and carries the immutable
// deadline of the wait.
type Wait interface {
	// Deadline returns the instant the wait expires.
	Deadline() time.Time
}

// Backend is a pool of persistent connections to one upstream address.
type Backend interface {
	// Get delivers an idle connection, or parks the caller.
	//
	// The job reference is retained only when the call parks a new or
	// re-signaled ticket; it is posted asynchronously when a slot frees. On
	// StatusSuccess and StatusTimeout any ticket passed in was reclaimed and
	// must not be reused; on StatusWait the (possibly new) ticket is returned
	// and must be passed to the next call.
	Get(ref gwjbq.Ref, w Wait) (Connection, Wait, Status)

	// Put returns a lent connection. It is closed when the flag says so, when
	// it was marked broken, when the pool is shutting down, or when it served
	// its maximum number of requests; otherwise it joins the idle LRU tail.
	// One parked waiter is woken.
	Put(c Connection, closeCon bool)

	// WaitStop cancels an outstanding ticket. A ticket that was already
	// signaled hands the signal to the next FIFO waiter, so no wakeup is lost.
	WaitStop(w Wait)

	// Close shuts the pool down: the pending dial is aborted, the idle set is
	// drained, parked waiters are woken to observe the shutdown, and no new
	// connection will ever be opened.
	Close()

	// Address returns the configured upstream address.
	Address() string

	// ActiveCount returns the number of connections currently lent out.
	ActiveCount() int

	// IdleCount returns the number of idle pooled connections.
	IdleCount() int

	// WaitingCount returns the number of parked tickets.
	WaitingCount() int

	// IsDisabled reports whether the pool sits in a post-failure disable
	// window.
	IsDisabled() bool
}

// New validates the configuration and returns a pool bound to the given
// context; cancelling the context aborts any in-flight dial. A nil log function
// falls back to the default logger.
func New(ctx context.Context, cfg Config, log liblog.FuncLog) (Backend, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	o := &bck{
		ctx: ctx,
		cfg: cfg,
		log: log,
	}

	return o, nil
}
