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

package backend_test

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	gwbkd "github.com/nabbar/gateway/backend"
	gwjbq "github.com/nabbar/gateway/jobqueue"
	libdur "github.com/nabbar/golib/duration"
)

// upstream is a minimal accepting server counting its connections.
type upstream struct {
	lst net.Listener

	m     sync.Mutex
	conns []net.Conn
	count atomic.Int32
}

func newUpstream() *upstream {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}

	u := &upstream{lst: lst}

	go func() {
		for {
			c, e := lst.Accept()
			if e != nil {
				return
			}

			u.count.Add(1)
			u.m.Lock()
			u.conns = append(u.conns, c)
			u.m.Unlock()
		}
	}()

	return u
}

func (u *upstream) addr() string {
	return u.lst.Addr().String()
}

func (u *upstream) accepted() int32 {
	return u.count.Load()
}

// closeLast closes the most recently accepted server-side connection.
func (u *upstream) closeLast() {
	u.m.Lock()
	defer u.m.Unlock()

	if n := len(u.conns); n > 0 {
		_ = u.conns[n-1].Close()
	}
}

func (u *upstream) stop() {
	_ = u.lst.Close()

	u.m.Lock()
	defer u.m.Unlock()

	for _, c := range u.conns {
		_ = c.Close()
	}
}

// testConfig returns a pool configuration with test-scale timeouts.
func testConfig(addr string, maxConn int) gwbkd.Config {
	return gwbkd.Config{
		Address:        addr,
		MaxConnections: maxConn,
		MaxRequests:    -1,
		IdleTimeout:    libdur.ParseDuration(time.Minute),
		ConnectTimeout: libdur.ParseDuration(time.Second),
		WaitTimeout:    libdur.ParseDuration(2 * time.Second),
		DisableTime:    libdur.ParseDuration(150 * time.Millisecond),
	}
}

// waiter drives one virtual request against a pool: every posted wakeup retries
// Get on the owning worker, as the runtime does.
type waiter struct {
	b gwbkd.Backend
	q gwjbq.Queue
	j *gwjbq.Job

	m    sync.Mutex
	w    gwbkd.Wait
	c    gwbkd.Connection
	dead bool

	got     chan gwbkd.Connection
	expired chan struct{}
}

func newWaiter(q gwjbq.Queue, b gwbkd.Backend) *waiter {
	w := &waiter{
		b:       b,
		q:       q,
		got:     make(chan gwbkd.Connection, 1),
		expired: make(chan struct{}),
	}
	w.j = gwjbq.NewJob(w.retry)
	return w
}

// retry performs one Get round, keeping the ticket across rounds.
func (w *waiter) retry() {
	w.m.Lock()
	defer w.m.Unlock()

	if w.dead {
		return
	}

	c, nw, st := w.b.Get(w.q.Ref(w.j), w.w)
	w.w = nw

	switch st {
	case gwbkd.StatusSuccess:
		w.c = c
		w.got <- c
	case gwbkd.StatusTimeout:
		close(w.expired)
	}
}

// start posts the first Get round on the worker.
func (w *waiter) start() {
	w.q.Now(w.j)
}

// stop cancels the outstanding ticket.
func (w *waiter) stop() {
	w.m.Lock()
	defer w.m.Unlock()

	w.dead = true

	if w.w != nil {
		w.b.WaitStop(w.w)
		w.w = nil
	}
}

// conn returns the connection the waiter obtained, nil while parked.
func (w *waiter) conn() gwbkd.Connection {
	w.m.Lock()
	defer w.m.Unlock()
	return w.c
}
