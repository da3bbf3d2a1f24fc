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

package iostream

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	gwchk "github.com/nabbar/gateway/chunk"
	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwstm "github.com/nabbar/gateway/stream"
	gwwtq "github.com/nabbar/gateway/waitqueue"
	liberr "github.com/nabbar/golib/errors"
)

const readBufSize = 32 * 1024

type ios struct {
	src *gwstm.Source
	drn *gwstm.Drain

	out  gwchk.Queue
	conn net.Conn

	cb   EventCB
	data any
	tel  gwwtq.Elem

	inClosed  atomic.Bool
	outClosed atomic.Bool
	canRead   atomic.Bool
	canWrite  atomic.Bool

	srcConnected bool
	drnConnected bool

	bm   sync.Mutex
	jq   gwjbq.Queue
	jIn  *gwjbq.Job
	jEOF *gwjbq.Job
	jOut *gwjbq.Job
	stop chan struct{}
	rd   chan struct{}
	wr   chan struct{}
	grp  *errgroup.Group

	rst sync.Once
}

func (o *ios) Source() *gwstm.Source { return o.src }

func (o *ios) Drain() *gwstm.Drain { return o.drn }

func (o *ios) Conn() net.Conn { return o.conn }

func (o *ios) Data() any { return o.data }

func (o *ios) CanRead() bool { return o.canRead.Load() }

func (o *ios) CanWrite() bool { return o.canWrite.Load() }

func (o *ios) InClosed() bool { return o.inClosed.Load() }

func (o *ios) OutClosed() bool { return o.outClosed.Load() }

func (o *ios) TimeoutElem() *gwwtq.Elem {
	return &o.tel
}

func (o *ios) event(ev Event) {
	if o.cb != nil {
		o.cb(o, ev)
	}
}

func (o *ios) sourceWakeup(s *gwstm.Source) {
	if s.Drain() == nil {
		if o.srcConnected {
			o.srcConnected = false
			o.event(EventDisconnected)
		}
	} else if !o.srcConnected {
		o.srcConnected = true
		o.event(EventConnected)
	}

	// want-data or credit may have changed
	o.sigRead()
}

func (o *ios) drainWakeup(d *gwstm.Drain) {
	src := d.Source()

	if src == nil {
		if o.drnConnected {
			o.drnConnected = false
			o.event(EventDisconnected)

			if o.out.Len() == 0 {
				o.event(EventFlushed)
			}
		}
		return
	}

	if !o.drnConnected {
		o.drnConnected = true
		o.event(EventConnected)
	}

	cq := src.Queue()
	o.out.StealAll(cq)

	if cq.IsClosed() {
		if !o.out.IsClosed() {
			o.out.Close()
		}

		// re-entrant unlink: our own callback will not fire again for it
		d.Disconnect()

		if o.drnConnected {
			o.drnConnected = false
			o.event(EventDisconnected)
		}

		o.sigWrite()
		return
	}

	o.sigWrite()
	d.Notify()
}

func (o *ios) sigRead() {
	select {
	case o.rd <- struct{}{}:
	default:
	}
}

func (o *ios) sigWrite() {
	select {
	case o.wr <- struct{}{}:
	default:
	}
}

func (o *ios) bind(q gwjbq.Queue) {
	o.bm.Lock()
	defer o.bm.Unlock()

	o.out = gwchk.NewQueue()
	o.jq = q
	o.jIn = gwjbq.NewJob(func() { o.src.Notify() })
	o.jEOF = gwjbq.NewJob(o.closeIn)
	o.jOut = gwjbq.NewJob(func() { o.event(EventFlushed) })
	o.stop = make(chan struct{})
	o.rd = make(chan struct{}, 1)
	o.wr = make(chan struct{}, 1)

	o.canRead.Store(true)
	o.canWrite.Store(true)

	_ = o.conn.SetDeadline(time.Time{})

	stop := o.stop
	o.grp = &errgroup.Group{}
	o.grp.Go(func() error { return o.readPump(stop) })
	o.grp.Go(func() error { return o.writePump(stop) })
}

func (o *ios) closeIn() {
	if cq := o.src.Queue(); cq != nil && !cq.IsClosed() {
		cq.Close()
	}
	o.src.Notify()
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func (o *ios) readPump(stop chan struct{}) error {
	buf := make([]byte, readBufSize)

	defer o.canRead.Store(false)

	for {
		if stopped(stop) {
			return nil
		}

		if l := o.src.Queue().Limit(); l != nil && l.Remaining() <= 0 {
			// pause until credit frees; the hook only signals, never calls back
			l.Notify(o.sigRead)

			if l.Remaining() <= 0 {
				select {
				case <-stop:
					return nil
				case <-o.rd:
				}
			}
			continue
		}

		n, err := o.conn.Read(buf)

		if n > 0 {
			o.src.Queue().AppendBytes(buf[:n])
			o.jq.Now(o.jIn)
		}

		if err != nil {
			if e, k := err.(net.Error); k && e.Timeout() {
				// deadline poke from stop/detach
				continue
			}

			// EOF or read error closes the in side
			o.inClosed.Store(true)
			o.jq.Now(o.jEOF)
			return nil
		}
	}
}

func (o *ios) writePump(stop chan struct{}) error {
	defer o.canWrite.Store(false)

	for {
		for o.out.Len() > 0 {
			if stopped(stop) {
				return nil
			}

			if _, err := o.out.WriteTo(o.conn); err != nil {
				if e, k := err.(net.Error); k && e.Timeout() {
					continue
				}

				// broken pipe or the like: the out side is gone
				o.outClosed.Store(true)
				o.out.SkipAll()
				return err
			}
		}

		if o.out.IsClosed() {
			o.closeWrite()
			o.jq.Now(o.jOut)
			return nil
		}

		select {
		case <-stop:
			return nil
		case <-o.wr:
		}
	}
}

func (o *ios) closeWrite() {
	o.outClosed.Store(true)

	if c, k := o.conn.(interface{ CloseWrite() error }); k {
		_ = c.CloseWrite()
	}
}

func (o *ios) Shutdown() {
	if !o.out.IsClosed() {
		o.out.Close()
	}
	o.sigWrite()
}

func (o *ios) unbind() {
	o.bm.Lock()
	defer o.bm.Unlock()

	if o.stop != nil {
		select {
		case <-o.stop:
		default:
			close(o.stop)
		}
	}

	// poke blocked socket calls
	_ = o.conn.SetDeadline(time.Now())

	if o.grp != nil {
		_ = o.grp.Wait()
		o.grp = nil
	}

	if l := o.src.Queue().Limit(); l != nil {
		l.Notify(nil)
	}

	if o.jq != nil {
		o.jq.Clear(o.jIn)
		o.jq.Clear(o.jEOF)
		o.jq.Clear(o.jOut)
		o.jq = nil
	}
}

func (o *ios) Detach() liberr.Error {
	if o.src.Drain() != nil || o.drn.Source() != nil {
		return ErrorStillConnected.Error(nil)
	}

	if o.jq == nil {
		return ErrorNotAttached.Error(nil)
	}

	o.unbind()
	return nil
}

func (o *ios) Attach(q gwjbq.Queue) liberr.Error {
	if q == nil {
		return ErrorParamEmpty.Error(nil)
	}

	if o.jq != nil {
		return ErrorStillAttached.Error(nil)
	}

	if o.src.Drain() != nil || o.drn.Source() != nil {
		return ErrorStillConnected.Error(nil)
	}

	o.bind(q)
	return nil
}

func (o *ios) Reset() {
	o.rst.Do(func() {
		o.inClosed.Store(true)
		o.outClosed.Store(true)

		_ = o.conn.Close()

		jq := o.jq

		// pumps first: they must not touch the halves once cleared
		o.unbind()

		if jq != nil {
			j := gwjbq.NewJob(func() {
				o.src.Clear()
				o.drn.Clear()
			})
			jq.Now(j)
		} else {
			o.src.Clear()
			o.drn.Clear()
		}
	})
}
