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

package stream_test

import (
	"sync"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwstm "github.com/nabbar/gateway/stream"
)

// collector is a consuming stream endpoint recording everything it reads.
type collector struct {
	m      sync.Mutex
	buf    []byte
	closed bool
	str    *gwstm.Stream
}

// newCollector returns a stream whose data handler drains its upstream into
// the collector buffer.
func newCollector(q gwjbq.Queue) *collector {
	c := &collector{}
	c.str = gwstm.New(q, c, c.data, nil)
	return c
}

func (c *collector) data(s *gwstm.Stream) {
	src := s.Drain().Source()
	if src == nil {
		return
	}

	cq := src.Queue()
	tmp := make([]byte, 64)

	c.m.Lock()
	for {
		n, _ := cq.Read(tmp)
		if n == 0 {
			break
		}
		c.buf = append(c.buf, tmp[:n]...)
	}
	if cq.IsClosed() {
		c.closed = true
	}
	c.m.Unlock()

	s.Drain().Notify()
}

func (c *collector) bytes() []byte {
	c.m.Lock()
	defer c.m.Unlock()
	b := make([]byte, len(c.buf))
	copy(b, c.buf)
	return b
}

func (c *collector) isClosed() bool {
	c.m.Lock()
	defer c.m.Unlock()
	return c.closed
}
