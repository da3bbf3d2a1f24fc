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

package chunk

import (
	"io"
	"sync"
)

type queue struct {
	m sync.Mutex

	chunks []chunkOps
	length int64
	in     int64
	out    int64
	closed bool
	lim    Limit
}

func (o *queue) Len() int64 {
	o.m.Lock()
	defer o.m.Unlock()
	return o.length
}

func (o *queue) BytesIn() int64 {
	o.m.Lock()
	defer o.m.Unlock()
	return o.in
}

func (o *queue) BytesOut() int64 {
	o.m.Lock()
	defer o.m.Unlock()
	return o.out
}

func (o *queue) IsClosed() bool {
	o.m.Lock()
	defer o.m.Unlock()
	return o.closed
}

func (o *queue) Close() {
	o.m.Lock()
	o.closed = true
	o.m.Unlock()
}

// lock held
func (o *queue) append(c chunkOps) {
	if o.closed {
		panic("chunk: append on closed queue")
	}

	n := c.Len()
	if n == 0 {
		return
	}

	o.chunks = append(o.chunks, c)
	o.length += n
	o.in += n

	if o.lim != nil {
		o.lim.(*limit).acquire(n)
	}
}

// lock held
func (o *queue) consumed(n int64) {
	o.length -= n
	o.out += n

	if o.lim != nil && n > 0 {
		o.lim.(*limit).release(n)
	}
}

func (o *queue) AppendBytes(p []byte) {
	if len(p) == 0 {
		return
	}

	b := make([]byte, len(p))
	copy(b, p)

	o.m.Lock()
	o.append(&memChunk{buf: b})
	o.m.Unlock()
}

func (o *queue) AppendString(s string) {
	o.AppendBytes([]byte(s))
}

func (o *queue) AppendFile(f io.ReaderAt, offset, length int64) {
	if f == nil || length <= 0 {
		return
	}

	o.m.Lock()
	o.append(&fileChunk{f: f, off: offset, n: length})
	o.m.Unlock()
}

func (o *queue) StealAll(from Queue) {
	src, ok := from.(*queue)
	if !ok || src == o {
		return
	}

	src.m.Lock()
	chunks := src.chunks
	moved := src.length
	src.chunks = nil
	src.consumed(moved)
	src.m.Unlock()

	if moved == 0 {
		return
	}

	o.m.Lock()
	if o.closed {
		panic("chunk: append on closed queue")
	}
	o.chunks = append(o.chunks, chunks...)
	o.length += moved
	o.in += moved
	if o.lim != nil {
		o.lim.(*limit).acquire(moved)
	}
	o.m.Unlock()
}

func (o *queue) StealLen(from Queue, n int64) int64 {
	src, ok := from.(*queue)
	if !ok || src == o || n <= 0 {
		return 0
	}

	var (
		moved  int64
		chunks []chunkOps
	)

	src.m.Lock()
	for n > 0 && len(src.chunks) > 0 {
		c := src.chunks[0]

		if l := c.Len(); l <= n {
			chunks = append(chunks, c)
			src.chunks = src.chunks[1:]
			moved += l
			n -= l
		} else {
			chunks = append(chunks, c.split(n).(chunkOps))
			moved += n
			n = 0
		}
	}
	src.consumed(moved)
	src.m.Unlock()

	if moved == 0 {
		return 0
	}

	o.m.Lock()
	if o.closed {
		panic("chunk: append on closed queue")
	}
	o.chunks = append(o.chunks, chunks...)
	o.length += moved
	o.in += moved
	if o.lim != nil {
		o.lim.(*limit).acquire(moved)
	}
	o.m.Unlock()

	return moved
}

func (o *queue) Read(p []byte) (int, error) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.length == 0 {
		if o.closed {
			return 0, io.EOF
		}
		return 0, nil
	}

	var tot int
	for len(p) > 0 && len(o.chunks) > 0 {
		c := o.chunks[0]
		n := c.read(p)

		tot += n
		p = p[n:]

		if c.Len() == 0 {
			o.chunks = o.chunks[1:]
		}

		if n == 0 {
			break
		}
	}

	o.consumed(int64(tot))
	return tot, nil
}

func (o *queue) WriteTo(w io.Writer) (int64, error) {
	var tot int64

	for {
		o.m.Lock()
		if len(o.chunks) == 0 {
			o.m.Unlock()
			return tot, nil
		}
		c := o.chunks[0]
		o.m.Unlock()

		n, err := c.writeTo(w)

		o.m.Lock()
		o.consumed(n)
		if c.Len() == 0 && len(o.chunks) > 0 && o.chunks[0] == c {
			o.chunks = o.chunks[1:]
		}
		o.m.Unlock()

		tot += n

		if err != nil {
			return tot, err
		}
	}
}

func (o *queue) Skip(n int64) int64 {
	o.m.Lock()
	defer o.m.Unlock()

	var tot int64
	for n > 0 && len(o.chunks) > 0 {
		c := o.chunks[0]
		s := c.skip(n)

		tot += s
		n -= s

		if c.Len() == 0 {
			o.chunks = o.chunks[1:]
		}
	}

	o.consumed(tot)
	return tot
}

func (o *queue) SkipAll() {
	o.m.Lock()
	defer o.m.Unlock()

	o.chunks = nil
	o.consumed(o.length)
}

func (o *queue) Reset() {
	o.m.Lock()
	defer o.m.Unlock()

	if o.lim != nil && o.length > 0 {
		o.lim.(*limit).release(o.length)
	}

	o.chunks = nil
	o.length = 0
	o.in = 0
	o.out = 0
	o.closed = false
}

func (o *queue) Limit() Limit {
	o.m.Lock()
	defer o.m.Unlock()
	return o.lim
}

func (o *queue) SetLimit(l Limit) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.lim == l {
		return
	}

	if o.lim != nil && o.length > 0 {
		o.lim.(*limit).release(o.length)
	}

	if l != nil && o.length > 0 {
		l.(*limit).acquire(o.length)
	}

	o.lim = l
}

func (o *queue) Walk(fct func(c Chunk) bool) {
	o.m.Lock()
	chunks := make([]chunkOps, len(o.chunks))
	copy(chunks, o.chunks)
	o.m.Unlock()

	for _, c := range chunks {
		if !fct(c) {
			return
		}
	}
}
