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

import "io"

type memChunk struct {
	buf []byte
	off int64
}

func (c *memChunk) Len() int64 {
	return int64(len(c.buf)) - c.off
}

func (c *memChunk) read(p []byte) int {
	n := copy(p, c.buf[c.off:])
	c.off += int64(n)
	return n
}

func (c *memChunk) skip(n int64) int64 {
	if r := c.Len(); n > r {
		n = r
	}
	c.off += n
	return n
}

// split cuts the chunk after n bytes, returning the head part.
func (c *memChunk) split(n int64) Chunk {
	h := &memChunk{buf: c.buf[c.off : c.off+n]}
	c.off += n
	return h
}

func (c *memChunk) writeTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.buf[c.off:])
	c.off += int64(n)
	return int64(n), err
}

type fileChunk struct {
	f   io.ReaderAt
	off int64
	n   int64
}

func (c *fileChunk) Len() int64 {
	return c.n
}

func (c *fileChunk) read(p []byte) int {
	if int64(len(p)) > c.n {
		p = p[:c.n]
	}

	n, err := c.f.ReadAt(p, c.off)
	c.off += int64(n)
	c.n -= int64(n)

	if err != nil && c.n > 0 {
		// short range, nothing more will come out of it
		c.n = 0
	}

	return n
}

func (c *fileChunk) skip(n int64) int64 {
	if n > c.n {
		n = c.n
	}
	c.off += n
	c.n -= n
	return n
}

func (c *fileChunk) split(n int64) Chunk {
	h := &fileChunk{f: c.f, off: c.off, n: n}
	c.off += n
	c.n -= n
	return h
}

func (c *fileChunk) writeTo(w io.Writer) (int64, error) {
	var (
		buf = make([]byte, 32*1024)
		tot int64
	)

	for c.n > 0 {
		r := c.read(buf)
		if r == 0 {
			break
		}

		n, err := w.Write(buf[:r])
		tot += int64(n)

		if err != nil {
			return tot, err
		}
	}

	return tot, nil
}

type chunkOps interface {
	Chunk
	read(p []byte) int
	skip(n int64) int64
	split(n int64) Chunk
	writeTo(w io.Writer) (int64, error)
}
