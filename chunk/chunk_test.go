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

package chunk_test

import (
	"bytes"

	gwchk "github.com/nabbar/gateway/chunk"
	libsiz "github.com/nabbar/golib/size"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Queue", func() {
	Describe("Counters", func() {
		It("should account buffered and total bytes", func() {
			q := gwchk.NewQueue()

			q.AppendString("hello")
			q.AppendString(" world")

			Expect(q.Len()).To(Equal(int64(11)))
			Expect(q.BytesIn()).To(Equal(int64(11)))

			buf := make([]byte, 5)
			n, err := q.Read(buf)

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(5))
			Expect(string(buf[:n])).To(Equal("hello"))
			Expect(q.Len()).To(Equal(int64(6)))
			Expect(q.BytesIn()).To(Equal(int64(11)))
			Expect(q.BytesOut()).To(Equal(int64(5)))
		})

		It("should keep bytes in order across chunk boundaries", func() {
			q := gwchk.NewQueue()

			q.AppendString("abc")
			q.AppendString("def")
			q.AppendString("ghi")

			var out bytes.Buffer
			n, err := q.WriteTo(&out)

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(9)))
			Expect(out.String()).To(Equal("abcdefghi"))
			Expect(q.Len()).To(Equal(int64(0)))
		})
	})

	Describe("Close", func() {
		It("should refuse writes after close", func() {
			q := gwchk.NewQueue()

			q.AppendString("x")
			q.Close()

			Expect(q.IsClosed()).To(BeTrue())
			Expect(func() { q.AppendString("y") }).To(Panic())
		})

		It("should reopen only through reset", func() {
			q := gwchk.NewQueue()

			q.AppendString("x")
			q.Close()
			q.Reset()

			Expect(q.IsClosed()).To(BeFalse())
			Expect(q.Len()).To(Equal(int64(0)))
			Expect(q.BytesIn()).To(Equal(int64(0)))
		})
	})

	Describe("Steal", func() {
		It("should move everything with steal all", func() {
			src := gwchk.NewQueue()
			dst := gwchk.NewQueue()

			src.AppendString("abcdef")
			dst.StealAll(src)

			Expect(src.Len()).To(Equal(int64(0)))
			Expect(dst.Len()).To(Equal(int64(6)))
			Expect(dst.BytesIn()).To(Equal(int64(6)))
		})

		It("should split the boundary chunk with steal len", func() {
			src := gwchk.NewQueue()
			dst := gwchk.NewQueue()

			src.AppendString("abcdef")

			Expect(dst.StealLen(src, 4)).To(Equal(int64(4)))
			Expect(src.Len()).To(Equal(int64(2)))
			Expect(dst.Len()).To(Equal(int64(4)))

			buf := make([]byte, 8)
			n, _ := dst.Read(buf)
			Expect(string(buf[:n])).To(Equal("abcd"))

			n, _ = src.Read(buf)
			Expect(string(buf[:n])).To(Equal("ef"))
		})
	})

	Describe("File ranges", func() {
		It("should deliver a file range between memory chunks", func() {
			q := gwchk.NewQueue()
			f := bytes.NewReader([]byte("0123456789"))

			q.AppendString("head:")
			q.AppendFile(f, 2, 5)
			q.AppendString(":tail")

			Expect(q.Len()).To(Equal(int64(15)))

			var out bytes.Buffer
			n, err := q.WriteTo(&out)

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(15)))
			Expect(out.String()).To(Equal("head:23456:tail"))
		})

		It("should walk buffered chunks in order", func() {
			q := gwchk.NewQueue()

			q.AppendString("ab")
			q.AppendString("cdef")

			var sizes []int64
			q.Walk(func(c gwchk.Chunk) bool {
				sizes = append(sizes, c.Len())
				return true
			})

			Expect(sizes).To(Equal([]int64{2, 4}))
		})
	})

	Describe("Skip", func() {
		It("should drop bytes without delivering them", func() {
			q := gwchk.NewQueue()

			q.AppendString("abcdef")

			Expect(q.Skip(2)).To(Equal(int64(2)))
			Expect(q.Len()).To(Equal(int64(4)))

			q.SkipAll()
			Expect(q.Len()).To(Equal(int64(0)))
			Expect(q.BytesOut()).To(Equal(int64(6)))
		})
	})
})

var _ = Describe("Limit", func() {
	It("should account usage across queues sharing it", func() {
		l := gwchk.NewLimit(libsiz.Size(10))
		q1 := gwchk.NewQueue()
		q2 := gwchk.NewQueue()

		q1.SetLimit(l)
		q2.SetLimit(l)

		q1.AppendString("abcd")
		q2.AppendString("efg")

		Expect(l.Usage()).To(Equal(int64(7)))
		Expect(l.Remaining()).To(Equal(int64(3)))

		q1.SkipAll()
		Expect(l.Usage()).To(Equal(int64(3)))
	})

	It("should re-account buffered bytes when the limit is replaced", func() {
		l1 := gwchk.NewLimit(libsiz.Size(10))
		l2 := gwchk.NewLimit(libsiz.Size(10))
		q := gwchk.NewQueue()

		q.SetLimit(l1)
		q.AppendString("abcd")

		Expect(l1.Usage()).To(Equal(int64(4)))

		q.SetLimit(l2)

		Expect(l1.Usage()).To(Equal(int64(0)))
		Expect(l2.Usage()).To(Equal(int64(4)))
	})

	It("should fire the notify hook when exhausted credit frees", func() {
		var fired int

		l := gwchk.NewLimit(libsiz.Size(4))
		q := gwchk.NewQueue()

		q.SetLimit(l)
		l.Notify(func() { fired++ })

		q.AppendString("abcd")
		Expect(l.Remaining()).To(Equal(int64(0)))
		Expect(fired).To(Equal(0))

		q.Skip(1)
		Expect(fired).To(Equal(1))

		q.Skip(1)
		Expect(fired).To(Equal(1))
	})
})
