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

package filter_test

import (
	"bytes"
	"context"
	"sync"

	gwchk "github.com/nabbar/gateway/chunk"
	gwflt "github.com/nabbar/gateway/filter"
	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwstm "github.com/nabbar/gateway/stream"
	libsiz "github.com/nabbar/golib/size"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// passthrough moves everything from the filter input to its output,
// propagating EOF.
func passthrough(f *gwflt.Filter) {
	in := f.In()
	if in == nil {
		return
	}

	f.Out().StealAll(in)

	if in.IsClosed() {
		f.Done()
	}

	f.Stream().Drain().Notify()
}

// upper rewrites a-z to A-Z chunk by chunk.
func upper(f *gwflt.Filter) {
	in := f.In()
	if in == nil {
		return
	}

	buf := make([]byte, 64)
	for {
		n, _ := in.Read(buf)
		if n == 0 {
			break
		}
		f.Out().AppendBytes(bytes.ToUpper(buf[:n]))
	}

	if in.IsClosed() {
		f.Done()
	}

	f.Stream().Drain().Notify()
	f.Stream().Source().Notify()
}

var _ = Describe("Chain", func() {
	var (
		q   gwjbq.Queue
		ctx context.Context
		cnl context.CancelFunc
	)

	BeforeEach(func() {
		q = gwjbq.New()
		ctx, cnl = context.WithCancel(context.Background())
		go q.Run(ctx)
	})

	AfterEach(func() {
		cnl()
	})

	Describe("Appending", func() {
		It("should wire filters behind each other", func() {
			c := gwflt.New(q, nil, nil)

			f1, err := c.AddOut(passthrough, nil, nil)
			Expect(err).ToNot(HaveOccurred())

			f2, err := c.AddOut(passthrough, nil, nil)
			Expect(err).ToNot(HaveOccurred())

			Expect(c.Len()).To(Equal(2))
			Expect(c.OutFirst()).To(Equal(f1.Stream().Drain()))
			Expect(c.OutLast()).To(Equal(f2.Stream().Source()))
			Expect(f2.Stream().Drain().Source()).To(Equal(f1.Stream().Source()))

			c.Close()
			Expect(c.Len()).To(Equal(0))
		})

		It("should refuse appending to a sealed pipeline", func() {
			c := gwflt.New(q, nil, nil)

			c.SealIn()
			c.SealOut()

			_, err := c.AddIn(passthrough, nil, nil)
			Expect(err).To(HaveOccurred())

			_, err = c.AddOut(passthrough, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Limits", func() {
		It("should give every pipeline queue the chain limit", func() {
			l := gwchk.NewLimit(libsiz.Size(4096))
			c := gwflt.New(q, nil, l)

			f1, _ := c.AddOut(passthrough, nil, nil)
			f2, _ := c.AddOut(passthrough, nil, nil)

			Expect(f1.Out().Limit()).To(Equal(l))
			Expect(f2.Out().Limit()).To(Equal(l))

			c.Close()
		})
	})

	Describe("Data flow", func() {
		It("should run the body through every filter in order", func() {
			c := gwflt.New(q, nil, nil)

			_, err := c.AddOut(upper, nil, nil)
			Expect(err).ToNot(HaveOccurred())

			var (
				m   sync.Mutex
				got []byte
			)

			sink := gwstm.New(q, nil, func(s *gwstm.Stream) {
				src := s.Drain().Source()
				if src == nil {
					return
				}
				buf := make([]byte, 64)
				m.Lock()
				for {
					n, _ := src.Queue().Read(buf)
					if n == 0 {
						break
					}
					got = append(got, buf[:n]...)
				}
				m.Unlock()
				s.Drain().Notify()
			}, nil)

			gwstm.Connect(c.OutLast(), sink.Drain())

			feed := gwstm.New(q, nil, func(_ *gwstm.Stream) {}, nil)
			gwstm.Connect(feed.Source(), c.OutFirst())

			feed.Source().Queue().AppendString("body")
			feed.Source().Queue().Close()
			feed.Wakeup()

			Eventually(func() string {
				m.Lock()
				defer m.Unlock()
				return string(got)
			}).Should(Equal("BODY"))

			c.Close()
			feed.Release()
			sink.Release()
		})

		It("should release the free callback on close", func() {
			var freed int

			c := gwflt.New(q, nil, nil)

			_, err := c.AddOut(passthrough, func(_ *gwflt.Filter) { freed++ }, nil)
			Expect(err).ToNot(HaveOccurred())

			c.Close()

			Expect(freed).To(Equal(1))
		})
	})
})
