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

package waitqueue_test

import (
	"context"
	"sync/atomic"
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwwtq "github.com/nabbar/gateway/waitqueue"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WaitQueue", func() {
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

	Describe("Queue order", func() {
		It("should pop nothing before the delay elapsed", func() {
			w := gwwtq.New(q, time.Hour, func() {})
			e := &gwwtq.Elem{}

			w.Push(e)

			Expect(w.Pop()).To(BeNil())
			Expect(w.Length()).To(Equal(1))
			Expect(e.Queued()).To(BeTrue())

			w.Stop()
		})

		It("should pop expired elements head first", func() {
			w := gwwtq.New(q, 10*time.Millisecond, func() {})
			e1 := &gwwtq.Elem{Data: 1}
			e2 := &gwwtq.Elem{Data: 2}

			w.Push(e1)
			w.Push(e2)

			time.Sleep(30 * time.Millisecond)

			Expect(w.Pop()).To(Equal(e1))
			Expect(w.Pop()).To(Equal(e2))
			Expect(w.Pop()).To(BeNil())
			Expect(w.Length()).To(Equal(0))

			w.Stop()
		})

		It("should move a re-pushed element to the tail", func() {
			w := gwwtq.New(q, 10*time.Millisecond, func() {})
			e1 := &gwwtq.Elem{Data: 1}
			e2 := &gwwtq.Elem{Data: 2}

			w.Push(e1)
			w.Push(e2)
			w.Push(e1)

			time.Sleep(30 * time.Millisecond)

			Expect(w.Pop()).To(Equal(e2))
			Expect(w.Pop()).To(Equal(e1))

			w.Stop()
		})

		It("should pop force regardless of expiry", func() {
			w := gwwtq.New(q, time.Hour, func() {})
			e := &gwwtq.Elem{}

			w.Push(e)

			Expect(w.PopForce()).To(Equal(e))
			Expect(e.Queued()).To(BeFalse())

			w.Stop()
		})
	})

	Describe("PopReady", func() {
		It("should detach the whole expired run", func() {
			w := gwwtq.New(q, 20*time.Millisecond, func() {})
			e1 := &gwwtq.Elem{Data: 1}
			e2 := &gwwtq.Elem{Data: 2}
			e3 := &gwwtq.Elem{Data: 3}

			w.Push(e1)
			w.Push(e2)

			time.Sleep(40 * time.Millisecond)
			w.Push(e3)

			n, run := w.PopReady()

			Expect(n).To(Equal(2))
			Expect(run).To(Equal(e1))
			Expect(run.Next()).To(Equal(e2))
			Expect(w.Length()).To(Equal(1))

			w.Stop()
		})
	})

	Describe("Remove", func() {
		It("should unlink and be idempotent", func() {
			w := gwwtq.New(q, time.Hour, func() {})
			e1 := &gwwtq.Elem{Data: 1}
			e2 := &gwwtq.Elem{Data: 2}

			w.Push(e1)
			w.Push(e2)

			w.Remove(e1)
			w.Remove(e1)

			Expect(w.Length()).To(Equal(1))
			Expect(e1.Queued()).To(BeFalse())
			Expect(w.PopForce()).To(Equal(e2))

			w.Stop()
		})
	})

	Describe("Timer", func() {
		It("should fire the callback on the worker after the delay", func() {
			var fired atomic.Int32

			var w gwwtq.WaitQueue
			w = gwwtq.New(q, 10*time.Millisecond, func() {
				for e := w.Pop(); e != nil; e = w.Pop() {
					fired.Add(1)
				}
				w.Update()
			})

			w.Push(&gwwtq.Elem{})
			w.Push(&gwwtq.Elem{})

			Eventually(func() int32 { return fired.Load() }, time.Second).Should(Equal(int32(2)))

			w.Stop()
		})
	})
})
