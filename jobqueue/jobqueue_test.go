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

package jobqueue_test

import (
	"context"
	"sync/atomic"
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JobQueue", func() {
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

	Describe("Posting", func() {
		It("should run a posted job", func() {
			var n atomic.Int32
			j := gwjbq.NewJob(func() { n.Add(1) })

			q.Now(j)

			Eventually(func() int32 { return n.Load() }).Should(Equal(int32(1)))
		})

		It("should coalesce multiple posts into one run", func() {
			var (
				n    atomic.Int32
				gate = make(chan struct{})
			)

			blk := gwjbq.NewJob(func() { <-gate })
			j := gwjbq.NewJob(func() { n.Add(1) })

			q.Now(blk)

			// the queue is busy: these posts all land on the same pending job
			q.Now(j)
			q.Now(j)
			q.Now(j)

			close(gate)

			Eventually(func() int32 { return n.Load() }).Should(Equal(int32(1)))
			Consistently(func() int32 { return n.Load() }, 100*time.Millisecond).Should(Equal(int32(1)))
		})

		It("should run a job posted again from its own callback", func() {
			var n atomic.Int32

			var j *gwjbq.Job
			j = gwjbq.NewJob(func() {
				if n.Add(1) < 3 {
					q.Now(j)
				}
			})

			q.Now(j)

			Eventually(func() int32 { return n.Load() }).Should(Equal(int32(3)))
		})
	})

	Describe("Later", func() {
		It("should never run a later job before the current batch", func() {
			order := make(chan int, 2)

			l := gwjbq.NewJob(func() { order <- 2 })

			j := gwjbq.NewJob(func() {
				order <- 1
				q.Later(l)
			})

			q.Now(j)

			Eventually(order).Should(Receive(Equal(1)))
			Eventually(order).Should(Receive(Equal(2)))
		})

		It("should coalesce repeated later posts", func() {
			var n atomic.Int32
			j := gwjbq.NewJob(func() { n.Add(1) })

			q.Later(j)
			q.Later(j)

			Eventually(func() int32 { return n.Load() }).Should(Equal(int32(1)))
			Consistently(func() int32 { return n.Load() }, 100*time.Millisecond).Should(Equal(int32(1)))
		})
	})

	Describe("References", func() {
		It("should post through a reference from another goroutine", func() {
			var n atomic.Int32
			j := gwjbq.NewJob(func() { n.Add(1) })
			r := q.Ref(j)

			go r.Post()

			Eventually(func() int32 { return n.Load() }).Should(Equal(int32(1)))
		})

		It("should ignore a released reference", func() {
			var n atomic.Int32
			j := gwjbq.NewJob(func() { n.Add(1) })
			r := q.Ref(j)

			r.Release()
			r.Post()

			Consistently(func() int32 { return n.Load() }, 100*time.Millisecond).Should(Equal(int32(0)))
		})

		It("should ignore a reference to a cleared job", func() {
			var n atomic.Int32
			j := gwjbq.NewJob(func() { n.Add(1) })
			r := q.Ref(j)

			q.Clear(j)
			r.Post()

			Consistently(func() int32 { return n.Load() }, 100*time.Millisecond).Should(Equal(int32(0)))
		})
	})

	Describe("Clear", func() {
		It("should drop a pending post", func() {
			var (
				n    atomic.Int32
				gate = make(chan struct{})
			)

			blk := gwjbq.NewJob(func() { <-gate })
			j := gwjbq.NewJob(func() { n.Add(1) })

			q.Now(blk)
			q.Now(j)
			q.Clear(j)
			close(gate)

			Consistently(func() int32 { return n.Load() }, 100*time.Millisecond).Should(Equal(int32(0)))
		})
	})
})
