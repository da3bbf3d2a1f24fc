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

// Package jobqueue implements the coalesced deferred-work queue owned by a worker.
//
// A worker owns exactly one Queue and drives it with Run on a dedicated goroutine;
// everything dispatched through the queue therefore runs cooperatively and
// single-threaded within that worker. A Job is posted with Now or Later and runs at
// most once per posting round regardless of how many times it was posted.
//
// Cross-worker wakeups never touch a Job directly: they go through a Ref, which is
// safe to post and release from any goroutine, including after the job was cleared.
package jobqueue

import "context"

// Queue is a worker-owned dispatch queue of coalesced jobs.
//
// Now, Later, Ref and Clear are safe for concurrent use; the callbacks themselves
// always run on the goroutine that called Run.
type Queue interface {
	// Run dispatches posted jobs until the given context is done or Stop is called.
	// It must be called at most once.
	Run(ctx context.Context)

	// Stop terminates a running Run loop. Pending jobs are dropped.
	Stop()

	// IsRunning reports whether the Run loop is active.
	IsRunning() bool

	// Now schedules the job for the current dispatch round. Posting an already
	// scheduled job is a no-op.
	Now(j *Job)

	// Later schedules the job for the next dispatch round: a Later post never runs
	// in the batch currently being drained.
	Later(j *Job)

	// Ref returns a posting handle for the job that is safe to use from any
	// goroutine. Each call returns an independent handle.
	Ref(j *Job) Ref

	// Clear detaches the job from the queue: pending posts are dropped and every
	// Ref handed out for it goes dead.
	Clear(j *Job)

	// Length returns the number of jobs currently scheduled.
	Length() int
}

// Ref is a thread-safe handle used to post a job wakeup across workers.
// Posting a released handle, or a handle whose job was cleared, is a no-op.
type Ref interface {
	// Post schedules the referenced job on its owning queue.
	Post()

	// Release invalidates this handle.
	Release()
}

// New returns an empty Queue. The caller is expected to run it on the worker's
// loop goroutine.
func New() Queue {
	return &queue{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// NewJob returns a Job wrapping the given callback. The job records no owning
// queue; it runs on whichever queue it is posted to.
func NewJob(fn func()) *Job {
	return &Job{fn: fn}
}
