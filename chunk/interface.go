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

// Package chunk implements the byte-counted chunk queue carried by every stream
// edge, together with the shared credit limit used for backpressure.
//
// A Queue is an ordered sequence of heterogeneous chunks (memory buffers, file
// ranges). Its buffered length may shrink on reads, but the total number of bytes
// ever enqueued only grows, and a closed queue never reopens (Reset being the one
// documented exception, used when a source is recycled).
//
// A Limit is a credit counter shared by every queue of one contiguous stream
// subgraph; the IO stream registers a notify hook on it so that exhausted credit
// pauses socket reads and freed credit resumes them.
package chunk

import (
	"io"

	libsiz "github.com/nabbar/golib/size"
)

// Chunk is one element of a Queue: a memory buffer or a file range.
type Chunk interface {
	// Len returns the number of unconsumed bytes of the chunk.
	Len() int64
}

// Queue is an ordered byte container with optional shared credit accounting.
// All operations are safe for concurrent use.
type Queue interface {
	io.Reader
	io.WriterTo

	// Len returns the number of bytes currently buffered.
	Len() int64

	// BytesIn returns the total number of bytes ever enqueued. It never decreases.
	BytesIn() int64

	// BytesOut returns the total number of bytes ever consumed.
	BytesOut() int64

	// IsClosed reports whether the queue was closed for writing.
	IsClosed() bool

	// Close marks the queue closed: no further writes are accepted. Idempotent.
	Close()

	// AppendBytes enqueues a copy of the given bytes. Appending to a closed queue
	// panics: it is an invariant violation of the stream graph.
	AppendBytes(p []byte)

	// AppendString enqueues the given string.
	AppendString(s string)

	// AppendFile enqueues a file range. The queue does not take ownership of the
	// file handle.
	AppendFile(f io.ReaderAt, offset, length int64)

	// StealAll moves every chunk of the given queue into this one.
	StealAll(from Queue)

	// StealLen moves up to n bytes from the given queue into this one, splitting
	// the boundary chunk when needed. It returns the number of bytes moved.
	StealLen(from Queue, n int64) int64

	// Skip drops up to n buffered bytes and returns the number dropped.
	Skip(n int64) int64

	// SkipAll drops everything currently buffered.
	SkipAll()

	// Reset drops all buffered content and reopens the queue. Counters restart
	// from zero. Only a recycled source may do this.
	Reset()

	// Limit returns the shared credit limit, nil when unlimited.
	Limit() Limit

	// SetLimit replaces the queue's limit, re-accounting buffered bytes against
	// the new one and releasing them from the old one.
	SetLimit(l Limit)

	// Walk calls the given function for each buffered chunk until it returns
	// false.
	Walk(fct func(c Chunk) bool)
}

// Limit is the shared credit of one contiguous stream subgraph.
type Limit interface {
	// Total returns the configured credit.
	Total() libsiz.Size

	// SetTotal changes the configured credit; raising it above current usage
	// triggers the notify hook.
	SetTotal(s libsiz.Size)

	// Usage returns the number of bytes currently accounted.
	Usage() int64

	// Remaining returns the unused credit, never negative.
	Remaining() int64

	// Notify registers the single resume hook, invoked whenever exhausted credit
	// frees. Registering nil drops the hook.
	Notify(fn func())
}

// NewQueue returns an empty, unlimited Queue.
func NewQueue() Queue {
	return &queue{}
}

// NewLimit returns a Limit with the given total credit.
func NewLimit(total libsiz.Size) Limit {
	return &limit{t: int64(total)}
}
