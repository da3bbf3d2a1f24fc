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

// Package filter builds request and response filter pipelines over the stream
// graph.
//
// A Filter wraps one stream whose data callback delegates to the filter handler;
// a Chain keeps the ordered in (request body) and out (response body) pipelines
// of a virtual request. Appending a filter connects it behind the current chain
// tail and lets the new edge inherit the chain's credit limit, so the whole
// pipeline shares one backpressure budget.
//
// Like the stream graph itself, a chain belongs to exactly one worker.
package filter

import (
	gwchk "github.com/nabbar/gateway/chunk"
	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwstm "github.com/nabbar/gateway/stream"
	liberr "github.com/nabbar/golib/errors"
)

// HandlerFunc processes buffered data of a filter: read from In, write to Out.
type HandlerFunc func(f *Filter)

// FreeFunc runs when the filter is torn down.
type FreeFunc func(f *Filter)

// Chain holds the ordered filter pipelines of one virtual request.
type Chain interface {
	// AddIn appends a filter to the request-body pipeline. It fails once the
	// backend drain was spliced: the pipeline is already flowing.
	AddIn(fn HandlerFunc, free FreeFunc, param any) (*Filter, liberr.Error)

	// AddOut appends a filter to the response-body pipeline. It fails once the
	// backend source was spliced.
	AddOut(fn HandlerFunc, free FreeFunc, param any) (*Filter, liberr.Error)

	// InFirst returns the drain to feed the request body into, nil when the in
	// pipeline is empty.
	InFirst() *gwstm.Drain

	// InLast returns the source producing the filtered request body.
	InLast() *gwstm.Source

	// OutFirst returns the drain to feed the response body into.
	OutFirst() *gwstm.Drain

	// OutLast returns the source producing the filtered response body.
	OutLast() *gwstm.Source

	// SealIn marks the request pipeline spliced to the backend; further AddIn
	// calls fail.
	SealIn()

	// SealOut marks the response pipeline spliced to the backend; further
	// AddOut calls fail.
	SealOut()

	// Len returns the number of live filters.
	Len() int

	// Close tears every filter down, newest first.
	Close()
}

// New returns an empty chain scheduled on the given worker queue. The limits
// bound the request and response pipelines; either may be nil.
func New(q gwjbq.Queue, limitIn, limitOut gwchk.Limit) Chain {
	return &chain{
		q:   q,
		lin: limitIn,
		lou: limitOut,
	}
}
