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

package filter

import (
	gwchk "github.com/nabbar/gateway/chunk"
	gwjbq "github.com/nabbar/gateway/jobqueue"
	gwstm "github.com/nabbar/gateway/stream"
	liberr "github.com/nabbar/golib/errors"
)

// Filter wraps one stream of a pipeline; the stream's data callback delegates to
// the filter handler.
type Filter struct {
	str   *gwstm.Stream
	param any
	fn    HandlerFunc
	free  FreeFunc
	ndx   int
	own   *chain
}

// Stream returns the wrapped stream.
func (f *Filter) Stream() *gwstm.Stream {
	return f.str
}

// Param returns the opaque parameter given at append time.
func (f *Filter) Param() any {
	return f.param
}

// In returns the upstream queue to read from, nil while unconnected.
func (f *Filter) In() gwchk.Queue {
	if src := f.str.Drain().Source(); src != nil {
		return src.Queue()
	}
	return nil
}

// Out returns the filter's outgoing queue.
func (f *Filter) Out() gwchk.Queue {
	return f.str.Source().Queue()
}

// Done closes the filter's output: downstream reads EOF once drained.
func (f *Filter) Done() {
	if cq := f.Out(); !cq.IsClosed() {
		cq.Close()
		f.str.Source().Notify()
	}
}

func (f *Filter) release() {
	if fn := f.free; fn != nil {
		f.free = nil
		fn(f)
	}

	if f.str != nil {
		f.str.Close()
		f.str.Release()
		f.str = nil
	}

	f.own.remove(f)
}

type chain struct {
	q gwjbq.Queue

	filters []*Filter

	inFirst  *gwstm.Drain
	inLast   *gwstm.Source
	outFirst *gwstm.Drain
	outLast  *gwstm.Source

	lin gwchk.Limit
	lou gwchk.Limit

	sealedIn  bool
	sealedOut bool
}

func (o *chain) newFilter(fn HandlerFunc, free FreeFunc, param any) *Filter {
	f := &Filter{
		param: param,
		fn:    fn,
		free:  free,
		own:   o,
		ndx:   len(o.filters),
	}

	f.str = gwstm.New(o.q, f, filterData, nil)
	o.filters = append(o.filters, f)

	return f
}

func filterData(s *gwstm.Stream) {
	f, k := s.Data().(*Filter)
	if !k || f == nil || f.fn == nil {
		return
	}
	f.fn(f)
}

func (o *chain) AddIn(fn HandlerFunc, free FreeFunc, param any) (*Filter, liberr.Error) {
	if fn == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	// once the backend drain is spliced the request body is flowing
	if o.sealedIn {
		return nil, ErrorTooLate.Error(nil)
	}

	f := o.newFilter(fn, free, param)
	f.str.Source().Queue().SetLimit(o.lin)

	if o.inFirst == nil {
		o.inFirst = f.str.Drain()
		o.inLast = f.str.Source()
	} else {
		gwstm.Connect(o.inLast, f.str.Drain())
		o.inLast = f.str.Source()
	}

	return f, nil
}

func (o *chain) AddOut(fn HandlerFunc, free FreeFunc, param any) (*Filter, liberr.Error) {
	if fn == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	if o.sealedOut {
		return nil, ErrorTooLate.Error(nil)
	}

	f := o.newFilter(fn, free, param)
	f.str.Source().Queue().SetLimit(o.lou)

	if o.outFirst == nil {
		o.outFirst = f.str.Drain()
		o.outLast = f.str.Source()
	} else {
		gwstm.Connect(o.outLast, f.str.Drain())
		o.outLast = f.str.Source()
	}

	return f, nil
}

func (o *chain) InFirst() *gwstm.Drain  { return o.inFirst }
func (o *chain) InLast() *gwstm.Source  { return o.inLast }
func (o *chain) OutFirst() *gwstm.Drain { return o.outFirst }
func (o *chain) OutLast() *gwstm.Source { return o.outLast }

func (o *chain) SealIn()  { o.sealedIn = true }
func (o *chain) SealOut() { o.sealedOut = true }

func (o *chain) Len() int {
	return len(o.filters)
}

func (o *chain) remove(f *Filter) {
	n := len(o.filters)
	if n == 0 {
		return
	}

	// not the newest: swap with the tail, as the list is unordered by index
	if f.ndx != n-1 {
		last := o.filters[n-1]
		last.ndx = f.ndx
		o.filters[f.ndx] = last
	}

	o.filters = o.filters[:n-1]
}

func (o *chain) Close() {
	for len(o.filters) > 0 {
		o.filters[len(o.filters)-1].release()
	}

	o.inFirst = nil
	o.inLast = nil
	o.outFirst = nil
	o.outLast = nil
}
