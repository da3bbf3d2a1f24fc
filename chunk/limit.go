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
	"sync"

	libsiz "github.com/nabbar/golib/size"
)

type limit struct {
	m sync.Mutex
	t int64
	u int64
	f func()
}

// acquire accounts n bytes entering a queue of the subgraph. Usage may overshoot
// the total: the limit paces producers, it does not reject writes.
func (o *limit) acquire(n int64) {
	o.m.Lock()
	o.u += n
	o.m.Unlock()
}

// release frees credit; crossing back under the total fires the notify hook.
// The hook must not call back into a queue of the subgraph: it is expected to
// only signal the paused producer.
func (o *limit) release(n int64) {
	o.m.Lock()

	was := o.u >= o.t
	o.u -= n
	fn := o.f

	if !was || o.u >= o.t {
		fn = nil
	}

	o.m.Unlock()

	if fn != nil {
		fn()
	}
}

func (o *limit) Total() libsiz.Size {
	o.m.Lock()
	defer o.m.Unlock()
	return libsiz.Size(o.t)
}

func (o *limit) SetTotal(s libsiz.Size) {
	o.m.Lock()

	was := o.u >= o.t
	o.t = int64(s)
	fn := o.f

	if !was || o.u >= o.t {
		fn = nil
	}

	o.m.Unlock()

	if fn != nil {
		fn()
	}
}

func (o *limit) Usage() int64 {
	o.m.Lock()
	defer o.m.Unlock()
	return o.u
}

func (o *limit) Remaining() int64 {
	o.m.Lock()
	defer o.m.Unlock()

	if r := o.t - o.u; r > 0 {
		return r
	}

	return 0
}

func (o *limit) Notify(fn func()) {
	o.m.Lock()
	o.f = fn
	o.m.Unlock()
}
