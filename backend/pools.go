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

package backend

import (
	"context"

	libctx "github.com/nabbar/golib/context"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// FuncWalk is the callback used when iterating over the pools of a registry.
// Return true to continue iteration.
type FuncWalk func(addr string, b Backend) bool

// Pools is a registry of backend pools keyed by upstream address, shared by the
// gateway modules that route to upstreams. All operations are safe for
// concurrent use.
type Pools interface {
	// Walk iterates over all registered pools.
	Walk(fct FuncWalk)

	// Load returns the pool for the given address, nil when absent.
	Load(addr string) Backend

	// Store registers a pool under its configured address.
	Store(b Backend)

	// StoreNew creates a pool from the configuration and registers it.
	StoreNew(ctx context.Context, cfg Config, log liblog.FuncLog) liberr.Error

	// Delete unregisters the pool for the given address and shuts it down.
	Delete(addr string)

	// Has reports whether a pool is registered for the given address.
	Has(addr string) bool

	// Len returns the number of registered pools.
	Len() int

	// Clean shuts every pool down and empties the registry.
	Clean()
}

// NewPools returns an empty registry bound to the given context.
func NewPools(ctx context.Context) Pools {
	if ctx == nil {
		ctx = context.Background()
	}

	return &pools{
		p: libctx.NewConfig[string](ctx),
	}
}

type pools struct {
	p libctx.Config[string]
}

func (o *pools) Walk(fct FuncWalk) {
	o.p.Walk(func(key string, val interface{}) bool {
		if b, k := val.(Backend); k {
			return fct(key, b)
		}
		return true
	})
}

func (o *pools) Load(addr string) Backend {
	if i, l := o.p.Load(addr); !l {
		return nil
	} else if b, k := i.(Backend); !k {
		return nil
	} else {
		return b
	}
}

func (o *pools) Store(b Backend) {
	if b == nil {
		return
	}
	o.p.Store(b.Address(), b)
}

func (o *pools) StoreNew(ctx context.Context, cfg Config, log liblog.FuncLog) liberr.Error {
	b, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	o.Store(b)
	return nil
}

func (o *pools) Delete(addr string) {
	if i, l := o.p.LoadAndDelete(addr); l {
		if b, k := i.(Backend); k {
			b.Close()
		}
	}
}

func (o *pools) Has(addr string) bool {
	return o.Load(addr) != nil
}

func (o *pools) Len() int {
	n := 0
	o.p.Walk(func(_ string, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (o *pools) Clean() {
	o.Walk(func(addr string, b Backend) bool {
		b.Close()
		o.p.Delete(addr)
		return true
	})
}
