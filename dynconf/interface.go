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

// Package dynconf implements the keyed TTL cache of configuration actions used
// to resolve per-request configuration (virtual host lookups and the like).
//
// Each key maps to an entry carrying an action, a hit/miss state and two TTL
// tiers: past the recheck TTL a request triggers one asynchronous refresh and
// keeps using the cached action; past the max TTL the entry is evicted and
// requests park until the lookup answers. Lookups run through the host-provided
// Handler; their results come back through the entry's NotifyContinue or
// NotifyUpdate, from any goroutine.
//
// A parked request is resumed by posting its job reference; after two failed
// round-trips on the same call the request is failed instead of parked again,
// breaking lookup loops.
package dynconf

import (
	"context"
	"time"

	gwjbq "github.com/nabbar/gateway/jobqueue"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// Result is the outcome of a Handle call.
type Result uint8

const (
	// ResultGoOn means an action (possibly the fallback) was entered on the
	// request, or the request was failed: see the returned error.
	ResultGoOn Result = iota

	// ResultWait means a lookup is outstanding and the request is parked; it
	// will be resumed through its job reference.
	ResultWait
)

// Action is an opaque, refcounted compiled configuration subtree.
type Action interface {
	// Release drops the holder's reference.
	Release()
}

// Request is the virtual-request surface the cache consumes.
type Request interface {
	// Ref hands out a job reference safe to post across workers.
	Ref() gwjbq.Ref

	// Enter pushes the given action onto the request's action stack.
	Enter(act Action)
}

// Entry is a cache entry handed to the Handler's lookup; the lookup reports its
// result through NotifyContinue or NotifyUpdate, synchronously or not.
type Entry interface {
	// Key returns the entry key.
	Key() string

	// Data returns the per-entry handler data.
	Data() any

	// SetData stores per-entry handler data, kept until the entry is freed.
	SetData(v any)

	// NotifyContinue reports a lookup that produced no change.
	NotifyContinue()

	// NotifyUpdate installs the new action of the key, nil for a negative
	// result. The previous action is released and parked requests are woken.
	NotifyUpdate(act Action)
}

// Handler is the lookup capability the host plugs into the cache.
type Handler interface {
	// Lookup resolves the key, ending with NotifyContinue or NotifyUpdate on
	// the entry. It runs outside the cache lock and may answer asynchronously.
	Lookup(e Entry, key string, lastUpdate time.Time, param any)

	// FreeEntry releases the per-entry handler data.
	FreeEntry(key string, param, data any)

	// FreeParam releases the handler parameter when the cache closes.
	FreeParam(param any)
}

// Context is the per-request cache state the caller keeps across Handle
// retries and hands to HandleCleanup on teardown. The zero value is ready for
// use.
type Context struct {
	entry  *entry
	ref    gwjbq.Ref
	parked bool
	used   bool
	tries  int
}

// DynConfig is a keyed TTL cache of configuration actions.
type DynConfig interface {
	// Handle resolves the key for the given request: it enters the cached
	// action (or the miss fallback) and returns ResultGoOn, or parks the
	// request and returns ResultWait. A non-nil error means the request was
	// failed after repeated lookup round-trips.
	Handle(req Request, ctx *Context, key string) (Result, liberr.Error)

	// HandleCleanup releases the context of a request torn down while parked.
	// Idempotent.
	HandleCleanup(ctx *Context)

	// Invalidate drops any entry for the key immediately, waking its parked
	// requests.
	Invalidate(key string)

	// Close invalidates every entry, releases the fallback action and the
	// handler parameter, and stops the eviction timer.
	Close()

	// Len returns the number of live entries.
	Len() int
}

// New validates the configuration and returns a cache using the given handler.
// The miss action is entered for keys resolving to no action; it is released on
// Close. A nil log function falls back to the default logger.
func New(ctx context.Context, cfg Config, h Handler, miss Action, param any, log liblog.FuncLog) (DynConfig, liberr.Error) {
	if h == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	o := &dyn{
		ctx:     ctx,
		cfg:     cfg,
		h:       h,
		miss:    miss,
		param:   param,
		log:     log,
		entries: make(map[string]*entry),
		maxTTL:  cfg.maxTTL(),
	}

	return o, nil
}
