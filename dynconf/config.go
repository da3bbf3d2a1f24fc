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

package dynconf

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	liberr "github.com/nabbar/golib/errors"
	libdur "github.com/nabbar/golib/duration"
)

const minEvictionPeriod = 60 * time.Second

// Config carries the TTL tiers of the cache. A negative duration means
// "never": a negative recheck TTL implies a negative max TTL of the same tier,
// and a positive max TTL must exceed its recheck TTL.
type Config struct {
	// RecheckHitTTL ages a cached action: past it, one asynchronous refresh is
	// scheduled while the action keeps being served.
	RecheckHitTTL libdur.Duration `json:"recheck-hit-ttl" yaml:"recheck-hit-ttl" toml:"recheck-hit-ttl" mapstructure:"recheck-hit-ttl"`

	// RecheckMissTTL ages a cached negative result.
	RecheckMissTTL libdur.Duration `json:"recheck-miss-ttl" yaml:"recheck-miss-ttl" toml:"recheck-miss-ttl" mapstructure:"recheck-miss-ttl"`

	// MaxHitTTL evicts a cached action: past it, requests park until the
	// lookup answers again.
	MaxHitTTL libdur.Duration `json:"max-hit-ttl" yaml:"max-hit-ttl" toml:"max-hit-ttl" mapstructure:"max-hit-ttl"`

	// MaxMissTTL evicts a cached negative result.
	MaxMissTTL libdur.Duration `json:"max-miss-ttl" yaml:"max-miss-ttl" toml:"max-miss-ttl" mapstructure:"max-miss-ttl"`
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() liberr.Error {
	err := validator.New().Struct(c)

	if e, ok := err.(*validator.InvalidValidationError); ok {
		return ErrorValidatorError.ErrorParent(e)
	}

	out := ErrorValidatorError.Error(nil)

	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			//nolint goerr113
			out.AddParent(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.Field(), e.ActualTag()))
		}
	}

	if c.RecheckHitTTL.Time() < 0 && c.MaxHitTTL.Time() >= 0 {
		out.AddParent(fmt.Errorf("a disabled hit recheck requires a disabled hit max ttl"))
	} else if c.MaxHitTTL.Time() >= 0 && c.MaxHitTTL.Time() <= c.RecheckHitTTL.Time() {
		out.AddParent(fmt.Errorf("hit max ttl must exceed hit recheck ttl"))
	}

	if c.RecheckMissTTL.Time() < 0 && c.MaxMissTTL.Time() >= 0 {
		out.AddParent(fmt.Errorf("a disabled miss recheck requires a disabled miss max ttl"))
	} else if c.MaxMissTTL.Time() >= 0 && c.MaxMissTTL.Time() <= c.RecheckMissTTL.Time() {
		out.AddParent(fmt.Errorf("miss max ttl must exceed miss recheck ttl"))
	}

	if out.HasParent() {
		return out
	}

	return nil
}

// maxTTL returns the eviction timer period.
func (c Config) maxTTL() time.Duration {
	t := minEvictionPeriod

	if d := c.MaxHitTTL.Time(); d > t {
		t = d
	}

	if d := c.MaxMissTTL.Time(); d > t {
		t = d
	}

	return t
}
