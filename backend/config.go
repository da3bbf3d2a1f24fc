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
	"fmt"

	"github.com/go-playground/validator/v10"

	liberr "github.com/nabbar/golib/errors"
	libdur "github.com/nabbar/golib/duration"
	libptc "github.com/nabbar/golib/network/protocol"
)

// Config describes one upstream pool.
type Config struct {
	// Network selects the transport used to reach the upstream.
	Network libptc.NetworkProtocol `json:"network" yaml:"network" toml:"network" mapstructure:"network"`

	// Address is the upstream socket address, host:port for TCP upstreams.
	Address string `json:"address" yaml:"address" toml:"address" mapstructure:"address" validate:"required"`

	// MaxConnections bounds concurrently open connections; -1 means unbounded.
	MaxConnections int `json:"max-connections" yaml:"max-connections" toml:"max-connections" mapstructure:"max-connections" validate:"min=-1"`

	// MaxRequests bounds requests served per connection; -1 means unbounded.
	MaxRequests int `json:"max-requests" yaml:"max-requests" toml:"max-requests" mapstructure:"max-requests" validate:"min=-1"`

	// IdleTimeout closes idle pooled connections after this duration.
	IdleTimeout libdur.Duration `json:"idle-timeout" yaml:"idle-timeout" toml:"idle-timeout" mapstructure:"idle-timeout"`

	// ConnectTimeout bounds one connection establishment.
	ConnectTimeout libdur.Duration `json:"connect-timeout" yaml:"connect-timeout" toml:"connect-timeout" mapstructure:"connect-timeout"`

	// WaitTimeout bounds the time a request may stay parked on the pool.
	WaitTimeout libdur.Duration `json:"wait-timeout" yaml:"wait-timeout" toml:"wait-timeout" mapstructure:"wait-timeout"`

	// DisableTime keeps the pool from dialing after a connect failure, measured
	// from the start of the failed attempt.
	DisableTime libdur.Duration `json:"disable-time" yaml:"disable-time" toml:"disable-time" mapstructure:"disable-time"`
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

	if out.HasParent() {
		return out
	}

	return nil
}

func (c Config) network() string {
	if c.Network == libptc.NetworkProtocol(0) {
		return libptc.NetworkTCP.String()
	}
	return c.Network.String()
}
