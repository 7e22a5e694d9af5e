// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// An Option configures a single run.
type Option func(*config)

type config struct {
	logger    *zerolog.Logger
	limiter   *rate.Limiter
	maxActive int64
	name      string
	observer  Observer
	trackTime bool
}

// sanitize applies defaults. The kind is used as the default name.
func (c *config) sanitize(kind Kind) {
	if c.logger == nil {
		nop := zerolog.Nop()
		c.logger = &nop
	}
	if c.name == "" {
		c.name = kind.String()
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
}

// limited returns true if launches may block.
func (c *config) limited() bool {
	return c.limiter != nil || c.maxActive > 0
}

// semaphore returns nil if no concurrency limit is configured.
func (c *config) semaphore() *semaphore.Weighted {
	if c.maxActive <= 0 {
		return nil
	}
	return semaphore.NewWeighted(c.maxActive)
}

func newConfig(kind Kind, opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.sanitize(kind)
	return cfg
}

// TrackTime enables the timing fields of the [Run] and of each
// [Operation].
func TrackTime() Option {
	return func(c *config) { c.trackTime = true }
}

// WithLogger emits debug-level events for each operation and an
// info-level event when the run completes. The default is a no-op
// logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = &l }
}

// WithMaxConcurrency bounds the number of operations that are
// outstanding at once. Operations that have not been launched remain
// in the [Waiting] status. This option has no effect on a [Pipeline].
func WithMaxConcurrency(n int) Option {
	if n <= 0 {
		panic(errors.New("limit must be greater than zero"))
	}
	return func(c *config) { c.maxActive = int64(n) }
}

// WithMaxRate limits the rate at which operations are launched, using
// a token bucket that refills r tokens per second up to burst. Both
// values must be positive. Operations that have not been launched
// remain in the [Waiting] status.
func WithMaxRate(r float64, burst int) Option {
	if !(r > 0) {
		panic(errors.New("rate must be greater than zero"))
	}
	if burst <= 0 {
		panic(errors.New("burst must be greater than zero"))
	}
	return func(c *config) { c.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// WithName sets the name used for logging, tracing, and metrics. The
// default is the kind of run.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithObserver attaches lifecycle hooks to the run.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}
