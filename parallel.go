// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"

	"vawter.tech/flow/internal/state"
)

// An Op is an asynchronous operation executed by [Parallel]. It must
// invoke the callback exactly once, either before returning or at some
// later time from any goroutine.
type Op[R any] func(ctx context.Context, done Callback[R])

// Parallel launches every operation immediately, each on its own
// goroutine, and invokes onDone exactly once after all of them have
// reported an outcome. The returned Run may be inspected while the
// operations are outstanding.
//
// If any operation fails, onDone receives a [*MultiError] containing
// every failure in input order. An empty slice of operations is valid;
// onDone will be called from another goroutine.
//
// The context is passed to each operation, but the run itself does not
// respond to cancellation.
func Parallel[R any](
	ctx context.Context, ops []Op[R], onDone DoneFunc[R], opts ...Option,
) *Run[R] {
	r := newRunner(ctx, KindParallel, len(ops), onDone, opts)
	r.after = func(_ int, out state.Outcome, _ error) {
		if out.Last {
			r.finish(newMultiError(r.run.st.Failures()))
		}
	}

	if len(ops) == 0 {
		r.finishLater(nil)
		return r.run
	}

	if !r.run.cfg.limited() {
		for idx, op := range ops {
			go r.start(idx, op)
		}
		return r.run
	}

	// Limits are applied in input order from a single goroutine.
	go func() {
		for idx, op := range ops {
			r.admit()
			go r.start(idx, op)
		}
	}()
	return r.run
}
