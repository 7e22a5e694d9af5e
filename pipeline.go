// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"

	"vawter.tech/flow/internal/state"
)

// A Stage is an asynchronous operation executed by [Pipeline]. Every
// stage of a pipeline receives the same argument. A Stage must invoke
// the callback exactly once.
type Stage[A, R any] func(ctx context.Context, arg A, done Callback[R])

// Pipeline executes the stages one at a time, in order. A stage is
// launched only after the previous stage has reported success, and
// always from a fresh goroutine, so no stage ever runs on the call
// stack of its predecessor.
//
// The first failure stops the pipeline and is passed to onDone as-is.
// The remaining stages are never launched and stay in the [Waiting]
// status. An empty slice of stages is valid; onDone will be called
// from another goroutine.
//
// The context is passed to each stage, but the run itself does not
// respond to cancellation.
func Pipeline[A, R any](
	ctx context.Context, stages []Stage[A, R], arg A, onDone DoneFunc[R], opts ...Option,
) *Run[R] {
	r := newRunner(ctx, KindPipeline, len(stages), onDone, opts)

	var launch func(idx int)
	launch = func(idx int) {
		r.admit()
		r.start(idx, func(ctx context.Context, cb Callback[R]) {
			stages[idx](ctx, arg, cb)
		})
	}
	r.after = func(idx int, out state.Outcome, err error) {
		if out.Failed {
			r.finish(err)
			return
		}
		if out.Last {
			r.finish(nil)
			return
		}
		go launch(idx + 1)
	}

	if len(stages) == 0 {
		r.finishLater(nil)
		return r.run
	}
	go launch(0)
	return r.run
}
