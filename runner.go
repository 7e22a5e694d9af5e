// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"fmt"
	"runtime/trace"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"vawter.tech/flow/internal/safe"
	"vawter.tech/flow/internal/state"
)

// A runner holds the coordination machinery shared by the combinators.
// The after callback decides what happens once an operation has
// reached a terminal status.
type runner[R any] struct {
	ctx    context.Context // Carries the trace task.
	onDone DoneFunc[R]
	run    *Run[R]
	sem    *semaphore.Weighted // Nil if unbounded.
	task   *trace.Task

	after func(idx int, out state.Outcome, err error)
}

func newRunner[R any](
	ctx context.Context, kind Kind, n int, onDone DoneFunc[R], opts []Option,
) *runner[R] {
	cfg := newConfig(kind, opts)
	initial := Waiting
	if kind == KindParallel && !cfg.limited() {
		initial = Pending
	}

	ctx, task := trace.NewTask(ctx, cfg.name)
	ret := &runner[R]{
		ctx:    ctx,
		onDone: onDone,
		run: &Run[R]{
			cfg:  cfg,
			kind: kind,
			st:   state.New[R](n, initial),
		},
		task: task,
	}
	if kind == KindParallel {
		ret.sem = cfg.semaphore()
	}
	return ret
}

// admit blocks until any configured limits allow another launch. The
// core never cancels, so the limits ignore the context's cancellation.
func (r *runner[R]) admit() {
	ctx := context.WithoutCancel(r.ctx)
	if l := r.run.cfg.limiter; l != nil {
		defer trace.StartRegion(ctx, "rate limit wait").End()
		// The context has no deadline and the burst is at least one.
		if err := l.Wait(ctx); err != nil {
			panic(fmt.Errorf("rate limit wait: %w", err))
		}
	}
	if r.sem != nil {
		defer trace.StartRegion(ctx, "concurrency wait").End()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			panic(fmt.Errorf("concurrency wait: %w", err))
		}
	}
}

// callback returns the Callback handed to the idx-th operation.
func (r *runner[R]) callback(idx int) Callback[R] {
	return func(result R, err error) {
		r.settle(idx, r.run.st.Complete(idx, result, err), err)
	}
}

// finish is called exactly once, from the goroutine that caused the
// run to complete.
func (r *runner[R]) finish(err error) {
	st := r.run.st
	cfg := r.run.cfg
	defer st.Close()
	defer r.task.End()

	elapsed := st.Finish(err)
	cfg.observer.RunFinished(cfg.name, r.run.kind, st.NumCompleted(), st.NumErrors(), elapsed)

	var evt *zerolog.Event
	if err == nil {
		evt = cfg.logger.Info()
	} else {
		evt = cfg.logger.Warn().Err(err)
	}
	evt.
		Str("run", cfg.name).
		Stringer("kind", r.run.kind).
		Int("operations", st.Len()).
		Int("completed", st.NumCompleted()).
		Int("errors", st.NumErrors()).
		Dur("elapsed", elapsed).
		Msg("run finished")

	r.onDone(err, r.run)
}

// finishLater completes the run from a new goroutine so that the
// caller always receives the Run before the callback fires.
func (r *runner[R]) finishLater(err error) {
	go r.finish(err)
}

// settle is called once an operation has reached a terminal status.
func (r *runner[R]) settle(idx int, out state.Outcome, err error) {
	if r.sem != nil {
		r.sem.Release(1)
	}
	cfg := r.run.cfg
	status := OK
	if out.Failed {
		status = Failed
	}
	cfg.observer.OperationFinished(cfg.name, r.run.kind, idx, status, out.Elapsed)
	cfg.logger.Debug().
		Str("run", cfg.name).
		Int("index", idx).
		Stringer("status", status).
		Dur("elapsed", out.Elapsed).
		AnErr("cause", err).
		Msg("operation finished")
	trace.Logf(r.ctx, "flow", "operation %d %s", idx, status)

	r.after(idx, out, err)
}

// start launches the idx-th operation in the current goroutine. A
// panic from the operation is reported as its failure if it has not
// already invoked its callback.
func (r *runner[R]) start(idx int, invoke func(context.Context, Callback[R])) {
	cfg := r.run.cfg
	r.run.st.Launch(idx)
	cfg.observer.OperationStarted(cfg.name, r.run.kind, idx)
	cfg.logger.Debug().
		Str("run", cfg.name).
		Int("index", idx).
		Msg("operation started")

	cb := r.callback(idx)
	err := safe.Call(func() {
		defer trace.StartRegion(r.ctx, fmt.Sprintf("%s[%d]", cfg.name, idx)).End()
		invoke(r.ctx, cb)
	})
	if err == nil {
		return
	}
	out, ok := r.run.st.CompleteIfPending(idx, err)
	if !ok {
		// The operation has already reported an outcome, so there's
		// nowhere else to send the panic.
		panic(err)
	}
	r.settle(idx, out, err)
}
