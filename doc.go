// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package flow provides observable combinators for asynchronous
// control flow.
//
// An operation is a function that reports its outcome by invoking a
// [Callback] exactly once. The combinators in this package launch a
// set of operations and invoke a single completion callback once the
// set has finished, while exposing a [Run] handle that can be
// inspected in the meantime:
//
//   - [Parallel] launches every operation at once and collects all
//     outcomes. Failures are aggregated into a [*MultiError].
//   - [Pipeline] launches operations one at a time, in order, and stops
//     at the first failure.
//   - [ForEachParallel] applies one function to a slice of inputs in
//     parallel.
//
// The completion callback is never invoked on the calling goroutine
// for an empty set of operations, so the returned Run is always
// available to the caller before the callback fires.
//
// # Adapting blocking functions
//
// Go code is usually written in a blocking style. The [Fn], [StageFn],
// and [EachFn] helpers adapt functions that return (R, error) to the
// callback contract:
//
//	run := flow.Parallel(ctx, []flow.Op[string]{
//	    flow.Fn(func(ctx context.Context) (string, error) { return fetch(ctx, "a") }),
//	    flow.Fn(func(ctx context.Context) (string, error) { return fetch(ctx, "b") }),
//	}, func(err error, run *flow.Run[string]) {
//	    log.Print(run.Successes(), err)
//	})
//	_ = run.Wait(ctx)
//
// # Status tracking
//
// Each [Operation] moves through the statuses [Waiting], [Pending],
// and then either [OK] or [Failed]. An operation that invokes its
// callback a second time is a programming error and causes a panic
// with a [*DoubleCompletionError]; it is never silently ignored.
// Operations that panic before reporting an outcome fail with a
// [*RecoveredError].
//
// # Timing
//
// The [TrackTime] option records when each operation was launched and
// how long it took to report an outcome, as well as the duration of
// the whole run. Values are taken from the monotonic clock. Timing
// fields are nil, rather than zero, until they have been reached.
//
// # Limits
//
// [WithMaxRate] and [WithMaxConcurrency] throttle how quickly
// operations are launched. There is no support for retries, priorities,
// or canceling an operation once it has been launched.
//
// # Observability
//
// Every run creates a [runtime/trace.Task] and each operation executes
// within a trace region. [WithLogger] attaches a zerolog logger, and
// [WithObserver] attaches lifecycle hooks, such as the Prometheus
// exporter in the flowprom sub-package.
package flow
