// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"

	"vawter.tech/flow/internal/safe"
)

// Fn adapts a blocking function into an [Op]. A panic is reported as
// a [*RecoveredError].
func Fn[R any](fn func(context.Context) (R, error)) Op[R] {
	return func(ctx context.Context, done Callback[R]) {
		done(safe.CallRE(func() (R, error) { return fn(ctx) }))
	}
}

// EachFn adapts a blocking function for use with [ForEachParallel].
// A panic is reported as a [*RecoveredError].
func EachFn[T, R any](
	fn func(context.Context, T) (R, error),
) func(context.Context, T, Callback[R]) {
	return func(ctx context.Context, input T, done Callback[R]) {
		done(safe.CallRE(func() (R, error) { return fn(ctx, input) }))
	}
}

// StageFn adapts a blocking function into a [Stage]. A panic is
// reported as a [*RecoveredError].
func StageFn[A, R any](fn func(context.Context, A) (R, error)) Stage[A, R] {
	return func(ctx context.Context, arg A, done Callback[R]) {
		done(safe.CallRE(func() (R, error) { return fn(ctx, arg) }))
	}
}
