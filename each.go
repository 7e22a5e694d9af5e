// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import "context"

// ForEachParallel is a convenience wrapper around [Parallel] that
// invokes fn once for each input value.
func ForEachParallel[T, R any](
	ctx context.Context,
	fn func(ctx context.Context, input T, done Callback[R]),
	inputs []T,
	onDone DoneFunc[R],
	opts ...Option,
) *Run[R] {
	ops := make([]Op[R], len(inputs))
	for idx, input := range inputs {
		ops[idx] = func(ctx context.Context, done Callback[R]) {
			fn(ctx, input, done)
		}
	}
	return Parallel(ctx, ops, onDone, opts...)
}
