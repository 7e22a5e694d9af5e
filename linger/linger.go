// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package linger contains a utility for reporting on where operations
// that never reported an outcome were created.
package linger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"vawter.tech/flow"
)

// This value is sensitive to the code structure.
const callersOffset = 3

// NewRecorder constructs a [Recorder] that samples the call stack at the
// requested depth. A depth of 1 will record the location at which [Op]
// or [Stage] was called.
func NewRecorder(depth int) *Recorder {
	return &Recorder{depth: depth}
}

// A Recorder tracks operations that have been invoked but have not yet
// called their [flow.Callback]. It is primarily useful for testing
// scenarios, to ensure that a stuck run can be traced back to the
// operation that never completed.
type Recorder struct {
	counter atomic.Uintptr
	data    sync.Map
	depth   int
}

// Callers returns a snapshot of the caller stacks associated with any
// operations that are currently outstanding.
func (r *Recorder) Callers() [][]uintptr {
	var ret [][]uintptr
	r.data.Range(func(_, value any) bool {
		ret = append(ret, value.([]uintptr))
		return true
	})
	return ret
}

// Len returns the number of outstanding operations.
func (r *Recorder) Len() int {
	count := 0
	r.data.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// caller samples the stack of the function that called [Op] or [Stage].
func (r *Recorder) caller() []uintptr {
	pc := make([]uintptr, r.depth)
	return pc[:runtime.Callers(callersOffset, pc)]
}

// track records the stack until the returned function is called.
func (r *Recorder) track(pc []uintptr) (release func()) {
	id := r.counter.Add(1)
	r.data.Store(id, pc)
	return func() { r.data.Delete(id) }
}

// Op wraps the operation so that the Recorder reports it from the time
// it is invoked until it calls its callback.
func Op[R any](r *Recorder, op flow.Op[R]) flow.Op[R] {
	pc := r.caller()
	return func(ctx context.Context, done flow.Callback[R]) {
		release := r.track(pc)
		op(ctx, func(result R, err error) {
			release()
			done(result, err)
		})
	}
}

// Stage is the [flow.Stage] equivalent of [Op].
func Stage[A, R any](r *Recorder, stage flow.Stage[A, R]) flow.Stage[A, R] {
	pc := r.caller()
	return func(ctx context.Context, arg A, done flow.Callback[R]) {
		release := r.track(pc)
		stage(ctx, arg, func(result R, err error) {
			release()
			done(result, err)
		})
	}
}
