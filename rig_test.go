// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testContext imposes a per-test timeout so a lost callback fails the
// test instead of hanging it.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// doneRecorder captures calls to a DoneFunc.
type doneRecorder[R any] struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
	run   *Run[R]
}

func (d *doneRecorder[R]) Func() DoneFunc[R] {
	return func(err error, run *Run[R]) {
		d.calls.Add(1)
		d.mu.Lock()
		defer d.mu.Unlock()
		d.err = err
		d.run = run
	}
}

func (d *doneRecorder[R]) Get() (*Run[R], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run, d.err
}

// succeed returns an Op that reports the value from a new goroutine.
func succeed[R any](value R) Op[R] {
	return func(_ context.Context, done Callback[R]) {
		go done(value, nil)
	}
}

// fail returns an Op that reports the error before returning.
func fail[R any](err error) Op[R] {
	return func(_ context.Context, done Callback[R]) {
		var zero R
		done(zero, err)
	}
}

// recordingObserver captures Observer events.
type recordingObserver struct {
	mu       sync.Mutex
	started  []int
	finished map[int]Status
	runs     []string
	failed   int
}

var _ Observer = (*recordingObserver)(nil)

func (o *recordingObserver) OperationStarted(_ string, _ Kind, index int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, index)
}

func (o *recordingObserver) OperationFinished(_ string, _ Kind, index int, status Status, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[int]Status)
	}
	o.finished[index] = status
}

func (o *recordingObserver) RunFinished(run string, kind Kind, _, failed int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, kind.String()+"/"+run)
	o.failed = failed
}
