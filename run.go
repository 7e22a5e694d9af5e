// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vawter.tech/flow/internal/state"
)

// Status is the lifecycle position of an [Operation].
type Status = state.Status

// The status path of an operation is Waiting -> Pending -> (OK | Failed).
const (
	Waiting = state.Waiting // Not yet launched.
	Pending = state.Pending // Launched, outcome not yet known.
	OK      = state.OK      // Succeeded.
	Failed  = state.Failed  // Failed.
)

// Kind identifies the combinator that produced a [Run].
type Kind int

// The kinds of run.
const (
	KindParallel Kind = iota
	KindPipeline
)

func (k Kind) String() string {
	switch k {
	case KindParallel:
		return "parallel"
	case KindPipeline:
		return "pipeline"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// A Callback reports the outcome of an operation. It must be called
// exactly once. A second call will panic with a
// [*DoubleCompletionError].
type Callback[R any] func(result R, err error)

// A DoneFunc is invoked exactly once, when a run completes. The error
// is nil if and only if no operation failed.
type DoneFunc[R any] func(err error, run *Run[R])

// An Operation is a snapshot of the tracking data for a single
// operation within a [Run].
type Operation[R any] struct {
	Index   int
	Status  Status
	Result  R              // Defined only for OK.
	Err     error          // Defined only for Failed.
	Started *time.Time     // Nil unless timing is enabled and the operation was launched.
	Elapsed *time.Duration // Nil unless timing is enabled and the operation completed.
}

// A Run is the handle returned by [Parallel], [Pipeline], and
// [ForEachParallel]. It is updated in place as operations complete
// and becomes immutable once the completion callback has returned.
//
// All methods on a Run are safe for concurrent use.
type Run[R any] struct {
	cfg  *config
	kind Kind
	st   *state.State[R]
}

// Done returns a channel that is closed after the completion callback
// has returned.
func (r *Run[R]) Done() <-chan struct{} { return r.st.Done() }

// Elapsed returns the duration of the entire run. It returns nil if
// timing is disabled or if the run has not yet completed.
func (r *Run[R]) Elapsed() *time.Duration {
	if !r.cfg.trackTime {
		return nil
	}
	started, ended := r.st.Span()
	return elapsed(started, ended)
}

// Err returns the error passed to the completion callback. It returns
// nil until the run has completed.
func (r *Run[R]) Err() error { return r.st.Err() }

// Kind returns the kind of combinator that produced the Run.
func (r *Run[R]) Kind() Kind { return r.kind }

// Len returns the number of operations in the run.
func (r *Run[R]) Len() int { return r.st.Len() }

// MarshalJSON summarizes the Run.
func (r *Run[R]) MarshalJSON() ([]byte, error) {
	type op struct {
		Error   string         `json:"error,omitzero"`
		Result  any            `json:"result"`
		Started *time.Time     `json:"started,omitempty"`
		Elapsed *time.Duration `json:"elapsed,omitempty"`
		Status  string         `json:"status"`
	}
	p := struct {
		Elapsed      *time.Duration `json:"elapsed,omitempty"`
		Kind         string         `json:"kind"`
		Name         string         `json:"name"`
		NumCompleted int            `json:"numCompleted"`
		NumErrors    int            `json:"numErrors"`
		Operations   []op           `json:"operations"`
		Started      *time.Time     `json:"started,omitempty"`
	}{
		Elapsed:      r.Elapsed(),
		Kind:         r.kind.String(),
		Name:         r.cfg.name,
		NumCompleted: r.st.NumCompleted(),
		NumErrors:    r.st.NumErrors(),
		Started:      r.Started(),
	}
	for _, o := range r.Operations() {
		next := op{
			Started: o.Started,
			Elapsed: o.Elapsed,
			Status:  o.Status.String(),
		}
		switch o.Status {
		case OK:
			next.Result = o.Result
		case Failed:
			next.Error = o.Err.Error()
		default:
		}
		p.Operations = append(p.Operations, next)
	}
	return json.Marshal(p)
}

// Name returns the name set by [WithName].
func (r *Run[R]) Name() string { return r.cfg.name }

// NumCompleted returns the number of operations that have reached a
// terminal status.
func (r *Run[R]) NumCompleted() int { return r.st.NumCompleted() }

// NumErrors returns the number of operations that have failed.
func (r *Run[R]) NumErrors() int { return r.st.NumErrors() }

// Operation returns a snapshot of the i-th operation.
func (r *Run[R]) Operation(i int) Operation[R] {
	return r.operation(i, r.st.Record(i))
}

// Operations returns a snapshot of every operation, in input order.
func (r *Run[R]) Operations() []Operation[R] {
	recs := r.st.Records()
	ret := make([]Operation[R], len(recs))
	for i, rec := range recs {
		ret[i] = r.operation(i, rec)
	}
	return ret
}

// Started returns the time at which the run was created. It returns
// nil if timing is disabled.
func (r *Run[R]) Started() *time.Time {
	if !r.cfg.trackTime {
		return nil
	}
	started, _ := r.st.Span()
	return &started
}

// String is for debugging use only.
func (r *Run[R]) String() string {
	return fmt.Sprintf("%s %s: (%d/%d done) (%d errors)",
		r.kind, r.cfg.name, r.st.NumCompleted(), r.st.Len(), r.st.NumErrors())
}

// Successes returns the results of successful operations. For a
// [Parallel] run, the results are in completion order.
func (r *Run[R]) Successes() []R { return r.st.Successes() }

// Wait blocks until the completion callback has returned and then
// returns the same error that was passed to it. If ctx is done first,
// ctx.Err() is returned.
func (r *Run[R]) Wait(ctx context.Context) error {
	select {
	case <-r.st.Done():
		return r.st.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run[R]) operation(i int, rec state.Record[R]) Operation[R] {
	ret := Operation[R]{
		Index:  i,
		Status: rec.Status,
		Result: rec.Result,
		Err:    rec.Err,
	}
	if r.cfg.trackTime && !rec.Started.IsZero() {
		started := rec.Started
		ret.Started = &started
		ret.Elapsed = elapsed(rec.Started, rec.Ended)
	}
	return ret
}

// elapsed returns nil if ended is zero.
func elapsed(started, ended time.Time) *time.Duration {
	if ended.IsZero() {
		return nil
	}
	d := ended.Sub(started)
	return &d
}
