// Copyright 2023 The Cockroach Authors
// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package state defines the core run-tracking types.
package state

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Status is the lifecycle position of a single operation.
type Status int

// The status path is Waiting -> Pending -> (OK | Failed).
const (
	Waiting Status = iota
	Pending
	OK
	Failed
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Pending:
		return "pending"
	case OK:
		return "ok"
	case Failed:
		return "fail"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal returns true for OK and Failed.
func (s Status) Terminal() bool { return s == OK || s == Failed }

// A DoubleCompletionError is raised, via panic, when an operation's
// callback is invoked while its record is not pending. It indicates a
// broken operation, not a recoverable condition.
type DoubleCompletionError struct {
	Index  int    // The operation's position in the run.
	Status Status // The status found when the callback fired.
}

// Error implements error.
func (e *DoubleCompletionError) Error() string {
	return fmt.Sprintf("operation %d completed while %s", e.Index, e.Status)
}

// Fatal marks the error as unrecoverable for the safe package.
func (e *DoubleCompletionError) Fatal() bool { return true }

// A Record is the per-operation tracking data.
type Record[R any] struct {
	Status  Status
	Result  R         // Valid only for OK.
	Err     error     // Valid only for Failed.
	Started time.Time // Zero until launched.
	Ended   time.Time // Zero until completed.
}

// Outcome describes the effect of a call to [State.Complete].
type Outcome struct {
	Completed int           // The number of terminal records.
	Elapsed   time.Duration // Time since the record was launched.
	Failed    bool          // The record moved to Failed.
	Last      bool          // Every record is now terminal.
}

// A State tracks one run of operations. All methods are safe for
// concurrent use.
type State[R any] struct {
	done chan struct{}

	mu struct {
		sync.RWMutex
		completed int
		ended     time.Time
		err       error // The aggregate error, set by Finish.
		errors    int
		finished  bool
		ops       []Record[R]
		started   time.Time
		successes []R
	}
}

// New constructs a State with n records in the given initial status.
// The run's start time is recorded immediately.
func New[R any](n int, initial Status) *State[R] {
	if initial.Terminal() {
		// Implementation error, not user problem.
		panic("terminal initial status")
	}
	ret := &State[R]{done: make(chan struct{})}
	ret.mu.ops = make([]Record[R], n)
	for i := range ret.mu.ops {
		ret.mu.ops[i].Status = initial
	}
	ret.mu.started = time.Now()
	return ret
}

// Close marks that the completion callback has returned. It is safe
// to call more than once.
func (s *State[R]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Complete moves the record into a terminal status. A
// [*DoubleCompletionError] is raised if the record is not pending.
func (s *State[R]) Complete(idx int, result R, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &s.mu.ops[idx]
	if rec.Status != Pending {
		panic(&DoubleCompletionError{Index: idx, Status: rec.Status})
	}
	return s.completeLocked(idx, rec, result, err)
}

// CompleteIfPending is a variation of [State.Complete] that returns
// false instead of panicking if the record is not pending.
func (s *State[R]) CompleteIfPending(idx int, err error) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &s.mu.ops[idx]
	if rec.Status != Pending {
		return Outcome{}, false
	}
	var zero R
	return s.completeLocked(idx, rec, zero, err), true
}

// Done returns a channel that is closed by [State.Close].
func (s *State[R]) Done() <-chan struct{} { return s.done }

// Err returns the value passed to [State.Finish].
func (s *State[R]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.err
}

// Failures returns the errors of all failed records, in record order.
func (s *State[R]) Failures() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []error
	for _, rec := range s.mu.ops {
		if rec.Status == Failed {
			ret = append(ret, rec.Err)
		}
	}
	return ret
}

// Finish is a one-shot method that records the run's end time and its
// aggregate error. It returns the time elapsed since [New].
func (s *State[R]) Finish(err error) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.finished {
		// Implementation error, not user problem.
		panic("run finished twice")
	}
	s.mu.finished = true
	s.mu.err = err
	s.mu.ended = time.Now()
	return s.mu.ended.Sub(s.mu.started)
}

// Finished returns true once [State.Finish] has been called.
func (s *State[R]) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.finished
}

// Launch marks the record as pending and records its start time. A
// record may only be launched once.
func (s *State[R]) Launch(idx int) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &s.mu.ops[idx]
	if rec.Status.Terminal() || !rec.Started.IsZero() {
		// Implementation error, not user problem.
		panic(fmt.Sprintf("operation %d launched twice", idx))
	}
	rec.Status = Pending
	rec.Started = time.Now()
	return rec.Started
}

// Len returns the number of records.
func (s *State[R]) Len() int {
	// The slice is never resized.
	return len(s.mu.ops)
}

// NumCompleted returns the number of terminal records.
func (s *State[R]) NumCompleted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.completed
}

// NumErrors returns the number of failed records.
func (s *State[R]) NumErrors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.errors
}

// Record returns a copy of a single record.
func (s *State[R]) Record(idx int) Record[R] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.ops[idx]
}

// Records returns a copy of all records.
func (s *State[R]) Records() []Record[R] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mu.ops)
}

// Span returns the run's start time and, once finished, its end time.
func (s *State[R]) Span() (started, ended time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.started, s.mu.ended
}

// Successes returns a clone of the success results, in completion
// order.
func (s *State[R]) Successes() []R {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mu.successes)
}

func (s *State[R]) completeLocked(idx int, rec *Record[R], result R, err error) Outcome {
	rec.Ended = time.Now()
	if err != nil {
		rec.Status = Failed
		rec.Err = err
		s.mu.errors++
	} else {
		rec.Status = OK
		rec.Result = result
		s.mu.successes = append(s.mu.successes, result)
	}
	s.mu.completed++
	if s.mu.completed > len(s.mu.ops) {
		// Implementation error, not user problem.
		panic(fmt.Sprintf("over-completed at operation %d", idx))
	}
	return Outcome{
		Completed: s.mu.completed,
		Elapsed:   rec.Ended.Sub(rec.Started),
		Failed:    err != nil,
		Last:      s.mu.completed == len(s.mu.ops),
	}
}
