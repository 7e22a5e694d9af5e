// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"fmt"
	"slices"

	"vawter.tech/flow/internal/safe"
	"vawter.tech/flow/internal/state"
)

// A DoubleCompletionError is the panic value raised when an operation
// invokes its [Callback] more than once. The panic is never recovered
// by this package.
type DoubleCompletionError = state.DoubleCompletionError

// A RecoveredError is reported as the failure of an operation that
// panics before invoking its [Callback].
type RecoveredError = safe.RecoveredError

// A MultiError is the aggregate error passed to the completion
// callback of [Parallel] when at least one operation has failed. The
// enclosed errors are in operation order, not completion order.
type MultiError struct {
	errs []error
}

var _ interface{ Unwrap() []error } = (*MultiError)(nil)

// newMultiError returns nil if errs is empty.
func newMultiError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &MultiError{errs: slices.Clone(errs)}
}

// Error implements error.
func (e *MultiError) Error() string {
	if len(e.errs) == 1 {
		return fmt.Sprintf("first of 1 error: %v", e.errs[0])
	}
	return fmt.Sprintf("first of %d errors: %v", len(e.errs), e.errs[0])
}

// Errors returns a copy of the enclosed errors.
func (e *MultiError) Errors() []error { return slices.Clone(e.errs) }

// Index returns the i-th enclosed error.
func (e *MultiError) Index(i int) error { return e.errs[i] }

// Len returns the number of enclosed errors.
func (e *MultiError) Len() int { return len(e.errs) }

// Unwrap supports [errors.Is] and [errors.As].
func (e *MultiError) Unwrap() []error { return e.errs }
