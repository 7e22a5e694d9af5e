// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package safe contains utilities for executing user-provided
// functions.
package safe

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const captureDepth = 32

// A Fatal panic value is never converted into an error by this
// package. The panic continues to unwind once it has been observed.
type Fatal interface {
	error
	Fatal() bool
}

// A RecoveredError associates an error with a stack trace.
type RecoveredError struct {
	Err   error
	Stack []uintptr
}

// Error implements error.
func (e *RecoveredError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "recovered: %v\n", e.Err)
	frames := runtime.CallersFrames(e.Stack)
	for {
		frame, more := frames.Next()
		_, _ = fmt.Fprintf(&sb, "%s ( %s:%d )\n", frame.Function, frame.File, frame.Line)

		if !more {
			return sb.String()
		}
	}
}

// String is for debugging use only.
func (e *RecoveredError) String() string {
	return e.Error()
}

// Unwrap return the enclosed error.
func (e *RecoveredError) Unwrap() error { return e.Err }

// IsFatal reports whether the panic value must not be recovered.
func IsFatal(r any) bool {
	f, ok := r.(Fatal)
	return ok && f.Fatal()
}

// recovered converts a panic value into a RecoveredError. Fatal values
// are re-raised.
func recovered(r any, err error) error {
	if IsFatal(r) {
		panic(r)
	}
	switch t := r.(type) {
	case error:
		err = errors.Join(err, t)
	default:
		err = errors.Join(err, fmt.Errorf("panic: %v", t))
	}
	// Skip runtime.Callers, recovered, and the deferred closure.
	stack := make([]uintptr, captureDepth)
	stack = stack[:runtime.Callers(3, stack)]
	return &RecoveredError{
		Err:   err,
		Stack: stack,
	}
}

// Call executes the function. If the function panics, an error will be
// returned unless the panic value is [Fatal].
func Call(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r, nil)
		}
	}()
	fn()
	return
}

// CallRE executes the function, returning some result value. If the
// function panics, the recovered value will be added to the returned
// error and the result will be zero.
func CallRE[R any](fn func() (R, error)) (ret R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			ret = zero
			err = recovered(r, nil)
		}
	}()
	ret, err = fn()
	return
}
