// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import "time"

// An Observer receives lifecycle notifications from a run. The methods
// are called outside of any lock, possibly from multiple goroutines at
// once, and should return quickly. See the flowprom package for a
// Prometheus implementation.
type Observer interface {
	// OperationStarted is called immediately before an operation is
	// invoked.
	OperationStarted(run string, kind Kind, index int)

	// OperationFinished is called when an operation's callback has
	// fired. The status will be [OK] or [Failed].
	OperationFinished(run string, kind Kind, index int, status Status, elapsed time.Duration)

	// RunFinished is called immediately before the completion callback.
	RunFinished(run string, kind Kind, completed, failed int, elapsed time.Duration)
}

type nopObserver struct{}

var _ Observer = nopObserver{}

func (nopObserver) OperationStarted(string, Kind, int) {}
func (nopObserver) OperationFinished(string, Kind, int, Status, time.Duration) {}
func (nopObserver) RunFinished(string, Kind, int, int, time.Duration) {}
