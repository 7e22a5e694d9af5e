// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sort"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	a := assert.New(t)

	cfg := newConfig(KindPipeline, nil)
	a.Equal("pipeline", cfg.name)
	a.NotNil(cfg.logger)
	a.Equal(nopObserver{}, cfg.observer)
	a.False(cfg.trackTime)
	a.False(cfg.limited())
	a.Nil(cfg.semaphore())

	cfg = newConfig(KindParallel, []Option{
		WithName("fetch"),
		TrackTime(),
		WithMaxConcurrency(3),
	})
	a.Equal("fetch", cfg.name)
	a.True(cfg.trackTime)
	a.True(cfg.limited())
	a.NotNil(cfg.semaphore())
}

func TestOptionValidation(t *testing.T) {
	a := assert.New(t)
	a.PanicsWithError("limit must be greater than zero", func() { WithMaxConcurrency(0) })
	a.PanicsWithError("burst must be greater than zero", func() { WithMaxRate(1, 0) })
	a.PanicsWithError("rate must be greater than zero", func() { WithMaxRate(0, 1) })
	a.PanicsWithError("rate must be greater than zero", func() { WithMaxRate(-2, 1) })
	a.PanicsWithError("rate must be greater than zero", func() { WithMaxRate(math.NaN(), 1) })
	a.NotPanics(func() { WithMaxRate(math.Inf(1), 1) })
}

func TestWithMaxConcurrency(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := require.New(t)

		var active, peak atomic.Int32
		ops := make([]Op[int], 6)
		for i := range ops {
			ops[i] = func(_ context.Context, done Callback[int]) {
				now := active.Add(1)
				for {
					prev := peak.Load()
					if now <= prev || peak.CompareAndSwap(prev, now) {
						break
					}
				}
				time.AfterFunc(100*time.Millisecond, func() {
					active.Add(-1)
					done(i, nil)
				})
			}
		}

		run := Parallel(t.Context(), ops, func(error, *Run[int]) {},
			WithMaxConcurrency(2), TrackTime())

		synctest.Wait()
		counts := map[Status]int{}
		for _, op := range run.Operations() {
			counts[op.Status]++
		}
		r.Equal(map[Status]int{Pending: 2, Waiting: 4}, counts)

		r.NoError(run.Wait(t.Context()))
		r.Equal(int32(2), peak.Load())
		r.Len(run.Successes(), 6)
		r.Equal(300*time.Millisecond, *run.Elapsed())
	})
}

func TestWithMaxRate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := require.New(t)

		ops := make([]Op[int], 3)
		for i := range ops {
			ops[i] = func(_ context.Context, done Callback[int]) { done(i, nil) }
		}

		run := Parallel(t.Context(), ops, func(error, *Run[int]) {},
			WithMaxRate(10, 1), TrackTime())
		r.NoError(run.Wait(t.Context()))

		started := *run.Started()
		for i, op := range run.Operations() {
			want := time.Duration(i) * 100 * time.Millisecond
			r.InDelta(float64(want), float64(op.Started.Sub(started)), float64(time.Millisecond))
		}
	})
}

func TestWithMaxRatePipeline(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := require.New(t)

		stage := StageFn(func(context.Context, struct{}) (int, error) { return 1, nil })
		run := Pipeline(t.Context(), []Stage[struct{}, int]{stage, stage, stage},
			struct{}{}, func(error, *Run[int]) {},
			WithMaxRate(2, 1), WithMaxConcurrency(1), TrackTime())
		r.NoError(run.Wait(t.Context()))
		r.InDelta(float64(time.Second), float64(*run.Elapsed()), float64(time.Millisecond))
	})
}

func TestWithObserver(t *testing.T) {
	r := require.New(t)
	ctx := testContext(t)

	obs := &recordingObserver{}
	run := Parallel(ctx, []Op[int]{
		succeed(1),
		fail[int](errors.New("boom")),
		succeed(3),
	}, func(error, *Run[int]) {}, WithObserver(obs), WithName("observed"))
	r.Error(run.Wait(ctx))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	started := append([]int(nil), obs.started...)
	sort.Ints(started)
	r.Equal([]int{0, 1, 2}, started)
	r.Equal(map[int]Status{0: OK, 1: Failed, 2: OK}, obs.finished)
	r.Equal([]string{"parallel/observed"}, obs.runs)
	r.Equal(1, obs.failed)
}

func TestWithLogger(t *testing.T) {
	r := require.New(t)
	ctx := testContext(t)

	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf)).Level(zerolog.DebugLevel)

	run := Pipeline(ctx, []Stage[int, int]{
		StageFn(func(_ context.Context, v int) (int, error) { return v, nil }),
		StageFn(func(context.Context, int) (int, error) { return 0, errors.New("boom") }),
	}, 7, func(error, *Run[int]) {}, WithLogger(logger), WithName("logged"))
	r.Error(run.Wait(ctx))

	out := buf.String()
	r.Contains(out, `"run":"logged"`)
	r.Contains(out, `"message":"operation started"`)
	r.Contains(out, `"message":"operation finished"`)
	r.Contains(out, `"status":"fail"`)
	r.Contains(out, `"cause":"boom"`)
	r.Contains(out, `"level":"warn"`)
	r.Contains(out, `"message":"run finished"`)
	r.Contains(out, `"kind":"pipeline"`)
}
