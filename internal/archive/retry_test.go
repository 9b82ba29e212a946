package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-archiver/internal/model"
	"creator-archiver/internal/yutto"
)

func TestComputeTimeout(t *testing.T) {
	r := &Retrier{TimeoutBase: 5 * time.Second, TimeoutPerSecond: 2 * time.Second, TimeoutCap: 600 * time.Second}
	cases := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{10, 25 * time.Second},
		{297, 599 * time.Second},
		{3600, 600 * time.Second},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%ds", tc.seconds), func(t *testing.T) {
			assert.Equal(t, tc.want, r.ComputeTimeout(tc.seconds))
		})
	}

	uncapped := &Retrier{TimeoutBase: 5 * time.Second, TimeoutPerSecond: 2 * time.Second}
	assert.Equal(t, 7205*time.Second, uncapped.ComputeTimeout(3600))
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, ""},
		{"timeout", &yutto.TimeoutError{Timeout: time.Second}, FailureTimeout},
		{"process", fmt.Errorf("wrapped: %w", &yutto.ProcessError{ExitCode: 1}), FailureProcess},
		{"sentinel", yutto.ErrMissingSentinel, FailureMissingSentinel},
		{"no output", yutto.ErrNoOutput, FailureNoOutput},
		{"aborted", fmt.Errorf("%w: x", yutto.ErrAborted), FailureAborted},
		{"canceled", context.Canceled, FailureAborted},
		{"other", errors.New("exec: not found"), FailureOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFailure(tc.err))
		})
	}
}

func TestRetrier_ExhaustsAfterMaxAttempts(t *testing.T) {
	inv := &fakeInvoker{fn: func(context.Context, int, yutto.Request) (yutto.Result, error) {
		return yutto.Result{}, &yutto.TimeoutError{Timeout: time.Second}
	}}
	rec := &recorder{}
	r := &Retrier{Invoker: inv, MaxAttempts: 5, Observer: rec}

	out := r.Run(context.Background(), Job{VideoID: "BV1aa", DurationSeconds: 10})
	assert.Equal(t, model.AttemptExhausted, out.State)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, 5, inv.callCount())
	for _, req := range inv.calls {
		assert.Equal(t, 25*time.Second, req.Timeout)
	}
	assert.Equal(t, 5, rec.count(func(e Event) bool { _, ok := e.(AttemptStarted); return ok }))
	assert.Equal(t, 4, rec.count(func(e Event) bool { f, ok := e.(AttemptFailed); return ok && f.WillRetry }))
	assert.Equal(t, 1, rec.count(func(e Event) bool { f, ok := e.(AttemptFailed); return ok && !f.WillRetry && f.Kind == FailureTimeout }))
}

func TestRetrier_SucceedsAfterRetry(t *testing.T) {
	inv := &fakeInvoker{fn: func(_ context.Context, call int, req yutto.Request) (yutto.Result, error) {
		if call < 3 {
			return yutto.Result{}, &yutto.ProcessError{ExitCode: 1}
		}
		req.Progress(yutto.Sample{DoneBytes: 1, TotalBytes: 2})
		return yutto.Result{FilePaths: []string{"/v/a.mp4"}}, nil
	}}
	rec := &recorder{}
	r := &Retrier{Invoker: inv, Observer: rec}

	out := r.Run(context.Background(), Job{VideoID: "BV1aa"})
	require.Equal(t, model.AttemptSucceeded, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []string{"/v/a.mp4"}, out.FilePaths)
	assert.Equal(t, 1, rec.count(func(e Event) bool { p, ok := e.(TransferProgress); return ok && p.Attempt == 3 }))
}

func TestRetrier_AbortDoesNotRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inv := &fakeInvoker{fn: func(context.Context, int, yutto.Request) (yutto.Result, error) {
		cancel()
		return yutto.Result{}, fmt.Errorf("%w: u", yutto.ErrAborted)
	}}
	r := &Retrier{Invoker: inv, MaxAttempts: 5}

	out := r.Run(ctx, Job{VideoID: "BV1aa"})
	assert.Equal(t, model.AttemptAborted, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, inv.callCount())
}

func TestRetrier_CancelledBeforeStartMakesNoAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := &fakeInvoker{fn: func(context.Context, int, yutto.Request) (yutto.Result, error) {
		return yutto.Result{}, nil
	}}
	out := (&Retrier{Invoker: inv}).Run(ctx, Job{VideoID: "BV1aa"})
	assert.Equal(t, model.AttemptAborted, out.State)
	assert.Equal(t, 0, out.Attempts)
	assert.Equal(t, 0, inv.callCount())
}
