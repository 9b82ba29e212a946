package archive

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"creator-archiver/internal/discovery"
	"creator-archiver/internal/model"
	"creator-archiver/internal/yutto"
)

const (
	DefaultMaxAttempts      = 5
	DefaultTimeoutBase      = 5 * time.Second
	DefaultTimeoutPerSecond = 2 * time.Second
	DefaultTimeoutCap       = 600 * time.Second
)

type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureProcess         FailureKind = "process_error"
	FailureMissingSentinel FailureKind = "missing_sentinel"
	FailureNoOutput        FailureKind = "no_output"
	FailureAborted         FailureKind = "aborted"
	FailureOther           FailureKind = "other"
)

// ClassifyFailure maps an invoker error to its failure kind. A nil error
// has no kind.
func ClassifyFailure(err error) FailureKind {
	var timeoutErr *yutto.TimeoutError
	var processErr *yutto.ProcessError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, yutto.ErrAborted), errors.Is(err, context.Canceled):
		return FailureAborted
	case errors.As(err, &timeoutErr):
		return FailureTimeout
	case errors.As(err, &processErr):
		return FailureProcess
	case errors.Is(err, yutto.ErrMissingSentinel):
		return FailureMissingSentinel
	case errors.Is(err, yutto.ErrNoOutput):
		return FailureNoOutput
	default:
		return FailureOther
	}
}

// Invoker runs a single download attempt.
type Invoker interface {
	Invoke(ctx context.Context, req yutto.Request) (yutto.Result, error)
}

// Retrier drives one item through pending -> attempting -> terminal.
type Retrier struct {
	Invoker          Invoker
	MaxAttempts      int
	TimeoutBase      time.Duration
	TimeoutPerSecond time.Duration
	TimeoutCap       time.Duration
	Observer         Observer
	Logger           *zap.Logger
}

// ComputeTimeout returns min(cap, base + duration*perSecond). A zero cap
// disables the bound.
func (r *Retrier) ComputeTimeout(durationSeconds int) time.Duration {
	base := r.TimeoutBase
	if base <= 0 {
		base = DefaultTimeoutBase
	}
	per := r.TimeoutPerSecond
	if per <= 0 {
		per = DefaultTimeoutPerSecond
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	timeout := base + time.Duration(durationSeconds)*per
	if r.TimeoutCap > 0 && timeout > r.TimeoutCap {
		timeout = r.TimeoutCap
	}
	return timeout
}

func (r *Retrier) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

// Job is one item handed to the retrier.
type Job struct {
	Index           int
	Total           int
	VideoID         string
	Title           string
	DurationSeconds int
	Request         yutto.Request
}

type Outcome struct {
	State     model.AttemptState
	Attempts  int
	FilePaths []string
	LastErr   error
}

func (r *Retrier) Run(ctx context.Context, job Job) Outcome {
	obs := r.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := r.maxAttempts()
	timeout := r.ComputeTimeout(job.DurationSeconds)
	attempt := model.NewAttempt(job.VideoID)

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			_ = model.TransitionAttempt(&attempt, model.AttemptAborted)
			return Outcome{State: attempt.State, Attempts: attempt.Count, LastErr: err}
		}
		if err := model.TransitionAttempt(&attempt, model.AttemptAttempting); err != nil {
			return Outcome{State: attempt.State, Attempts: attempt.Count, LastErr: err}
		}
		n := attempt.Count
		obs.Observe(AttemptStarted{
			Index:       job.Index,
			Total:       job.Total,
			VideoID:     job.VideoID,
			Title:       job.Title,
			Duration:    discovery.FormatDuration(job.DurationSeconds),
			Attempt:     n,
			MaxAttempts: maxAttempts,
			Timeout:     timeout,
		})

		req := job.Request
		req.Timeout = timeout
		req.Progress = func(s yutto.Sample) {
			obs.Observe(TransferProgress{Index: job.Index, Total: job.Total, VideoID: job.VideoID, Attempt: n, Sample: s})
		}
		res, err := r.Invoker.Invoke(ctx, req)
		if err == nil {
			_ = model.TransitionAttempt(&attempt, model.AttemptSucceeded)
			return Outcome{State: attempt.State, Attempts: n, FilePaths: res.FilePaths}
		}
		lastErr = err

		kind := ClassifyFailure(err)
		if kind == FailureAborted || ctx.Err() != nil {
			obs.Observe(AttemptFailed{VideoID: job.VideoID, Attempt: n, MaxAttempts: maxAttempts, Kind: FailureAborted, Err: err})
			_ = model.TransitionAttempt(&attempt, model.AttemptAborted)
			return Outcome{State: attempt.State, Attempts: n, LastErr: err}
		}

		willRetry := n < maxAttempts
		obs.Observe(AttemptFailed{VideoID: job.VideoID, Attempt: n, MaxAttempts: maxAttempts, Kind: kind, Err: err, WillRetry: willRetry})
		logger.Warn("download attempt failed",
			zap.String("video_id", job.VideoID),
			zap.Int("attempt", n),
			zap.Int("max_attempts", maxAttempts),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		if !willRetry {
			_ = model.TransitionAttempt(&attempt, model.AttemptExhausted)
			return Outcome{State: attempt.State, Attempts: n, LastErr: lastErr}
		}
	}
}
