// Package controller implements the client-side resource synchronization
// layer: stateful units that own one remote resource's fetch/retry/mutation
// lifecycle. Controllers never return failures to callers; every outcome
// lands in observable state.
package controller

import (
	"log/slog"
	"time"

	"github.com/mikol1980/aitutor/pkg/errmodel"
)

// Status is the lifecycle phase of a controller's current request.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is the observable snapshot of a single-resource controller.
// Invariants: StatusSuccess implies HasData and a nil Err; StatusError
// implies a non-nil Err; RetryCount resets to zero on success and on any
// parameter change that triggers a fresh load.
type State[T any] struct {
	Status     Status
	Data       T
	HasData    bool
	Err        *errmodel.Error
	RetryCount int
}

// Retry accounting shared by all controllers: a fixed delay between
// attempts and a hard ceiling, after which Retry becomes a logged no-op
// until a state-changing event re-arms it.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1000 * time.Millisecond
)

type options struct {
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a controller at construction time.
type Option func(*options)

// WithMaxRetries overrides the retry ceiling.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryDelay overrides the fixed delay before a retry attempt.
// Zero disables the wait, which keeps tests fast.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNow overrides the clock used for optimistic records.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// wait sleeps for the configured retry delay, returning early if ctx is
// canceled. Reports whether the delay elapsed in full.
func (o *options) wait(done <-chan struct{}) bool {
	if o.retryDelay <= 0 {
		return true
	}
	t := time.NewTimer(o.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
