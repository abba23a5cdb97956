package controller

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mikol1980/aitutor/pkg/errmodel"
)

// FetchFunc loads one resource from the remote API.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Resource is the generic single-resource fetch/retry state machine.
// Responses are applied in the order their requests were issued: each load
// bumps a generation counter and a response whose generation is no longer
// current is discarded.
type Resource[T any] struct {
	mu    sync.Mutex
	fetch FetchFunc[T]
	state State[T]
	gen   uint64
	subs  map[int]func(State[T])
	subID int
	opts  options
}

// New creates a Resource around fetch. The controller starts idle; call
// Load to issue the first request.
func New[T any](fetch FetchFunc[T], opts ...Option) *Resource[T] {
	return &Resource[T]{
		fetch: fetch,
		state: State[T]{Status: StatusIdle},
		subs:  make(map[int]func(State[T])),
		opts:  newOptions(opts),
	}
}

// State returns a snapshot of the controller's observable state.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn to observe every state change. The returned
// function cancels the subscription.
func (r *Resource[T]) Subscribe(fn func(State[T])) (cancel func()) {
	r.mu.Lock()
	id := r.subID
	r.subID++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Load issues one request and resolves into success or error state.
// A response superseded by a newer Load is discarded unapplied.
func (r *Resource[T]) Load(ctx context.Context) {
	ctx, span := otel.Tracer("controller/resource").Start(ctx, "Resource.Load")
	defer span.End()

	r.mu.Lock()
	r.gen++
	gen := r.gen
	fetch := r.fetch
	r.state.Status = StatusLoading
	r.state.Err = nil
	st := r.state
	r.mu.Unlock()
	r.notify(st)
	span.SetAttributes(attribute.Int64("request.generation", int64(gen)))

	data, err := fetch(ctx)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		r.opts.logger.Debug("discarding stale response", "generation", gen)
		span.SetAttributes(attribute.Bool("response.stale", true))
		return
	}
	if err != nil {
		span.RecordError(err)
		var zero T
		r.state.Status = StatusError
		r.state.Data = zero
		r.state.HasData = false
		r.state.Err = errmodel.From(err)
	} else {
		r.state = State[T]{Status: StatusSuccess, Data: data, HasData: true}
	}
	st = r.state
	r.mu.Unlock()
	r.notify(st)
}

// Retry re-issues the load after the fixed delay, bounded by the retry
// ceiling. Past the ceiling it performs no network call and leaves state
// unchanged.
func (r *Resource[T]) Retry(ctx context.Context) {
	r.mu.Lock()
	if r.state.RetryCount >= r.opts.maxRetries {
		r.mu.Unlock()
		r.opts.logger.Warn("retry ceiling reached", "max_retries", r.opts.maxRetries)
		return
	}
	r.state.RetryCount++
	r.mu.Unlock()

	if !r.opts.wait(ctx.Done()) {
		return
	}
	r.Load(ctx)
}

// Rekey swaps the fetch function when the external identifier the resource
// is keyed by changes, resets retry accounting, and loads fresh. A stale
// in-flight response for the previous key is discarded by generation.
func (r *Resource[T]) Rekey(ctx context.Context, fetch FetchFunc[T]) {
	r.mu.Lock()
	r.fetch = fetch
	r.state.RetryCount = 0
	r.mu.Unlock()
	r.Load(ctx)
}

func (r *Resource[T]) notify(st State[T]) {
	r.mu.Lock()
	fns := make([]func(State[T]), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
