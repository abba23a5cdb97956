package controller

import (
	"context"
	"sync"
)

// FilteredFetchFunc loads a collection under a filter set.
type FilteredFetchFunc[T, F any] func(ctx context.Context, filters F) (T, error)

// Collection is a Resource whose collection can be refetched under
// different filter parameters. Changing filters is not a retry: it resets
// retry accounting immediately and issues exactly one request under the
// new filters. A load issued under superseded filters is discarded by the
// underlying generation check, so stale data never overwrites current
// filter results.
type Collection[T, F any] struct {
	res   *Resource[T]
	fetch FilteredFetchFunc[T, F]

	mu      sync.Mutex
	filters F
}

// NewCollection creates a Collection with its initial filter set.
func NewCollection[T, F any](fetch FilteredFetchFunc[T, F], initial F, opts ...Option) *Collection[T, F] {
	c := &Collection[T, F]{fetch: fetch, filters: initial}
	c.res = New(c.fetchWith(initial), opts...)
	return c
}

// fetchWith captures one filter set so an in-flight request keeps the
// filters it was issued under.
func (c *Collection[T, F]) fetchWith(f F) FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		return c.fetch(ctx, f)
	}
}

// Load issues a request under the current filters.
func (c *Collection[T, F]) Load(ctx context.Context) { c.res.Load(ctx) }

// Retry re-issues the load, bounded by the shared retry ceiling.
func (c *Collection[T, F]) Retry(ctx context.Context) { c.res.Retry(ctx) }

// SetFilters replaces the filter set and triggers a fresh load with retry
// accounting reset to zero.
func (c *Collection[T, F]) SetFilters(ctx context.Context, f F) {
	c.mu.Lock()
	c.filters = f
	c.mu.Unlock()
	c.res.Rekey(ctx, c.fetchWith(f))
}

// ClearFilters is equivalent to setting the empty filter set.
func (c *Collection[T, F]) ClearFilters(ctx context.Context) {
	var zero F
	c.SetFilters(ctx, zero)
}

// Filters returns the current filter set.
func (c *Collection[T, F]) Filters() F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// State returns a snapshot of the collection's observable state.
func (c *Collection[T, F]) State() State[T] { return c.res.State() }

// Subscribe registers fn to observe every state change.
func (c *Collection[T, F]) Subscribe(fn func(State[T])) (cancel func()) {
	return c.res.Subscribe(fn)
}
