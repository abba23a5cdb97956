// Package store defines the persistent scoped key/value port used for
// client-side state that outlives a process: the cached last-session
// reference, the onboarding step, and UI preferences. Implementations must
// provide identical semantics across backends; callers treat every failure
// as an absent value and fall back to defaults.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value in its scope.
var ErrNotFound = errors.New("store: key not found")

// KV persists small string values under (scope, key). Scopes namespace
// independent concerns so their keys cannot collide.
type KV interface {
	Get(ctx context.Context, scope, key string) (string, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
}

// Scope binds a KV to one namespace.
type Scope struct {
	kv   KV
	name string
}

// NewScope returns a Scope over kv named name.
func NewScope(kv KV, name string) Scope {
	return Scope{kv: kv, name: name}
}

// Name returns the scope's namespace.
func (s Scope) Name() string { return s.name }

func (s Scope) Get(ctx context.Context, key string) (string, error) {
	return s.kv.Get(ctx, s.name, key)
}

func (s Scope) Set(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, s.name, key, value)
}

func (s Scope) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.name, key)
}
