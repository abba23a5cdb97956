package store

import (
	"context"
	"sync"
)

// Memory is an in-process KV. It backs tests and the degraded mode entered
// when the durable store cannot be opened.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory returns an empty in-memory KV.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Get(_ context.Context, scope, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[scope+"\x00"+key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *Memory) Set(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[scope+"\x00"+key] = value
	return nil
}

func (s *Memory) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, scope+"\x00"+key)
	return nil
}
