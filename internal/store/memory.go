// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryKV keeps plugin values in process memory.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string][]byte)}
}

// Get returns a copy of the value for key, or nil when absent.
func (s *MemoryKV) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data[namespace][key]), nil
}

// Set stores a copy of value.
func (s *MemoryKV) Set(_ context.Context, namespace, key string, value []byte) error {
	if err := checkValueSize(namespace, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	if value == nil {
		value = []byte{}
	}
	ns[key] = slices.Clone(value)
	return nil
}

// Delete removes key.
func (s *MemoryKV) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}
