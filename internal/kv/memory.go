package kv

import (
	"context"
	"sync"
	"time"
)

type namespaceEntries struct {
	values  map[string]string
	touched time.Time
}

type MemoryStore struct {
	mu    sync.Mutex
	areas map[string]*namespaceEntries
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		areas: make(map[string]*namespaceEntries),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	if err := checkNamespace(namespace); err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	area, ok := s.areas[namespace]
	if !ok {
		return "", false, nil
	}
	area.touched = s.now()
	v, ok := area.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, namespace, key, value string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	area, ok := s.areas[namespace]
	if !ok {
		area = &namespaceEntries{values: make(map[string]string)}
		s.areas[namespace] = area
	}
	area.values[key] = value
	area.touched = s.now()
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, namespace, key string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if area, ok := s.areas[namespace]; ok {
		delete(area.values, key)
		area.touched = s.now()
	}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, namespace string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.areas, namespace)
	return nil
}

// Sweep drops namespaces untouched for longer than idle.
func (s *MemoryStore) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for ns, area := range s.areas {
		if area.touched.Before(cutoff) {
			delete(s.areas, ns)
			removed++
		}
	}
	return removed, nil
}
