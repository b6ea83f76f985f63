// Package dedup tracks which source rows have already been surfaced.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/rpattn/streamgate/internal/repository"
)

// Set is the processed-key set. It only grows, except through Clear, and every
// insertion is written through to the repository. Keys whose write failed are
// retried with the next write.
type Set struct {
	mu          sync.RWMutex
	repo        repository.ProcessedKeyRepository
	keys        map[string]struct{}
	persistMu   sync.Mutex
	unpersisted []string
}

// Load reads the persisted keys from repo.
func Load(ctx context.Context, repo repository.ProcessedKeyRepository) (*Set, error) {
	stored, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed keys: %w", err)
	}
	keys := make(map[string]struct{}, len(stored))
	for _, k := range stored {
		keys[k] = struct{}{}
	}
	return &Set{repo: repo, keys: keys}, nil
}

// Seen reports whether key has been recorded.
func (s *Set) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Mark records keys and persists the new ones together with any keys from an
// earlier failed write. It returns the keys that were not already present. On a
// persistence error the keys stay marked in memory so this process does not
// surface the same rows twice, and they are queued for the next write.
func (s *Set) Mark(ctx context.Context, keys ...string) ([]string, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	fresh := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		fresh = append(fresh, k)
	}
	s.mu.Unlock()

	pending := append(append([]string(nil), s.unpersisted...), fresh...)
	if len(pending) == 0 {
		return fresh, nil
	}
	if err := s.repo.Add(ctx, pending); err != nil {
		s.unpersisted = pending
		return fresh, fmt.Errorf("failed to persist processed keys: %w", err)
	}
	s.unpersisted = nil
	return fresh, nil
}

// Unpersisted returns how many recorded keys are still waiting to be written.
func (s *Set) Unpersisted() int {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return len(s.unpersisted)
}

// Clear empties the set and its persisted copy.
func (s *Set) Clear(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear processed keys: %w", err)
	}
	s.mu.Lock()
	s.keys = make(map[string]struct{})
	s.mu.Unlock()
	s.unpersisted = nil
	return nil
}

// Len returns the number of recorded keys.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
