package activity

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. Used by
// tests and the demo wiring; production runs on the Postgres store.
type InMemory struct {
	mu      sync.RWMutex
	entries []Activity
}

// NewInMemory creates an empty activity log.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, a Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, a)
	return nil
}

func (s *InMemory) DeleteForItem(ctx context.Context, projectID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, a := range s.entries {
		if a.ProjectID == projectID && a.ItemID == itemID {
			continue
		}
		kept = append(kept, a)
	}
	s.entries = kept
	return nil
}

func (s *InMemory) DeleteForProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, a := range s.entries {
		if a.ProjectID == projectID {
			continue
		}
		kept = append(kept, a)
	}
	s.entries = kept
	return nil
}

func (s *InMemory) ListForProject(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Activity
	for _, a := range s.entries {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	// Most recent first, ULIDs sort chronologically.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) ListForItem(ctx context.Context, projectID, itemID string) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Activity
	for _, a := range s.entries {
		if a.ProjectID == projectID && a.ItemID == itemID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
