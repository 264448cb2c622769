package notify

import (
	"context"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. The
// pending index provides the same insert-if-absent guarantee the Postgres
// store gets from its conditional insert.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]QueueEntry // id -> entry
	pending map[Key]string        // dedup key -> pending entry id
	order   []string
}

// NewInMemory creates an empty queue.
func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]QueueEntry),
		pending: make(map[Key]string),
	}
}

func (s *InMemory) InsertIfAbsent(ctx context.Context, key Key, entry QueueEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; ok {
		return false, nil
	}
	s.entries[entry.ID] = entry
	s.pending[key] = entry.ID
	s.order = append(s.order, entry.ID)
	return true, nil
}

func (s *InMemory) ListPending(ctx context.Context, limit int) ([]QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QueueEntry
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok || e.Status != StatusPending {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkSent(ctx context.Context, id string) error {
	return s.transition(id, StatusSent)
}

func (s *InMemory) MarkFailed(ctx context.Context, id string) error {
	return s.transition(id, StatusFailed)
}

func (s *InMemory) transition(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status == StatusPending {
		delete(s.pending, e.key())
	}
	e.Status = status
	s.entries[id] = e
	return nil
}

func (s *InMemory) DeleteForTarget(ctx context.Context, target TargetType, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		e := s.entries[id]
		if e.TargetType == target && e.TargetID == targetID {
			if e.Status == StatusPending {
				delete(s.pending, e.key())
			}
			delete(s.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}
