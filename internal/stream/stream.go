// Package stream fans recorded activities out to live subscribers, backing
// the server-sent-events feed of project dashboards. Delivery is best
// effort: a slow subscriber drops events instead of blocking the recorder
// path.
package stream

import (
	"context"
	"sync"

	"tinytrack.org/internal/activity"
)

// Event is one activity broadcast to live feeds.
type Event struct {
	Activity activity.Activity `json:"activity"`
}

// Stream fan-outs activity events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch chan Event
	// projectID filters the feed; empty subscribes to everything.
	projectID string
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one project's events and returns a
// channel which will receive them. An empty project id receives every
// event. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context, projectID string) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ch: ch, projectID: projectID}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all matching subscribers.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.projectID != "" && sub.projectID != evt.Activity.ProjectID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the current subscriber count.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
