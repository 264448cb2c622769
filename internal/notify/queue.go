// Package notify turns one recorded activity into zero or more
// per-recipient delivery work items. Fan-out only produces pending queue
// entries; an external worker drains them and marks them sent or failed,
// keeping slow transport I/O off the request path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tinytrack.org/internal/activity"
)

// Preference is a user's notification preference for a project.
type Preference string

const (
	// PrefNone suppresses all notifications.
	PrefNone Preference = "none"
	// PrefOwn limits notifications to issues the user created, is
	// assigned to, or has previously participated in.
	PrefOwn Preference = "mentioned-or-own"
	// PrefAll delivers every tracked event.
	PrefAll Preference = "all"
)

// TargetType distinguishes what a queue entry points at.
type TargetType string

const (
	TargetIssue TargetType = "issue"
	TargetNote  TargetType = "note"
)

// TargetFor maps an activity type to the queue target it concerns.
func TargetFor(t activity.Type) TargetType {
	switch t {
	case activity.TypeNoteAdded, activity.TypeNoteUpdated, activity.TypeNoteDeleted:
		return TargetNote
	}
	return TargetIssue
}

// Status is the delivery state of a queue entry. The fan-out only ever
// creates pending entries; the delivery worker owns the transitions.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// QueueEntry is one unit of delivery work for one recipient.
type QueueEntry struct {
	ID          string        `json:"id"`
	TargetType  TargetType    `json:"target_type"`
	TargetID    string        `json:"target_id"`
	EventType   activity.Type `json:"event_type"`
	RecipientID string        `json:"recipient_id"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Key is the deduplication identity of a logical event per recipient.
// Two triggers of the same logical event must collapse into one entry.
type Key struct {
	TargetType  TargetType
	TargetID    string
	EventType   activity.Type
	RecipientID string
}

func (e QueueEntry) key() Key {
	return Key{
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		EventType:   e.EventType,
		RecipientID: e.RecipientID,
	}
}

// Store persists queue entries. InsertIfAbsent must be atomic with
// respect to the key: of two concurrent inserts for the same key exactly
// one wins. Pending entries are only deduplicated against pending ones;
// an entry the worker already delivered does not suppress a new event.
type Store interface {
	InsertIfAbsent(ctx context.Context, key Key, entry QueueEntry) (inserted bool, err error)
	ListPending(ctx context.Context, limit int) ([]QueueEntry, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	DeleteForTarget(ctx context.Context, target TargetType, targetID string) error
}

var (
	ErrInvalidInput = errors.New("notify: invalid input")
	ErrNotFound     = errors.New("notify: not found")
)

// WriteError wraps a queue store failure for one recipient. Entries
// committed for other recipients before the failure remain committed.
type WriteError struct {
	RecipientID string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("notify: enqueue for %s: %v", e.RecipientID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
