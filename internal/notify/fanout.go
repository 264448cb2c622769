package notify

import (
	"context"
	"fmt"
	"time"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/ids"
	"tinytrack.org/internal/obs"
)

// Candidate is one potential recipient: a member of the activity's
// project together with the facts the preference filter needs. The caller
// computes these from membership and participation data.
type Candidate struct {
	UserID     string
	Deleted    bool
	Preference Preference
	// Creator, Assignee and Participant describe the candidate's relation
	// to the target issue; they drive the mentioned-or-own preference.
	Creator     bool
	Assignee    bool
	Participant bool
}

// wants applies the candidate's preference.
func (c Candidate) wants() bool {
	switch c.Preference {
	case PrefNone:
		return false
	case PrefOwn:
		return c.Creator || c.Assignee || c.Participant
	default:
		// Unset preferences behave as "all".
		return true
	}
}

// Fanout computes recipient sets and enqueues delivery work items.
type Fanout struct {
	store Store
	now   func() time.Time
}

// NewFanout constructs a fan-out over the given queue store.
func NewFanout(store Store) (*Fanout, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &Fanout{store: store, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Fanout enqueues one pending entry per interested recipient for the
// given activity. The actor is never notified. Each insert is
// independently atomic: a failure for one recipient surfaces as a
// *WriteError but leaves entries already committed for earlier recipients
// in place, and the successfully created entries are still returned.
func (f *Fanout) Fanout(ctx context.Context, act activity.Activity, candidates []Candidate) ([]QueueEntry, error) {
	if act.ID == "" || !act.Type.Valid() {
		return nil, fmt.Errorf("%w: activity is required", ErrInvalidInput)
	}

	target := TargetFor(act.Type)
	seen := make(map[string]struct{}, len(candidates))

	var created []QueueEntry
	for _, c := range candidates {
		if c.UserID == "" || c.UserID == act.ActorID || c.Deleted {
			continue
		}
		// The same user may appear twice in the candidate slice (e.g.
		// assignee and member); process each at most once.
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		if !c.wants() {
			continue
		}

		entry := QueueEntry{
			ID:          ids.New(),
			TargetType:  target,
			TargetID:    act.ItemID,
			EventType:   act.Type,
			RecipientID: c.UserID,
			Status:      StatusPending,
			CreatedAt:   f.now(),
		}
		inserted, err := f.store.InsertIfAbsent(ctx, entry.key(), entry)
		if err != nil {
			return created, &WriteError{RecipientID: c.UserID, Err: err}
		}
		if !inserted {
			obs.NotificationsDeduplicated()
			continue
		}
		obs.NotificationsEnqueued()
		created = append(created, entry)
	}
	return created, nil
}

// DeleteForTarget drops queued work for a deleted issue or note.
func (f *Fanout) DeleteForTarget(ctx context.Context, target TargetType, targetID string) error {
	if targetID == "" {
		return fmt.Errorf("%w: target id is required", ErrInvalidInput)
	}
	return f.store.DeleteForTarget(ctx, target, targetID)
}
