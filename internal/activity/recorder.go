package activity

import (
	"context"
	"fmt"
	"time"

	"tinytrack.org/internal/ids"
	"tinytrack.org/internal/obs"
)

// Store persists activities. Append must be atomic per entry; the delete
// methods implement the administrative cascade only.
type Store interface {
	Append(ctx context.Context, a Activity) error
	DeleteForItem(ctx context.Context, projectID, itemID string) error
	DeleteForProject(ctx context.Context, projectID string) error
	ListForProject(ctx context.Context, projectID string, limit int) ([]Activity, error)
	ListForItem(ctx context.Context, projectID, itemID string) ([]Activity, error)
}

// Recorder appends typed activity entries to a store.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a recorder over the given store.
func NewRecorder(store Store) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &Recorder{store: store, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Record appends one immutable activity entry and returns it. Storage
// failures surface as *WriteError, never silently.
func (r *Recorder) Record(ctx context.Context, t Type, projectID, itemID, actorID, actionID string) (Activity, error) {
	if !t.Valid() {
		return Activity{}, fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, t)
	}
	if projectID == "" || itemID == "" || actorID == "" {
		return Activity{}, fmt.Errorf("%w: project, item and actor are required", ErrInvalidInput)
	}
	a := Activity{
		ID:        ids.New(),
		Type:      t,
		ProjectID: projectID,
		ItemID:    itemID,
		ActionID:  actionID,
		ActorID:   actorID,
		CreatedAt: r.now(),
	}
	if err := r.store.Append(ctx, a); err != nil {
		return Activity{}, &WriteError{Type: t, Err: err}
	}
	obs.ActivityRecorded(string(t))
	return a, nil
}

// DeleteForItem removes activities tied to a deleted issue or note.
func (r *Recorder) DeleteForItem(ctx context.Context, projectID, itemID string) error {
	if projectID == "" || itemID == "" {
		return fmt.Errorf("%w: project and item are required", ErrInvalidInput)
	}
	return r.store.DeleteForItem(ctx, projectID, itemID)
}

// DeleteForProject removes all of a project's activities when the project
// itself is deleted.
func (r *Recorder) DeleteForProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project is required", ErrInvalidInput)
	}
	return r.store.DeleteForProject(ctx, projectID)
}

// ListForProject returns the most recent activities of a project.
func (r *Recorder) ListForProject(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project is required", ErrInvalidInput)
	}
	return r.store.ListForProject(ctx, projectID, limit)
}

// ListForItem returns the activity trail of one issue or note in
// chronological order.
func (r *Recorder) ListForItem(ctx context.Context, projectID, itemID string) ([]Activity, error) {
	if projectID == "" || itemID == "" {
		return nil, fmt.Errorf("%w: project and item are required", ErrInvalidInput)
	}
	return r.store.ListForItem(ctx, projectID, itemID)
}
