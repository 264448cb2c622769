package notify

import (
	"context"
	"errors"
	"testing"

	"tinytrack.org/internal/activity"
)

func testActivity(t activity.Type, actorID string) activity.Activity {
	return activity.Activity{
		ID:        "01TESTACTIVITY",
		Type:      t,
		ProjectID: "p1",
		ItemID:    "i1",
		ActorID:   actorID,
	}
}

func TestFanoutPreferencesAndActor(t *testing.T) {
	// Project members A, B, C; actor A; B wants everything, C nothing.
	store := NewInMemory()
	f, err := NewFanout(store)
	if err != nil {
		t.Fatalf("NewFanout: %v", err)
	}

	candidates := []Candidate{
		{UserID: "A", Preference: PrefAll},
		{UserID: "B", Preference: PrefAll},
		{UserID: "C", Preference: PrefNone},
	}
	created, err := f.Fanout(context.Background(), testActivity(activity.TypeIssueCommented, "A"), candidates)
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(created))
	}
	e := created[0]
	if e.RecipientID != "B" {
		t.Fatalf("expected recipient B, got %s", e.RecipientID)
	}
	if e.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", e.Status)
	}
	if e.TargetType != TargetIssue || e.TargetID != "i1" {
		t.Fatalf("unexpected target: %s %s", e.TargetType, e.TargetID)
	}
	if e.EventType != activity.TypeIssueCommented {
		t.Fatalf("unexpected event type: %s", e.EventType)
	}
}

func TestFanoutNeverIncludesActor(t *testing.T) {
	f, _ := NewFanout(NewInMemory())
	created, err := f.Fanout(context.Background(), testActivity(activity.TypeIssueCreated, "A"), []Candidate{
		{UserID: "A", Preference: PrefAll},
	})
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("actor must never be notified, got %+v", created)
	}
}

func TestFanoutMentionedOrOwn(t *testing.T) {
	tests := []struct {
		name string
		cand Candidate
		want bool
	}{
		{"creator", Candidate{UserID: "B", Preference: PrefOwn, Creator: true}, true},
		{"assignee", Candidate{UserID: "B", Preference: PrefOwn, Assignee: true}, true},
		{"participant", Candidate{UserID: "B", Preference: PrefOwn, Participant: true}, true},
		{"unrelated", Candidate{UserID: "B", Preference: PrefOwn}, false},
		{"unset preference acts as all", Candidate{UserID: "B"}, true},
		{"deleted user excluded", Candidate{UserID: "B", Preference: PrefAll, Deleted: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := NewFanout(NewInMemory())
			created, err := f.Fanout(context.Background(), testActivity(activity.TypeIssueReassigned, "A"), []Candidate{tt.cand})
			if err != nil {
				t.Fatalf("Fanout: %v", err)
			}
			if got := len(created) == 1; got != tt.want {
				t.Fatalf("included = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFanoutIdempotent(t *testing.T) {
	store := NewInMemory()
	f, _ := NewFanout(store)
	act := testActivity(activity.TypeIssueCommented, "A")
	candidates := []Candidate{
		{UserID: "B", Preference: PrefAll},
		{UserID: "C", Preference: PrefAll},
	}

	ctx := context.Background()
	first, err := f.Fanout(ctx, act, candidates)
	if err != nil {
		t.Fatalf("first Fanout: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first))
	}

	second, err := f.Fanout(ctx, act, candidates)
	if err != nil {
		t.Fatalf("second Fanout: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("repeated trigger must be deduplicated, got %d new entries", len(second))
	}

	pending, _ := store.ListPending(ctx, 0)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries total, got %d", len(pending))
	}
}

func TestFanoutDedupScopedToEvent(t *testing.T) {
	store := NewInMemory()
	f, _ := NewFanout(store)
	ctx := context.Background()
	cands := []Candidate{{UserID: "B", Preference: PrefAll}}

	if _, err := f.Fanout(ctx, testActivity(activity.TypeIssueCommented, "A"), cands); err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	// A different event type on the same target is a new logical event.
	created, err := f.Fanout(ctx, testActivity(activity.TypeIssueClosed, "A"), cands)
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("distinct event type must enqueue, got %d", len(created))
	}
}

func TestFanoutDuplicateCandidates(t *testing.T) {
	f, _ := NewFanout(NewInMemory())
	created, err := f.Fanout(context.Background(), testActivity(activity.TypeIssueCreated, "A"), []Candidate{
		{UserID: "B", Preference: PrefAll},
		{UserID: "B", Preference: PrefAll},
	})
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("duplicate candidate rows must collapse, got %d", len(created))
	}
}

type failAfterStore struct {
	*InMemory
	allow int
	err   error
}

func (s *failAfterStore) InsertIfAbsent(ctx context.Context, key Key, entry QueueEntry) (bool, error) {
	if s.allow <= 0 {
		return false, s.err
	}
	s.allow--
	return s.InMemory.InsertIfAbsent(ctx, key, entry)
}

func TestFanoutPartialFailureKeepsCommitted(t *testing.T) {
	storeErr := errors.New("queue unavailable")
	store := &failAfterStore{InMemory: NewInMemory(), allow: 1, err: storeErr}
	f, _ := NewFanout(store)

	created, err := f.Fanout(context.Background(), testActivity(activity.TypeIssueCommented, "A"), []Candidate{
		{UserID: "B", Preference: PrefAll},
		{UserID: "C", Preference: PrefAll},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %T", err)
	}
	if we.RecipientID != "C" {
		t.Fatalf("unexpected failing recipient: %s", we.RecipientID)
	}
	if !errors.Is(err, storeErr) {
		t.Fatal("must wrap the store failure")
	}
	if len(created) != 1 || created[0].RecipientID != "B" {
		t.Fatalf("committed entries must be returned, got %+v", created)
	}
	pending, _ := store.ListPending(context.Background(), 0)
	if len(pending) != 1 {
		t.Fatalf("committed entry must remain, got %d", len(pending))
	}
}

func TestQueueWorkerContract(t *testing.T) {
	store := NewInMemory()
	f, _ := NewFanout(store)
	ctx := context.Background()

	created, err := f.Fanout(ctx, testActivity(activity.TypeNoteAdded, "A"), []Candidate{
		{UserID: "B", Preference: PrefAll},
	})
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if created[0].TargetType != TargetNote {
		t.Fatalf("note activity must target a note, got %s", created[0].TargetType)
	}

	if err := store.MarkSent(ctx, created[0].ID); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	pending, _ := store.ListPending(ctx, 0)
	if len(pending) != 0 {
		t.Fatalf("sent entry still pending: %+v", pending)
	}

	// Once delivered, the same logical event may be enqueued again.
	again, err := f.Fanout(ctx, testActivity(activity.TypeNoteAdded, "A"), []Candidate{
		{UserID: "B", Preference: PrefAll},
	})
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if len(again) != 1 {
		t.Fatalf("delivered entry must not block a new event, got %d", len(again))
	}

	if err := store.MarkFailed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkFailed on unknown id: %v", err)
	}
}
