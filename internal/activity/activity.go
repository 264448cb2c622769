// Package activity records the immutable event trail behind every tracked
// domain mutation. Entries are append-only: nothing updates or deletes an
// activity except the administrative cascade that runs when its owning
// project or item is deleted.
package activity

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies the kind of tracked event.
type Type string

const (
	TypeIssueCreated    Type = "issue-created"
	TypeIssueCommented  Type = "issue-commented"
	TypeIssueReassigned Type = "issue-reassigned"
	TypeIssueClosed     Type = "issue-closed"
	TypeIssueReopened   Type = "issue-reopened"
	TypeTagsUpdated     Type = "tags-updated"
	TypeQuoteLocked     Type = "quote-locked"
	TypeQuoteUnlocked   Type = "quote-unlocked"
	TypeCommentUpdated  Type = "comment-updated"
	TypeCommentDeleted  Type = "comment-deleted"
	TypeNoteAdded       Type = "note-added"
	TypeNoteUpdated     Type = "note-updated"
	TypeNoteDeleted     Type = "note-deleted"
)

var knownTypes = map[Type]struct{}{
	TypeIssueCreated:    {},
	TypeIssueCommented:  {},
	TypeIssueReassigned: {},
	TypeIssueClosed:     {},
	TypeIssueReopened:   {},
	TypeTagsUpdated:     {},
	TypeQuoteLocked:     {},
	TypeQuoteUnlocked:   {},
	TypeCommentUpdated:  {},
	TypeCommentDeleted:  {},
	TypeNoteAdded:       {},
	TypeNoteUpdated:     {},
	TypeNoteDeleted:     {},
}

// Valid reports whether t is a known activity type.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Activity is one immutable entry in a project's event trail. ItemID is
// the issue or note the event concerns; ActionID optionally carries a
// secondary subject such as the new assignee or the comment involved.
type Activity struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ProjectID string    `json:"project_id"`
	ItemID    string    `json:"item_id"`
	ActionID  string    `json:"action_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidInput = errors.New("activity: invalid input")
)

// WriteError wraps a storage failure while appending an activity. A
// missing entry breaks the audit trail and silently skips notification
// fan-out, so callers must treat it as fatal to the enclosing operation.
type WriteError struct {
	Type Type
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("activity: write %s: %v", e.Type, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
