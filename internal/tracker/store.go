package tracker

import "context"

// UserStore manages tracker accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) error
	// SoftDelete flags the user as deleted without dropping the row, so
	// existing activity attribution survives.
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context) ([]User, error)
}

// ProjectStore manages projects and their memberships. Get and List
// return projects with members loaded.
type ProjectStore interface {
	Create(ctx context.Context, p Project) error
	Get(ctx context.Context, id string) (Project, error)
	Update(ctx context.Context, p Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Project, error)
	AddMember(ctx context.Context, projectID string, m Member) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	SetMemberNotify(ctx context.Context, projectID, userID string, pref string) error
}

// IssueStore manages issues. Get returns the issue with its tags and the
// owning project (members included) loaded.
type IssueStore interface {
	Create(ctx context.Context, i Issue) error
	Get(ctx context.Context, id string) (Issue, error)
	Update(ctx context.Context, i Issue) error
	Delete(ctx context.Context, id string) error
	ListForProject(ctx context.Context, projectID string) ([]Issue, error)
	SetTags(ctx context.Context, issueID string, tagIDs []string) error
	DeleteForProject(ctx context.Context, projectID string) error
}

// CommentStore manages issue comments.
type CommentStore interface {
	Create(ctx context.Context, c Comment) error
	Get(ctx context.Context, id string) (Comment, error)
	Update(ctx context.Context, c Comment) error
	Delete(ctx context.Context, id string) error
	ListForIssue(ctx context.Context, issueID string) ([]Comment, error)
	// Authors returns the distinct user ids that commented on the issue;
	// the fan-out uses it to resolve prior participation.
	Authors(ctx context.Context, issueID string) ([]string, error)
	DeleteForIssue(ctx context.Context, issueID string) error
}

// NoteStore manages project notes.
type NoteStore interface {
	Create(ctx context.Context, n Note) error
	Get(ctx context.Context, id string) (Note, error)
	Update(ctx context.Context, n Note) error
	Delete(ctx context.Context, id string) error
	ListForProject(ctx context.Context, projectID string) ([]Note, error)
	DeleteForProject(ctx context.Context, projectID string) error
}

// TagStore manages the tag catalogue.
type TagStore interface {
	Create(ctx context.Context, t Tag) error
	Get(ctx context.Context, id string) (Tag, error)
	GetMany(ctx context.Context, ids []string) ([]Tag, error)
	Update(ctx context.Context, t Tag) error
	List(ctx context.Context) ([]Tag, error)
	ListGroup(ctx context.Context, groupName string) ([]Tag, error)
}
